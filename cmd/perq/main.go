package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/perq/internal/config"
	"github.com/rzbill/perq/internal/kvstore"
	"github.com/rzbill/perq/internal/namespace"
	"github.com/rzbill/perq/internal/perq"
	badgerstore "github.com/rzbill/perq/internal/storage/badger"
	pebblestore "github.com/rzbill/perq/internal/storage/pebble"
	logpkg "github.com/rzbill/perq/pkg/log"
)

func main() {
	level := os.Getenv("PERQ_LOG_LEVEL")
	parsed := logpkg.InfoLevel
	switch level {
	case "debug":
		parsed = logpkg.DebugLevel
	case "warn":
		parsed = logpkg.WarnLevel
	case "error":
		parsed = logpkg.ErrorLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	// Redirect standard library logs (used by Pebble/Badger) to our logger.
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "perq",
		Short: "perq: a persistent FIFO queue over an embedded KV store",
		Long:  "perq manages one or more durable FIFO queues backed by Pebble or Badger.",
	}
	rootCmd.PersistentFlags().String("data-dir", os.Getenv("PERQ_DATA_DIR"), "Data directory (defaults to an OS-specific application data directory)")
	rootCmd.PersistentFlags().String("backend", os.Getenv("PERQ_BACKEND"), "Storage backend: pebble|badger (default pebble)")
	rootCmd.PersistentFlags().String("fsync", os.Getenv("PERQ_FSYNC"), "Fsync mode: always|interval|never (default interval)")

	rootCmd.AddCommand(
		newInitCmd(logger),
		newQueueCmd(logger),
		newPushCmd(logger),
		newPopCmd(logger),
		newPollCmd(logger),
		newTopCmd(logger),
		newSizeCmd(logger),
		newStatsCmd(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfig merges defaults, an optional --config JSON file, and the
// command's --data-dir/--backend/--fsync flags, in that ascending order
// of precedence.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	config.FromEnv(&cfg)

	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		cfg.Backend = v
	}
	if v, _ := cmd.Flags().GetString("fsync"); v != "" {
		cfg.Fsync = v
	}
	if cfg.DataDir == "" {
		cfg.DataDir = config.DefaultDataDir()
	}
	if cfg.Backend == "" {
		cfg.Backend = "pebble"
	}
	if cfg.Fsync == "" {
		cfg.Fsync = "always"
	}
	return cfg, nil
}

// storeHandle bundles an opened kvstore.Store with whatever concrete
// backend must be closed to release it.
type storeHandle struct {
	store kvstore.Store
	close func() error
}

func openStore(cfg config.Config) (storeHandle, error) {
	switch cfg.Backend {
	case "badger":
		db, err := badgerstore.Open(badgerstore.Options{
			DataDir:    cfg.DataDir,
			SyncWrites: cfg.Fsync == "always",
		})
		if err != nil {
			return storeHandle{}, err
		}
		return storeHandle{store: db.AsStore(), close: db.Close}, nil
	default:
		mode := pebblestore.FsyncModeAlways
		switch cfg.Fsync {
		case "never":
			mode = pebblestore.FsyncModeNever
		case "interval":
			mode = pebblestore.FsyncModeInterval
		}
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:       cfg.DataDir,
			Fsync:         mode,
			FsyncInterval: time.Duration(cfg.FsyncIntervalMs) * time.Millisecond,
		})
		if err != nil {
			return storeHandle{}, err
		}
		return storeHandle{store: pebblestore.AsStore(db), close: db.Close}, nil
	}
}

// resolveQueueSpec looks up a queue's frozen shape from the namespace
// registry so that steady-state commands (push/pop/poll/top/size/stats)
// never need the caller to repeat --width/--prefix-width/--prefix-value.
func resolveQueueSpec(store kvstore.Store, name string) (perq.QueueSpec, error) {
	shape, ok, err := namespace.GetQueueShape(store, name)
	if err != nil {
		return perq.QueueSpec{}, err
	}
	if !ok {
		return perq.QueueSpec{}, fmt.Errorf("queue %q does not exist; run 'perq queue create %s' first", name, name)
	}
	return perq.QueueSpec{
		Name:            name,
		Width:           perq.Width(shape.Width),
		PrefixWidth:     shape.PrefixWidth,
		PrefixValue:     shape.PrefixValue,
		MaxThreadNumber: shape.MaxThreadNumber,
	}, nil
}

func openQueue(cmd *cobra.Command, logger logpkg.Logger, name string, create *perq.QueueSpec) (*perq.Queue, func() error, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	h, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	var spec perq.QueueSpec
	if create != nil {
		spec = *create
	} else {
		spec, err = resolveQueueSpec(h.store, name)
		if err != nil {
			_ = h.close()
			return nil, nil, err
		}
	}

	q, err := perq.Open(h.store, spec, perq.WithLogger(logger))
	if err != nil {
		_ = h.close()
		return nil, nil, err
	}
	return q, h.close, nil
}

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", os.Getenv("PERQ_CONFIG"), "Path to a JSON config file")
}

func newInitCmd(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the data directory and open the store once to verify it is usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			h, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			if err := h.close(); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			fmt.Printf("initialized %s store at %s\n", cfg.Backend, cfg.DataDir)
			return nil
		},
	}
	addConfigFlag(cmd)
	return cmd
}

func newQueueCmd(logger logpkg.Logger) *cobra.Command {
	queueCmd := &cobra.Command{Use: "queue", Short: "Queue management commands"}

	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create (or verify) a named queue's frozen key shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			width, _ := cmd.Flags().GetInt("width")
			prefixWidth, _ := cmd.Flags().GetInt("prefix-width")
			prefixValue, _ := cmd.Flags().GetUint64("prefix-value")
			maxThreads, _ := cmd.Flags().GetUint64("max-threads")

			spec := perq.QueueSpec{
				Name:            args[0],
				Width:           perq.Width(width),
				PrefixWidth:     prefixWidth,
				PrefixValue:     prefixValue,
				MaxThreadNumber: maxThreads,
			}
			q, closeStore, err := openQueue(cmd, logger, args[0], &spec)
			if err != nil {
				return err
			}
			defer closeStore()
			fmt.Printf("queue %q ready (width=%d prefixWidth=%d prefixValue=%d maxThreadNumber=%d, size=%d)\n",
				args[0], width, prefixWidth, prefixValue, spec.MaxThreadNumber, q.Size())
			return nil
		},
	}
	createCmd.Flags().Int("width", 32, "Key width in bits: 16, 32, or 64")
	createCmd.Flags().Int("prefix-width", 0, "Bits of the key reserved for a fixed prefix")
	createCmd.Flags().Uint64("prefix-value", 0, "Value stored in the prefix bits")
	createCmd.Flags().Uint64("max-threads", 0, "Max concurrent producers / max recoverable crash gap (0 = default)")
	addConfigFlag(createCmd)
	queueCmd.AddCommand(createCmd)
	return queueCmd
}

func newPushCmd(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push NAME",
		Short: "Append a value to the tail of the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, _ := cmd.Flags().GetString("value")
			fromStdin, _ := cmd.Flags().GetBool("stdin")

			var payload []byte
			switch {
			case fromStdin:
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("push: reading stdin: %w", err)
				}
				payload = b
			case value != "":
				payload = []byte(value)
			default:
				return fmt.Errorf("push: one of --value or --stdin is required")
			}

			q, closeStore, err := openQueue(cmd, logger, args[0], nil)
			if err != nil {
				return err
			}
			defer closeStore()

			if !q.Push(payload) {
				return fmt.Errorf("push: queue %q is full", args[0])
			}
			fmt.Printf("pushed %d bytes, size=%d\n", len(payload), q.Size())
			return nil
		},
	}
	cmd.Flags().String("value", "", "Value to push")
	cmd.Flags().Bool("stdin", false, "Read the value to push from stdin")
	addConfigFlag(cmd)
	return cmd
}

func newPopCmd(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pop NAME",
		Short: "Discard the oldest item in the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, closeStore, err := openQueue(cmd, logger, args[0], nil)
			if err != nil {
				return err
			}
			defer closeStore()
			if !q.Pop() {
				fmt.Println("empty")
				return nil
			}
			fmt.Printf("popped, size=%d\n", q.Size())
			return nil
		},
	}
	addConfigFlag(cmd)
	return cmd
}

func newPollCmd(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll NAME",
		Short: "Read and remove the oldest item in the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, closeStore, err := openQueue(cmd, logger, args[0], nil)
			if err != nil {
				return err
			}
			defer closeStore()
			val, ok := q.Poll()
			if !ok {
				fmt.Println("empty")
				return nil
			}
			os.Stdout.Write(val)
			fmt.Println()
			return nil
		},
	}
	addConfigFlag(cmd)
	return cmd
}

func newTopCmd(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "top NAME",
		Short: "Peek at the oldest item without removing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, closeStore, err := openQueue(cmd, logger, args[0], nil)
			if err != nil {
				return err
			}
			defer closeStore()
			val, ok := q.Top()
			if !ok {
				fmt.Println("empty")
				return nil
			}
			os.Stdout.Write(val)
			fmt.Println()
			return nil
		},
	}
	addConfigFlag(cmd)
	return cmd
}

func newSizeCmd(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "size NAME",
		Short: "Print the current number of items in the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, closeStore, err := openQueue(cmd, logger, args[0], nil)
			if err != nil {
				return err
			}
			defer closeStore()
			fmt.Println(q.Size())
			return nil
		},
	}
	addConfigFlag(cmd)
	return cmd
}

func newStatsCmd(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats NAME",
		Short: "Dump diagnostic counters as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, closeStore, err := openQueue(cmd, logger, args[0], nil)
			if err != nil {
				return err
			}
			defer closeStore()
			b, err := json.MarshalIndent(q.Stats(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		},
	}
	addConfigFlag(cmd)
	return cmd
}
