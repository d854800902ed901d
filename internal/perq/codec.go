package perq

import (
	"encoding/binary"
	"fmt"
)

// Width is the bit width of a queue's logical ID and on-disk key.
type Width int

const (
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

func (w Width) bytes() int { return int(w) / 8 }

// Codec converts between a logical queue ID and its fixed-width,
// big-endian on-disk key, optionally reserving the top PrefixWidth bits
// of the key for a fixed prefix value so multiple queues can share one
// keyspace.
type Codec interface {
	// ToKey encodes id as a KeyLen()-byte big-endian key, with the
	// configured prefix bits set in the high bits of the word.
	ToKey(id uint64) []byte
	// ToID decodes a KeyLen()-byte big-endian key back to its logical
	// ID, masking off the prefix bits. Returns CorruptionError if key is
	// not exactly KeyLen() bytes.
	ToID(key []byte) (uint64, error)
	// MaxID returns the largest representable logical ID: 2^(W-P) - 1.
	MaxID() uint64
	// KeyLen returns the on-disk key length in bytes (W/8).
	KeyLen() int
}

// NewCodec builds the concrete codec for width, reserving the top
// prefixWidth bits for prefixValue. prefixWidth of 0 means no prefix
// (the entire word is available to the ID, matching the NoPrefix
// specialization of the original key converter).
func NewCodec(width Width, prefixWidth int, prefixValue uint64) (Codec, error) {
	if width != Width16 && width != Width32 && width != Width64 {
		return nil, &MisuseError{Msg: fmt.Sprintf("codec: unsupported width %d", width)}
	}
	if prefixWidth < 0 || prefixWidth >= int(width) {
		return nil, &MisuseError{Msg: fmt.Sprintf("codec: prefix width %d must be in [0, %d)", prefixWidth, width)}
	}
	if prefixWidth > 0 {
		maxPrefix := (uint64(1) << prefixWidth) - 1
		if prefixValue > maxPrefix {
			return nil, &MisuseError{Msg: fmt.Sprintf("codec: prefix value %d does not fit in %d bits", prefixValue, prefixWidth)}
		}
	} else if prefixValue != 0 {
		return nil, &MisuseError{Msg: "codec: prefix value must be zero when prefix width is zero"}
	}

	idBits := int(width) - prefixWidth
	var maxID uint64
	if idBits >= 64 {
		maxID = ^uint64(0)
	} else {
		maxID = (uint64(1) << idBits) - 1
	}
	keyTemplate := prefixValue << idBits

	switch width {
	case Width16:
		return codec16{keyTemplate: uint16(keyTemplate), maxID: maxID}, nil
	case Width32:
		return codec32{keyTemplate: uint32(keyTemplate), maxID: maxID}, nil
	default:
		return codec64{keyTemplate: keyTemplate, maxID: maxID}, nil
	}
}

type codec16 struct {
	keyTemplate uint16
	maxID       uint64
}

func (c codec16) KeyLen() int   { return 2 }
func (c codec16) MaxID() uint64 { return c.maxID }

func (c codec16) ToKey(id uint64) []byte {
	v := c.keyTemplate | uint16(c.maxID&id)
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return buf
}

func (c codec16) ToID(key []byte) (uint64, error) {
	if len(key) != 2 {
		return 0, &CorruptionError{Msg: fmt.Sprintf("codec: key length %d != 2", len(key))}
	}
	return uint64(binary.BigEndian.Uint16(key)) & c.maxID, nil
}

type codec32 struct {
	keyTemplate uint32
	maxID       uint64
}

func (c codec32) KeyLen() int   { return 4 }
func (c codec32) MaxID() uint64 { return c.maxID }

func (c codec32) ToKey(id uint64) []byte {
	v := c.keyTemplate | uint32(c.maxID&id)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

func (c codec32) ToID(key []byte) (uint64, error) {
	if len(key) != 4 {
		return 0, &CorruptionError{Msg: fmt.Sprintf("codec: key length %d != 4", len(key))}
	}
	return uint64(binary.BigEndian.Uint32(key)) & c.maxID, nil
}

type codec64 struct {
	keyTemplate uint64
	maxID       uint64
}

func (c codec64) KeyLen() int   { return 8 }
func (c codec64) MaxID() uint64 { return c.maxID }

func (c codec64) ToKey(id uint64) []byte {
	v := c.keyTemplate | (c.maxID & id)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func (c codec64) ToID(key []byte) (uint64, error) {
	if len(key) != 8 {
		return 0, &CorruptionError{Msg: fmt.Sprintf("codec: key length %d != 8", len(key))}
	}
	return binary.BigEndian.Uint64(key) & c.maxID, nil
}
