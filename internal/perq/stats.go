package perq

import "sync/atomic"

// localStats accumulates counters for a single call before they are
// merged into the shared Stats once, at the end of the call, keeping the
// retry loop itself free of atomic traffic.
type localStats struct {
	casRepetitionCount uint64
	yieldCount         uint64
	getMissCount       uint64
}

// Stats exposes diagnostic counters for a running queue. All fields are
// safe for concurrent read. A freshly initialized queue that has never
// been touched by more than one goroutine reports all zeros, except
// ShiftUpCount, which counts the gap-fill moves recovery made in Open.
type Stats struct {
	topYieldCount   atomic.Uint64
	topGetMissCount atomic.Uint64

	popCasRepetitionCount atomic.Uint64
	popYieldCount         atomic.Uint64
	popGetMissCount       atomic.Uint64

	pollCasRepetitionCount atomic.Uint64
	pollYieldCount         atomic.Uint64
	pollGetMissCount       atomic.Uint64

	pushCasRepetitionCount    atomic.Uint64
	pushYieldCount            atomic.Uint64
	pushCasRepetitionMaxCount atomic.Uint64
	pushCasYieldMaxCount      atomic.Uint64

	shiftUpCount atomic.Uint64
}

// Snapshot is a point-in-time copy of Stats suitable for logging or the
// CLI's `stats` command.
type Snapshot struct {
	TopYieldCount             uint64
	TopGetMissCount           uint64
	PopCasRepetitionCount     uint64
	PopYieldCount             uint64
	PopGetMissCount           uint64
	PollCasRepetitionCount    uint64
	PollYieldCount            uint64
	PollGetMissCount          uint64
	PushCasRepetitionCount    uint64
	PushYieldCount            uint64
	PushCasRepetitionMaxCount uint64
	PushCasYieldMaxCount      uint64
	ShiftUpCount              uint64
}

// Snapshot takes a consistent-enough point-in-time copy of s.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		TopYieldCount:             s.topYieldCount.Load(),
		TopGetMissCount:           s.topGetMissCount.Load(),
		PopCasRepetitionCount:     s.popCasRepetitionCount.Load(),
		PopYieldCount:             s.popYieldCount.Load(),
		PopGetMissCount:           s.popGetMissCount.Load(),
		PollCasRepetitionCount:    s.pollCasRepetitionCount.Load(),
		PollYieldCount:            s.pollYieldCount.Load(),
		PollGetMissCount:          s.pollGetMissCount.Load(),
		PushCasRepetitionCount:    s.pushCasRepetitionCount.Load(),
		PushYieldCount:            s.pushYieldCount.Load(),
		PushCasRepetitionMaxCount: s.pushCasRepetitionMaxCount.Load(),
		PushCasYieldMaxCount:      s.pushCasYieldMaxCount.Load(),
		ShiftUpCount:              s.shiftUpCount.Load(),
	}
}

func (s *Stats) mergeTop(l localStats) {
	s.topYieldCount.Add(l.yieldCount)
	s.topGetMissCount.Add(l.getMissCount)
}

func (s *Stats) mergePop(l localStats) {
	if l.casRepetitionCount > 1 {
		s.popCasRepetitionCount.Add(l.casRepetitionCount - 1)
	}
	s.popYieldCount.Add(l.yieldCount)
	s.popGetMissCount.Add(l.getMissCount)
}

func (s *Stats) mergePoll(l localStats) {
	if l.casRepetitionCount > 1 {
		s.pollCasRepetitionCount.Add(l.casRepetitionCount - 1)
	}
	s.pollYieldCount.Add(l.yieldCount)
	s.pollGetMissCount.Add(l.getMissCount)
}

func (s *Stats) mergePush(l localStats) {
	if l.casRepetitionCount > 1 {
		rep := l.casRepetitionCount - 1
		s.pushCasRepetitionCount.Add(rep)
		for {
			cur := s.pushCasRepetitionMaxCount.Load()
			if rep <= cur || s.pushCasRepetitionMaxCount.CompareAndSwap(cur, rep) {
				break
			}
		}
	}
	s.pushYieldCount.Add(l.yieldCount)
	for {
		cur := s.pushCasYieldMaxCount.Load()
		if l.yieldCount <= cur || s.pushCasYieldMaxCount.CompareAndSwap(cur, l.yieldCount) {
			break
		}
	}
}

func (s *Stats) incShiftUp() { s.shiftUpCount.Add(1) }
