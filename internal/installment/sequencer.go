package installment

import "sync/atomic"

// Sequencer issues monotonically increasing submission numbers. Only the
// response to the latest issued number may be applied.
type Sequencer struct {
	latest atomic.Uint64
}

// Next issues a new sequence number.
func (s *Sequencer) Next() uint64 {
	return s.latest.Add(1)
}

// Latest returns the most recently issued number, zero if none.
func (s *Sequencer) Latest() uint64 {
	return s.latest.Load()
}

// IsLatest reports whether seq is the most recently issued number.
func (s *Sequencer) IsLatest(seq uint64) bool {
	return seq != 0 && seq == s.latest.Load()
}
