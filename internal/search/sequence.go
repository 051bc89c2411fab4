package search

import "sync/atomic"

// Sequence tags requests for one logical operation with increasing numbers so
// that only the response to the most recently issued request is applied.
// The zero value is ready to use.
type Sequence struct {
	latest atomic.Uint64
}

// Next issues a new tag, superseding every earlier one.
func (s *Sequence) Next() uint64 {
	return s.latest.Add(1)
}

// IsLatest reports whether tag is still the most recently issued one.
func (s *Sequence) IsLatest(tag uint64) bool {
	return tag != 0 && s.latest.Load() == tag
}

// Invalidate supersedes every outstanding tag without issuing a usable one.
func (s *Sequence) Invalidate() {
	s.latest.Add(1)
}

// Latest returns the most recently issued tag (0 if none).
func (s *Sequence) Latest() uint64 {
	return s.latest.Load()
}
