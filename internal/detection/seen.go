package detection

import (
	"sync"

	"bagwatch/internal/domain"
)

// SeenSet is the shared dedup set across detection paths. The stream and
// poll detectors race on the same launches, so admission has to be a single
// atomic check-and-insert; a check followed by a later insert would let both
// paths through.
type SeenSet struct {
	mu    sync.Mutex
	mints map[domain.Mint]struct{}
}

// NewSeenSet creates an empty dedup set.
func NewSeenSet() *SeenSet {
	return &SeenSet{mints: make(map[domain.Mint]struct{})}
}

// Admit records the mint and reports whether it was new. Exactly one caller
// gets true per mint, no matter how many race.
func (s *SeenSet) Admit(mint domain.Mint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mints[mint]; ok {
		return false
	}
	s.mints[mint] = struct{}{}
	return true
}

// Len returns how many mints have been admitted.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mints)
}
