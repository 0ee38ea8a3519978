package workflow

import (
	"math/rand"
	"sync"
	"time"
)

// ProgressSource supplies the simulated work signal. Increment returns the
// progress step applied by a start-work command; Roll returns a cosmetic
// number in [0, n) used by the response templates. Swapping the source for
// a real task-execution signal does not touch the state machine.
type ProgressSource interface {
	Increment() int
	Roll(n int) int
}

// randSource draws increments uniformly from [min, max].
type randSource struct {
	mu  sync.Mutex
	rng *rand.Rand
	min int
	max int
}

// NewRandSource returns the default simulated progress source. The band is
// inclusive on both ends.
func NewRandSource(min, max int) ProgressSource {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return &randSource{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		min: min,
		max: max,
	}
}

func (s *randSource) Increment() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.min + s.rng.Intn(s.max-s.min+1)
}

func (s *randSource) Roll(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
