package mocks

import (
	"sync"

	"github.com/Merdeus/dndinventory/internal/dependencies/random"
)

// MockRandom replays queued results. Intn returns 0 once its queue is
// exhausted, which always picks the first candidate.
type MockRandom struct {
	mu sync.Mutex

	intnResults   []int
	stringResults []string

	// IntnCalls records the n passed to every Intn call
	IntnCalls []int
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates an empty MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn pops the next queued value, clamped into [0, n)
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IntnCalls = append(r.IntnCalls, n)
	if len(r.intnResults) == 0 || n <= 0 {
		return 0
	}
	v := r.intnResults[0]
	r.intnResults = r.intnResults[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

// String pops the next queued string, or returns "" when none are queued
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stringResults) == 0 {
		return ""
	}
	v := r.stringResults[0]
	r.stringResults = r.stringResults[1:]
	return v
}

// QueueIntn appends Intn results
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	r.intnResults = append(r.intnResults, values...)
	r.mu.Unlock()
}

// QueueString appends String results
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	r.stringResults = append(r.stringResults, values...)
	r.mu.Unlock()
}

// Reset drops all queued results and recorded calls
func (r *MockRandom) Reset() {
	r.mu.Lock()
	r.intnResults = nil
	r.stringResults = nil
	r.IntnCalls = nil
	r.mu.Unlock()
}
