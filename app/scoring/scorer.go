package scoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Input is the content handed to a scorer. Scorers must be pure functions of
// this input; anything stateful lives behind the implementation.
type Input struct {
	Title       string
	Text        string
	Source      string
	URL         string
	License     string
	Categories  []string
	PublishedAt *time.Time
}

// Scorer rates content on a single axis, returning a score in [0,1].
// Implementations may block on network I/O; the engine enforces a per-call
// timeout and treats failures as degradation, never as pipeline errors.
type Scorer interface {
	Name() string
	Score(ctx context.Context, in Input) (float64, error)
}

// Registry holds the active scorer set keyed by name.
type Registry struct {
	mu      sync.RWMutex
	scorers map[string]Scorer
}

func NewRegistry() *Registry {
	return &Registry{scorers: make(map[string]Scorer)}
}

func (r *Registry) Register(s Scorer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.scorers[s.Name()]; ok {
		return fmt.Errorf("scorer '%s' already registered", s.Name())
	}
	r.scorers[s.Name()] = s
	return nil
}

func (r *Registry) Get(name string) (Scorer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scorers[name]
	return s, ok
}

// Names returns registered scorer names in sorted order, so every iteration
// over the scorer set is deterministic.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scorers))
	for name := range r.scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scorers)
}
