package validate

import (
	"context"
	"sync"

	"sensormap/core-go/internal/datamap"
)

// Outcome is delivered once per Submit call.
type Outcome struct {
	Generation uint64
	Result     Result
	Err        error
	// Stale is set when a newer Submit started, or the session was closed,
	// before this validation finished. Stale outcomes are never applied.
	Stale bool
}

// Session validates successive edits of one map. Each submission snapshots
// the tree immediately, validates in the background, and only the newest
// submission's result is kept; late results from superseded edits are
// discarded.
type Session struct {
	v *Validator

	mu         sync.Mutex
	generation uint64
	closed     bool
	latest     Result
	latestGen  uint64
}

func NewSession(v *Validator) *Session {
	return &Session{v: v}
}

// Submit starts validating tree. The tree is flattened before Submit
// returns, so the caller may keep editing it. The returned channel receives
// exactly one Outcome.
func (s *Session) Submit(ctx context.Context, tree *datamap.Tree) <-chan Outcome {
	out := make(chan Outcome, 1)

	s.mu.Lock()
	s.generation++
	gen := s.generation
	closed := s.closed
	s.mu.Unlock()

	if closed {
		out <- Outcome{Generation: gen, Stale: true}
		close(out)
		return out
	}

	flat, err := datamap.Flatten(tree)
	s.v.metrics.ObserveFlatten(err)
	if err != nil {
		s.v.metrics.ObserveValidation("error")
		out <- Outcome{Generation: gen, Err: err, Stale: !s.isCurrent(gen)}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		res, err := s.v.ValidateFlat(ctx, flat)
		o := Outcome{Generation: gen, Result: res, Err: err}
		o.Stale = !s.apply(gen, res, err)
		if o.Stale {
			s.v.metrics.ObserveValidation("stale")
		}
		out <- o
	}()
	return out
}

// Latest returns the newest applied result and the generation it belongs
// to. Generation 0 means nothing has been applied yet.
func (s *Session) Latest() (Result, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latestGen
}

// Close abandons the session. Results still in flight are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && gen == s.generation
}

func (s *Session) apply(gen uint64, res Result, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.generation {
		return false
	}
	if err == nil {
		s.latest = res
		s.latestGen = gen
	}
	return true
}
