// Package docerrors defines the sentinel error kinds shared across the
// document engine, plus a rate-limited silencer for the one error kind
// that must never propagate to a caller.
package docerrors

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Sentinel error kinds, matched with errors.Is by callers throughout the
// engine. Each wraps a more specific message via fmt.Errorf("...: %w", ...).
var (
	// ErrMalformedRevision is returned when a revision string deviates from
	// the exact wire format.
	ErrMalformedRevision = errors.New("malformed revision")

	// ErrMalformedDocument is returned when a serialized document cannot be
	// parsed back into its structured form.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrMalformedSplitType is returned when a document's _sdType value is
	// not one of the known numeric codes.
	ErrMalformedSplitType = errors.New("malformed split type")

	// ErrMissingPreviousDocument is returned when a previous document
	// referenced by a Range cannot be loaded. Callers must never propagate
	// this past the ValueMap/PreviousIndex boundary; use Silencer to log it
	// at a bounded rate instead and treat the range as empty.
	ErrMissingPreviousDocument = errors.New("missing previous document")

	// ErrInconsistentSplitType is returned when a document's split metadata
	// contradicts its other fields (for example a leaf marked INTERMEDIATE).
	// Unlike the other kinds this is fail-fast: callers should propagate it.
	ErrInconsistentSplitType = errors.New("inconsistent split type")

	// ErrConflictDetected is returned by ConflictDetector when a commit
	// attempt conflicts with a concurrent change. Expected in normal
	// operation and always propagated to the committing caller.
	ErrConflictDetected = errors.New("conflict detected")
)

// Silencer rate-limits logging of a single error kind per key so that a
// storm of identical failures (for example many reads hitting the same
// missing previous document) produces one log line per window instead of
// one per occurrence. Grounded on the teacher's per-API-key limiter pool,
// keyed here by document id instead of client id.
type Silencer struct {
	log    *zap.Logger
	mu     sync.Mutex
	limits map[string]*rate.Limiter
	rate   rate.Limit
	burst  int
}

// NewSilencer builds a Silencer that allows at most one log line per key
// every `every`, with the given burst allowance.
func NewSilencer(log *zap.Logger, every time.Duration, burst int) *Silencer {
	return &Silencer{
		log:    log,
		limits: make(map[string]*rate.Limiter),
		rate:   rate.Every(every),
		burst:  burst,
	}
}

func (s *Silencer) limiterFor(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limits[key]
	if !ok {
		l = rate.NewLimiter(s.rate, s.burst)
		s.limits[key] = l
	}
	return l
}

// Observe logs a WARN for err under key at most once per window. Intended
// for ErrMissingPreviousDocument: the caller treats the underlying range as
// empty regardless of whether the log line was emitted.
func (s *Silencer) Observe(ctx context.Context, key string, err error) {
	if !s.limiterFor(key).Allow() {
		return
	}
	logger := s.log
	if logger == nil {
		return
	}
	logger.Warn("suppressed document error",
		zap.String("key", key),
		zap.Error(err),
	)
}

// Forget drops the limiter state for key, used once a previous document
// referenced by key has been successfully loaded again.
func (s *Silencer) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limits, key)
}
