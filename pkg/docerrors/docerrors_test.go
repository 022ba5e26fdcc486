package docerrors

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSilencerAllowsFirstObservationPerKey(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewSilencer(zap.New(core), time.Minute, 1)
	s.Observe(context.Background(), "doc-1", ErrMissingPreviousDocument)
	s.Observe(context.Background(), "doc-1", ErrMissingPreviousDocument)
	if logs.Len() != 1 {
		t.Errorf("logged %d lines for two observations of one key within the window, want 1", logs.Len())
	}
}

func TestSilencerForgetResetsRateLimit(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewSilencer(zap.New(core), time.Hour, 1)
	s.Observe(context.Background(), "doc-1", ErrMissingPreviousDocument)
	s.Forget("doc-1")
	// After Forget, a fresh limiter is created for the key on next use, so
	// the next observation is logged again.
	s.Observe(context.Background(), "doc-1", ErrMissingPreviousDocument)
	if logs.Len() != 2 {
		t.Errorf("logged %d lines, want 2 (one before and one after Forget)", logs.Len())
	}
}

func TestSilencerNilLoggerIsSafe(t *testing.T) {
	s := NewSilencer(nil, time.Minute, 1)
	s.Observe(context.Background(), "doc-1", ErrMissingPreviousDocument)
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	errs := []error{
		ErrMalformedRevision, ErrMalformedDocument, ErrMalformedSplitType,
		ErrMissingPreviousDocument, ErrInconsistentSplitType, ErrConflictDetected,
	}
	for i, a := range errs {
		for j, b := range errs {
			if i != j && a == b {
				t.Errorf("sentinel errors %d and %d are the same value", i, j)
			}
		}
	}
}
