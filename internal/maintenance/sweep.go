// Package maintenance runs the background split sweep: a gronx-scheduled
// pass over every document in the store that moves old local revision
// history into previous documents once pkg/split.ShouldSplit says a
// document has grown enough to warrant it. Grounded on the teacher's
// internal/retention/retention.go (SetEffectiveConfig/RunImmediate/Start,
// NextTickAfter scheduling loop), generalized from its fixed retention
// task to an injected sweep function.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"docstore/pkg/document"
	"docstore/pkg/logger"
	"docstore/pkg/metrics"
	"docstore/pkg/split"
	"docstore/pkg/store"
)

// Store is the subset of *store.Store the sweep needs.
type Store interface {
	Iterate(ctx context.Context, fn func(*document.Document) error) error
	FindAndUpdate(ctx context.Context, op *document.UpdateOp) (*document.Document, error)
	CreatePrevious(ctx context.Context, doc *document.Document) error
}

// pebbleMetricsSource is implemented by *store.Store; a fake Store used in
// tests simply doesn't satisfy it, so the sweep skips the Pebble gauge
// refresh for those.
type pebbleMetricsSource interface {
	PebbleMetrics() store.PebbleMetrics
}

// Sweeper owns the scheduled split pass.
type Sweeper struct {
	Store   Store
	Metrics *metrics.Metrics
	Cron    string
}

var storedSweeper *Sweeper

// SetSweeper registers s so tests or an admin trigger can invoke a sweep
// on demand through RunImmediate. Start registers its Sweeper here too,
// mirroring the teacher's SetEffectiveConfig/RunImmediate pair.
func SetSweeper(s *Sweeper) { storedSweeper = s }

// RunImmediate triggers a single sweep using the registered Sweeper.
func RunImmediate(ctx context.Context) error {
	if storedSweeper == nil {
		return fmt.Errorf("maintenance: no sweeper registered")
	}
	return storedSweeper.runOnce(ctx)
}

// Start validates s.Cron and launches the scheduler loop in a goroutine,
// returning a cancel func. An empty cron disables the sweep entirely.
func Start(ctx context.Context, s *Sweeper) (context.CancelFunc, error) {
	if s.Cron == "" {
		logger.Log.Info("maintenance_sweep_disabled")
		return func() {}, nil
	}
	if !gronx.IsValid(s.Cron) {
		return nil, fmt.Errorf("maintenance: invalid sweep cron expression %q", s.Cron)
	}

	SetSweeper(s)
	logger.Log.Info("maintenance_sweep_enabled", zap.String("cron", s.Cron))
	ctx2, cancel := context.WithCancel(ctx)
	go s.runScheduler(ctx2)
	return cancel, nil
}

func (s *Sweeper) runScheduler(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("maintenance_sweep_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(s.Cron, now, false)
		if err != nil {
			logger.Log.Error("maintenance_nexttick_failed", zap.String("cron", s.Cron), zap.Error(err))
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-time.After(wait):
			if err := s.runOnce(ctx); err != nil {
				logger.Log.Error("maintenance_sweep_run_error", zap.Error(err))
			}
		case <-ctx.Done():
			logger.Log.Info("maintenance_sweep_stopping")
			return
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) error {
	start := time.Now()
	var candidates, splitCount, failed int

	err := s.Store.Iterate(ctx, func(doc *document.Document) error {
		if document.IsPreviousID(doc.ID()) {
			return nil
		}
		candidates++
		size := int64(len(document.AsString(doc)))
		if !split.ShouldSplit(doc, size) {
			return nil
		}

		result := split.Split(doc, doc.LastRevisions())
		if result.MainUpdate == nil || len(result.MainUpdate.Changes) == 0 {
			return nil
		}

		for _, nd := range result.NewDocs {
			if err := s.Store.CreatePrevious(ctx, nd); err != nil {
				failed++
				if s.Metrics != nil {
					s.Metrics.SplitsTotal.WithLabelValues("error").Inc()
				}
				logger.Log.Error("maintenance_split_create_previous_failed", zap.String("id", doc.ID()), zap.Error(err))
				return nil
			}
			if s.Metrics != nil {
				s.Metrics.PreviousDocsCreated.Inc()
			}
		}
		if _, err := s.Store.FindAndUpdate(ctx, result.MainUpdate); err != nil {
			failed++
			if s.Metrics != nil {
				s.Metrics.SplitsTotal.WithLabelValues("error").Inc()
			}
			logger.Log.Error("maintenance_split_apply_failed", zap.String("id", doc.ID()), zap.Error(err))
			return nil
		}
		splitCount++
		if s.Metrics != nil {
			s.Metrics.SplitsTotal.WithLabelValues("ok").Inc()
		}
		return nil
	})

	if s.Metrics != nil {
		metrics.ObserveSince(s.Metrics.SplitDuration, start)
		s.refreshPebbleMetrics()
	}
	logger.Log.Info("maintenance_sweep_complete",
		zap.Int("candidates", candidates),
		zap.Int("split", splitCount),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return err
}

// refreshPebbleMetrics polls the store's underlying Pebble engine and feeds
// the result into the Pebble* gauges, piggybacking on the sweep's own cron
// since both are low-frequency maintenance concerns.
func (s *Sweeper) refreshPebbleMetrics() {
	src, ok := s.Store.(pebbleMetricsSource)
	if !ok {
		return
	}
	pm := src.PebbleMetrics()
	s.Metrics.PebbleWALBytes.Set(float64(pm.WALBytes))
	s.Metrics.PebbleWALFsyncP99Ms.Set(pm.WALFsyncP99Ms)
	s.Metrics.PebbleL0Files.Set(float64(pm.L0Files))
	s.Metrics.PebbleL0Bytes.Set(float64(pm.L0Bytes))
	s.Metrics.PebbleCompactionBacklog.Set(float64(pm.CompactionBacklog))
}
