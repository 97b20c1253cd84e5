package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tevino/abool"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/athulya-anil/axon-ingest/pkg/metrics"
	"github.com/athulya-anil/axon-ingest/pkg/models"
	"github.com/athulya-anil/axon-ingest/pkg/processor"
)

var (
	// ErrBusy is returned by Tick while another dispatch cycle is in progress.
	ErrBusy = errors.New("dispatch already in progress")

	// ErrDispatchFailure wraps faults recovered at the dispatch loop boundary.
	ErrDispatchFailure = errors.New("dispatch failure")

	// ErrTooSoon is returned by Service.Tick while the pause after the
	// previous chunk has not elapsed.
	ErrTooSoon = errors.New("dispatch interval has not elapsed")
)

// Source yields the next chunk to dispatch.
type Source interface {
	SelectNext() (models.QueueEntry, bool)
	Depths() map[models.Priority]int
}

// ChunkStore records chunk lifecycle transitions.
type ChunkStore interface {
	MarkRunning(requestID, chunkID string, at time.Time) (models.Status, error)
	RecordResult(requestID, chunkID string, failed bool) error
	MarkDone(requestID, chunkID string, at time.Time) (models.Status, error)
}

// Dispatcher is the single worker that runs chunks one at a time.
// When driven by Run, a chunk never starts sooner than interval after the
// previous chunk finished.
type Dispatcher struct {
	source      Source
	store       ChunkStore
	processor   processor.Processor
	clock       clock.Clock
	interval    time.Duration
	unitTimeout time.Duration
	logger      *zap.Logger

	running *abool.AtomicBool
	wake    chan struct{}

	mu      sync.Mutex
	lastEnd time.Time
}

// NewDispatcher creates a dispatcher. A zero unitTimeout leaves processor calls unbounded.
func NewDispatcher(
	source Source,
	store ChunkStore,
	proc processor.Processor,
	clk clock.Clock,
	interval time.Duration,
	unitTimeout time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Dispatcher{
		source:      source,
		store:       store,
		processor:   proc,
		clock:       clk,
		interval:    interval,
		unitTimeout: unitTimeout,
		logger:      logger.Named("dispatcher"),
		running:     abool.New(),
		wake:        make(chan struct{}, 1),
	}
}

// Wake tells an idle Run loop that new work is available.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled: wait for work or the interval, dispatch
// one chunk, then pause a full interval from the moment that chunk finished.
// Failures of a cycle are logged and never stop the loop.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatch loop started", zap.Duration("interval", d.interval))
	defer d.logger.Info("dispatch loop stopped")

	for {
		if wait := d.untilNextSlot(); wait > 0 {
			if !d.sleep(ctx, wait) {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		dispatched, err := d.Tick(ctx)
		switch {
		case errors.Is(err, ErrBusy):
			d.logger.Debug("dispatch skipped, cycle already in progress")
		case err != nil:
			metrics.RecordDispatchFailure()
			d.logger.Error("dispatch cycle failed", zap.Error(err))
		}

		if dispatched {
			continue
		}
		if !d.idle(ctx) {
			return
		}
	}
}

// Tick runs one dispatch cycle immediately, without waiting for the interval.
// It reports whether a chunk was taken from the source. Panics inside the
// cycle are recovered and returned as ErrDispatchFailure.
func (d *Dispatcher) Tick(ctx context.Context) (dispatched bool, err error) {
	if !d.running.SetToIf(false, true) {
		return false, ErrBusy
	}
	defer d.running.UnSet()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDispatchFailure, r)
		}
	}()

	var end time.Time
	defer func() {
		if !dispatched {
			return
		}
		if end.IsZero() {
			end = d.clock.Now()
		}
		d.mu.Lock()
		d.lastEnd = end
		d.mu.Unlock()
	}()

	entry, ok := d.source.SelectNext()
	if !ok {
		return false, nil
	}
	metrics.SetLaneDepths(d.source.Depths())

	start := d.clock.Now()
	dispatched = true

	logger := d.logger.With(
		zap.String("request_id", entry.RequestID),
		zap.String("chunk_id", entry.ChunkID),
		zap.String("priority", string(entry.Priority)),
	)

	if _, err := d.store.MarkRunning(entry.RequestID, entry.ChunkID, start); err != nil {
		return true, fmt.Errorf("%w: mark chunk running: %w", ErrDispatchFailure, err)
	}
	logger.Info("chunk running", zap.Int64s("ids", entry.Identifiers))

	failed := 0
	for _, id := range entry.Identifiers {
		unitErr := d.processOne(ctx, id)
		if unitErr != nil {
			failed++
			metrics.RecordUnitFailure()
			logger.Warn("unit processing failed", zap.Int64("id", id), zap.Error(unitErr))
		}
		if err := d.store.RecordResult(entry.RequestID, entry.ChunkID, unitErr != nil); err != nil {
			logger.Error("failed to record unit result", zap.Int64("id", id), zap.Error(err))
		}
	}

	end = d.clock.Now()
	status, err := d.store.MarkDone(entry.RequestID, entry.ChunkID, end)
	if err != nil {
		return true, fmt.Errorf("%w: mark chunk done: %w", ErrDispatchFailure, err)
	}

	elapsed := end.Sub(start)
	metrics.RecordChunk(entry.Priority, elapsed)
	logger.Info("chunk done",
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed),
		zap.String("request_status", string(status)),
	)
	return true, nil
}

// processOne calls the processor for a single identifier, bounded by unitTimeout.
// A panic in the processor is reported as that identifier's failure.
func (d *Dispatcher) processOne(ctx context.Context, id int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing id %d: %v", id, r)
		}
	}()

	if d.unitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.unitTimeout)
		defer cancel()
	}
	return d.processor.Process(ctx, id)
}

// untilNextSlot returns how long to wait before the next chunk may start.
func (d *Dispatcher) untilNextSlot() time.Duration {
	d.mu.Lock()
	last := d.lastEnd
	d.mu.Unlock()

	if last.IsZero() {
		return 0
	}
	return d.interval - d.clock.Since(last)
}

// sleep waits for wait or until ctx is done. It returns false if ctx ended.
func (d *Dispatcher) sleep(ctx context.Context, wait time.Duration) bool {
	timer := d.clock.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C():
		return true
	}
}

// idle waits for a wake-up or the interval. It returns false if ctx ended.
func (d *Dispatcher) idle(ctx context.Context) bool {
	timer := d.clock.NewTimer(d.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-d.wake:
		return true
	case <-timer.C():
		return true
	}
}
