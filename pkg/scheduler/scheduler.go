package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/athulya-anil/axon-ingest/pkg/ingest"
	"github.com/athulya-anil/axon-ingest/pkg/metrics"
	"github.com/athulya-anil/axon-ingest/pkg/models"
	"github.com/athulya-anil/axon-ingest/pkg/processor"
	"github.com/athulya-anil/axon-ingest/pkg/queue"
	"github.com/athulya-anil/axon-ingest/pkg/store"
)

// lanes is the queue side of the service.
type lanes interface {
	Source
	Enqueue(entries ...models.QueueEntry) error
	Len() int
}

// Service owns the lanes, the request store and the dispatch loop.
type Service struct {
	queue      lanes
	store      *store.Store
	dispatcher *Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	autoStart  bool

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	wg        sync.WaitGroup
}

type options struct {
	clock       clock.Clock
	interval    time.Duration
	unitTimeout time.Duration
	logger      *zap.Logger
	autoStart   bool
}

// Option configures a Service.
type Option func(*options)

// WithClock replaces the wall clock used for timestamps and the dispatch interval.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDispatchInterval sets the pause between the end of one chunk and the
// start of the next.
func WithDispatchInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithUnitTimeout bounds each processor call. Zero disables the bound.
func WithUnitTimeout(d time.Duration) Option {
	return func(o *options) { o.unitTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithManualDispatch keeps the dispatch loop from starting on submission;
// chunks only run through Tick or an explicit Start.
func WithManualDispatch() Option {
	return func(o *options) { o.autoStart = false }
}

// NewService creates a scheduler service around proc.
func NewService(proc processor.Processor, opts ...Option) *Service {
	o := options{
		clock:       clock.RealClock{},
		interval:    models.DefaultDispatchInterval,
		unitTimeout: 30 * time.Second,
		logger:      zap.NewNop(),
		autoStart:   true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := queue.NewPriorityQueue()
	st := store.New()

	return &Service{
		queue:      q,
		store:      st,
		dispatcher: NewDispatcher(q, st, proc, o.clock, o.interval, o.unitTimeout, o.logger),
		clock:      o.clock,
		logger:     o.logger.Named("scheduler"),
		autoStart:  o.autoStart,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Submit validates a submission, stores the request with its chunks and
// enqueues the chunks. It returns the new request id.
func (s *Service) Submit(ids []int64, priority string) (string, error) {
	p, err := ingest.Validate(ids, priority)
	if err != nil {
		metrics.RecordRejected()
		s.logger.Info("submission rejected", zap.Error(err))
		return "", err
	}

	req, entries := ingest.Batch(ids, p, s.clock.Now())

	// store first so a dispatched entry always resolves to a stored chunk
	if err := s.store.Create(req); err != nil {
		return "", fmt.Errorf("store request: %w", err)
	}
	if err := s.queue.Enqueue(entries...); err != nil {
		s.store.Delete(req.ID)
		return "", fmt.Errorf("enqueue request %s: %w", req.ID, err)
	}

	metrics.RecordSubmitted(p)
	metrics.SetLaneDepths(s.queue.Depths())
	s.logger.Info("request accepted",
		zap.String("request_id", req.ID),
		zap.String("priority", string(p)),
		zap.Int("ids", len(ids)),
		zap.Int("chunks", len(req.Chunks)),
	)

	if s.autoStart {
		s.Start()
	}
	s.dispatcher.Wake()
	return req.ID, nil
}

// Status returns a snapshot of the request, or models.ErrNotFound.
func (s *Service) Status(id string) (*models.Request, error) {
	return s.store.Get(id)
}

// QueueDepths returns the number of chunks waiting per lane.
func (s *Service) QueueDepths() map[models.Priority]int {
	return s.queue.Depths()
}

// Tick runs one dispatch cycle now instead of waiting for the loop. It
// returns ErrTooSoon while the pause after the previous chunk is still
// running, so manual dispatch honours the same rate limit as Run.
func (s *Service) Tick(ctx context.Context) (bool, error) {
	if wait := s.dispatcher.untilNextSlot(); wait > 0 {
		return false, fmt.Errorf("%w: next slot in %s", ErrTooSoon, wait)
	}
	return s.dispatcher.Tick(ctx)
}

// Start launches the dispatch loop. Calling it more than once has no effect.
func (s *Service) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.dispatcher.Run(s.ctx)
		}()
	})
}

// Close stops the dispatch loop and waits for it to exit. A chunk in flight
// sees its context cancelled and finishes with the remaining ids failed.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}
