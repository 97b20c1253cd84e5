package processor

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Simulated stands in for a downstream call: it waits a fixed latency and then
// fails with probability FailureRate.
type Simulated struct {
	Latency     time.Duration
	FailureRate float64

	logger *zap.Logger
}

// NewSimulated creates a simulated processor. A nil logger disables logging.
func NewSimulated(latency time.Duration, failureRate float64, logger *zap.Logger) *Simulated {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulated{
		Latency:     latency,
		FailureRate: failureRate,
		logger:      logger.Named("processor"),
	}
}

// Process simulates work for one identifier.
func (s *Simulated) Process(ctx context.Context, id int64) error {
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return fmt.Errorf("process id %d: %w", id, ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return fmt.Errorf("process id %d: %w", id, err)
	}

	if s.FailureRate > 0 && rand.Float64() < s.FailureRate {
		return fmt.Errorf("simulated failure for id %d", id)
	}

	s.logger.Debug("processed id", zap.Int64("id", id), zap.Duration("latency", s.Latency))
	return nil
}
