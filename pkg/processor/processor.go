// Package processor contains the per-identifier unit processors invoked by the
// dispatch loop.
package processor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/athulya-anil/axon-ingest/pkg/config"
)

// Processor handles a single identifier. A returned error is recorded against
// the chunk and never stops the chunk.
type Processor interface {
	Process(ctx context.Context, id int64) error
}

// Func adapts a plain function to the Processor interface.
type Func func(ctx context.Context, id int64) error

// Process calls f(ctx, id).
func (f Func) Process(ctx context.Context, id int64) error {
	return f(ctx, id)
}

// FromConfig builds the processor selected by c.Kind.
func FromConfig(c config.ProcessorConfig, logger *zap.Logger) (Processor, error) {
	switch c.Kind {
	case config.ProcessorSimulated:
		return NewSimulated(c.Latency, c.FailureRate, logger), nil
	case config.ProcessorHTTP:
		if c.URL == "" {
			return nil, fmt.Errorf("processor.url is required for kind %q", c.Kind)
		}
		return NewHTTP(c.URL, c.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown processor kind %q", c.Kind)
	}
}
