package trace

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"moneymanager/internal/log"
)

type contextKey struct{}

// Tracer stamps each operation with a trace id, logs its start and end
// through the context logger and keeps running counters.
type Tracer struct {
	component string
	now       func() time.Time

	total      atomic.Int64
	failures   atomic.Int64
	lastMicros atomic.Int64
}

// Metrics is a snapshot of a tracer's counters.
type Metrics struct {
	TotalOperations int64
	Failures        int64
	LastDuration    time.Duration
}

func New(component string) *Tracer {
	return &Tracer{component: component, now: time.Now}
}

// Run executes fn with a traced context. The context handed to fn carries the
// trace id and a logger that includes it on every record.
func (t *Tracer) Run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	start := t.now()
	id := NewID()

	logger := log.FromContext(ctx).WithComponent(t.component).With(log.FieldTraceID, id)
	ctx = context.WithValue(log.WithLogger(ctx, logger), contextKey{}, id)
	logger.DebugContext(ctx, "Operation started", log.FieldOperation, operation)

	err := fn(ctx)

	duration := t.now().Sub(start)
	t.total.Add(1)
	t.lastMicros.Store(duration.Microseconds())

	if err != nil {
		t.failures.Add(1)
		logger.Failure(ctx, "Operation failed", err, operation,
			log.NewFields().With(log.FieldDuration, duration.Milliseconds()))
		return err
	}

	logger.InfoContext(ctx, "Operation completed",
		log.FieldOperation, operation,
		log.FieldDuration, duration.Milliseconds())
	return nil
}

// Metrics returns the current counters.
func (t *Tracer) Metrics() Metrics {
	return Metrics{
		TotalOperations: t.total.Load(),
		Failures:        t.failures.Load(),
		LastDuration:    time.Duration(t.lastMicros.Load()) * time.Microsecond,
	}
}

// NewID creates a short trace id.
func NewID() string {
	return "op_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// ID extracts the trace id from the context, or "" outside a traced operation.
func ID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}
