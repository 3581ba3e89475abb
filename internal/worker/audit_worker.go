package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/log"
	"moneymanager/internal/services"
)

// BalanceAuditor is the subset of services.Auditor the worker needs
type BalanceAuditor interface {
	AuditAccount(ctx context.Context, accountID string) (core.AuditResult, error)
	AuditAll(ctx context.Context, batchSize int) (services.AuditReport, error)
}

// AuditWorkerConfig holds configuration for the audit worker
type AuditWorkerConfig struct {
	// SweepInterval is how often every account is audited (default: 5m)
	SweepInterval time.Duration

	// BatchSize is the number of accounts read per sweep page (default: 100)
	BatchSize int
}

// DefaultAuditWorkerConfig returns sensible defaults
func DefaultAuditWorkerConfig() AuditWorkerConfig {
	return AuditWorkerConfig{
		SweepInterval: 5 * time.Minute,
		BatchSize:     100,
	}
}

// AuditWorker checks balances against transaction history. Accounts named in
// ledger events are audited as the events arrive; a periodic sweep covers
// every account in case events were lost.
type AuditWorker struct {
	auditor BalanceAuditor
	config  AuditWorkerConfig

	mismatches atomic.Int64

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(auditor BalanceAuditor, config AuditWorkerConfig) *AuditWorker {
	return &AuditWorker{
		auditor: auditor,
		config:  config,
	}
}

// HandleEvent audits every account referenced by a ledger event. Accounts
// deleted since the event was published are skipped.
func (w *AuditWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)
	logger.DebugContext(ctx, "Processing ledger event",
		log.FieldEventType, string(event.Type),
		log.FieldOwnerID, event.OwnerID,
		log.FieldCount, len(event.AccountIDs))

	for _, id := range event.AccountIDs {
		result, err := w.auditor.AuditAccount(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("audit account %s: %w", id, err)
		}
		if !result.Consistent() {
			w.mismatches.Add(1)
		}
	}
	return nil
}

// Sweep audits every account once.
func (w *AuditWorker) Sweep(ctx context.Context) (services.AuditReport, error) {
	report, err := w.auditor.AuditAll(ctx, w.config.BatchSize)
	w.mismatches.Add(int64(len(report.Mismatches)))
	return report, err
}

// Mismatches returns how many inconsistent balances have been observed
func (w *AuditWorker) Mismatches() int64 {
	return w.mismatches.Load()
}

// Start begins the sweep loop. Returns an error if already running.
func (w *AuditWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("audit worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stopCh, doneCh)

	log.FromContext(ctx).WithComponent(log.ComponentWorker).InfoContext(ctx, "Audit worker started",
		"sweep_interval", w.config.SweepInterval,
		"batch_size", w.config.BatchSize)

	return nil
}

// Stop gracefully stops the worker and waits for the current sweep. If ctx
// expires first the loop is still told to stop; a later Stop is a no-op.
func (w *AuditWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)
	select {
	case <-doneCh:
		logger.InfoContext(ctx, "Audit worker stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnContext(ctx, "Audit worker stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the worker is currently running
func (w *AuditWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *AuditWorker) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	// Sweep immediately on startup
	w.sweepAndLog(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepAndLog(ctx)
		}
	}
}

func (w *AuditWorker) sweepAndLog(ctx context.Context) {
	started := time.Now()
	report, err := w.Sweep(ctx)
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)
	if err != nil {
		if ctx.Err() == nil {
			logger.Failure(ctx, "Audit sweep failed", err, log.OpAudit, nil)
		}
		return
	}
	if len(report.Mismatches) > 0 {
		logger.ErrorContext(ctx, "Audit sweep found inconsistent balances",
			log.FieldCount, report.Checked,
			"mismatches", len(report.Mismatches),
			log.FieldDuration, time.Since(started).Milliseconds())
		return
	}
	logger.DebugContext(ctx, "Audit sweep clean",
		log.FieldCount, report.Checked,
		log.FieldDuration, time.Since(started).Milliseconds())
}
