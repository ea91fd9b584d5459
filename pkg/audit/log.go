package audit

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"outpost-hq/warden/pkg/config"
	"outpost-hq/warden/pkg/store"
	"outpost-hq/warden/pkg/telemetry/metrics"
)

// Log is the append-only audit trail. A single writer goroutine drains the
// queue, which makes the append point the one serialization point for
// ordering: sequence numbers are assigned by the store in drain order.
//
// Appends are never silently dropped. A storage failure is retried with
// exponential backoff until it succeeds or the store reports it is closed.
type Log struct {
	store   store.Store
	cfg     config.AuditConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	queue chan store.AuditEntry
	wg    sync.WaitGroup

	mu        sync.Mutex
	appending sync.WaitGroup
	closed    bool
}

// NewLog creates the audit log and starts its writer goroutine. The
// metrics collector may be nil.
func NewLog(s store.Store, cfg config.AuditConfig, m *metrics.Metrics) *Log {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = config.DefaultAuditQueueSize
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = config.DefaultAuditRetryInterval
	}
	if cfg.MaxRetryInterval <= 0 {
		cfg.MaxRetryInterval = config.DefaultAuditMaxRetryInterval
	}

	l := &Log{
		store:   s,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "audit.log"),
		queue:   make(chan store.AuditEntry, cfg.QueueSize),
	}

	l.wg.Add(1)
	go l.drain()
	return l
}

// Append enqueues an entry for the writer goroutine. It blocks when the
// queue is full rather than dropping the entry. Appending to a closed log
// returns store.ErrClosed.
func (l *Log) Append(entry store.AuditEntry) error {
	// The in-flight counter is raised under the same lock that Close uses
	// to flip the closed flag, so Close can wait out every send that got
	// past the flag check before it closes the queue.
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return store.ErrClosed
	}
	l.appending.Add(1)
	l.mu.Unlock()
	defer l.appending.Done()

	l.queue <- entry
	if l.metrics != nil {
		l.metrics.SetAuditQueueDepth(len(l.queue))
	}
	return nil
}

// Close stops accepting entries, drains the queue, and waits for the
// writer goroutine to finish.
func (l *Log) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	// Senders already past the closed check may still be blocked on a full
	// queue; the writer keeps draining, so they finish. Only then is the
	// queue safe to close.
	l.appending.Wait()
	close(l.queue)
	l.wg.Wait()
}

// Query returns audit entries, optionally filtered by app, in the given
// order, truncated to limit.
func (l *Log) Query(appID string, limit int, order store.Order) ([]store.AuditEntry, error) {
	return l.store.ListAudit(appID, limit, order)
}

// drain is the writer loop. Each entry is retried until written; losing a
// live decision is worse than a delayed audit trail.
func (l *Log) drain() {
	defer l.wg.Done()

	for entry := range l.queue {
		l.write(entry)
		if l.metrics != nil {
			l.metrics.SetAuditQueueDepth(len(l.queue))
		}
	}
}

func (l *Log) write(entry store.AuditEntry) {
	backoff := l.cfg.RetryInterval

	for {
		_, err := l.store.AppendAudit(entry)
		if err == nil {
			return
		}
		if errors.Is(err, store.ErrClosed) {
			l.logger.Error("audit entry lost: store closed during shutdown",
				"entry_id", entry.ID, "app_id", entry.AppID)
			return
		}

		if l.metrics != nil {
			l.metrics.RecordAuditRetry()
		}
		l.logger.Warn("audit append failed, retrying",
			"entry_id", entry.ID, "backoff", backoff, "error", err)

		time.Sleep(backoff)
		backoff *= 2
		if backoff > l.cfg.MaxRetryInterval {
			backoff = l.cfg.MaxRetryInterval
		}
	}
}
