// Package monitor follows one execution's live progress.
//
// A Monitor holds one progress stream per execution. Every message replaces
// the local snapshot. When the execution reaches a terminal status the
// stream is closed and the first page of delivery logs is fetched exactly
// once; logs are never polled while the execution is active.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campaignhq/campaignhq/internal/api"
	"github.com/campaignhq/campaignhq/internal/notifier"
	"github.com/campaignhq/campaignhq/pkg/core"
)

// Defaults for Options.
const (
	DefaultPageSize  = 50
	DefaultHeartbeat = 20 * time.Second
)

// ErrStreamEnded means the server closed the stream before a terminal status.
var ErrStreamEnded = errors.New("progress stream ended before the execution finished")

// Backend is the part of the API client the monitor needs.
type Backend interface {
	DialProgress(ctx context.Context, id int64) (*api.ProgressConn, error)
	CancelExecution(ctx context.Context, id int64) error
	ExecutionLogs(ctx context.Context, id int64, page, limit int) (*core.LogPage, error)
}

// Options configures a Monitor.
type Options struct {
	// PageSize is the log page fetched on completion.
	PageSize int
	// Heartbeat is the interval between keep-alive frames.
	Heartbeat time.Duration
	Logger    *slog.Logger
}

func (o *Options) withDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Heartbeat <= 0 {
		o.Heartbeat = DefaultHeartbeat
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// Monitor tracks the progress of a single execution.
type Monitor struct {
	backend Backend
	id      int64
	opts    Options
	logger  *slog.Logger

	conn   *api.ProgressConn
	group  *errgroup.Group
	stop   context.CancelFunc
	notify *notifier.Notifier

	mu       sync.Mutex
	snapshot core.Progress
	received bool
	closing  bool
	logs     *core.LogPage
	logsErr  error
	err      error

	done       chan struct{}
	endOnce    sync.Once
	finishOnce sync.Once
	closeOnce  sync.Once
}

// Start opens the progress stream of execution id and begins tracking it.
// The server sends the current snapshot first, so an execution that already
// finished completes immediately.
func Start(ctx context.Context, backend Backend, id int64, opts Options) (*Monitor, error) {
	opts.withDefaults()

	conn, err := backend.DialProgress(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress stream for execution %d: %w", id, err)
	}

	gctx, stop := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(gctx)

	m := &Monitor{
		backend: backend,
		id:      id,
		opts:    opts,
		logger:  opts.Logger.With("execution_id", id),
		conn:    conn,
		group:   g,
		stop:    stop,
		notify:  notifier.New(),
		done:    make(chan struct{}),
	}

	g.Go(func() error { return m.read(gctx) })
	g.Go(func() error { return m.heartbeat(gctx) })

	m.logger.Debug("monitor started")
	return m, nil
}

// ID returns the execution id.
func (m *Monitor) ID() int64 {
	return m.id
}

// Snapshot returns the latest progress and whether any message arrived yet.
func (m *Monitor) Snapshot() (core.Progress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot, m.received
}

// Logs returns the log page fetched on completion (nil before that).
func (m *Monitor) Logs() (*core.LogPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logs, m.logsErr
}

// Err returns why the stream ended early, if it did.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Updates returns a channel pinged after every snapshot change and a func
// that unsubscribes. The channel is closed when the monitor is closed.
func (m *Monitor) Updates() (<-chan struct{}, func()) {
	return m.notify.Subscribe()
}

// Done is closed once no further updates will arrive: the execution
// finished, the stream ended or the monitor was closed.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until Done or ctx is cancelled.
func (m *Monitor) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel asks the server to stop the execution. Once the request succeeds
// the local status becomes cancelled, the stream is closed and the logs are
// fetched without waiting for the server's own status update. A failed
// request leaves the monitor untouched.
func (m *Monitor) Cancel(ctx context.Context) error {
	if err := m.backend.CancelExecution(ctx, m.id); err != nil {
		return err
	}

	m.mu.Lock()
	m.snapshot.Status = core.ExecutionCancelled
	m.received = true
	m.closing = true
	m.mu.Unlock()
	m.notify.Broadcast()

	m.finish(ctx)
	return nil
}

// Close stops tracking and waits for the monitor's goroutines. It is safe to
// call more than once.
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		m.stop()
		_ = m.conn.Close()
		_ = m.group.Wait()
		m.end()
		m.notify.Close()
	})
	return nil
}

func (m *Monitor) read(ctx context.Context) error {
	for {
		p, err := m.conn.Read()
		if err != nil {
			m.streamEnded(ctx, err)
			return nil
		}

		m.mu.Lock()
		if m.closing {
			m.mu.Unlock()
			return nil
		}
		m.snapshot = p
		m.received = true
		m.mu.Unlock()

		m.logger.Debug("progress", "status", p.Status, "processed", p.Processed, "total", p.Total)
		m.notify.Broadcast()

		if p.Status.IsTerminal() {
			m.finish(ctx)
			return nil
		}
	}
}

func (m *Monitor) streamEnded(ctx context.Context, err error) {
	m.mu.Lock()
	closing := m.closing
	m.mu.Unlock()
	if closing || ctx.Err() != nil {
		return
	}
	if errors.Is(err, io.EOF) {
		err = ErrStreamEnded
	}
	m.logger.Warn("progress stream ended", "error", err)

	m.mu.Lock()
	m.err = err
	m.closing = true
	m.mu.Unlock()

	m.stop()
	m.end()
	m.notify.Broadcast()
}

func (m *Monitor) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.conn.Heartbeat(); err != nil {
				m.logger.Debug("heartbeat failed", "error", err)
				return nil
			}
		}
	}
}

// finish closes the stream and fetches the first log page, once.
func (m *Monitor) finish(ctx context.Context) {
	m.finishOnce.Do(func() {
		m.mu.Lock()
		m.closing = true
		m.mu.Unlock()

		_ = m.conn.Close()

		page, err := m.backend.ExecutionLogs(ctx, m.id, 1, m.opts.PageSize)
		if err != nil {
			m.logger.Warn("failed to fetch execution logs", "error", err)
		}

		m.mu.Lock()
		m.logs = page
		m.logsErr = err
		m.mu.Unlock()

		m.stop()
		m.end()
		m.notify.Broadcast()
	})
}

func (m *Monitor) end() {
	m.endOnce.Do(func() { close(m.done) })
}
