package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	apperr "github.com/dron-olya7/verigate/internal/errors"
	"github.com/dron-olya7/verigate/internal/metrics"
)

var errManagerClosed = errors.New("connection manager closed")

// ConnectFunc establishes one connection pool. Injected so tests can count
// and fail establishment sequences.
type ConnectFunc func(ctx context.Context) (Pool, error)

// ManagerConfig bounds establishment and liveness checking.
type ManagerConfig struct {
	Attempts       int
	RetryDelay     time.Duration
	ConnectTimeout time.Duration
	PingTimeout    time.Duration
	ProbeInterval  time.Duration
}

// Manager owns the process-wide, lazily-created connection pool to the
// backing store. Acquire returns the cached pool when it passes a fast
// liveness probe, otherwise (re)establishes it with exponential backoff.
// Concurrent acquisitions coalesce into a single establishment sequence.
// A background probe invalidates the pool when the store stops answering,
// so the next Acquire reconnects.
type Manager struct {
	connect ConnectFunc
	cfg     ManagerConfig
	log     *slog.Logger

	group singleflight.Group

	mu          sync.Mutex
	pool        Pool
	lastErr     error
	probeCancel context.CancelFunc
	closed      bool

	wg sync.WaitGroup
}

// NewManager builds a Manager dialing Postgres at dsn.
func NewManager(dsn string, cfg ManagerConfig, log *slog.Logger) *Manager {
	return NewManagerWithConnect(pgxConnect(dsn), cfg, log)
}

// NewManagerWithConnect builds a Manager around a custom ConnectFunc.
func NewManagerWithConnect(connect ConnectFunc, cfg ManagerConfig, log *slog.Logger) *Manager {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = time.Second
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 30 * time.Second
	}
	return &Manager{
		connect: connect,
		cfg:     cfg,
		log:     log.With("layer", "storage", "component", "manager"),
	}
}

func pgxConnect(dsn string) ConnectFunc {
	return func(ctx context.Context) (Pool, error) {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		// pgxpool dials lazily; ping to force establishment now.
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	}
}

// Acquire returns a live pool, establishing one if needed. Failures are
// *apperr.ConnectionError carrying the last underlying cause.
func (m *Manager) Acquire(ctx context.Context) (Pool, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, apperr.NewConnection(errManagerClosed)
	}

	if p := m.cached(ctx); p != nil {
		return p, nil
	}

	v, err, _ := m.group.Do("connect", func() (any, error) {
		// A caller that queued behind an in-flight establishment may find
		// the pool already cached.
		if p := m.cached(ctx); p != nil {
			return p, nil
		}
		return m.establish(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(Pool), nil
}

// cached returns the pool when it exists and answers a bounded ping.
// A failing pool is invalidated so the caller falls through to reconnect.
func (m *Manager) cached(ctx context.Context) Pool {
	m.mu.Lock()
	p := m.pool
	m.mu.Unlock()
	if p == nil {
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.PingTimeout)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		m.log.Warn("cached store connection failed liveness check", slog.Any("error", err))
		m.invalidate(p)
		return nil
	}
	return p
}

func (m *Manager) establish(ctx context.Context) (Pool, error) {
	var lastErr error
	delay := m.cfg.RetryDelay

	for attempt := 1; attempt <= m.cfg.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				metrics.StoreConnects.WithLabelValues("error").Inc()
				return nil, apperr.NewConnection(ctx.Err())
			}
			delay *= 2
		}

		connectCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		p, err := m.connect(connectCtx)
		cancel()
		if err != nil {
			lastErr = err
			m.log.Warn("store connection attempt failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			continue
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			p.Close()
			metrics.StoreConnects.WithLabelValues("error").Inc()
			return nil, apperr.NewConnection(errManagerClosed)
		}
		m.pool = p
		m.lastErr = nil
		m.startProbeLocked(p)
		m.mu.Unlock()

		m.log.Info("store connection established", slog.Int("attempt", attempt))
		metrics.StoreConnects.WithLabelValues("ok").Inc()
		return p, nil
	}

	m.mu.Lock()
	m.lastErr = lastErr
	m.mu.Unlock()
	m.log.Error("store connection attempts exhausted",
		slog.Int("attempts", m.cfg.Attempts),
		slog.Any("error", lastErr),
	)
	metrics.StoreConnects.WithLabelValues("error").Inc()
	return nil, apperr.NewConnection(lastErr)
}

// startProbeLocked launches the recurring liveness probe for p.
// Caller holds m.mu.
func (m *Manager) startProbeLocked(p Pool) {
	ctx, cancel := context.WithCancel(context.Background())
	m.probeCancel = cancel
	m.wg.Add(1)
	go m.probe(ctx, p)
}

// probe pings p on a fixed interval. A failed ping only invalidates the
// cached pool; it never touches the request path.
func (m *Manager) probe(ctx context.Context, p Pool) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, m.cfg.PingTimeout)
			err := p.Ping(pingCtx)
			cancel()
			if err != nil {
				m.log.Warn("store liveness probe failed, invalidating connection", slog.Any("error", err))
				m.invalidate(p)
				return
			}
		}
	}
}

// invalidate drops old from the cache when it is still the current pool and
// stops its probe. The pool is closed off the hot path.
func (m *Manager) invalidate(old Pool) {
	m.mu.Lock()
	if m.pool == old {
		m.pool = nil
		if m.probeCancel != nil {
			m.probeCancel()
			m.probeCancel = nil
		}
	}
	m.mu.Unlock()
	go old.Close()
}

// LastError reports the most recent establishment failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Close stops the probe and releases the pool. Safe to call more than once;
// subsequent Acquire calls fail.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	p := m.pool
	m.pool = nil
	cancel := m.probeCancel
	m.probeCancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	if p != nil {
		p.Close()
	}
	m.log.Info("store connection manager closed")
}
