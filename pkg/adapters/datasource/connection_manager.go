package datasource

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ConnectionManager owns the tunnel's single pool. Until SetPool is called
// every lease attempt fails with ErrPoolNotInitialized.
type ConnectionManager struct {
	mu     sync.RWMutex
	pool   Pool
	closed bool
	logger *zap.Logger
}

// ConnectionStats reports the managed pool for health and metrics.
type ConnectionStats struct {
	Initialized bool      `json:"initialized"`
	Type        string    `json:"type,omitempty"`
	Pool        PoolStats `json:"pool"`
}

// NewConnectionManager creates a manager with no pool.
func NewConnectionManager(logger *zap.Logger) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionManager{logger: logger}
}

// SetPool installs the pool. A previously installed pool is closed.
func (m *ConnectionManager) SetPool(pool Pool) {
	m.mu.Lock()
	old := m.pool
	m.pool = pool
	m.closed = false
	m.mu.Unlock()

	if old != nil && old != pool {
		if err := old.Close(); err != nil {
			m.logger.Warn("failed to close replaced pool", zap.Error(err))
		}
	}
}

// Pool returns the installed pool, or false before initialization or after Close.
func (m *ConnectionManager) Pool() (Pool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pool == nil || m.closed {
		return nil, false
	}
	return m.pool, true
}

// Acquire leases a connection from the installed pool.
func (m *ConnectionManager) Acquire(ctx context.Context) (Conn, error) {
	pool, ok := m.Pool()
	if !ok {
		return nil, ErrPoolNotInitialized
	}
	return pool.Acquire(ctx)
}

// GetStats returns a snapshot of the managed pool.
func (m *ConnectionManager) GetStats() ConnectionStats {
	pool, ok := m.Pool()
	if !ok {
		return ConnectionStats{}
	}
	return ConnectionStats{
		Initialized: true,
		Type:        pool.GetType(),
		Pool:        pool.Stats(),
	}
}

// Close closes the pool. Subsequent leases fail with ErrPoolNotInitialized.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool == nil || m.closed {
		return nil
	}
	m.closed = true

	if err := m.pool.Close(); err != nil {
		m.logger.Error("failed to close database pool", zap.Error(err))
		return err
	}
	m.logger.Info("Database pool closed", zap.String("type", m.pool.GetType()))
	return nil
}
