package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"fieldsync/internal/backend"
	"fieldsync/internal/logging"
)

// ConnectivityMonitor probes the backend on an interval and reports
// transitions to the coordinator. It is the only place connectivity state is
// decided; the rest of the system just reads the coordinator's flag.
type ConnectivityMonitor struct {
	client       backend.Client
	coordinator  *Coordinator
	logger       *slog.Logger
	pollInterval time.Duration

	mu      sync.Mutex
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConnectivityMonitor builds a monitor probing at the given interval.
func NewConnectivityMonitor(client backend.Client, coordinator *Coordinator, logger *slog.Logger, pollInterval time.Duration) *ConnectivityMonitor {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &ConnectivityMonitor{
		client:       client,
		coordinator:  coordinator,
		logger:       logging.NewComponentLogger(logger, "connectivity"),
		pollInterval: pollInterval,
	}
}

func (m *ConnectivityMonitor) Start(ctx context.Context) error {
	if m == nil {
		return errors.New("connectivity monitor unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("connectivity monitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.ctx = runCtx
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop()
	return nil
}

func (m *ConnectivityMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *ConnectivityMonitor) loop() {
	defer m.wg.Done()

	m.probe()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

func (m *ConnectivityMonitor) probe() {
	ctx := m.ctx
	if ctx == nil {
		return
	}

	err := m.client.Ping(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.logger.Debug("backend probe failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "probe_failed"),
		)
		m.coordinator.SetOnline(false)
		return
	}
	m.coordinator.SetOnline(true)
}
