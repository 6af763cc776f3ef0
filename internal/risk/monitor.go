package risk

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Monitor drives the periodic risk sweep: it pages through all open
// positions and evaluates each one, letting the service append events for
// any breach it finds.
type Monitor struct {
	svc       *Service
	positions PositionStore
	interval  time.Duration
	pageSize  int
	log       *zap.Logger
}

// NewMonitor builds a monitor sweeping every interval in pages of
// pageSize positions.
func NewMonitor(svc *Service, positions PositionStore, interval time.Duration, pageSize int, log *zap.Logger) *Monitor {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Monitor{
		svc:       svc,
		positions: positions,
		interval:  interval,
		pageSize:  pageSize,
		log:       log.Named("risk-monitor"),
	}
}

// Run sweeps until ctx is cancelled. A failed sweep is logged and the
// next tick tries again.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info("risk monitor started", zap.Duration("interval", m.interval))
	for {
		select {
		case <-ctx.Done():
			m.log.Info("risk monitor stopped")
			return
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				m.log.Error("risk sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep evaluates every open position once and returns the first store
// error encountered.
func (m *Monitor) Sweep(ctx context.Context) error {
	start := time.Now()
	var scanned, emitted int

	for offset := 0; ; offset += m.pageSize {
		page, err := m.positions.GetAll(ctx, offset, m.pageSize)
		if err != nil {
			return err
		}
		for i := range page {
			events, err := m.svc.MonitorPositionRisk(ctx, &page[i])
			if err != nil {
				return err
			}
			emitted += len(events)
		}
		scanned += len(page)
		if len(page) < m.pageSize {
			break
		}
	}

	m.log.Info("risk sweep complete",
		zap.Int("positions", scanned),
		zap.Int("events", emitted),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
