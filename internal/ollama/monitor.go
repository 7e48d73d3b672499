// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/letterscribe/internal/logging"
)

// DefaultPollInterval is how often Monitor checks connectivity.
const DefaultPollInterval = 15 * time.Second

// ConnectivityChecker is implemented by Gateway.
type ConnectivityChecker interface {
	CheckConnectivity(ctx context.Context) bool
}

// Monitor polls connectivity and reports transitions.
type Monitor struct {
	checker  ConnectivityChecker
	interval time.Duration
	onChange func(connected bool)
	logger   *zap.Logger
	warn     rate.Sometimes

	mu        sync.Mutex
	known     bool
	connected bool
}

// NewMonitor creates a monitor. onChange is called on the first check and
// whenever the state flips; it may be nil.
func NewMonitor(checker ConnectivityChecker, interval time.Duration, onChange func(bool), logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		checker:  checker,
		interval: interval,
		onChange: onChange,
		logger:   logging.OrNop(logger).Named(logging.ComponentMonitor),
		warn:     rate.Sometimes{Interval: time.Minute},
	}
}

// Connected returns the last observed state (false before the first check).
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Check polls once and returns the current state.
func (m *Monitor) Check(ctx context.Context) bool {
	connected := m.checker.CheckConnectivity(ctx)

	m.mu.Lock()
	changed := !m.known || m.connected != connected
	m.known = true
	m.connected = connected
	m.mu.Unlock()

	switch {
	case changed && connected:
		m.logger.Info("model server reachable")
	case changed:
		m.logger.Warn("model server unreachable")
	case !connected:
		m.warn.Do(func() { m.logger.Warn("model server still unreachable") })
	}

	if changed && m.onChange != nil {
		m.onChange(connected)
	}
	return connected
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
