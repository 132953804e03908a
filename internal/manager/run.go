package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jezek/xgb"
)

// Event is one item off the X connection: an event or a connection-level
// error. Protocol errors on individual requests arrive here too and are
// transient.
type Event struct {
	Ev  xgb.Event
	Err error
}

const maxLoopInterval = time.Second

// SetStatusSource installs the callback producing pre-rendered status
// text. Content collection is external to the WM.
func (m *Manager) SetStatusSource(fn func() string) {
	m.statusFn = fn
}

// Run drives the single-threaded event loop: dispatch events in arrival
// order, flush issued requests after each, and between events advance the
// close escalation and status redraw timers. Returns one of the sentinel
// errors, or a transport error when the connection dies.
func (m *Manager) Run(ctx context.Context, events <-chan Event) error {
	ctx, span := m.tracer.Start(ctx, "manager.Run")
	defer span.End()

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("manager is already running")
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	m.logger.Info("Entering event loop")
	timer := time.NewTimer(m.nextDeadline())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ErrGracefulShutdown
		case item, ok := <-events:
			if !ok {
				return fmt.Errorf("X connection closed")
			}
			if item.Err != nil {
				// Individual requests may fail because the target died
				// between read and write; never fatal.
				m.logger.WithError(item.Err).Debug("Transient X error")
				break
			}
			if err := m.Dispatch(item.Ev); err != nil {
				if errors.Is(err, ErrStateInvalidated) ||
					errors.Is(err, ErrGracefulShutdown) ||
					errors.Is(err, ErrFullRestart) {
					return err
				}
				m.logger.WithError(err).Error("Event handler failed")
			}
			m.x.Flush()
		case <-timer.C:
		}
		m.CheckDyingWindows()
		m.checkStatus()
		m.x.Flush()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(m.nextDeadline())
	}
}

// Running reports whether the event loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// nextDeadline picks the loop wakeup: the earliest of the dying-window
// head, the next status check, and the one-second heartbeat.
func (m *Manager) nextDeadline() time.Duration {
	now := m.now()
	wake := now.Add(maxLoopInterval)
	if deadline, ok := m.state.NextDeathDeadline(m.cfg.Windowing.KillAfter); ok && deadline.Before(wake) {
		wake = deadline
	}
	if m.statusFn != nil && !m.nextStatusAt.IsZero() && m.nextStatusAt.Before(wake) {
		wake = m.nextStatusAt
	}
	d := wake.Sub(now)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// checkStatus refreshes status text when its interval elapsed.
func (m *Manager) checkStatus() {
	if m.statusFn == nil {
		return
	}
	now := m.now()
	if m.nextStatusAt.IsZero() {
		m.nextStatusAt = now
	}
	if now.Before(m.nextStatusAt) {
		return
	}
	m.SetStatus(m.statusFn())
	m.nextStatusAt = now.Add(m.statusInterval())
}

func (m *Manager) statusInterval() time.Duration {
	interval := maxLoopInterval
	for _, check := range m.cfg.StatusChecks {
		if check.Interval > 0 && check.Interval < interval {
			interval = check.Interval
		}
	}
	return interval
}

// Pump reads the X connection into a channel the run loop can select on.
// It exits when the connection closes.
func Pump(conn *xgb.Conn, out chan<- Event) {
	for {
		ev, err := conn.WaitForEvent()
		if ev == nil && err == nil {
			close(out)
			return
		}
		out <- Event{Ev: ev, Err: err}
	}
}
