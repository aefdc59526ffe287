// Package reader tracks card presence on a PC/SC reader and hands out exclusive
// connections to the card.
//
// Presence is driven from the outside: a notification source (the PC/SC Watcher,
// or a test) calls the Monitor's EventSink methods. Those calls only flip state
// and fire removal hooks, they never perform I/O.
package reader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gregLibert/mifare-session/pkg/iso7816"
)

// State of the card as seen by the Monitor.
type State int32

const (
	StateAbsent State = iota
	StatePresent
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StatePresent:
		return "present"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// EventSink receives insertion and removal notifications.
type EventSink interface {
	CardInserted(atr []byte)
	CardRemoved(atr []byte)
}

// Connection is an open, exclusive card connection.
type Connection interface {
	iso7816.Transmitter
	ATR() []byte
	// Close disconnects and unpowers the card.
	Close() error
}

// Connector opens card connections.
type Connector interface {
	Connect(ctx context.Context) (Connection, error)
}

// Monitor implements EventSink and guards access to the card.
type Monitor struct {
	connector Connector
	logger    *slog.Logger

	state atomic.Int32

	mu      sync.Mutex
	present chan struct{} // closed while a card is present
	hooks   []func()
}

// NewMonitor returns a monitor in the Absent state. A nil logger means slog.Default().
func NewMonitor(connector Connector, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		connector: connector,
		logger:    logger,
		present:   make(chan struct{}),
	}
}

// State returns the current presence state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// OnRemove registers fn to run on every removal. fn runs on the notifying
// goroutine and must not block.
func (m *Monitor) OnRemove(fn func()) {
	m.mu.Lock()
	m.hooks = append(m.hooks, fn)
	m.mu.Unlock()
}

// CardInserted raises the presence signal.
func (m *Monitor) CardInserted(atr []byte) {
	m.mu.Lock()
	if m.state.CompareAndSwap(int32(StateAbsent), int32(StatePresent)) {
		close(m.present)
	}
	m.mu.Unlock()

	m.logger.Info("card inserted", "atr", iso7816.HexString(atr))
}

// CardRemoved clears the presence signal and fires the removal hooks.
func (m *Monitor) CardRemoved(atr []byte) {
	m.mu.Lock()
	if State(m.state.Swap(int32(StateAbsent))) != StateAbsent {
		m.present = make(chan struct{})
	}
	hooks := append([]func(){}, m.hooks...)
	m.mu.Unlock()

	m.logger.Info("card removed", "atr", iso7816.HexString(atr))
	for _, fn := range hooks {
		fn()
	}
}

func (m *Monitor) signal() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.present
}

// WaitPresent blocks until a card is present, timeout elapses or ctx ends.
func (m *Monitor) WaitPresent(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-m.signal():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// ConnectExclusive waits up to timeout for a card, then connects to it. Driver
// failures come back wrapped in ErrConnection, never as panics.
func (m *Monitor) ConnectExclusive(ctx context.Context, timeout time.Duration) (*Conn, error) {
	if !m.WaitPresent(ctx, timeout) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrConnectTimeout
	}

	conn, err := m.connector.Connect(ctx)
	if err != nil {
		m.logger.Warn("connection error", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	m.state.CompareAndSwap(int32(StatePresent), int32(StateConnected))
	return &Conn{Connection: conn, monitor: m}, nil
}

// Conn is a connection handed out by ConnectExclusive.
type Conn struct {
	Connection
	monitor *Monitor
	once    sync.Once
}

// Release closes the connection and returns the monitor to Present unless the
// card was removed meanwhile. It is safe to call more than once.
func (c *Conn) Release() error {
	var err error
	c.once.Do(func() {
		err = c.Connection.Close()
		c.monitor.state.CompareAndSwap(int32(StateConnected), int32(StatePresent))
	})
	return err
}
