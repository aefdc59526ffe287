package reader

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

var quiet = slog.New(slog.DiscardHandler)

type fakeConn struct {
	atr    []byte
	closed atomic.Int32
}

func (f *fakeConn) Transmit([]byte) ([]byte, error) { return []byte{0x90, 0x00}, nil }
func (f *fakeConn) ATR() []byte                      { return f.atr }
func (f *fakeConn) Close() error                     { f.closed.Add(1); return nil }

type fakeConnector struct {
	conn  *fakeConn
	err   error
	calls atomic.Int32
}

func (f *fakeConnector) Connect(context.Context) (Connection, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

func TestMonitorTransitions(t *testing.T) {
	conn := &fakeConn{atr: []byte{0x3B, 0x00}}
	m := NewMonitor(&fakeConnector{conn: conn}, quiet)

	if m.State() != StateAbsent {
		t.Fatalf("initial state = %s", m.State())
	}

	m.CardInserted(conn.atr)
	if m.State() != StatePresent {
		t.Fatalf("after insertion state = %s", m.State())
	}
	m.CardInserted(conn.atr)
	if m.State() != StatePresent {
		t.Fatalf("duplicate insertion changed state to %s", m.State())
	}

	c, err := m.ConnectExclusive(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("ConnectExclusive() error = %v", err)
	}
	if m.State() != StateConnected {
		t.Fatalf("after connect state = %s", m.State())
	}

	if err := c.Release(); err != nil {
		t.Fatal(err)
	}
	if err := c.Release(); err != nil {
		t.Fatal(err)
	}
	if m.State() != StatePresent {
		t.Errorf("after release state = %s", m.State())
	}
	if conn.closed.Load() != 1 {
		t.Errorf("connection closed %d times", conn.closed.Load())
	}

	m.CardRemoved(conn.atr)
	if m.State() != StateAbsent {
		t.Errorf("after removal state = %s", m.State())
	}
}

func TestMonitorRemovalWhileConnected(t *testing.T) {
	conn := &fakeConn{}
	m := NewMonitor(&fakeConnector{conn: conn}, quiet)
	m.CardInserted(nil)

	c, err := m.ConnectExclusive(context.Background(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	m.CardRemoved(nil)
	if m.State() != StateAbsent {
		t.Fatalf("removal while connected left state %s", m.State())
	}

	c.Release()
	if m.State() != StateAbsent {
		t.Errorf("release after removal resurrected state %s", m.State())
	}
	if m.WaitPresent(context.Background(), 10*time.Millisecond) {
		t.Error("presence signal still raised after removal")
	}
}

func TestMonitorSignal(t *testing.T) {
	m := NewMonitor(&fakeConnector{}, quiet)

	if m.WaitPresent(context.Background(), 10*time.Millisecond) {
		t.Fatal("WaitPresent() true without a card")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		m.CardInserted(nil)
	}()
	if !m.WaitPresent(context.Background(), time.Second) {
		t.Fatal("insertion did not raise the presence signal")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.CardRemoved(nil)
	if m.WaitPresent(ctx, time.Second) {
		t.Error("WaitPresent() true with cancelled context and no card")
	}
}

func TestMonitorRemovalHooks(t *testing.T) {
	m := NewMonitor(&fakeConnector{}, quiet)

	var fired atomic.Int32
	m.OnRemove(func() { fired.Add(1) })
	m.OnRemove(func() { fired.Add(10) })

	m.CardInserted(nil)
	m.CardRemoved(nil)
	if got := fired.Load(); got != 11 {
		t.Errorf("hooks fired total = %d, want 11", got)
	}
}

func TestConnectExclusiveErrors(t *testing.T) {
	t.Run("timeout without a card", func(t *testing.T) {
		connector := &fakeConnector{conn: &fakeConn{}}
		m := NewMonitor(connector, quiet)
		_, err := m.ConnectExclusive(context.Background(), 10*time.Millisecond)
		if !errors.Is(err, ErrConnectTimeout) {
			t.Errorf("error = %v, want ErrConnectTimeout", err)
		}
		if connector.calls.Load() != 0 {
			t.Error("connector called without a card")
		}
	})

	t.Run("driver failure", func(t *testing.T) {
		m := NewMonitor(&fakeConnector{err: errors.New("sharing violation")}, quiet)
		m.CardInserted(nil)
		_, err := m.ConnectExclusive(context.Background(), time.Second)
		if !errors.Is(err, ErrConnection) {
			t.Errorf("error = %v, want ErrConnection", err)
		}
		if m.State() != StatePresent {
			t.Errorf("state = %s after failed connect", m.State())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		m := NewMonitor(&fakeConnector{}, quiet)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.ConnectExclusive(ctx, time.Second)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}
