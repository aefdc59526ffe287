package reader

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ebfe/scard"
	"github.com/google/go-cmp/cmp"
)

// scriptedStatus replays reader events, one per GetStatusChange call.
type scriptedStatus struct {
	events []func(*scard.ReaderState) error
	seen   []scard.StateFlag
}

func (s *scriptedStatus) GetStatusChange(states []scard.ReaderState, _ time.Duration) error {
	s.seen = append(s.seen, states[0].CurrentState)
	if len(s.events) == 0 {
		return scard.ErrCancelled
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev(&states[0])
}

func event(flags scard.StateFlag, atr []byte) func(*scard.ReaderState) error {
	return func(rs *scard.ReaderState) error {
		rs.EventState = flags | scard.StateChanged
		rs.Atr = atr
		return nil
	}
}

func timeout(*scard.ReaderState) error { return scard.ErrTimeout }

type recordingSink struct {
	events []string
}

func (r *recordingSink) CardInserted(atr []byte) { r.events = append(r.events, "in "+string(atr)) }
func (r *recordingSink) CardRemoved(atr []byte)  { r.events = append(r.events, "out "+string(atr)) }

func TestWatcherEvents(t *testing.T) {
	src := &scriptedStatus{events: []func(*scard.ReaderState) error{
		event(scard.StateEmpty, nil),
		timeout,
		event(scard.StatePresent, []byte("A")),
		event(scard.StatePresent|scard.StateExclusive, []byte("A")),
		timeout,
		event(scard.StateEmpty, nil),
		event(scard.StatePresent, []byte("B")),
	}}
	sink := &recordingSink{}

	NewWatcher(src, "ACR122U", sink, 200*time.Millisecond, quiet).Run(context.Background())

	if diff := cmp.Diff([]string{"in A", "out A", "in B"}, sink.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if src.seen[0] != scard.StateUnaware {
		t.Errorf("first query state = %v, want StateUnaware", src.seen[0])
	}
	for i, st := range src.seen {
		if st&scard.StateChanged != 0 {
			t.Errorf("query %d carried StateChanged back to the driver", i)
		}
	}
}

func TestWatcherDriverError(t *testing.T) {
	boom := errors.New("reader unplugged")
	fail := func(*scard.ReaderState) error { return boom }
	src := &scriptedStatus{events: []func(*scard.ReaderState) error{
		event(scard.StatePresent, []byte("A")),
		fail,
		fail,
		event(scard.StatePresent, []byte("B")),
	}}
	sink := &recordingSink{}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	NewWatcher(src, "ACR122U", sink, time.Millisecond, logger).Run(context.Background())

	if diff := cmp.Diff([]string{"in A", "out A", "in B"}, sink.events); diff != "" {
		t.Errorf("a driver error must count as removal, then watching resumes (-want +got):\n%s", diff)
	}
	for _, i := range []int{2, 3} {
		if src.seen[i] != scard.StateUnaware {
			t.Errorf("query %d after a failure = %v, want StateUnaware", i, src.seen[i])
		}
	}
	if n := strings.Count(logs.String(), "reader status failed"); n != 1 {
		t.Errorf("failure logged %d times, want once:\n%s", n, logs.String())
	}
	if !strings.Contains(logs.String(), "reader status recovered") {
		t.Errorf("recovery not logged:\n%s", logs.String())
	}
}

func TestWatcherDriverErrorStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedStatus{events: []func(*scard.ReaderState) error{
		func(*scard.ReaderState) error {
			cancel()
			return errors.New("reader unplugged")
		},
		timeout,
	}}

	done := make(chan struct{})
	go func() {
		NewWatcher(src, "r", &recordingSink{}, time.Hour, quiet).Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher kept waiting after context end")
	}
	if len(src.seen) != 1 {
		t.Errorf("watcher polled %d times, want 1", len(src.seen))
	}
}

type fakeCard struct {
	err          error
	dispositions []scard.Disposition
}

func (f *fakeCard) Disconnect(d scard.Disposition) error {
	f.dispositions = append(f.dispositions, d)
	return f.err
}

func TestAbandon(t *testing.T) {
	cause := errors.New("card status: removed")

	card := &fakeCard{}
	if err := abandon(card, cause); err != cause {
		t.Errorf("abandon() = %v, want %v", err, cause)
	}
	if diff := cmp.Diff([]scard.Disposition{scard.UnpowerCard}, card.dispositions); diff != "" {
		t.Errorf("dispositions mismatch (-want +got):\n%s", diff)
	}

	gone := errors.New("no service")
	err := abandon(&fakeCard{err: gone}, cause)
	if !errors.Is(err, cause) || !errors.Is(err, gone) {
		t.Errorf("abandon() = %v, want both %v and %v", err, cause, gone)
	}
}

func TestWatcherStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &scriptedStatus{events: []func(*scard.ReaderState) error{timeout}}
	NewWatcher(src, "r", &recordingSink{}, time.Millisecond, quiet).Run(ctx)
	if len(src.seen) != 0 {
		t.Error("watcher polled after context end")
	}
}

func TestWatcherFeedsMonitor(t *testing.T) {
	m := NewMonitor(&fakeConnector{}, quiet)
	src := &scriptedStatus{events: []func(*scard.ReaderState) error{
		event(scard.StatePresent, []byte{0x3B}),
	}}

	NewWatcher(src, "r", m, time.Millisecond, quiet).Run(context.Background())
	if m.State() != StatePresent {
		t.Errorf("monitor state = %s", m.State())
	}
}
