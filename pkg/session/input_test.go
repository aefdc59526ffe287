package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gregLibert/mifare-session/pkg/reader"
)

// scriptedSource answers from script in order. A zero entry blocks until the
// prompt is cancelled.
type scriptedSource struct {
	script []Action
	err    error
	calls  atomic.Int32
}

func (s *scriptedSource) NextAction(ctx context.Context) (Action, error) {
	n := int(s.calls.Add(1)) - 1
	if s.err != nil {
		return 0, s.err
	}
	if n < len(s.script) && s.script[n] != 0 {
		return s.script[n], nil
	}
	<-ctx.Done()
	return 0, ctx.Err()
}

// pollingSource never answers. Like a terminal prompt it only notices
// cancellation when it polls.
type pollingSource struct {
	poll time.Duration
}

func (s pollingSource) NextAction(ctx context.Context) (Action, error) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for range ticker.C {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

const (
	inputPoll  = 50 * time.Millisecond
	inputSlack = 50 * time.Millisecond
)

func input(t *testing.T, p *InputProcessor) Action {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return p.Input(ctx)
}

func TestInputProcessor(t *testing.T) {
	tests := []struct {
		name string
		src  *scriptedSource
		want Action
	}{
		{"action", &scriptedSource{script: []Action{ActionPrintAll}}, ActionPrintAll},
		{"source error quits", &scriptedSource{err: errors.New("EOF")}, ActionQuit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewInputProcessor(tt.src)
			defer p.Close()
			p.Start()
			if got := input(t, p); got != tt.want {
				t.Errorf("Input() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInputProcessorCancel(t *testing.T) {
	p := NewInputProcessor(pollingSource{poll: inputPoll})
	defer p.Close()
	p.Start()

	at := make(chan time.Time, 1)
	time.AfterFunc(10*time.Millisecond, func() {
		at <- time.Now()
		p.Cancel()
	})
	if got := input(t, p); got != ActionCancelled {
		t.Errorf("Input() = %s, want %s", got, ActionCancelled)
	}
	if lag := time.Since(<-at); lag > inputPoll+inputSlack {
		t.Errorf("Input() returned %v after Cancel, want within one poll interval (%v)", lag, inputPoll)
	}
}

func TestInputProcessorRestartDropsStalePrompt(t *testing.T) {
	src := &scriptedSource{script: []Action{0, ActionWrite}}
	p := NewInputProcessor(src)
	defer p.Close()

	p.Start()
	p.Start()
	if got := input(t, p); got != ActionWrite {
		t.Errorf("Input() = %s, want %s", got, ActionWrite)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("source called %d times, want 2", n)
	}
}

func TestInputProcessorCancelledByRemoval(t *testing.T) {
	m := reader.NewMonitor(&cardConnector{card: &memCard{}}, quiet)
	p := NewInputProcessor(pollingSource{poll: inputPoll})
	defer p.Close()
	m.OnRemove(p.Cancel)

	m.CardInserted(atr1K)
	p.Start()
	removed := time.Now()
	m.CardRemoved(atr1K)

	if got := input(t, p); got != ActionCancelled {
		t.Errorf("Input() after removal = %s, want %s", got, ActionCancelled)
	}
	if lag := time.Since(removed); lag > inputPoll+inputSlack {
		t.Errorf("Input() returned %v after removal, want within one poll interval (%v)", lag, inputPoll)
	}
}

func TestActionString(t *testing.T) {
	if got := ActionPrintSector.String(); got != "print sector" {
		t.Errorf("String() = %q", got)
	}
	if got := Action(42).String(); got != "Action(42)" {
		t.Errorf("String() = %q", got)
	}
}
