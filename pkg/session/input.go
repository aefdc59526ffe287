package session

import (
	"context"
	"fmt"
	"sync"
)

// Action chosen by the operator.
type Action int

const (
	ActionRead Action = iota + 1
	ActionPrintAll
	ActionPrintSector
	ActionWrite
	ActionQuit
	// ActionCancelled is delivered when the prompt was cancelled, typically
	// because the card was removed.
	ActionCancelled
)

var actionNames = map[Action]string{
	ActionRead:        "read",
	ActionPrintAll:    "print all",
	ActionPrintSector: "print sector",
	ActionWrite:       "write",
	ActionQuit:        "quit",
	ActionCancelled:   "cancelled",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ActionSource blocks until the operator picks an action. It must return
// promptly once ctx is cancelled.
type ActionSource interface {
	NextAction(ctx context.Context) (Action, error)
}

// InputProcessor runs one ActionSource prompt at a time in the background.
type InputProcessor struct {
	src ActionSource

	startMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	result chan Action
}

// NewInputProcessor wraps src. Nothing runs until Start.
func NewInputProcessor(src ActionSource) *InputProcessor {
	return &InputProcessor{src: src, result: make(chan Action, 1)}
}

// Start cancels and joins the previous prompt, if any, then launches a new one.
func (p *InputProcessor) Start() {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	p.stop()
	select {
	case <-p.result:
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel, p.done = cancel, done
	p.mu.Unlock()

	go p.run(ctx, done)
}

func (p *InputProcessor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	a, err := p.src.NextAction(ctx)
	switch {
	case ctx.Err() != nil:
		a = ActionCancelled
	case err != nil:
		a = ActionQuit
	}
	p.result <- a
}

// Cancel asks the running prompt to stop. It never blocks, so it is safe to
// call from a removal hook.
func (p *InputProcessor) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Input waits for the action of the prompt started last.
func (p *InputProcessor) Input(ctx context.Context) Action {
	select {
	case a := <-p.result:
		return a
	case <-ctx.Done():
		return ActionCancelled
	}
}

// Close cancels and joins the running prompt.
func (p *InputProcessor) Close() {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	p.stop()
}

func (p *InputProcessor) stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
