package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ebfe/scard"
)

// Context owns the PC/SC resource manager context of the process.
type Context struct {
	ctx *scard.Context
}

// EstablishContext connects to the PC/SC service.
func EstablishContext() (*Context, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish PC/SC context: %w", err)
	}
	return &Context{ctx: ctx}, nil
}

// Readers lists reader names. An empty list is ErrNoReaders.
func (c *Context) Readers() ([]string, error) {
	readers, err := c.ctx.ListReaders()
	if errors.Is(err, scard.ErrNoReadersAvailable) || (err == nil && len(readers) == 0) {
		return nil, ErrNoReaders
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list readers: %w", err)
	}
	return readers, nil
}

// Reader picks the reader at index.
func (c *Context) Reader(index int) (string, error) {
	readers, err := c.Readers()
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(readers) {
		return "", fmt.Errorf("%w: index %d, %d reader(s) found", ErrNoReaders, index, len(readers))
	}
	return readers[index], nil
}

// Cancel interrupts a blocking GetStatusChange, which stops any Watcher.
func (c *Context) Cancel() error {
	return c.ctx.Cancel()
}

// Release frees the context.
func (c *Context) Release() error {
	return c.ctx.Release()
}

// Connector returns a Connector opening exclusive connections on reader.
func (c *Context) Connector(reader string) *PCSCConnector {
	return &PCSCConnector{ctx: c.ctx, reader: reader}
}

// Watcher returns a presence watcher for reader.
func (c *Context) Watcher(reader string, sink EventSink, poll time.Duration, logger *slog.Logger) *Watcher {
	return NewWatcher(c.ctx, reader, sink, poll, logger)
}

// PCSCConnector connects in exclusive mode; closing unpowers the card.
type PCSCConnector struct {
	ctx    *scard.Context
	reader string
}

func (p *PCSCConnector) Connect(ctx context.Context) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	card, err := p.ctx.Connect(p.reader, scard.ShareExclusive, scard.ProtocolAny)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", p.reader, err)
	}
	status, err := card.Status()
	if err != nil {
		return nil, abandon(card, fmt.Errorf("card status: %w", err))
	}
	return &pcscConn{card: card, atr: append([]byte(nil), status.Atr...)}, nil
}

type disconnecter interface {
	Disconnect(d scard.Disposition) error
}

// abandon unpowers a card whose connection setup failed. A disconnect failure
// is joined to cause.
func abandon(card disconnecter, cause error) error {
	if err := card.Disconnect(scard.UnpowerCard); err != nil {
		return errors.Join(cause, fmt.Errorf("disconnect: %w", err))
	}
	return cause
}

type pcscConn struct {
	card *scard.Card
	atr  []byte
}

func (c *pcscConn) Transmit(cmd []byte) ([]byte, error) { return c.card.Transmit(cmd) }
func (c *pcscConn) ATR() []byte                          { return c.atr }
func (c *pcscConn) Close() error                         { return c.card.Disconnect(scard.UnpowerCard) }

// StatusSource is the blocking state query of a PC/SC context.
// *scard.Context implements it.
type StatusSource interface {
	GetStatusChange(states []scard.ReaderState, timeout time.Duration) error
}

// Watcher polls reader state changes and forwards insertions and removals to
// an EventSink.
type Watcher struct {
	src    StatusSource
	reader string
	sink   EventSink
	poll   time.Duration
	logger *slog.Logger
}

// NewWatcher builds a watcher. poll bounds each GetStatusChange call so ctx
// cancellation is noticed within one interval.
func NewWatcher(src StatusSource, reader string, sink EventSink, poll time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{src: src, reader: reader, sink: sink, poll: poll, logger: logger}
}

// Run watches until ctx ends or the PC/SC context is cancelled. A driver
// error counts as a removal: the watcher waits one poll interval, forgets the
// reader state and keeps watching.
func (w *Watcher) Run(ctx context.Context) {
	states := []scard.ReaderState{{Reader: w.reader, CurrentState: scard.StateUnaware}}
	var (
		present bool
		failing bool
		atr     []byte
	)

	for {
		if ctx.Err() != nil {
			return
		}

		err := w.src.GetStatusChange(states, w.poll)
		switch {
		case errors.Is(err, scard.ErrTimeout):
			continue
		case errors.Is(err, scard.ErrCancelled):
			return
		case err != nil:
			if present {
				present = false
				w.sink.CardRemoved(atr)
			}
			if !failing {
				w.logger.Warn("reader status failed", "reader", w.reader, "error", err)
			}
			failing = true
			states[0].CurrentState = scard.StateUnaware
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.poll):
			}
			continue
		}

		if failing {
			failing = false
			w.logger.Info("reader status recovered", "reader", w.reader)
		}

		event := states[0].EventState
		switch {
		case event&scard.StatePresent != 0 && !present:
			present = true
			atr = append([]byte(nil), states[0].Atr...)
			w.sink.CardInserted(atr)
		case event&scard.StateEmpty != 0 && present:
			present = false
			w.sink.CardRemoved(atr)
		}
		states[0].CurrentState = event &^ scard.StateChanged
	}
}
