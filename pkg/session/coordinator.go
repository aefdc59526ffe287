// Package session serializes card work behind a single worker.
//
// The Coordinator owns the card image and is the only goroutine that talks to
// the card. Callers enqueue requests and block on a per-request reply channel;
// at most one request is in flight at any time. The InputProcessor runs the
// operator prompt in the background so that a card removal can cancel it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gregLibert/mifare-session/pkg/atr"
	"github.com/gregLibert/mifare-session/pkg/iso7816"
	"github.com/gregLibert/mifare-session/pkg/mifare"
	"github.com/gregLibert/mifare-session/pkg/reader"
)

// QueueSize is the capacity of the request queue.
const QueueSize = 2

// Kind of a session request.
type Kind int

const (
	KindRead Kind = iota
	KindWrite
	KindQuit
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindQuit:
		return "quit"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Request is one unit of card work. The reply channel holds a single slot so
// the worker never blocks on a caller that went away.
type Request struct {
	ID   uuid.UUID
	Kind Kind
	Plan mifare.WritePlan

	reply chan Response
}

// Reply returns the channel the response is published on.
func (r Request) Reply() <-chan Response { return r.reply }

// Response is published once the request has fully completed.
type Response struct {
	ID   uuid.UUID
	Kind Kind
	OK   bool
	Err  error

	Read  mifare.ReadSummary
	Write mifare.WriteReport
}

// Connector hands out exclusive card connections. *reader.Monitor implements it.
type Connector interface {
	ConnectExclusive(ctx context.Context, timeout time.Duration) (*reader.Conn, error)
}

// Options tune the coordinator.
type Options struct {
	Key             mifare.Key
	ConnectTimeout  time.Duration
	ConnectAttempts int
	Logger          *slog.Logger
}

// Coordinator is the single card worker.
type Coordinator struct {
	connector Connector
	opts      Options
	logger    *slog.Logger

	requests chan Request
	done     chan struct{}
	inFlight atomic.Int32

	img *mifare.CardImage
}

// NewCoordinator returns a coordinator with an empty card image. Run must be
// started before requests are submitted.
func NewCoordinator(connector Connector, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ConnectAttempts < 1 {
		opts.ConnectAttempts = 1
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = time.Second
	}
	return &Coordinator{
		connector: connector,
		opts:      opts,
		logger:    opts.Logger,
		requests:  make(chan Request, QueueSize),
		done:      make(chan struct{}),
		img:       mifare.NewCardImage(),
	}
}

// Run processes requests in FIFO order until a Quit request or ctx ends.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	c.logger.Debug("session worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-c.requests:
			resp := c.handle(ctx, req)
			req.reply <- resp
			if req.Kind == KindQuit {
				c.logger.Debug("session worker stopped")
				return nil
			}
		}
	}
}

// Done is closed when Run returns.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// InFlight reports how many requests are being processed, 0 or 1.
func (c *Coordinator) InFlight() int { return int(c.inFlight.Load()) }

// Image returns a snapshot of the card image. Call it between requests only.
func (c *Coordinator) Image() *mifare.CardImage { return c.img.Clone() }

// Submit enqueues a request and returns it. It blocks while the queue is full.
func (c *Coordinator) Submit(ctx context.Context, kind Kind, plan mifare.WritePlan) (Request, error) {
	req := Request{ID: uuid.New(), Kind: kind, Plan: plan, reply: make(chan Response, 1)}

	select {
	case <-c.done:
		return Request{}, ErrStopped
	default:
	}

	select {
	case <-c.done:
		return Request{}, ErrStopped
	case <-ctx.Done():
		return Request{}, ctx.Err()
	case c.requests <- req:
		c.logger.Debug("request queued", "id", req.ID, "kind", kind)
		return req, nil
	}
}

// Await blocks until req has been answered.
func (c *Coordinator) Await(ctx context.Context, req Request) (Response, error) {
	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-c.done:
		select {
		case resp := <-req.reply:
			return resp, nil
		default:
			return Response{}, ErrStopped
		}
	}
}

// Do submits a request and waits for its response.
func (c *Coordinator) Do(ctx context.Context, kind Kind, plan mifare.WritePlan) (Response, error) {
	req, err := c.Submit(ctx, kind, plan)
	if err != nil {
		return Response{}, err
	}
	return c.Await(ctx, req)
}

// Read refreshes the card image.
func (c *Coordinator) Read(ctx context.Context) (Response, error) {
	return c.Do(ctx, KindRead, mifare.WritePlan{})
}

// Write applies plan to the card.
func (c *Coordinator) Write(ctx context.Context, plan mifare.WritePlan) (Response, error) {
	return c.Do(ctx, KindWrite, plan)
}

// Quit stops the worker once every earlier request has been answered.
func (c *Coordinator) Quit(ctx context.Context) (Response, error) {
	return c.Do(ctx, KindQuit, mifare.WritePlan{})
}

func (c *Coordinator) handle(ctx context.Context, req Request) Response {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	resp := Response{ID: req.ID, Kind: req.Kind}
	logger := c.logger.With("id", req.ID, "kind", req.Kind)

	switch req.Kind {
	case KindQuit:
		resp.OK = true
		return resp
	case KindWrite:
		if err := req.Plan.Validate(); err != nil {
			resp.Err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
			logger.Warn("write rejected", "error", err)
			return resp
		}
	case KindRead:
	default:
		resp.Err = fmt.Errorf("unknown request kind %d", int(req.Kind))
		return resp
	}

	conn, err := c.connect(ctx, logger)
	if err != nil {
		resp.Err = err
		return resp
	}
	defer func() {
		if err := conn.Release(); err != nil {
			logger.Warn("release failed", "error", err)
		}
	}()

	c.recordATR(conn.ATR(), logger)
	seq := mifare.NewSequencer(mifare.NewTransport(conn, c.logger), c.opts.Key, c.logger)

	switch req.Kind {
	case KindRead:
		resp.Read, resp.OK = seq.ReadCard(c.img)
		if !resp.OK {
			resp.Err = ErrReadFailed
		}
		logger.Info("read complete", "blocks", resp.Read.BlocksRead, "failures", resp.Read.Failures)
	case KindWrite:
		resp.Write, err = seq.ApplyPlan(c.img, req.Plan)
		resp.OK = err == nil
		if err != nil {
			resp.Err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		logger.Info("write complete", "written", resp.Write.Written(), "blocks", req.Plan.Blocks())
	}
	return resp
}

// connect retries on timeout only. Driver errors fail the request at once.
func (c *Coordinator) connect(ctx context.Context, logger *slog.Logger) (*reader.Conn, error) {
	for attempt := 1; attempt <= c.opts.ConnectAttempts; attempt++ {
		conn, err := c.connector.ConnectExclusive(ctx, c.opts.ConnectTimeout)
		if err == nil {
			return conn, nil
		}
		if !errors.Is(err, reader.ErrConnectTimeout) {
			logger.Warn("connect failed", "error", err)
			return nil, err
		}
		logger.Debug("waiting for card", "attempt", attempt, "of", c.opts.ConnectAttempts)
	}
	logger.Warn("no card presented", "timeout", c.opts.ConnectTimeout*time.Duration(c.opts.ConnectAttempts))
	return nil, reader.ErrConnectTimeout
}

func (c *Coordinator) recordATR(raw []byte, logger *slog.Logger) {
	c.img.ATR = append(c.img.ATR[:0], raw...)

	a, err := atr.Parse(raw)
	if err != nil {
		logger.Warn("unparsable ATR", "atr", iso7816.HexString(raw), "error", err)
		return
	}
	logger.Debug("card connected", "atr", a.Describe())
	if !a.IsMifareClassic1K() {
		logger.Warn("card does not announce MIFARE Classic 1K", "atr", iso7816.HexString(raw))
	}
}
