package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gregLibert/mifare-session/pkg/mifare"
	"github.com/gregLibert/mifare-session/pkg/reader"
	"github.com/gregLibert/mifare-session/pkg/session"
)

var spinnerFrames = []string{"( )", "(.)", "(-)", "(+)", "(-)", "(.)"}

// SpinnerInterval is the delay between two frames of the waiting indicator.
const SpinnerInterval = 300 * time.Millisecond

// Presence reports whether a card is on the reader. *reader.Monitor implements it.
type Presence interface {
	State() reader.State
}

// Operator drives the session from operator actions until quit.
type Operator struct {
	Session  *session.Coordinator
	Input    *session.InputProcessor
	Prompter *Prompter
	Presence Presence
	Out      io.Writer
	// Animate enables the waiting indicator. Turn it off when Out is not a
	// terminal.
	Animate bool
	Logger  *slog.Logger
}

// Run reads the card once, then serves actions until the operator quits or
// ctx ends. The worker is always asked to quit before Run returns.
func (o *Operator) Run(ctx context.Context) error {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	defer o.Input.Close()

	action := session.ActionRead
	for {
		o.Logger.Debug("action", "action", action)

		switch action {
		case session.ActionRead:
			if resp, ok := o.do(ctx, session.KindRead, mifare.WritePlan{}); ok {
				img := o.Session.Image()
				mifare.WriteSector(o.Out, &img.Sectors[0])
				if resp.Read.Failures > 0 {
					fmt.Fprintf(o.Out, "%d blocks read, %d failures\n", resp.Read.BlocksRead, resp.Read.Failures)
				}
			}

		case session.ActionPrintAll:
			img := o.Session.Image()
			mifare.WriteATR(o.Out, img)
			mifare.WriteDump(o.Out, img, mifare.AllSectors()...)

		case session.ActionPrintSector:
			n, err := o.Prompter.AskSector(ctx)
			if err != nil {
				return o.quit(ctx, err)
			}
			img := o.Session.Image()
			mifare.WriteSector(o.Out, &img.Sectors[n])

		case session.ActionWrite:
			plan, ok, err := o.Prompter.AskWrite(ctx)
			if err != nil {
				return o.quit(ctx, err)
			}
			if ok {
				if resp, ok := o.do(ctx, session.KindWrite, plan); ok {
					fmt.Fprintf(o.Out, "%d blocks written\n", resp.Write.Written())
				}
			}

		case session.ActionQuit:
			return o.quit(ctx, nil)

		case session.ActionCancelled:
			if err := ctx.Err(); err != nil {
				return o.quit(context.Background(), err)
			}
			fmt.Fprintln(o.Out, "\ncard removed, input cancelled")
		}

		o.Input.Start()
		action = o.Input.Input(ctx)
	}
}

// do runs one request, animating the waiting indicator while the card is
// absent, and prints its failure.
func (o *Operator) do(ctx context.Context, kind session.Kind, plan mifare.WritePlan) (session.Response, bool) {
	req, err := o.Session.Submit(ctx, kind, plan)
	if err != nil {
		fmt.Fprintf(o.Out, "%s: %v\n", kind, err)
		return session.Response{}, false
	}

	resp, err := o.await(ctx, req)
	if err != nil {
		fmt.Fprintf(o.Out, "%s: %v\n", kind, err)
		return resp, false
	}
	if resp.Err != nil {
		fmt.Fprintf(o.Out, "%s failed: %v\n", kind, resp.Err)
	}
	return resp, resp.OK
}

func (o *Operator) await(ctx context.Context, req session.Request) (session.Response, error) {
	ticker := time.NewTicker(SpinnerInterval)
	defer ticker.Stop()

	frame, waiting := 0, false
	defer func() {
		if waiting {
			fmt.Fprint(o.Out, "\r\n")
		}
	}()

	for {
		select {
		case resp := <-req.Reply():
			return resp, nil
		case <-ctx.Done():
			return session.Response{}, ctx.Err()
		case <-o.Session.Done():
			return o.Session.Await(ctx, req)
		case <-ticker.C:
			if !o.Animate || o.Presence.State() != reader.StateAbsent {
				continue
			}
			fmt.Fprintf(o.Out, "\rwaiting for card %s", spinnerFrames[frame%len(spinnerFrames)])
			frame++
			waiting = true
		}
	}
}

// quit stops the worker. cause is returned unless it is io.EOF, which only
// means the input ended.
func (o *Operator) quit(ctx context.Context, cause error) error {
	if _, err := o.Session.Quit(ctx); err != nil && !errors.Is(err, session.ErrStopped) {
		o.Logger.Warn("quit", "error", err)
	}
	fmt.Fprint(o.Out, "\rgood bye\n\n")
	if errors.Is(cause, io.EOF) {
		return nil
	}
	return cause
}
