// Package console is the interactive operator front end: menus, prompts, the
// waiting indicator and the loop that turns operator actions into session
// requests.
package console

import (
	"bufio"
	"context"
	"io"
	"time"
)

// Lines reads an input stream line by line on a background goroutine. A read
// from a terminal cannot be interrupted, so prompts poll the line channel
// instead and give up when their context is cancelled.
type Lines struct {
	ch  chan string
	err error // set before ch is closed
}

// NewLines starts reading r.
func NewLines(r io.Reader) *Lines {
	l := &Lines{ch: make(chan string)}
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			l.ch <- sc.Text()
		}
		l.err = sc.Err()
		if l.err == nil {
			l.err = io.EOF
		}
		close(l.ch)
	}()
	return l
}

// Next returns the next line. It checks ctx every poll interval and returns
// ctx.Err() once it is done, or io.EOF when the input is exhausted.
func (l *Lines) Next(ctx context.Context, poll time.Duration) (string, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-l.ch:
			if !ok {
				return "", l.err
			}
			return line, nil
		case <-ticker.C:
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
	}
}
