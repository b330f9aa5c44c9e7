// Package console is a terminal front end for a chat session. It renders
// session snapshots and turns typed lines into session intents; it never
// changes session state itself.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/omochice/relay-chat/internal/session"
)

// Controller is the part of a session the console drives.
type Controller interface {
	StartJoin(name string) error
	Send(text string) error
	BeginReply(id string) error
	CancelReply()
	Teardown()
	Snapshot() session.Snapshot
	Changes() <-chan struct{}
}

// Options configures a Console.
type Options struct {
	// Plain disables color output.
	Plain  bool
	Logger *slog.Logger
}

// Console connects a Controller to a terminal.
type Console struct {
	ctrl     Controller
	renderer *Renderer
	log      *slog.Logger
	name     string
}

// New creates a Console writing to out.
func New(ctrl Controller, out io.Writer, opts Options) *Console {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Console{
		ctrl:     ctrl,
		renderer: NewRenderer(out, opts.Plain),
		log:      logger,
	}
}

// Run joins as name and then serves the user until in is exhausted, /quit
// is typed or ctx ends. The session is torn down before Run returns.
func (c *Console) Run(ctx context.Context, name string, in io.Reader) error {
	c.name = name
	if err := c.ctrl.StartJoin(name); err != nil {
		return fmt.Errorf("failed to join: %w", err)
	}
	defer func() {
		c.ctrl.Teardown()
		c.renderer.Render(c.ctrl.Snapshot())
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go scanLines(ctx, in, lines)

	c.renderer.Render(c.ctrl.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.ctrl.Changes():
			c.renderer.Render(c.ctrl.Snapshot())
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.handle(line); quit {
				return nil
			}
		}
	}
}

func scanLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

// handle executes one input line and reports whether the user asked to quit.
func (c *Console) handle(line string) bool {
	cmd, err := ParseCommand(line)
	if err != nil {
		c.renderer.Notice(err.Error())
		return false
	}

	switch cmd.Kind {
	case CommandSend:
		c.report(c.ctrl.Send(cmd.Text))
	case CommandReply:
		snap := c.ctrl.Snapshot()
		if cmd.Index > len(snap.Log) {
			c.renderer.Notice(fmt.Sprintf("no message %d", cmd.Index))
			return false
		}
		c.report(c.ctrl.BeginReply(snap.Log[cmd.Index-1].ID))
	case CommandCancel:
		c.ctrl.CancelReply()
	case CommandJoin:
		if cmd.Text != "" {
			c.name = cmd.Text
		}
		c.report(c.ctrl.StartJoin(c.name))
	case CommandHelp:
		c.renderer.Notice(helpText)
	case CommandQuit:
		return true
	}
	return false
}

func (c *Console) report(err error) {
	if err == nil {
		return
	}
	c.log.Debug("intent rejected", "error", err)

	switch {
	case errors.Is(err, session.ErrNotConnected):
		c.renderer.Notice("not connected (/join to reconnect)")
	default:
		c.renderer.Notice(err.Error())
	}
}
