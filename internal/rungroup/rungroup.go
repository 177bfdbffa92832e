// Package rungroup coordinates graceful shutdown across the
// long-running tasks a servare process hosts (the HTTP server, the
// Job Runner): on SIGINT/SIGTERM, or on any task's first error, every
// task is told to stop via a single broadcast channel, and the
// process exits once they all have.
package rungroup

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// Task is a long-running unit of work. It must return once shutdown
// is closed (or ctx is canceled), and should return promptly — the
// process waits for every task before exiting.
type Task func(ctx context.Context, shutdown <-chan struct{}) error

// Group runs a set of Tasks and a signal listener under a shared
// errgroup, broadcasting shutdown to all of them the moment any one
// task returns (error or not) or the process receives SIGINT/SIGTERM.
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	shutdown chan struct{}
	once     sync.Once
}

// New builds a Group bound to ctx; canceling ctx has the same effect
// as an OS signal.
func New(ctx context.Context) *Group {
	eg, egCtx := errgroup.WithContext(ctx)
	return &Group{
		eg:       eg,
		ctx:      egCtx,
		shutdown: make(chan struct{}),
	}
}

// Add starts task right away in the group's errgroup.
func (g *Group) Add(task Task) {
	g.eg.Go(func() error {
		err := task(g.ctx, g.shutdown)
		g.broadcastShutdown()
		return err
	})
}

// Start adds a signal-listening task and blocks until it and every
// added task return. It reports the first non-nil error
// from any task (a clean shutdown yields nil).
func (g *Group) Start(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	g.eg.Go(func() error {
		defer stop()
		select {
		case <-sigCtx.Done():
			g.broadcastShutdown()
		case <-g.shutdown:
		}
		return nil
	})

	return g.eg.Wait()
}

func (g *Group) broadcastShutdown() {
	g.once.Do(func() {
		close(g.shutdown)
	})
}
