package query

import (
	"context"
	"sync"
)

// call is one in-flight network request shared by every caller asking for
// the same key.
type call struct {
	done    chan struct{}
	val     any
	err     error
	cancel  context.CancelFunc
	waiters int
}

// flightGroup keeps at most one running request per key. Unlike a plain
// singleflight it counts waiters, so the request is cancelled once every
// caller has given up on it.
type flightGroup struct {
	mu    sync.Mutex
	calls map[string]*call
}

func newFlightGroup() *flightGroup {
	return &flightGroup{calls: make(map[string]*call)}
}

// do runs fn for id unless a run is already in flight, in which case the
// caller waits for that one. shared reports whether the caller joined an
// existing run. fn receives a context detached from any single caller.
func (g *flightGroup) do(
	ctx context.Context,
	id string,
	fn func(ctx context.Context) (any, error),
) (val any, err error, shared bool) {
	g.mu.Lock()
	c, ok := g.calls[id]
	if ok {
		c.waiters++
		g.mu.Unlock()
	} else {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{
			done:    make(chan struct{}),
			cancel:  cancel,
			waiters: 1,
		}
		g.calls[id] = c
		g.mu.Unlock()

		go func() {
			c.val, c.err = fn(runCtx)

			g.mu.Lock()
			if g.calls[id] == c {
				delete(g.calls, id)
			}
			g.mu.Unlock()

			cancel()
			close(c.done)
		}()
	}

	select {
	case <-c.done:
		return c.val, c.err, ok
	case <-ctx.Done():
		g.leave(id, c)
		return nil, ctx.Err(), ok
	}
}

func (g *flightGroup) leave(id string, c *call) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c.waiters--
	if c.waiters > 0 {
		return
	}
	c.cancel()
	// Later callers start a fresh request instead of joining a cancelled one.
	if g.calls[id] == c {
		delete(g.calls, id)
	}
}

// inFlight returns the number of running requests.
func (g *flightGroup) inFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
