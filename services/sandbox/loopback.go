package sandbox

import (
	"context"
	"fmt"
	"sync"

	"linkdrop-controlplane/pkg/host"
)

type pending struct {
	receiptID string
	req       host.Request
}

// Loopback is an in-process host. Submitted requests are queued and run
// against the sandbox by Drain, which also delivers their callbacks.
type Loopback struct {
	sandbox  *Sandbox
	callerID string

	mu    sync.Mutex
	seq   int
	queue []pending
}

func NewLoopback(sandbox *Sandbox, callerID string) *Loopback {
	return &Loopback{sandbox: sandbox, callerID: callerID}
}

func (l *Loopback) Submit(_ context.Context, req host.Request) (string, error) {
	if len(req.Batches) == 0 {
		return "", fmt.Errorf("submit: empty request")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	id := fmt.Sprintf("loopback-%d", l.seq)
	l.queue = append(l.queue, pending{receiptID: id, req: req})
	return id, nil
}

// Pending reports how many submitted requests have not run yet.
func (l *Loopback) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loopback) next() (pending, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return pending{}, false
	}
	p := l.queue[0]
	l.queue = l.queue[1:]
	return p, true
}

// Drain runs queued requests until none are left, including requests
// submitted by the callbacks it delivers. It returns the number of
// requests run.
func (l *Loopback) Drain(ctx context.Context, d host.Dispatcher) (int, error) {
	n := 0
	for {
		p, ok := l.next()
		if !ok {
			return n, nil
		}
		n++

		result, err := l.sandbox.Run(ctx, p.receiptID, p.req)
		if err != nil {
			return n, err
		}
		if p.req.Callback == nil {
			continue
		}

		call := host.Call{
			CurrentAccountID: l.callerID,
			PredecessorID:    l.callerID,
			SignerID:         l.callerID,
		}
		if _, err := d.Dispatch(ctx, call, invocation(p.receiptID, p.req.Callback, result)); err != nil {
			return n, fmt.Errorf("callback %s: %w", p.receiptID, err)
		}
	}
}

var _ host.Executor = (*Loopback)(nil)
