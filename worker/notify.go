package worker

import "context"

// Notify is a single-slot wake-up signal. Doorbell writes call Signal; a
// worker blocked with an empty ring calls Wait. A Signal delivered with no
// waiter is remembered for the next Wait, so a doorbell write that races
// ahead of the worker noticing its ring is empty is never lost; a single
// spurious wake (the worker re-checks its ring and finds nothing new) is
// harmless.
type Notify struct {
	ch chan struct{}
}

// NewNotify returns a ready-to-use Notify.
func NewNotify() *Notify {
	return &Notify{ch: make(chan struct{}, 1)}
}

// Signal wakes a blocked Wait, or primes the next one.
func (n *Notify) Signal() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until Signal is called or ctx is done, returning false in the
// latter case.
func (n *Notify) Wait(ctx context.Context) bool {
	select {
	case <-n.ch:
		return true
	case <-ctx.Done():
		return false
	}
}
