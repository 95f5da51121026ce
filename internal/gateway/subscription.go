package gateway

import (
	"context"
	"sync"
)

// Observer receives the reply of a subscribed send. OnFragment is called once per fragment, in arrival
// order, and OnComplete exactly once afterwards unless the subscription was cancelled first. Callbacks
// run on the subscription's goroutine and must not call Unsubscribe.
type Observer interface {
	OnFragment(fragment string)
	OnComplete(c Completion)
}

// Completion summarizes a finished reply.
type Completion struct {
	// Fragments is the number of fragments delivered, including the apology when Degraded.
	Fragments int
	// Degraded reports that the provider failed and the reply ended with Apology.
	Degraded bool
}

// ObserverFuncs adapts plain functions to an Observer. Nil fields are ignored.
type ObserverFuncs struct {
	Fragment func(fragment string)
	Complete func(c Completion)
}

// OnFragment implements Observer.
func (o ObserverFuncs) OnFragment(fragment string) {
	if o.Fragment != nil {
		o.Fragment(fragment)
	}
}

// OnComplete implements Observer.
func (o ObserverFuncs) OnComplete(c Completion) {
	if o.Complete != nil {
		o.Complete(c)
	}
}

// Subscription is a reply being delivered to an Observer.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	cancelled bool
}

// Subscribe sends text and delivers the reply to obs from a new goroutine. Like SendMessageStream, the
// returned error is only non-nil when no session could be created, in which case obs is never called.
func (g *Gateway) Subscribe(ctx context.Context, text string, obs Observer) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	seq, degraded, err := g.stream(ctx, text)
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer cancel()

		var c Completion
		for fragment := range seq {
			if !sub.deliver(func() { obs.OnFragment(fragment) }) {
				return
			}
			c.Fragments++
		}
		c.Degraded = degraded.Load()
		sub.deliver(func() { obs.OnComplete(c) })
	}()

	return sub, nil
}

// deliver runs fn unless the subscription was cancelled and reports whether it ran.
func (s *Subscription) deliver(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return false
	}
	fn()
	return true
}

// Unsubscribe stops delivery and cancels the underlying provider call. Once it returns, the observer is
// not called again. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()

	s.cancel()
}

// Done is closed when the delivering goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
