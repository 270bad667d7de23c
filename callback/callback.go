// Package callback sends a browser context to the dashboard once it becomes signed in.
package callback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/study-assistant/events"
)

// ErrClosed is returned by Wait when the handler was closed before a sign in.
var ErrClosed = errors.New("callback handler closed")

// Navigator moves the browser context to another route.
type Navigator interface {
	Navigate(path string)
}

// EventSource provides auth state change subscriptions.
type EventSource interface {
	OnAuthStateChange(clientID string) *events.Subscription
}

// Handler listens for the SIGNED_IN transition of one browser context.
type Handler struct {
	sub    *events.Subscription
	nav    Navigator
	target string

	mu        sync.Mutex // guards closed and the navigation itself
	closed    bool
	navigated atomic.Bool
}

// Listen subscribes immediately so no sign in that happens after it returns is missed.
// The caller must call Wait or Close.
func Listen(source EventSource, clientID string, nav Navigator, target string) *Handler {
	return &Handler{
		sub:    source.OnAuthStateChange(clientID),
		nav:    nav,
		target: target,
	}
}

// Wait blocks until the browser context signs in, then navigates to the target exactly
// once. It returns ctx.Err() if ctx ends first and ErrClosed if Close was called.
// The subscription is always released before Wait returns.
func (h *Handler) Wait(ctx context.Context) error {
	defer h.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-h.sub.C():
			if !ok {
				return ErrClosed
			}
			if e.Type != events.SignedIn {
				continue
			}
			return h.navigate()
		}
	}
}

// navigate runs under the same lock as Close, so a handler closed before this point never
// navigates and one closed after it has already finished navigating.
func (h *Handler) navigate() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.closed = true
	h.navigated.Store(true)
	h.nav.Navigate(h.target)
	h.sub.Unsubscribe()
	return nil
}

// Navigated reports whether the handler has navigated.
func (h *Handler) Navigated() bool {
	return h.navigated.Load()
}

// Close releases the subscription. No navigation starts after Close returns.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.sub.Unsubscribe()
}
