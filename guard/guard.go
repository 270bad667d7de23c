// Package guard gates protected content on the auth state of a browser context.
package guard

import (
	"sync"

	"github.com/jrsteele09/study-assistant/authstate"
)

// Navigator moves the browser context to another route.
type Navigator interface {
	Navigate(path string)
}

// StateReader exposes the current auth state. *authstate.Provider implements it.
type StateReader interface {
	Snapshot() authstate.Snapshot
}

// Outcome is what a Render call produced.
type Outcome int

const (
	// Placeholder was rendered because the state is still initializing.
	Placeholder Outcome = iota
	// Children were rendered for an authenticated user.
	Children
	// Redirected means the state is unauthenticated and the sign-in navigation was
	// (or had already been) issued.
	Redirected
)

func (o Outcome) String() string {
	switch o {
	case Placeholder:
		return "placeholder"
	case Children:
		return "children"
	case Redirected:
		return "redirected"
	default:
		return "unknown"
	}
}

// Guard wraps protected content. It navigates to the sign-in route at most once per
// transition into Unauthenticated, however often it is rendered.
type Guard struct {
	state  StateReader
	nav    Navigator
	signIn string

	mu           sync.Mutex
	navigated    bool
	navigatedSeq uint64
}

func New(state StateReader, nav Navigator, signIn string) *Guard {
	return &Guard{state: state, nav: nav, signIn: signIn}
}

// Render renders children when authenticated and placeholder otherwise. Either func may
// be nil.
func (g *Guard) Render(children, placeholder func()) Outcome {
	snap := g.state.Snapshot()

	switch snap.Status {
	case authstate.Authenticated:
		call(children)
		return Children
	case authstate.Unauthenticated:
		g.navigateOnce(snap.Seq)
		call(placeholder)
		return Redirected
	default:
		call(placeholder)
		return Placeholder
	}
}

func (g *Guard) navigateOnce(seq uint64) {
	g.mu.Lock()
	if g.navigated && g.navigatedSeq == seq {
		g.mu.Unlock()
		return
	}
	g.navigated = true
	g.navigatedSeq = seq
	g.mu.Unlock()

	g.nav.Navigate(g.signIn)
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
