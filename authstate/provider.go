// Package authstate holds the auth state of one browser context.
//
// A Provider is owned by whoever creates it (a request handler, a streaming connection).
// Run starts it and blocks until the owner cancels the context or calls Close; nothing is
// shared between providers.
package authstate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/study-assistant/events"
	"github.com/jrsteele09/study-assistant/sessions"
	"github.com/rs/zerolog/log"
)

// Status is the three-valued auth state.
type Status int

const (
	// Initializing means no session check or auth event has resolved yet.
	// Consumers must not treat it as signed out.
	Initializing Status = iota
	Authenticated
	Unauthenticated
)

func (s Status) String() string {
	switch s {
	case Initializing:
		return "INITIALIZING"
	case Authenticated:
		return "AUTHENTICATED"
	case Unauthenticated:
		return "UNAUTHENTICATED"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is a point in time view of the provider. Seq increases on every change.
type Snapshot struct {
	Status Status
	User   *sessions.UserRef
	Seq    uint64
}

// Resolved reports whether the first session check or event has been applied.
func (s Snapshot) Resolved() bool {
	return s.Status != Initializing
}

// SessionSource is the auth backend as seen by a provider.
type SessionSource interface {
	GetSession(ctx context.Context, accessToken string) (*sessions.Session, error)
	OnAuthStateChange(clientID string) *events.Subscription
}

var (
	ErrClosed         = errors.New("auth state provider closed")
	ErrAlreadyRunning = errors.New("auth state provider already running")
)

// Provider tracks the auth state of one browser context.
type Provider struct {
	source      SessionSource
	clientID    string
	accessToken string

	mu      sync.RWMutex
	snap    Snapshot
	changed chan struct{}

	running   atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a provider for the browser context clientID holding accessToken (which may
// be empty). The provider stays Initializing until Run resolves it.
func New(source SessionSource, clientID, accessToken string) *Provider {
	return &Provider{
		source:      source,
		clientID:    clientID,
		accessToken: accessToken,
		changed:     make(chan struct{}),
		closed:      make(chan struct{}),
	}
}

type checkResult struct {
	session *sessions.Session
	err     error
}

// Run subscribes to auth changes, checks the current session and applies both until ctx
// is cancelled or Close is called. The first of the session check and an auth event
// resolves Initializing; a session check that completes after an event is discarded.
// Run is the only writer of the provider state and always unsubscribes before returning.
func (p *Provider) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	sub := p.source.OnAuthStateChange(p.clientID)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	checks := make(chan checkResult, 1)
	go func() {
		session, err := p.source.GetSession(ctx, p.accessToken)
		checks <- checkResult{session: session, err: err}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.closed:
			return nil
		case res := <-checks:
			checks = nil
			if p.Snapshot().Resolved() {
				continue
			}
			if res.err != nil {
				log.Debug().Err(res.err).Str("client_id", p.clientID).Msg("Session check failed, treating as signed out")
				p.set(Unauthenticated, nil)
				continue
			}
			p.applySession(res.session)
		case e, ok := <-sub.C():
			if !ok {
				return nil
			}
			p.apply(e)
		}
	}
}

func (p *Provider) apply(e events.Event) {
	if e.Type == events.SignedOut {
		p.set(Unauthenticated, nil)
		return
	}
	p.applySession(e.Session)
}

func (p *Provider) applySession(session *sessions.Session) {
	if session == nil {
		p.set(Unauthenticated, nil)
		return
	}
	user := session.User
	p.set(Authenticated, &user)
}

func (p *Provider) set(status Status, user *sessions.UserRef) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.snap.Status == status && sameUser(p.snap.User, user) {
		return
	}
	p.snap = Snapshot{Status: status, User: user, Seq: p.snap.Seq + 1}
	close(p.changed)
	p.changed = make(chan struct{})
}

func sameUser(a, b *sessions.UserRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Snapshot returns the current state.
func (p *Provider) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := p.snap
	if snap.User != nil {
		user := *snap.User
		snap.User = &user
	}
	return snap
}

// Changes returns a channel that is closed on the next state change.
func (p *Provider) Changes() <-chan struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.changed
}

// Wait blocks until cond holds for the current snapshot, ctx is done or the provider is
// closed. It returns the last observed snapshot.
func (p *Provider) Wait(ctx context.Context, cond func(Snapshot) bool) (Snapshot, error) {
	for {
		changed := p.Changes()
		snap := p.Snapshot()
		if cond(snap) {
			return snap, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-p.closed:
			return snap, ErrClosed
		}
	}
}

// WaitResolved blocks until the provider leaves Initializing.
func (p *Provider) WaitResolved(ctx context.Context) (Snapshot, error) {
	return p.Wait(ctx, Snapshot.Resolved)
}

// Close tears the provider down, ending Run and any Wait.
func (p *Provider) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
}
