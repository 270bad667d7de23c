package guard_test

import (
	"sync"
	"testing"

	"github.com/jrsteele09/study-assistant/authstate"
	"github.com/jrsteele09/study-assistant/guard"
	"github.com/jrsteele09/study-assistant/sessions"
	"github.com/stretchr/testify/require"
)

type fakeState struct {
	mu   sync.Mutex
	snap authstate.Snapshot
}

func (f *fakeState) Snapshot() authstate.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeState) set(status authstate.Status, user *sessions.UserRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = authstate.Snapshot{Status: status, User: user, Seq: f.snap.Seq + 1}
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.paths)
}

func TestGuardInitializingRendersPlaceholder(t *testing.T) {
	state := &fakeState{}
	nav := &recordingNavigator{}
	g := guard.New(state, nav, "/login")

	var placeholder, children int
	for i := 0; i < 3; i++ {
		out := g.Render(func() { children++ }, func() { placeholder++ })
		require.Equal(t, guard.Placeholder, out)
	}
	require.Equal(t, 3, placeholder)
	require.Zero(t, children)
	require.Zero(t, nav.count(), "no navigation while initializing")
}

func TestGuardAuthenticatedRendersChildren(t *testing.T) {
	state := &fakeState{}
	state.set(authstate.Authenticated, &sessions.UserRef{ID: "user-1"})
	nav := &recordingNavigator{}
	g := guard.New(state, nav, "/login")

	rendered := false
	require.Equal(t, guard.Children, g.Render(func() { rendered = true }, nil))
	require.True(t, rendered)
	require.Zero(t, nav.count())
}

func TestGuardNavigatesOncePerTransition(t *testing.T) {
	state := &fakeState{}
	nav := &recordingNavigator{}
	g := guard.New(state, nav, "/login")

	state.set(authstate.Unauthenticated, nil)
	for i := 0; i < 5; i++ {
		require.Equal(t, guard.Redirected, g.Render(nil, nil))
	}
	require.Equal(t, []string{"/login"}, nav.paths)

	state.set(authstate.Authenticated, &sessions.UserRef{ID: "user-1"})
	require.Equal(t, guard.Children, g.Render(nil, nil))

	state.set(authstate.Unauthenticated, nil)
	g.Render(nil, nil)
	g.Render(nil, nil)
	require.Equal(t, 2, nav.count(), "a new transition into unauthenticated navigates again")
}

func TestGuardConcurrentRendersNavigateOnce(t *testing.T) {
	state := &fakeState{}
	state.set(authstate.Unauthenticated, nil)
	nav := &recordingNavigator{}
	g := guard.New(state, nav, "/login")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Render(nil, nil)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, nav.count())
}

func TestGuardWithProvider(t *testing.T) {
	p := authstate.New(nil, "tab-1", "")
	nav := &recordingNavigator{}
	g := guard.New(p, nav, "/login")

	require.Equal(t, guard.Placeholder, g.Render(nil, nil))
	require.Zero(t, nav.count())
}
