package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/study-assistant/auth"
	"github.com/jrsteele09/study-assistant/events"
	"github.com/jrsteele09/study-assistant/internal/config"
	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
	"github.com/jrsteele09/study-assistant/sessions"
	"github.com/jrsteele09/study-assistant/token"
	"github.com/jrsteele09/study-assistant/users"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "tab-1"
	testEmail    = "ada@example.com"
	testPassword = "Revision2024"
	testName     = "Ada"
)

// testFixture holds all test dependencies
type testFixture struct {
	now      time.Time
	userRepo *users.InMemoryRepo
	sessions *sessions.InMemoryRepo
	broker   *events.Broker
	service  *auth.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		now:      time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
		userRepo: users.NewInMemoryRepo(),
		sessions: sessions.NewInMemoryRepo(),
		broker:   events.NewBroker(),
	}
	nowFunc := func() time.Time { return f.now }

	tokens := token.NewManager(token.NewHMACSigner([]byte("test-secret")), token.WithNowFunc(nowFunc))
	repos := auth.Repos{
		Users:    f.userRepo,
		Sessions: f.sessions,
		Codes:    auth.NewInMemoryCodeRepo(),
	}

	service, err := auth.NewService(repos, tokens, f.broker, config.Session{}, auth.WithNowTime(nowFunc))
	require.NoError(t, err)
	f.service = service
	return f
}

// createVerifiedUser signs a user up and confirms their email
func (f *testFixture) createVerifiedUser(t *testing.T) {
	t.Helper()

	_, code, err := f.service.SignUp(context.Background(), testEmail, testPassword, testName)
	require.NoError(t, err)
	_, err = f.service.ExchangeCode(context.Background(), "", code)
	require.NoError(t, err)
}

func nextEvent(t *testing.T, sub *events.Subscription) events.Event {
	t.Helper()
	select {
	case e := <-sub.C():
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for auth event")
	}
	return events.Event{}
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	tokens := token.NewManager(token.NewHMACSigner([]byte("s")))
	_, err := auth.NewService(auth.Repos{}, tokens, events.NewBroker(), config.Session{})
	require.Error(t, err)

	repos := auth.Repos{Users: users.NewInMemoryRepo(), Sessions: sessions.NewInMemoryRepo(), Codes: auth.NewInMemoryCodeRepo()}
	_, err = auth.NewService(repos, nil, events.NewBroker(), config.Session{})
	require.Error(t, err)
	_, err = auth.NewService(repos, tokens, nil, config.Session{})
	require.Error(t, err)
}

func TestSignUpValidation(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, _, err := f.service.SignUp(ctx, "nope", testPassword, testName)
	require.ErrorIs(t, err, apperrors.ErrInvalidEmail)

	_, _, err = f.service.SignUp(ctx, testEmail, "weak", testName)
	require.ErrorIs(t, err, apperrors.ErrWeakPassword)

	user, code, err := f.service.SignUp(ctx, " Ada@Example.com ", testPassword, testName)
	require.NoError(t, err)
	require.Equal(t, testEmail, user.Email)
	require.NotEmpty(t, code)
	require.False(t, user.Verified)

	_, _, err = f.service.SignUp(ctx, testEmail, testPassword, testName)
	require.ErrorIs(t, err, apperrors.ErrUserExists)
}

func TestConcurrentSignUpHasOneOwner(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	passwords := []string{"Attacker123", "Victim12345"}

	var wg sync.WaitGroup
	codes := make([]string, len(passwords))
	errs := make([]error, len(passwords))
	for i, password := range passwords {
		wg.Add(1)
		go func(i int, password string) {
			defer wg.Done()
			_, codes[i], errs[i] = f.service.SignUp(ctx, testEmail, password, testName)
		}(i, password)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "only one sign up may claim the address")
			winner = i
			continue
		}
		require.ErrorIs(t, err, apperrors.ErrUserExists)
		require.Empty(t, codes[i])
	}
	require.NotEqual(t, -1, winner)

	user, err := f.userRepo.GetByEmail(ctx, testEmail)
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash(passwords[winner], user.PasswordHash), "stored password belongs to the winning sign up")

	_, err = f.service.ExchangeCode(ctx, testClientID, codes[winner])
	require.NoError(t, err)
	_, err = f.service.SignInWithPassword(ctx, testClientID, testEmail, passwords[winner])
	require.NoError(t, err)
}

func TestSignInRequiresVerifiedUser(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, _, err := f.service.SignUp(ctx, testEmail, testPassword, testName)
	require.NoError(t, err)

	_, err = f.service.SignInWithPassword(ctx, testClientID, testEmail, testPassword)
	require.ErrorIs(t, err, apperrors.ErrUserNotVerified)
}

func TestSignInWithPassword(t *testing.T) {
	f := setupTestFixture(t)
	f.createVerifiedUser(t)
	ctx := context.Background()

	_, err := f.service.SignInWithPassword(ctx, testClientID, testEmail, "Wrong2024")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = f.service.SignInWithPassword(ctx, testClientID, "nobody@example.com", testPassword)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	sub := f.service.OnAuthStateChange(testClientID)
	defer sub.Unsubscribe()

	session, err := f.service.SignInWithPassword(ctx, testClientID, testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, testEmail, session.User.Email)
	require.Equal(t, testName, session.User.Name)
	require.NotEmpty(t, session.AccessToken)
	require.NotEmpty(t, session.RefreshToken)
	require.Equal(t, f.now.Add(time.Hour), session.AccessExpiresAt)

	e := nextEvent(t, sub)
	require.Equal(t, events.SignedIn, e.Type)
	require.Equal(t, session.ID, e.Session.ID)

	user, err := f.userRepo.GetByEmail(ctx, testEmail)
	require.NoError(t, err)
	require.Equal(t, f.now, user.LastLogin)
}

func TestExchangeCodeIsSingleUse(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, code, err := f.service.SignUp(ctx, testEmail, testPassword, testName)
	require.NoError(t, err)

	sub := f.service.OnAuthStateChange(testClientID)
	defer sub.Unsubscribe()

	session, err := f.service.ExchangeCode(ctx, testClientID, code)
	require.NoError(t, err)
	require.Equal(t, testEmail, session.User.Email)
	require.Equal(t, events.SignedIn, nextEvent(t, sub).Type)

	user, err := f.userRepo.GetByEmail(ctx, testEmail)
	require.NoError(t, err)
	require.True(t, user.Verified)

	_, err = f.service.ExchangeCode(ctx, testClientID, code)
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)

	_, err = f.service.ExchangeCode(ctx, testClientID, "")
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)
}

func TestExchangeCodeExpires(t *testing.T) {
	f := setupTestFixture(t)
	f.createVerifiedUser(t)
	ctx := context.Background()

	code, err := f.service.IssueSignInCode(ctx, testEmail)
	require.NoError(t, err)

	f.now = f.now.Add(16 * time.Minute)
	_, err = f.service.ExchangeCode(ctx, testClientID, code)
	require.ErrorIs(t, err, apperrors.ErrCodeExpired)
}

func TestIssueSignInCodeUnknownUser(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.IssueSignInCode(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestGetSession(t *testing.T) {
	f := setupTestFixture(t)
	f.createVerifiedUser(t)
	ctx := context.Background()

	session, err := f.service.SignInWithPassword(ctx, testClientID, testEmail, testPassword)
	require.NoError(t, err)

	got, err := f.service.GetSession(ctx, session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, session.ID, got.ID)

	_, err = f.service.GetSession(ctx, "not-a-token")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	f.now = f.now.Add(2 * time.Hour)
	_, err = f.service.GetSession(ctx, session.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestRefreshSessionRotatesTokens(t *testing.T) {
	f := setupTestFixture(t)
	f.createVerifiedUser(t)
	ctx := context.Background()

	session, err := f.service.SignInWithPassword(ctx, testClientID, testEmail, testPassword)
	require.NoError(t, err)

	sub := f.service.OnAuthStateChange(testClientID)
	defer sub.Unsubscribe()

	f.now = f.now.Add(2 * time.Hour)
	refreshed, err := f.service.RefreshSession(ctx, testClientID, session.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, session.ID, refreshed.ID)
	require.NotEqual(t, session.RefreshToken, refreshed.RefreshToken)
	require.NotEqual(t, session.AccessToken, refreshed.AccessToken)
	require.Equal(t, events.TokenRefreshed, nextEvent(t, sub).Type)

	_, err = f.service.GetSession(ctx, refreshed.AccessToken)
	require.NoError(t, err)

	_, err = f.service.RefreshSession(ctx, testClientID, session.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken, "rotated refresh token can't be reused")

	f.now = f.now.Add(8 * 24 * time.Hour)
	_, err = f.service.RefreshSession(ctx, testClientID, refreshed.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	f := setupTestFixture(t)
	f.createVerifiedUser(t)
	ctx := context.Background()

	session, err := f.service.SignInWithPassword(ctx, testClientID, testEmail, testPassword)
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.RefreshSession(ctx, testClientID, session.RefreshToken)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	}
	require.Equal(t, 1, wins, "a refresh token rotates exactly once")
}

func TestSignOut(t *testing.T) {
	f := setupTestFixture(t)
	f.createVerifiedUser(t)
	ctx := context.Background()

	session, err := f.service.SignInWithPassword(ctx, testClientID, testEmail, testPassword)
	require.NoError(t, err)

	sub := f.service.OnAuthStateChange(testClientID)
	defer sub.Unsubscribe()

	require.NoError(t, f.service.SignOut(ctx, testClientID, session.AccessToken))
	e := nextEvent(t, sub)
	require.Equal(t, events.SignedOut, e.Type)
	require.Nil(t, e.Session)

	_, err = f.service.GetSession(ctx, session.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	require.NoError(t, f.service.SignOut(ctx, testClientID, session.AccessToken), "sign out is idempotent")
	require.NoError(t, f.service.SignOut(ctx, testClientID, ""))
	require.Equal(t, events.SignedOut, nextEvent(t, sub).Type)
}

func TestSignInWithIdentity(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	session, err := f.service.SignInWithIdentity(ctx, testClientID, "Grace@Example.com", "Grace")
	require.NoError(t, err)
	require.Equal(t, "grace@example.com", session.User.Email)

	user, err := f.userRepo.GetByEmail(ctx, "grace@example.com")
	require.NoError(t, err)
	require.True(t, user.Verified)
	require.Empty(t, user.PasswordHash)

	_, err = f.service.SignInWithPassword(ctx, testClientID, "grace@example.com", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestPurgeExpired(t *testing.T) {
	f := setupTestFixture(t)
	f.createVerifiedUser(t)
	ctx := context.Background()

	_, err := f.service.SignInWithPassword(ctx, testClientID, testEmail, testPassword)
	require.NoError(t, err)
	_, err = f.service.IssueSignInCode(ctx, testEmail)
	require.NoError(t, err)

	removed, err := f.service.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)

	f.now = f.now.Add(8 * 24 * time.Hour)
	removed, err = f.service.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, removed, "two sessions and one code")
}
