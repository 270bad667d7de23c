package users_test

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
	"github.com/jrsteele09/study-assistant/users"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"short1A", true},
		{"alllowercase1", true},
		{"ALLUPPERCASE1", true},
		{"NoNumbersHere", true},
		{"Revision2024", false},
	}
	for _, tc := range tests {
		t.Run(tc.password, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tc.password)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := users.HashPassword("Revision2024")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("Revision2024", hash))
	require.False(t, users.CheckPasswordHash("revision2024", hash))
	require.False(t, users.CheckPasswordHash("Revision2024", ""))
}

func TestNormaliseEmail(t *testing.T) {
	email, err := users.NormaliseEmail("  Ada@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", email)

	_, err = users.NormaliseEmail("not-an-email")
	require.Error(t, err)

	_, err = users.NormaliseEmail("Ada <ada@example.com>")
	require.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Ada", (&users.User{Name: "Ada", Email: "ada@example.com"}).DisplayName())
	require.Equal(t, "ada", (&users.User{Email: "ada@example.com"}).DisplayName())
}

func TestInMemoryRepo(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepo()

	user := &users.User{Email: "ada@example.com", Name: "Ada"}
	require.NoError(t, repo.Create(ctx, user))
	require.NotEmpty(t, user.ID)
	require.ErrorIs(t, repo.Create(ctx, &users.User{Email: "ada@example.com"}), apperrors.ErrUserExists)
	require.Error(t, repo.Create(ctx, &users.User{}))

	got, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.False(t, got.Verified)

	got.Name = "mutated"
	again, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada", again.Name, "stored user must not be mutated through returned copies")

	require.NoError(t, repo.SetVerified(ctx, "ada@example.com", true))
	now := time.Now()
	require.NoError(t, repo.SetLastLogin(ctx, "ada@example.com", now))
	got, err = repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.True(t, got.Verified)
	require.True(t, got.LastLogin.Equal(now))

	_, err = repo.GetByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	require.ErrorIs(t, repo.SetVerified(ctx, "missing@example.com", true), apperrors.ErrUserNotFound)
}
