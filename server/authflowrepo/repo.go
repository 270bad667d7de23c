// Package authflowrepo stores the in-flight state of external (OIDC) sign-ins between the
// redirect to the identity provider and its callback.
package authflowrepo

import (
	"context"
	"time"
)

type AuthFlowState struct {
	CodeVerifier string
	Nonce        string
	ClientID     string // browser context that started the flow
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(ctx context.Context, state string, authState *AuthFlowState) error
	// Take returns the flow for state and removes it, so a state can only be used once
	Take(ctx context.Context, state string) (*AuthFlowState, error)
	// DeleteCreatedBefore removes abandoned flows
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
