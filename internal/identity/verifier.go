// Package identity verifies bearer credentials for the realtime layer. It
// is the concrete CredentialVerifier behind the tracking router: a signed
// access token in, a (subject, role) identity out.
package identity

import (
	"context"
	"strings"

	"github.com/angelmondragon/trackline-backend/internal/tracking"
	"github.com/angelmondragon/trackline-backend/pkg/auth"
	"github.com/angelmondragon/trackline-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/trackline-backend/pkg/errors"
	"github.com/google/uuid"
)

// Verifier validates access tokens against the configured signing secret.
type Verifier struct {
	cfg config.JWTConfig
}

// NewVerifier wires the token verifier.
func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "jwt secret required")
	}
	return &Verifier{cfg: cfg}, nil
}

// VerifyCredential parses and validates the token, returning the identity
// it asserts. The context is accepted for interface symmetry; verification
// is purely local.
func (v *Verifier) VerifyCredential(_ context.Context, token string) (tracking.Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return tracking.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "credential required")
	}

	claims, err := auth.ParseAccessToken(v.cfg, token)
	if err != nil {
		return tracking.Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	if claims.UserID == uuid.Nil {
		return tracking.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token missing subject")
	}
	if !claims.Role.IsValid() {
		return tracking.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token missing role")
	}

	return tracking.Identity{SubjectID: claims.UserID, Role: claims.Role}, nil
}
