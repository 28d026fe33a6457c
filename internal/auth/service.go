package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/litigo-hq/litigo/internal/shared"
)

// Credential is an issued bearer token plus its expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Service wraps authentication business rules.
type Service struct {
	repo  Repository
	codec *TokenCodec
}

// NewService constructs a new Service.
func NewService(repo Repository, codec *TokenCodec) *Service {
	return &Service{repo: repo, codec: codec}
}

// Authenticate validates email/password credentials. Every failure maps to
// the same sentinel so callers cannot probe which part failed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	identity, err := s.repo.FindIdentityByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !identity.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return identity, nil
}

// IssueCredential mints a fresh bearer token for the identity. The token
// carries no tenant pin: scope is resolved from memberships on each request.
func (s *Service) IssueCredential(identity *Identity) (Credential, error) {
	expiresAt := time.Now().UTC().Add(s.codec.TTL())
	token, err := s.codec.Issue(Claims{
		IdentityID: identity.ID,
		Version:    CurrentTokenVersion,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return Credential{}, err
	}
	return Credential{Token: token, ExpiresAt: expiresAt}, nil
}
