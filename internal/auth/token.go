package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/litigo-hq/litigo/internal/rbac"
)

// Private claim names. Tenant and role pins are only set on delegated
// credentials; ordinary logins resolve scope from memberships per request.
const (
	claimVersion       = "ver"
	claimTenant        = "tid"
	claimRole          = "rol"
	claimImpersonation = "imp"
)

// Claims is the decoded content of a bearer credential.
type Claims struct {
	IdentityID int64
	TenantID   int64
	Role       rbac.Role
	Version    int
	JTI        string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Delegation *rbac.Delegation
}

// TokenCodec signs and verifies bearer credentials. The signing mechanism is
// consumed as a black box; nothing outside this file inspects token bytes.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec constructs a codec with the given signing secret and default
// validity window.
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), ttl: ttl}
}

// TTL returns the default credential validity window.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs the claims into a compact credential. Zero ExpiresAt gets the
// codec's default window; a zero JTI gets a fresh one.
func (c *TokenCodec) Issue(claims Claims) (string, error) {
	now := time.Now().UTC()
	exp := claims.ExpiresAt
	if exp.IsZero() {
		exp = now.Add(c.ttl)
	}
	jti := claims.JTI
	if jti == "" {
		jti = uuid.NewString()
	}
	builder := jwt.NewBuilder().
		Subject(strconv.FormatInt(claims.IdentityID, 10)).
		JwtID(jti).
		IssuedAt(now).
		Expiration(exp).
		Claim(claimVersion, claims.Version)
	if claims.TenantID != 0 {
		builder = builder.Claim(claimTenant, strconv.FormatInt(claims.TenantID, 10))
	}
	if claims.Role != "" {
		builder = builder.Claim(claimRole, string(claims.Role))
	}
	if claims.Delegation != nil {
		builder = builder.Claim(claimImpersonation, map[string]any{
			"actor":  strconv.FormatInt(claims.Delegation.ActorID, 10),
			"reason": claims.Delegation.Reason,
			"ticket": claims.Delegation.Ticket,
		})
	}
	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("auth: build token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, c.secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return string(signed), nil
}

// Verify checks signature and expiry, then decodes the claims.
func (c *TokenCodec) Verify(raw string) (Claims, error) {
	token, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, c.secret), jwt.WithValidate(true))
	if err != nil {
		return Claims{}, fmt.Errorf("auth: verify token: %w", err)
	}

	identityID, err := strconv.ParseInt(token.Subject(), 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("auth: token subject: %w", err)
	}
	claims := Claims{
		IdentityID: identityID,
		JTI:        token.JwtID(),
		IssuedAt:   token.IssuedAt(),
		ExpiresAt:  token.Expiration(),
	}
	if v, ok := token.Get(claimVersion); ok {
		claims.Version = asInt(v)
	}
	if v, ok := token.Get(claimTenant); ok {
		if s, ok := v.(string); ok {
			claims.TenantID, _ = strconv.ParseInt(s, 10, 64)
		}
	}
	if v, ok := token.Get(claimRole); ok {
		if s, ok := v.(string); ok {
			claims.Role = rbac.Role(s)
		}
	}
	if v, ok := token.Get(claimImpersonation); ok {
		if m, ok := v.(map[string]any); ok {
			delegation := &rbac.Delegation{StartedAt: token.IssuedAt()}
			if actor, ok := m["actor"].(string); ok {
				delegation.ActorID, _ = strconv.ParseInt(actor, 10, 64)
			}
			delegation.Reason, _ = m["reason"].(string)
			delegation.Ticket, _ = m["ticket"].(string)
			claims.Delegation = delegation
		}
	}
	return claims, nil
}

// asInt normalises the numeric representations a JSON claim can decode to.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		parsed, _ := strconv.Atoi(n)
		return parsed
	}
	return 0
}
