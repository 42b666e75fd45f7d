package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/branchdesk/opshub/internal/core/domain"
)

const (
	defaultSessionTTL = 8 * time.Hour
	antiForgeryBytes  = 32
)

// AntiForgeryTokenLen is the encoded length of an anti-forgery token.
var AntiForgeryTokenLen = base64.RawURLEncoding.EncodedLen(antiForgeryBytes)

// SessionClaims are the signed session token claims. Role, branch and
// permissions are informational; authorization always reloads them.
type SessionClaims struct {
	RoleID      string   `json:"role"`
	Branch      string   `json:"branch"`
	Permissions []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// IssuedSession is a freshly signed session token.
type IssuedSession struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// SessionTokens signs and verifies HS256 session tokens.
type SessionTokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionTokens(secret, issuer string, ttl time.Duration) *SessionTokens {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionTokens{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (t *SessionTokens) TTL() time.Duration { return t.ttl }

// Issue signs a session token for user holding role.
func (t *SessionTokens) Issue(user *domain.User, role *domain.Role, perms domain.PermissionSet) (*IssuedSession, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	id := uuid.NewString()

	claims := SessionClaims{
		RoleID:      role.ID,
		Branch:      string(role.Branch),
		Permissions: perms.Strings(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    t.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &IssuedSession{Token: signed, ID: id, ExpiresAt: exp}, nil
}

// Parse verifies signature, algorithm, issuer and expiry. Every failure is
// reported as ErrUnauthenticated with the cause attached for logging.
func (t *SessionTokens) Parse(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("missing session token: %w", domain.ErrUnauthenticated)
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "expired"
		}
		return nil, fmt.Errorf("session token %s: %w: %w", reason, domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("session token missing subject or id: %w", domain.ErrUnauthenticated)
	}
	return claims, nil
}

// NewAntiForgeryToken returns a random URL-safe token, independent of the
// session token.
func NewAntiForgeryToken() (string, error) {
	buf := make([]byte, antiForgeryBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anti-forgery token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// WellFormedAntiForgeryToken reports whether s has the shape produced by
// NewAntiForgeryToken.
func WellFormedAntiForgeryToken(s string) bool {
	if len(s) != AntiForgeryTokenLen {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}
