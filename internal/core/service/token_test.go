package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/branchdesk/opshub/internal/core/domain"
)

func TestSessionTokens_RejectsOtherAlgorithms(t *testing.T) {
	tokens := NewSessionTokens(testSecret, "opshub-test", time.Hour)

	claims := SessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "sid",
		Subject:   "u1",
		Issuer:    "opshub-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}

	for name, token := range map[string]string{"none": unsigned, "HS512": hs512} {
		if _, err := tokens.Parse(token); err == nil {
			t.Fatalf("%s token should be rejected", name)
		}
	}
}

func TestSessionTokens_RequiresExpiry(t *testing.T) {
	tokens := NewSessionTokens(testSecret, "opshub-test", time.Hour)
	claims := SessionClaims{RegisteredClaims: jwt.RegisteredClaims{ID: "sid", Subject: "u1", Issuer: "opshub-test"}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := tokens.Parse(signed); err == nil {
		t.Fatalf("token without exp should be rejected")
	}
}

func TestSessionTokens_IssueCarriesHints(t *testing.T) {
	tokens := NewSessionTokens(testSecret, "opshub-test", 0)
	if tokens.TTL() != 8*time.Hour {
		t.Fatalf("expected 8h default ttl, got %v", tokens.TTL())
	}
	user := &domain.User{ID: "u1"}
	role := &domain.Role{ID: "r1", Branch: domain.BranchWebDev}
	issued, err := tokens.Issue(user, role, domain.PermissionSet{domain.PermWebViewClients: {}})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := tokens.Parse(issued.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ID != issued.ID || claims.RoleID != "r1" || claims.Branch != "web_dev" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != "web_view_clients" {
		t.Fatalf("unexpected permission hints %v", claims.Permissions)
	}
}

func TestAntiForgeryToken(t *testing.T) {
	a, err := NewAntiForgeryToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, _ := NewAntiForgeryToken()
	if a == b {
		t.Fatalf("tokens should be random")
	}
	if len(a) != 43 || !WellFormedAntiForgeryToken(a) {
		t.Fatalf("unexpected token shape %q", a)
	}
	for _, bad := range []string{"", "short", strings.Repeat("a", 42), strings.Repeat("!", 43), a + "A"} {
		if WellFormedAntiForgeryToken(bad) {
			t.Fatalf("%q should be malformed", bad)
		}
	}
}
