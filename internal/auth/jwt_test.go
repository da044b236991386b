package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erazemk/izposoja/internal/model"
)

func testUser() *model.User {
	return &model.User{ID: 1, Username: "admin", DisplayName: "Ana Admin", Role: model.RoleAdmin}
}

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokens("test-secret-key")

	token, issued, err := tokens.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != 1 || claims.Username != "admin" || claims.Role != model.RoleAdmin {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.Name() != "Ana Admin" {
		t.Errorf("expected display name, got %q", claims.Name())
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Errorf("expected JTI %q, got %q", issued.ID, claims.ID)
	}

	diff := time.Until(claims.ExpiresAt.Time) - TokenExpiry
	if diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("token expiry too far from expected: diff=%v", diff)
	}
}

func TestUniqueJTI(t *testing.T) {
	tokens := NewTokens("secret")
	_, a, _ := tokens.Issue(testUser())
	_, b, _ := tokens.Issue(testUser())
	if a.ID == b.ID {
		t.Error("expected each token to get its own JTI")
	}
}

func TestVerifyRejects(t *testing.T) {
	tokens := NewTokens("secret1")
	good, _, _ := tokens.Issue(testUser())

	expiredToken, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "expired",
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}).SignedString([]byte("secret1"))

	foreign, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret1"))

	other := testUser()
	other.ID, other.Role = 2, model.RoleVolunteer
	otherToken, _, _ := tokens.Issue(other)
	goodParts := strings.Split(good, ".")
	otherParts := strings.Split(otherToken, ".")
	spliced := goodParts[0] + "." + otherParts[1] + "." + goodParts[2]

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		tokens *Tokens
		token  string
	}{
		{"wrong secret", NewTokens("secret2"), good},
		{"garbage", tokens, "not-a-token"},
		{"expired", tokens, expiredToken},
		{"foreign issuer", tokens, foreign},
		{"alg none", tokens, none},
		{"spliced payload", tokens, spliced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.tokens.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("expected matching password to pass")
	}
	if CheckPassword(hash, "battery staple") {
		t.Error("expected wrong password to fail")
	}

	p, err := GeneratePassword(16)
	if err != nil {
		t.Fatalf("GeneratePassword: %v", err)
	}
	if len(p) != 16 || strings.ContainsAny(p, "0O1lI") {
		t.Errorf("unexpected generated password %q", p)
	}
}
