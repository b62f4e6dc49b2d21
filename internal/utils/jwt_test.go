package utils

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func TestAccessToken_RoundTrip(t *testing.T) {
	id := Identity{UserID: "u-1", Email: "ana@example.com", Role: "DOCTOR", FullName: "Ana"}
	at, err := NewAccessToken(testSecret, id, 60)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if time.Until(at.Exp) <= 59*time.Minute {
		t.Errorf("unexpected expiry %v", at.Exp)
	}

	claims, err := ParseAccessToken(testSecret, at.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != id.UserID || claims.Email != id.Email || claims.Role != id.Role || claims.FullName != id.FullName {
		t.Errorf("claims mismatch: %+v", claims)
	}
	if claims.Subject != id.UserID {
		t.Errorf("expected sub %q, got %q", id.UserID, claims.Subject)
	}
}

func TestParseAccessToken_Rejects(t *testing.T) {
	id := Identity{UserID: "u-1", Role: "PATIENT"}

	expired, _ := NewAccessToken(testSecret, id, -1)
	otherKey, _ := NewAccessToken("other-secret", id, 60)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u-1"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, raw := range map[string]string{
		"expired":   expired.Token,
		"other key": otherKey.Token,
		"alg none":  unsigned,
		"garbage":   "not-a-jwt",
	} {
		if _, err := ParseAccessToken(testSecret, raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestNewResetToken(t *testing.T) {
	rt, err := NewResetToken(time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rt.Raw) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(rt.Raw))
	}
	if rt.Hash != HashToken(rt.Raw) || rt.Hash == rt.Raw {
		t.Error("hash must be the SHA-256 of the raw token")
	}
	other, _ := NewResetToken(time.Hour)
	if other.Raw == rt.Raw {
		t.Error("tokens must be random")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret!" {
		t.Fatal("plaintext stored")
	}
	if !VerifyPassword(hash, "s3cret!") {
		t.Error("expected password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Error("wrong password verified")
	}
	if err := CheckPasswordPolicy("123"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
	if err := CheckPasswordPolicy(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("expected ErrPasswordTooLong, got %v", err)
	}
	if err := CheckPasswordPolicy(strings.Repeat("x", 72)); err != nil {
		t.Errorf("72 bytes must pass, got %v", err)
	}
}
