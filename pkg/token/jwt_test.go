package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 1, "indi-radio")

	tok, err := m.GenerateToken(42, "alice")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := m.VerifyToken(tok)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Errorf("claims = %+v", claims)
	}
	if ttl := RemainingTTL(claims); ttl <= 0 || ttl > time.Hour {
		t.Errorf("RemainingTTL = %v", ttl)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	tok, err := NewJWTManager("other", 1, "x").GenerateToken(1, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewJWTManager("secret", 1, "x").VerifyToken(tok); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", 1, "x")
	claims := CustomClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.VerifyToken(tok); err == nil {
		t.Fatal("expected expiry error")
	}
}
