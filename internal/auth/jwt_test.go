package auth_test

import (
	"testing"

	"github.com/kiwari-pos/orderledger/internal/auth"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"

	token, err := auth.GenerateToken(secret, "bob", "CUSTOMER")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.Username != "bob" {
		t.Errorf("username: got %v, want bob", claims.Username)
	}
	if claims.Role != "CUSTOMER" {
		t.Errorf("role: got %v, want CUSTOMER", claims.Role)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", "bob", "STAFF")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateToken("secret-b", token)
	if err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}

func TestRefreshToken(t *testing.T) {
	token, err := auth.GenerateRefreshToken("secret", "carol")
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	username, err := auth.ValidateRefreshToken("secret", token)
	if err != nil {
		t.Fatalf("validate refresh token: %v", err)
	}
	if username != "carol" {
		t.Errorf("username: got %s, want carol", username)
	}

	// A refresh token carries no username claim, so it cannot pass as an access token.
	if _, err := auth.ValidateToken("secret", token); err == nil {
		t.Error("refresh token accepted as access token")
	}
}
