package adminops

import (
	"testing"
	"time"
)

func TestGenerateAndValidateAdminToken(t *testing.T) {
	token, expiresAt, err := GenerateAdminToken("s3cret", time.Minute)
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}
	if expiresAt.Before(time.Now()) {
		t.Fatal("expiresAt should be in the future")
	}

	claims, err := validateAdminToken(token, "s3cret")
	if err != nil {
		t.Fatalf("validateAdminToken: %v", err)
	}
	if claims.Scope != "admin" {
		t.Fatalf("Scope = %q, want %q", claims.Scope, "admin")
	}
}

func TestValidateAdminTokenWrongSecretFails(t *testing.T) {
	token, _, _ := GenerateAdminToken("s3cret", time.Minute)
	if _, err := validateAdminToken(token, "wrong"); err == nil {
		t.Fatal("expected validation to fail with wrong secret")
	}
}

func TestValidateAdminTokenExpiredFails(t *testing.T) {
	token, _, _ := GenerateAdminToken("s3cret", -time.Minute)
	if _, err := validateAdminToken(token, "s3cret"); err == nil {
		t.Fatal("expected validation to fail for an expired token")
	}
}
