package security

import (
	"testing"
	"time"
)

func TestUserTokenRoundTrip(t *testing.T) {
	token, errGen := GenerateToken("secret", 42, "alice", "Alice", "alice@example.com", time.Hour)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	claims, errParse := ParseToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Email != "alice@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, errWrong := ParseToken("other-secret", token); errWrong == nil {
		t.Fatal("expected failure with wrong secret")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, errGen := GenerateToken("secret", 1, "bob", "Bob", "", -time.Minute)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if _, errParse := ParseToken("secret", token); errParse != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", errParse)
	}
}

func TestAdminTokenIsNotAUserToken(t *testing.T) {
	token, errGen := GenerateAdminToken("secret", 7, "root", time.Hour)
	if errGen != nil {
		t.Fatalf("generate admin token: %v", errGen)
	}
	claims, errParse := ParseAdminToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse admin token: %v", errParse)
	}
	if claims.AdminID != 7 || claims.Username != "root" {
		t.Fatalf("unexpected admin claims: %+v", claims)
	}

	userClaims, errCross := ParseToken("secret", token)
	if errCross == nil && userClaims.UserID != 0 {
		t.Fatalf("admin token yielded user identity: %+v", userClaims)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, errHash := HashPassword("hunter22")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if !CheckPassword(hash, "hunter22") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("wrong password accepted")
	}
}
