package security

import (
	"errors"
	"testing"
	"time"

	"github.com/mokykla/pointsapi/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	user := &models.User{ID: 7, Username: "aiste", Role: models.RoleStudent}
	token, errGenerate := GenerateToken("secret", user, time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate token: %v", errGenerate)
	}

	claims, errParse := ParseToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.UserID != 7 || claims.Username != "aiste" || claims.Role != models.RoleStudent {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	user := &models.User{ID: 7, Username: "aiste", Role: models.RoleStudent}
	token, errGenerate := GenerateToken("secret", user, time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate token: %v", errGenerate)
	}
	if _, errParse := ParseToken("other", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	user := &models.User{ID: 7, Username: "aiste", Role: models.RoleStudent}
	token, errGenerate := GenerateToken("secret", user, -time.Minute)
	if errGenerate != nil {
		t.Fatalf("generate token: %v", errGenerate)
	}
	if _, errParse := ParseToken("secret", token); !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", errParse)
	}
}

func TestTokenRejectsGarbage(t *testing.T) {
	if _, errParse := ParseToken("secret", "not-a-token"); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestTOTPChallengeRoundTrip(t *testing.T) {
	token, errGenerate := GenerateTOTPChallenge("secret", 42)
	if errGenerate != nil {
		t.Fatalf("generate challenge: %v", errGenerate)
	}
	claims, errParse := ParseTOTPChallenge("secret", token)
	if errParse != nil {
		t.Fatalf("parse challenge: %v", errParse)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected user 42, got %d", claims.UserID)
	}
}

func TestTOTPChallengeRejectsSessionToken(t *testing.T) {
	user := &models.User{ID: 42, Username: "aiste", Role: models.RoleStudent}
	token, errGenerate := GenerateToken("secret", user, time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate token: %v", errGenerate)
	}
	if _, errParse := ParseTOTPChallenge("secret", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("session token must not pass as challenge, got %v", errParse)
	}
}

func TestPasswordHashAndCheck(t *testing.T) {
	hash, errHash := HashPassword("slaptazodis")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	if hash == "slaptazodis" {
		t.Fatal("hash must not equal plaintext")
	}
	if !CheckPassword(hash, "slaptazodis") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "neteisingas") {
		t.Fatal("wrong password accepted")
	}
}
