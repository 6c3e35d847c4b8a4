package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJWTService_GenerateToken(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	userID := uuid.New()
	token, err := service.GenerateToken(userID, "test@example.com", "acme")

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if token == "" {
		t.Fatal("Expected token to be generated")
	}
}

func TestJWTService_ValidateToken(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	userID := uuid.New()
	token, err := service.GenerateToken(userID, "test@example.com", "acme")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := service.ValidateToken(token)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("Expected userID %s, got %s", userID.String(), claims.UserID.String())
	}
	if claims.CommunityID != "acme" {
		t.Errorf("Expected community acme, got %s", claims.CommunityID)
	}
}

func TestJWTService_ValidateToken_DefaultCommunity(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	token, err := service.GenerateToken(uuid.New(), "test@example.com", "")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := service.ValidateToken(token)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if claims.CommunityID != "default" {
		t.Errorf("Expected default community, got %s", claims.CommunityID)
	}
}

func TestJWTService_ValidateToken_Invalid(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	if _, err := service.ValidateToken("invalid.token.here"); err == nil {
		t.Fatal("Expected error for invalid token")
	}
}

func TestJWTService_ValidateToken_WrongSecret(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)
	other := NewJWTService("another-secret", 24)

	token, err := service.GenerateToken(uuid.New(), "test@example.com", "acme")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("Expected error for token signed with a different secret")
	}
}

func TestJWTService_ValidateToken_Expired(t *testing.T) {
	service := NewJWTService("test-secret-key", -1)

	token, err := service.GenerateToken(uuid.New(), "test@example.com", "acme")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	time.Sleep(time.Millisecond * 100)

	if _, err := service.ValidateToken(token); err == nil {
		t.Fatal("Expected error for expired token")
	}
}
