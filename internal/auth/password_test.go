package auth

import (
	"testing"
)

func TestHashPassword(t *testing.T) {
	password := "correct-horse-battery"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if hash == "" {
		t.Fatal("Expected hash to be generated")
	}

	if hash == password {
		t.Fatal("Hash should not equal plain password")
	}
}

func TestCheckPassword(t *testing.T) {
	password := "correct-horse-battery"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	if err := CheckPassword(hash, password); err != nil {
		t.Errorf("Expected password to match, got error: %v", err)
	}

	if err := CheckPassword(hash, "wrong-password"); err == nil {
		t.Error("Expected error for wrong password")
	}
}
