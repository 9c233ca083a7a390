package engine

import (
	"strings"
	"testing"
)

func TestGenerateCredential_DefaultLength(t *testing.T) {
	cred, err := GenerateCredential("site_db_user", 0)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	password, err := cred.Password()
	if err != nil {
		t.Fatalf("Expected password, got: %v", err)
	}
	if len(password) != DefaultPasswordLength {
		t.Errorf("Expected %d characters, got %d", DefaultPasswordLength, len(password))
	}
}

func TestGenerateCredential_RestrictedAlphabet(t *testing.T) {
	cred, err := GenerateCredential("site_db_user", 64)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	password, _ := cred.Password()
	for _, r := range password {
		if !strings.ContainsRune(passwordAlphabet, r) {
			t.Errorf("Password contains %q outside the generator alphabet", r)
		}
	}
}

func TestGenerateCredential_RejectsShortLength(t *testing.T) {
	if _, err := GenerateCredential("site_db_user", MinPasswordLength-1); err == nil {
		t.Error("Expected an error below the minimum length")
	}
	if _, err := GenerateCredential("site_db_user", MinPasswordLength); err != nil {
		t.Errorf("Expected the minimum length to be accepted, got: %v", err)
	}
}

func TestGenerateCredential_RejectsEmptyUsername(t *testing.T) {
	if _, err := GenerateCredential("", 0); err == nil {
		t.Error("Expected an error for an empty username")
	}
}

func TestGenerateCredential_Unique(t *testing.T) {
	a, err := GenerateCredential("user", 0)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	b, err := GenerateCredential("user", 0)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	pa, _ := a.Password()
	pb, _ := b.Password()
	if pa == pb {
		t.Error("Expected two generations to differ")
	}
}

func TestCredential_PasswordStableAcrossReads(t *testing.T) {
	cred, err := GenerateCredential("user", 0)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	first, err := cred.Password()
	if err != nil {
		t.Fatalf("Expected first read to succeed, got: %v", err)
	}
	second, err := cred.Password()
	if err != nil {
		t.Fatalf("Expected second read to succeed, got: %v", err)
	}
	if first != second {
		t.Error("Expected the secret to be stable across reads")
	}
}

func TestCredential_PlaceholderDoesNotLeak(t *testing.T) {
	cred, err := GenerateCredential("user", 0)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	password, _ := cred.Password()
	if strings.Contains(cred.Placeholder(), password) {
		t.Error("Placeholder leaks the generated password")
	}
}
