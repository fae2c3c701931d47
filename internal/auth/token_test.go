package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	subject := "user-123"

	tok, err := Issue(subject, secret, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	got, err := Verify(tok, secret)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if got != subject {
		t.Fatalf("subject mismatch: got %q want %q", got, subject)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")

	tok, err := Issue("u1", secret, -1*time.Second)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = Verify(tok, secret)
	if err == nil {
		t.Fatalf("expected error for expired token, got nil")
	}
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := Issue("u2", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = Verify(tok, []byte("wrong-secret"))
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	_, err := Verify("not.a.jwt", []byte("k"))
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_MissingSubject(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := Issue("", secret, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = Verify(tok, secret)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for empty subject, got %v", err)
	}
}
