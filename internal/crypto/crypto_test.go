package crypto

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	a, err := New([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ct, err := a.EncryptToString("hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.Contains(ct, "hunter2") {
		t.Fatal("ciphertext leaks plaintext")
	}

	pt, err := a.DecryptString(ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if pt != "hunter2" {
		t.Fatalf("got %q", pt)
	}
}

func TestDecryptTampered(t *testing.T) {
	a, err := New([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ct, err := a.EncryptToString("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := a.DecryptString(ct[:len(ct)-2] + "zz"); err == nil {
		t.Fatal("tampered ciphertext decrypted")
	}
	if _, err := a.DecryptString("AA"); err == nil {
		t.Fatal("short ciphertext decrypted")
	}
}

func TestBadKey(t *testing.T) {
	if _, err := New([]byte("short")); err == nil {
		t.Fatal("expected error for bad key size")
	}
}
