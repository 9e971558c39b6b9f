package auth

import "testing"

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "" || hash == "hunter2" {
		t.Fatal("hash should be non-empty and not the plaintext")
	}
	if !VerifyPassword("hunter2", hash) {
		t.Fatal("correct password should verify")
	}
	if VerifyPassword("wrong", hash) {
		t.Fatal("wrong password should not verify")
	}
}

func TestHashPasswordTooShort(t *testing.T) {
	if _, err := HashPassword("abc"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	// Exactly the minimum is accepted.
	if _, err := HashPassword("abcd"); err != nil {
		t.Fatalf("4-char password should be accepted: %v", err)
	}
}

func TestVerifyEmptyHash(t *testing.T) {
	if VerifyPassword("anything", "") {
		t.Fatal("nothing matches an unset password")
	}
}

func TestHashesAreSalted(t *testing.T) {
	h1, _ := HashPassword("same-password")
	h2, _ := HashPassword("same-password")
	if h1 == h2 {
		t.Fatal("two hashes of the same password should differ")
	}
}
