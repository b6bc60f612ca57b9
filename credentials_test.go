package userauth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := &PasswordHasher{Cost: bcrypt.MinCost}

	digest, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if strings.Contains(string(digest), "correct horse") {
		t.Error("digest must not contain the plaintext")
	}

	if !h.Verify("correct horse battery staple", digest) {
		t.Error("expected correct password to verify")
	}
	if h.Verify("wrong password", digest) {
		t.Error("expected wrong password to fail")
	}
}

func TestPasswordHasher_SaltedDigests(t *testing.T) {
	h := &PasswordHasher{Cost: bcrypt.MinCost}

	d1, err := h.Hash("same password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	d2, err := h.Hash("same password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if string(d1) == string(d2) {
		t.Error("two digests of the same password should differ (salt)")
	}
	if !h.Verify("same password", d1) || !h.Verify("same password", d2) {
		t.Error("both digests should verify")
	}
}

func TestPasswordHasher_BadDigests(t *testing.T) {
	h := &PasswordHasher{}

	if h.Verify("anything", nil) {
		t.Error("nil digest must not verify")
	}
	if h.Verify("anything", []byte{}) {
		t.Error("empty digest must not verify")
	}
	if h.Verify("anything", []byte("not a bcrypt digest")) {
		t.Error("malformed digest must not verify")
	}
}

func TestPasswordHasher_CostFallback(t *testing.T) {
	tests := []struct {
		name string
		h    *PasswordHasher
		want int
	}{
		{"nil hasher", nil, DefaultBcryptCost},
		{"zero value", &PasswordHasher{}, DefaultBcryptCost},
		{"too low", &PasswordHasher{Cost: 1}, DefaultBcryptCost},
		{"too high", &PasswordHasher{Cost: 99}, DefaultBcryptCost},
		{"in range", &PasswordHasher{Cost: bcrypt.MinCost}, bcrypt.MinCost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.h.cost(); got != tt.want {
				t.Errorf("cost() = %d, want %d", got, tt.want)
			}
		})
	}
}
