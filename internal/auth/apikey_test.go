package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestKeyChecker(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("tb_secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	k, err := NewKeyChecker(string(hash))
	if err != nil {
		t.Fatal(err)
	}
	if !k.Enabled() {
		t.Fatal("expected checker to be enabled")
	}

	tests := []struct {
		header string
		want   bool
	}{
		{"Bearer tb_secret", true},
		{"Bearer  tb_secret ", true},
		{"Bearer tb_wrong", false},
		{"Bearer ", false},
		{"tb_secret", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := k.CheckHeader(tt.header); got != tt.want {
			t.Errorf("CheckHeader(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestNilKeyChecker(t *testing.T) {
	k, err := NewKeyChecker("  ")
	if err != nil {
		t.Fatal(err)
	}
	if k.Enabled() {
		t.Error("blank hash should disable the checker")
	}
	if !k.Check("") || !k.CheckHeader("") {
		t.Error("disabled checker should accept everything")
	}
}

func TestNewKeyCheckerInvalidHash(t *testing.T) {
	_, err := NewKeyChecker("not-a-hash")
	if !errors.Is(err, ErrInvalidHash) {
		t.Errorf("err = %v, want ErrInvalidHash", err)
	}
}

func TestGenerateKey(t *testing.T) {
	key, hash, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(key, KeyPrefix) || len(key) != len(KeyPrefix)+48 {
		t.Errorf("key = %q", key)
	}
	k, err := NewKeyChecker(hash)
	if err != nil {
		t.Fatal(err)
	}
	if !k.Check(key) {
		t.Error("generated key does not match its hash")
	}
}
