package service

import (
	"strings"
	"testing"
)

func TestHashPassword_Format(t *testing.T) {
	encoded, err := HashPassword("secret", fastArgon2)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=64,t=1,p=1$") {
		t.Errorf("unexpected verifier format: %s", encoded)
	}
	if strings.Count(encoded, "$") != 5 {
		t.Errorf("verifier should have 6 $-separated parts: %s", encoded)
	}
	if strings.Contains(encoded, "secret") {
		t.Error("verifier contains the plain password")
	}
}

func TestHashPassword_Salted(t *testing.T) {
	a, _ := HashPassword("same", fastArgon2)
	b, _ := HashPassword("same", fastArgon2)
	if a == b {
		t.Error("two verifiers of the same password are identical")
	}
}

func TestVerifyPassword(t *testing.T) {
	encoded, err := HashPassword("correct horse", fastArgon2)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	tests := []struct {
		name     string
		password string
		encoded  string
		want     bool
	}{
		{"match", "correct horse", encoded, true},
		{"wrong password", "battery staple", encoded, false},
		{"empty password", "", encoded, false},
		{"not argon2id", "correct horse", strings.Replace(encoded, "argon2id", "argon2i", 1), false},
		{"bad version", "correct horse", strings.Replace(encoded, "v=19", "v=16", 1), false},
		{"bad params", "correct horse", strings.Replace(encoded, "m=64", "m=x", 1), false},
		{"truncated", "correct horse", encoded[:strings.LastIndex(encoded, "$")], false},
		{"garbage", "correct horse", "plaintext", false},
		{"empty", "correct horse", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.password, tt.encoded); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyPassword_DefaultParams(t *testing.T) {
	encoded, err := HashPassword("pw", Argon2Params{})
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.Contains(encoded, "m=16384,t=2,p=2") {
		t.Errorf("zero params should fall back to defaults: %s", encoded)
	}
	if !VerifyPassword("pw", encoded) {
		t.Error("VerifyPassword failed with default params")
	}
}
