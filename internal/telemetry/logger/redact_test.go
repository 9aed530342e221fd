package logger

import (
	"log/slog"
	"testing"
)

func TestRedactSensitive(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"password", slog.String("password", "hunter2"), redactedValue},
		{"mixed case", slog.String("DB_Password", "x"), redactedValue},
		{"credentials", slog.String("credentials", "alice:pw"), redactedValue},
		{"verifier by name", slog.String("verifier", "abc"), redactedValue},
		{"verifier by value", slog.String("hash", "$argon2id$v=19$m=16384,t=2,p=2$c2FsdA$aGFzaA"), "$argon2id$***"},
		{"empty sensitive", slog.String("password", ""), ""},
		{"store key", slog.String("key", "session/42"), "session/42"},
		{"user", slog.String("user", "alice"), "alice"},
		{"action", slog.String("action", "PUT"), "PUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactSensitive(tt.attr)
			if got.Value.String() != tt.want {
				t.Errorf("redactSensitive(%s) = %q, want %q", tt.attr.Key, got.Value.String(), tt.want)
			}
		})
	}
}

func TestRedactSensitive_NonString(t *testing.T) {
	a := redactSensitive(slog.Int("password", 5))
	if a.Value.Int64() != 5 {
		t.Errorf("non-string value changed: %v", a.Value)
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	g := slog.Group("login", slog.String("user", "bob"), slog.String("password", "pw"))
	got := redactSensitive(g).Value.Group()
	if got[0].Value.String() != "bob" {
		t.Errorf("user = %q", got[0].Value.String())
	}
	if got[1].Value.String() != redactedValue {
		t.Errorf("password = %q", got[1].Value.String())
	}
}

func TestRedactString(t *testing.T) {
	if got := RedactString("$argon2id$v=19$m=1,t=1,p=1$a$b"); got != "$argon2id$***" {
		t.Errorf("RedactString(verifier) = %q", got)
	}
	if got := RedactString("plain"); got != "plain" {
		t.Errorf("RedactString(plain) = %q", got)
	}
}

func TestRedactCredentials(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"alice:secret", "alice:***"},
		{"alice:", "alice:***"},
		{"a:b:c", "a:***"},
		{"nocolon", redactedValue},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RedactCredentials(tt.in); got != tt.want {
			t.Errorf("RedactCredentials(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsSensitiveKey(t *testing.T) {
	for _, k := range []string{"password", "Secret", "auth_header", "token", "verifier"} {
		if !IsSensitiveKey(k) {
			t.Errorf("IsSensitiveKey(%q) = false", k)
		}
	}
	for _, k := range []string{"key", "user", "conn_id", "value_size"} {
		if IsSensitiveKey(k) {
			t.Errorf("IsSensitiveKey(%q) = true", k)
		}
	}
}

func TestIsSensitiveValue(t *testing.T) {
	if !IsSensitiveValue("$argon2id$v=19$...") {
		t.Error("verifier not detected")
	}
	if IsSensitiveValue("argon2id") {
		t.Error("plain text detected as verifier")
	}
}
