package domain

import (
	"strings"
	"unicode/utf8"
)

// Record constraints.
const (
	// MaxKeyLength is the longest accepted key, in bytes.
	MaxKeyLength = 256

	// MaxValueSize is the largest accepted value, in bytes (1 MiB).
	MaxValueSize = 1 << 20
)

// ValidateKey checks a key: non-blank, valid UTF-8, at most MaxKeyLength bytes.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey.WithDetails("key is blank")
	}
	if len(key) > MaxKeyLength {
		return ErrInvalidKey.WithDetails("key exceeds 256 bytes")
	}
	if !utf8.ValidString(key) {
		return ErrInvalidKey.WithDetails("key is not valid UTF-8")
	}
	return nil
}

// ValidateValue checks a value: 1 to MaxValueSize bytes.
func ValidateValue(value []byte) error {
	if len(value) == 0 {
		return ErrInvalidValue.WithDetails("value is empty")
	}
	if len(value) > MaxValueSize {
		return ErrInvalidValue.WithDetails("value exceeds 1 MiB")
	}
	return nil
}

// Credentials is a parsed "username:password" payload.
type Credentials struct {
	Username string
	Password string
}

// ParseCredentials parses a "username:password" payload. Exactly one colon
// is allowed and neither part may be blank.
func ParseCredentials(payload string) (Credentials, error) {
	user, pass, ok := strings.Cut(payload, ":")
	if !ok || strings.Contains(pass, ":") {
		return Credentials{}, ErrMalformedCredentials.WithDetails("expected username:password")
	}
	if strings.TrimSpace(user) == "" || pass == "" {
		return Credentials{}, ErrMalformedCredentials.WithDetails("username and password are required")
	}
	if len(user) > MaxKeyLength {
		return Credentials{}, ErrMalformedCredentials.WithDetails("username exceeds 256 bytes")
	}
	return Credentials{Username: user, Password: pass}, nil
}

// FormatCredentials is the inverse of ParseCredentials.
func FormatCredentials(username, password string) string {
	return username + ":" + password
}

// ParsePairs parses a MULTIPUT body of the form "k1=v1,k2=v2". Whitespace
// around keys and values is trimmed. Every key and value is validated and
// duplicate keys are rejected, so the result can be applied as one batch.
func ParsePairs(body string) (map[string][]byte, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrMalformedPairs.WithDetails("no pairs")
	}

	parts := strings.Split(body, ",")
	pairs := make(map[string][]byte, len(parts))
	for _, part := range parts {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, ErrMalformedPairs.WithDetails("missing '=' in " + quote(part))
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if err := ValidateKey(k); err != nil {
			return nil, ErrMalformedPairs.WithDetails("bad key in " + quote(part)).WithCause(err)
		}
		if err := ValidateValue([]byte(v)); err != nil {
			return nil, ErrMalformedPairs.WithDetails("bad value for " + quote(k)).WithCause(err)
		}
		if _, dup := pairs[k]; dup {
			return nil, ErrMalformedPairs.WithDetails("duplicate key " + quote(k))
		}
		pairs[k] = []byte(v)
	}
	return pairs, nil
}

// ParseKeys parses a MULTIGET body of the form "k1,k2". Blank entries are
// skipped and duplicates collapse, keeping first-seen order.
func ParseKeys(body string) ([]string, error) {
	var keys []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(body, ",") {
		k := strings.TrimSpace(part)
		if k == "" {
			continue
		}
		if err := ValidateKey(k); err != nil {
			return nil, ErrMalformedKeyList.WithDetails("bad key " + quote(k)).WithCause(err)
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, ErrMalformedKeyList.WithDetails("no keys")
	}
	return keys, nil
}

// FormatKeys is the inverse of ParseKeys.
func FormatKeys(keys []string) string {
	return strings.Join(keys, ",")
}

func quote(s string) string {
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return "\"" + s + "\""
}
