package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewConnID(t *testing.T) {
	id, err := NewConnID()
	if err != nil {
		t.Fatalf("NewConnID() error = %v", err)
	}

	if !strings.HasPrefix(id.String(), ConnIDPrefix) {
		t.Errorf("id %q missing prefix", id)
	}
	if len(id) != 31 {
		t.Errorf("len(id) = %d, want 31", len(id))
	}
	if !IsValidConnID(id.String()) {
		t.Errorf("IsValidConnID(%q) = false", id)
	}
}

func TestNewConnID_Unique(t *testing.T) {
	seen := make(map[ConnID]bool)
	for i := 0; i < 1000; i++ {
		id, err := NewConnID()
		if err != nil {
			t.Fatalf("NewConnID() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestIsValidConnID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"conn-01arz3ndektsv4rrffq69g5fav", true},
		{"CONN-01ARZ3NDEKTSV4RRFFQ69G5FAV", true},
		{"tmss-01arz3ndektsv4rrffq69g5fav", false},
		{"conn-short", false},
		{"conn-01arz3ndektsv4rrffq69g5fa!", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := IsValidConnID(tt.id); got != tt.want {
				t.Errorf("IsValidConnID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestAccount_SnapshotDropsVerifier(t *testing.T) {
	a := &Account{Username: "alice", Verifier: "$argon2id$...", LoggedIn: true, CreatedAt: time.Now()}

	s := a.Snapshot()
	if s.Verifier != "" {
		t.Error("Snapshot() kept the verifier")
	}
	if s.Username != "alice" || !s.LoggedIn {
		t.Errorf("Snapshot() = %+v", s)
	}
}
