package service

import (
	"errors"
	"testing"

	"github.com/yndnr/condkv/internal/core/domain"
)

func TestRateLimiterRegistry(t *testing.T) {
	registry := NewRateLimiterRegistry(5)

	t.Run("get or create", func(t *testing.T) {
		limiter1 := registry.GetOrCreate("conn-a")
		limiter2 := registry.GetOrCreate("conn-a")
		if limiter1 != limiter2 {
			t.Error("Same connection should return same limiter")
		}

		limiter3 := registry.GetOrCreate("conn-b")
		if limiter1 == limiter3 {
			t.Error("Different connections should return different limiters")
		}
	})

	t.Run("allow until burst exhausted", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			if err := registry.Allow("conn-burst"); err != nil {
				t.Fatalf("request %d rejected: %v", i, err)
			}
		}
		err := registry.Allow("conn-burst")
		if !errors.Is(err, domain.ErrRateLimited) {
			t.Fatalf("request beyond burst error = %v, want ErrRateLimited", err)
		}

		// Other connections have their own bucket.
		if err := registry.Allow("conn-other"); err != nil {
			t.Fatalf("independent connection rejected: %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		registry.GetOrCreate("conn-gone")
		before := registry.Len()
		registry.Delete("conn-gone")
		if registry.Len() != before-1 {
			t.Errorf("Len = %d after Delete, want %d", registry.Len(), before-1)
		}
	})
}

func TestRateLimiterRegistry_Disabled(t *testing.T) {
	registry := NewRateLimiterRegistry(0)
	if registry.Enabled() {
		t.Fatal("zero rate should disable limiting")
	}
	for i := 0; i < 1000; i++ {
		if err := registry.Allow("conn-a"); err != nil {
			t.Fatalf("disabled registry rejected request: %v", err)
		}
	}
	if registry.Len() != 0 {
		t.Errorf("disabled registry tracked %d limiters", registry.Len())
	}

	var nilRegistry *RateLimiterRegistry
	if err := nilRegistry.Allow("conn-a"); err != nil {
		t.Errorf("nil registry Allow: %v", err)
	}
	nilRegistry.Delete("conn-a")
}
