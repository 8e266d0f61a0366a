package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUserCache(t *testing.T) {
	loads := map[string]int{}
	cache := newUserCache(time.Minute, func(ctx context.Context, userID string) (*userState, error) {
		loads[userID]++
		if userID == "broken" {
			return nil, errors.New("store down")
		}
		return &userState{}, nil
	})
	ctx := context.Background()

	a1, err := cache.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}
	a2, _ := cache.Get(ctx, "a")
	if a1 != a2 || loads["a"] != 1 {
		t.Errorf("second Get(a) reloaded the user (%d loads)", loads["a"])
	}
	cache.Release(a1)
	cache.Release(a2)

	for i := 0; i < 2; i++ {
		if _, err := cache.Get(ctx, "broken"); err == nil {
			t.Fatal("Get(broken) succeeded")
		}
	}
	if loads["broken"] != 2 {
		t.Errorf("failed load was cached (%d loads)", loads["broken"])
	}

	b, _ := cache.Get(ctx, "b")
	cache.Release(b)
	if cache.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cache.Len())
	}

	// age a out; the next Get sweeps it
	cache.mu.Lock()
	cache.entries["a"].seen = time.Now().Add(-2 * time.Minute)
	cache.mu.Unlock()

	b, _ = cache.Get(ctx, "b")
	cache.Release(b)
	if cache.Len() != 1 {
		t.Errorf("Len() = %d after expiry, want 1", cache.Len())
	}
	a3, _ := cache.Get(ctx, "a")
	if a3 == a1 || loads["a"] != 2 {
		t.Errorf("expired user was not reloaded (%d loads)", loads["a"])
	}
}

func TestUserCacheKeepsUsersInUse(t *testing.T) {
	loads := 0
	cache := newUserCache(time.Minute, func(ctx context.Context, userID string) (*userState, error) {
		loads++
		return &userState{}, nil
	})
	ctx := context.Background()

	held, _ := cache.Get(ctx, "a")
	cache.mu.Lock()
	held.seen = time.Now().Add(-2 * time.Minute)
	cache.mu.Unlock()

	// a request still holding "a" outlives the ttl
	again, _ := cache.Get(ctx, "a")
	if again != held || loads != 1 {
		t.Fatalf("user in use was evicted and reloaded (%d loads)", loads)
	}
	cache.Release(again)
	cache.Release(held)

	// released just now: not idle yet
	b, _ := cache.Get(ctx, "b")
	cache.Release(b)
	if cache.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cache.Len())
	}

	cache.mu.Lock()
	held.seen = time.Now().Add(-2 * time.Minute)
	cache.mu.Unlock()
	b, _ = cache.Get(ctx, "b")
	cache.Release(b)
	if cache.Len() != 1 {
		t.Errorf("Len() = %d after the released user went idle, want 1", cache.Len())
	}
}

func TestUserStateAlerts(t *testing.T) {
	u := &userState{}
	u.addAlert("%s enabled.", "Ruth")
	u.addAlert("plain")

	got := u.takeAlerts()
	if len(got) != 2 || got[0] != "Ruth enabled." {
		t.Errorf("takeAlerts() = %v", got)
	}
	if again := u.takeAlerts(); len(again) != 0 {
		t.Errorf("alerts not cleared: %v", again)
	}
}
