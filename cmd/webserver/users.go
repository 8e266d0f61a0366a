package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"versequiz"
)

// userState is everything the server keeps in memory for one user. mu serializes
// requests from the same user.
type userState struct {
	mu      sync.Mutex
	library *versequiz.Library
	scores  *versequiz.ScoreKeeper
	review  *versequiz.ReviewSession
	alerts  []string
	syncErr error

	// guarded by userCache.mu
	seen  time.Time
	inUse int
}

func (u *userState) addAlert(format string, args ...interface{}) {
	u.alerts = append(u.alerts, fmt.Sprintf(format, args...))
}

// takeAlerts returns and clears pending alerts
func (u *userState) takeAlerts() []string {
	alerts := u.alerts
	u.alerts = nil
	return alerts
}

// userCache holds loaded users and evicts those idle for longer than ttl. A user
// handed out by Get is not evicted until it is released.
type userCache struct {
	mu      sync.Mutex
	entries map[string]*userState
	ttl     time.Duration
	load    func(ctx context.Context, userID string) (*userState, error)
}

func newUserCache(ttl time.Duration, load func(ctx context.Context, userID string) (*userState, error)) *userCache {
	return &userCache{
		entries: make(map[string]*userState),
		ttl:     ttl,
		load:    load,
	}
}

// Get returns the cached user, loading it on a miss. Callers must Release it.
func (c *userCache) Get(ctx context.Context, userID string) (*userState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, u := range c.entries {
		if u.inUse == 0 && now.Sub(u.seen) >= c.ttl {
			delete(c.entries, id)
		}
	}

	if u, ok := c.entries[userID]; ok {
		u.seen = now
		u.inUse++
		return u, nil
	}

	u, err := c.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.seen = now
	u.inUse = 1
	c.entries[userID] = u
	return u, nil
}

// Release marks the end of a request for u; its idle time starts now
func (c *userCache) Release(u *userState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u.inUse--
	u.seen = time.Now()
}

// Len returns the number of cached users, expired or not
func (c *userCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (s *Server) loadUser(ctx context.Context, userID string) (*userState, error) {
	library := versequiz.OpenLibrary(ctx, userID, s.corpus, s.db, s.config.SeedBook)

	scores, err := versequiz.LoadScoreKeeper(ctx, userID, s.db, s.remote)
	if err != nil {
		return nil, err
	}

	u := &userState{
		library: library,
		scores:  scores,
		review:  versequiz.NewReviewSession(library, scores, versequiz.NewSelector(), s.config.Points),
	}

	if err := library.Degraded(); err != nil {
		u.addAlert("Your saved book settings could not be loaded. Defaults are in use until the database is reachable.")
	}
	if _, err := scores.Sync(ctx); err != nil {
		u.syncErr = err
	}
	if err := u.review.Reset(ctx); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	library.OnScoreEligibilityChange(func(ev versequiz.ScoreEligibilityEvent) {
		if ev.Enabled {
			u.addAlert("Scoring is on: %d chapters are enabled.", ev.EligibleChapters)
		} else {
			u.addAlert("Scoring is off until at least %d chapters are enabled (currently %d).", ev.Threshold, ev.EligibleChapters)
		}
	})
	return u, nil
}
