package versequiz

import (
	"context"
	"fmt"
	"sync"
)

// RemoteScoreStore holds the authoritative leaderboard copy of a user's overall score
type RemoteScoreStore interface {
	GetOverallScore(ctx context.Context, userID string) (int, error)
	SetOverallScore(ctx context.Context, userID string, score int) error
	IncrementOverallScore(ctx context.Context, userID string, delta int) (int, error)
}

// ScoreKeeper tracks a user's session and overall score. Local state is used for
// immediate feedback; the remote copy is brought up to date on a best-effort basis.
type ScoreKeeper struct {
	mu      sync.Mutex
	userID  string
	local   LocalScoreStore
	remote  RemoteScoreStore
	overall int
	session int
}

// LoadScoreKeeper reads a user's persisted scores. remote may be nil.
func LoadScoreKeeper(ctx context.Context, userID string, local LocalScoreStore, remote RemoteScoreStore) (*ScoreKeeper, error) {
	overall, session, err := local.GetScores(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores for %s: %w", userID, err)
	}
	return &ScoreKeeper{
		userID:  userID,
		local:   local,
		remote:  remote,
		overall: overall,
		session: session,
	}, nil
}

// Overall returns the lifetime score
func (s *ScoreKeeper) Overall() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overall
}

// Session returns the score accumulated since the last ResetSession
func (s *ScoreKeeper) Session() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Add credits points to both accumulators. On error neither accumulator changes.
func (s *ScoreKeeper) Add(ctx context.Context, points int) error {
	if points <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.local.SetScores(ctx, s.userID, s.overall+points, s.session+points); err != nil {
		return fmt.Errorf("failed to save scores: %w", err)
	}
	s.overall += points
	s.session += points

	if s.remote != nil {
		if _, err := s.remote.IncrementOverallScore(ctx, s.userID, points); err != nil {
			logf("Failed to push %d points for %s to remote store: %v", points, s.userID, err)
		}
	}
	VerboseLog("User %s +%d points (session %d, overall %d)", s.userID, points, s.session, s.overall)
	return nil
}

// ResetSession zeroes the session accumulator. The overall score is untouched.
func (s *ScoreKeeper) ResetSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.local.SetSessionScore(ctx, s.userID, 0); err != nil {
		return fmt.Errorf("failed to reset session score: %w", err)
	}
	s.session = 0
	return nil
}

// Sync reconciles the overall score with the remote store by taking the larger of the
// two. The local score never decreases. A remote failure leaves local state as it was
// and is returned for display.
func (s *ScoreKeeper) Sync(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remote == nil {
		return s.overall, nil
	}

	remote, err := s.remote.GetOverallScore(ctx, s.userID)
	if err != nil {
		logf("Failed to read remote score for %s: %v", s.userID, err)
		return s.overall, fmt.Errorf("failed to read remote score: %w", err)
	}

	switch {
	case remote > s.overall:
		if err := s.local.SetOverallScore(ctx, s.userID, remote); err != nil {
			return s.overall, fmt.Errorf("failed to save synced score: %w", err)
		}
		logf("Remote score for %s is ahead (%d > %d), adopting it", s.userID, remote, s.overall)
		s.overall = remote
	case remote < s.overall:
		if err := s.remote.SetOverallScore(ctx, s.userID, s.overall); err != nil {
			logf("Failed to push score %d for %s to remote store: %v", s.overall, s.userID, err)
			return s.overall, fmt.Errorf("failed to push score: %w", err)
		}
		VerboseLog("Pushed local score %d for %s (remote had %d)", s.overall, s.userID, remote)
	}
	return s.overall, nil
}
