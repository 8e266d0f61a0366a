package versequiz

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// DefaultPoints is the value of a question answered on the first try
const DefaultPoints = 5

// PointsForAttempt maps the zero-based attempt on which a question was answered
// correctly to the points it earns
func PointsForAttempt(points, attempt int, scoreEnabled bool) int {
	if !scoreEnabled {
		return 0
	}
	switch attempt {
	case 0:
		return points
	case 1:
		return points * 40 / 100
	case 2:
		return points * 20 / 100
	default:
		return 0
	}
}

// ReviewState is the part of a review that has to survive between requests
type ReviewState struct {
	Question *DrawnQuestion `json:"question,omitempty"`
	Attempt  int            `json:"attempt"`
}

// ReviewSession runs the draw, answer and reveal loop for one user
type ReviewSession struct {
	mu       sync.Mutex
	library  *Library
	scores   *ScoreKeeper
	selector *Selector
	points   int
	state    ReviewState
}

// NewReviewSession creates a session with nothing drawn yet
func NewReviewSession(library *Library, scores *ScoreKeeper, selector *Selector, points int) *ReviewSession {
	if selector == nil {
		selector = NewSelector()
	}
	if points <= 0 {
		points = DefaultPoints
	}
	return &ReviewSession{
		library:  library,
		scores:   scores,
		selector: selector,
		points:   points,
	}
}

// Restore resumes a question drawn earlier
func (s *ReviewSession) Restore(state ReviewState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// State returns the current question and attempt count
func (s *ReviewSession) State() ReviewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the unresolved question, or nil
func (s *ReviewSession) Current() *DrawnQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Question
}

// Draw picks a new question, discarding any unresolved one. It fails with an error
// wrapping ErrInsufficientContent when nothing is eligible.
func (s *ReviewSession) Draw(mode Mode) (*DrawnQuestion, error) {
	population := s.library.Population()
	if mode == ModeSummary {
		population = withSummaries(population)
	} else {
		population = withVerses(population)
	}
	if len(population) == 0 {
		return nil, fmt.Errorf("failed to draw %s question: %w", mode, &EmptyPopulationError{})
	}

	wc, err := s.selector.SelectChapter(population)
	if err != nil {
		return nil, fmt.Errorf("failed to draw %s question: %w", mode, err)
	}

	verse := 0
	if mode == ModeVerse {
		v, err := s.selector.SelectVerse(wc.Chapter)
		if err != nil {
			return nil, fmt.Errorf("failed to draw verse from %s %d: %w", wc.Book, wc.ChapterIndex, err)
		}
		verse = v.Number
	}
	q, err := QuestionFor(s.library.Corpus(), mode, wc.Book, wc.ChapterIndex, verse)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.state = ReviewState{Question: q}
	s.mu.Unlock()

	VerboseLog("Drew %s question %s %d (verse %d) from %d chapters", mode, q.Book, q.Chapter, q.Verse, len(population))
	return q, nil
}

// QuestionFor builds the question for a known location. verse is ignored in summary mode.
func QuestionFor(corpus *Corpus, mode Mode, book string, chapter, verse int) (*DrawnQuestion, error) {
	ch, ok := corpus.Chapter(book, chapter)
	if !ok {
		return nil, NewNotFound("chapter", fmt.Sprintf("%s %d", book, chapter))
	}

	q := &DrawnQuestion{
		Mode:    mode,
		Book:    book,
		Chapter: chapter,
		Context: ch.Verses,
	}
	switch mode {
	case ModeSummary:
		q.Text = ch.Summary
	case ModeVerse:
		for _, v := range ch.Verses {
			if v.Number == verse {
				q.Text = v.Text
				q.Verse = v.Number
				q.Duplicates = corpus.Duplicates(book, chapter, verse)
				return q, nil
			}
		}
		return nil, NewNotFound("verse", fmt.Sprintf("%s %d:%d", book, chapter, verse))
	default:
		return nil, NewValidation("mode", fmt.Sprintf("unknown review mode %q", mode))
	}
	return q, nil
}

func withSummaries(population []WeightedChapter) []WeightedChapter {
	out := make([]WeightedChapter, 0, len(population))
	for _, wc := range population {
		if strings.TrimSpace(wc.Chapter.Summary) != "" {
			out = append(out, wc)
		}
	}
	return out
}

func withVerses(population []WeightedChapter) []WeightedChapter {
	out := make([]WeightedChapter, 0, len(population))
	for _, wc := range population {
		if len(wc.Chapter.Verses) > 0 {
			out = append(out, wc)
		}
	}
	return out
}

// Matches reports whether (book, chapter) answers q. Verse questions also accept any
// location where the same verse text appears.
func (q *DrawnQuestion) Matches(book string, chapter int) bool {
	book = strings.TrimSpace(book)
	if book == q.Book && chapter == q.Chapter {
		return true
	}
	if q.Mode != ModeVerse {
		return false
	}
	for _, d := range q.Duplicates {
		if strings.TrimSpace(d.Book) == book && d.Chapter == chapter {
			return true
		}
	}
	return false
}

// Submit checks an answer against the current question. A wrong answer only advances
// the attempt count; a right one resolves the question and awards points. If the award
// cannot be saved the question stays open with nothing credited, so answering again
// awards it once.
func (s *ReviewSession) Submit(ctx context.Context, book string, chapter int) (SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.state.Question
	if q == nil {
		return SubmitResult{}, ErrNoActiveQuestion
	}

	result := SubmitResult{Attempt: s.state.Attempt}
	if !q.Matches(book, chapter) {
		s.state.Attempt++
		VerboseLog("Wrong answer %s %d for %s %d (attempt %d)", book, chapter, q.Book, q.Chapter, result.Attempt)
		return result, nil
	}

	result.Correct = true
	result.RevealAnswer = true
	result.Answer = q
	result.PointsAwarded = PointsForAttempt(s.points, s.state.Attempt, s.library.ScoreEnabled())
	if err := s.scores.Add(ctx, result.PointsAwarded); err != nil {
		return result, err
	}
	s.state = ReviewState{}
	return result, nil
}

// Forfeit reveals the current question without awarding points
func (s *ReviewSession) Forfeit() (*DrawnQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.state.Question
	if q == nil {
		return nil, ErrNoActiveQuestion
	}
	VerboseLog("Forfeited %s %d after %d attempts", q.Book, q.Chapter, s.state.Attempt)
	s.state = ReviewState{}
	return q, nil
}

// Reset starts a new session: the session score goes back to zero and any drawn
// question is dropped
func (s *ReviewSession) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.state = ReviewState{}
	s.mu.Unlock()
	return s.scores.ResetSession(ctx)
}

// ChapterNeighbors returns the chapters before and after chapter in book, or 0 where
// there is none
func ChapterNeighbors(corpus *Corpus, book string, chapter int) (prev, next int) {
	if _, ok := corpus.Chapter(book, chapter-1); ok {
		prev = chapter - 1
	}
	if _, ok := corpus.Chapter(book, chapter+1); ok {
		next = chapter + 1
	}
	return prev, next
}
