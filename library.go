package versequiz

import (
	"context"
	"fmt"
	"sync"
)

// MinChaptersEnabledForScore is how many eligible chapters a user needs before
// correct answers earn points
const MinChaptersEnabledForScore = 20

// ScoreEligibilityEvent is emitted whenever the scoring gate flips
type ScoreEligibilityEvent struct {
	Enabled          bool `json:"enabled"`
	EligibleChapters int  `json:"eligible_chapters"`
	Threshold        int  `json:"threshold"`
}

// RarityFilter selects chapters by their current tier for a bulk edit
type RarityFilter struct {
	All      bool
	Rarities []Rarity
}

// AllRarities matches every chapter regardless of tier
func AllRarities() RarityFilter {
	return RarityFilter{All: true}
}

// OnlyRarities matches chapters whose current tier is one of rs
func OnlyRarities(rs ...Rarity) RarityFilter {
	return RarityFilter{Rarities: rs}
}

func (f RarityFilter) matches(r Rarity) bool {
	if f.All {
		return true
	}
	for _, want := range f.Rarities {
		if want == r {
			return true
		}
	}
	return false
}

// ChapterView is a read-only chapter classification
type ChapterView struct {
	Number int    `json:"number"`
	Rarity Rarity `json:"rarity"`
}

// BookView is a read-only book classification with its chapters
type BookView struct {
	Name             string        `json:"name"`
	Enabled          bool          `json:"enabled"`
	EligibleChapters int           `json:"eligible_chapters"`
	Chapters         []ChapterView `json:"chapters"`
}

// Library owns one user's classification state. Every mutation goes through it so the
// auto-disable rule and the scoring gate are re-evaluated after each change.
type Library struct {
	mu           sync.Mutex
	userID       string
	corpus       *Corpus
	store        ClassificationStore
	cls          *Classifications
	scoreEnabled bool
	degraded     error
	threshold    int
	listeners    []func(ScoreEligibilityEvent)
}

// OpenLibrary loads a user's classifications, seeding them on first use. A store
// failure does not fail the call: the library falls back to defaults and reports the
// failure through Degraded.
func OpenLibrary(ctx context.Context, userID string, corpus *Corpus, store ClassificationStore, seedBook string) *Library {
	l := &Library{
		userID:    userID,
		corpus:    corpus,
		store:     store,
		threshold: MinChaptersEnabledForScore,
	}

	cls, err := loadClassifications(ctx, userID, corpus, store, seedBook)
	if err != nil {
		logf("Failed to load classifications for %s, using defaults: %v", userID, err)
		l.degraded = err
		cls = DefaultClassifications(corpus, seedBook)
	}
	l.cls = cls
	l.scoreEnabled = l.eligibleChapterCountLocked() >= l.threshold

	VerboseLog("Opened library for %s: %d eligible chapters, score enabled=%v", userID, l.eligibleChapterCountLocked(), l.scoreEnabled)
	return l
}

func loadClassifications(ctx context.Context, userID string, corpus *Corpus, store ClassificationStore, seedBook string) (*Classifications, error) {
	seeded, err := store.HasUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !seeded {
		if err := store.Seed(ctx, userID, corpus, seedBook); err != nil {
			return nil, err
		}
	}

	raw, err := store.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	// keep only rows that reference the corpus
	cls := NewClassifications()
	for book, enabled := range raw.Books {
		if _, ok := corpus.Book(book); ok {
			cls.Books[book] = enabled
		}
	}
	for book, chapters := range raw.Chapters {
		for n, r := range chapters {
			if _, ok := corpus.Chapter(book, n); ok && r.Valid() {
				cls.SetRarity(book, n, r)
			}
		}
	}
	return cls, nil
}

// UserID returns the owner of this library
func (l *Library) UserID() string {
	return l.userID
}

// Corpus returns the reference text the library classifies
func (l *Library) Corpus() *Corpus {
	return l.corpus
}

// Degraded returns the load error when the library is running on fallback defaults
func (l *Library) Degraded() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded
}

// SetThreshold overrides the eligible chapter count needed for scoring
func (l *Library) SetThreshold(n int) {
	l.mu.Lock()
	l.threshold = n
	ev := l.recomputeLocked()
	l.mu.Unlock()
	l.notify(ev)
}

// OnScoreEligibilityChange registers a callback for scoring gate transitions
func (l *Library) OnScoreEligibilityChange(fn func(ScoreEligibilityEvent)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// ScoreEnabled reports whether correct answers currently earn points
func (l *Library) ScoreEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scoreEnabled
}

// EligibleChapterCount counts non-disabled chapters across enabled books
func (l *Library) EligibleChapterCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eligibleChapterCountLocked()
}

func (l *Library) eligibleChapterCountLocked() int {
	count := 0
	for _, b := range l.corpus.Books() {
		if l.cls.Books[b.Name] {
			count += l.eligibleInBook(l.cls, &b)
		}
	}
	return count
}

func (l *Library) eligibleInBook(cls *Classifications, b *Book) int {
	count := 0
	for _, ch := range b.Chapters {
		if cls.RarityOf(b.Name, ch.Number) != RarityDisabled {
			count++
		}
	}
	return count
}

// Population builds the weighted draw population from the current state
func (l *Library) Population() []WeightedChapter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return BuildWeightedPopulation(l.corpus, l.cls)
}

// Classifications returns a copy of the current state
func (l *Library) Classifications() *Classifications {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cls.Clone()
}

// Books lists every corpus book with its classification
func (l *Library) Books() []BookView {
	l.mu.Lock()
	defer l.mu.Unlock()

	views := make([]BookView, 0, len(l.corpus.Books()))
	for _, b := range l.corpus.Books() {
		view := BookView{
			Name:     b.Name,
			Enabled:  l.cls.Books[b.Name],
			Chapters: make([]ChapterView, 0, len(b.Chapters)),
		}
		for _, ch := range b.Chapters {
			r := l.cls.RarityOf(b.Name, ch.Number)
			view.Chapters = append(view.Chapters, ChapterView{Number: ch.Number, Rarity: r})
			if r != RarityDisabled {
				view.EligibleChapters++
			}
		}
		views = append(views, view)
	}
	return views
}

// Book returns the classification view of one book
func (l *Library) Book(name string) (BookView, error) {
	for _, v := range l.Books() {
		if v.Name == name {
			return v, nil
		}
	}
	return BookView{}, NewNotFound("book", name)
}

// ToggleBook flips a book's enabled flag. The auto-disable rule is not applied here.
func (l *Library) ToggleBook(ctx context.Context, book string) (bool, error) {
	if _, ok := l.corpus.Book(book); !ok {
		return false, NewNotFound("book", book)
	}

	l.mu.Lock()
	enabled := !l.cls.Books[book]
	if err := l.store.SetBookEnabled(ctx, l.userID, book, enabled); err != nil {
		l.mu.Unlock()
		return false, fmt.Errorf("failed to toggle %s: %w", book, err)
	}
	l.cls.Books[book] = enabled
	logf("User %s toggled %s enabled=%v", l.userID, book, enabled)
	ev := l.recomputeLocked()
	l.mu.Unlock()

	l.notify(ev)
	return enabled, nil
}

// SetChapterRarity sets one chapter's tier. With reconcile set, the book is
// auto-disabled in the same write if this leaves every chapter disabled.
func (l *Library) SetChapterRarity(ctx context.Context, book string, chapter int, rarity Rarity, reconcile bool) error {
	if _, ok := l.corpus.Chapter(book, chapter); !ok {
		return NewNotFound("chapter", fmt.Sprintf("%s %d", book, chapter))
	}
	if !rarity.Valid() {
		return NewValidation("rarity", fmt.Sprintf("unknown rarity %q", rarity))
	}

	l.mu.Lock()
	var err error
	if reconcile {
		next := l.cls.Clone()
		next.SetRarity(book, chapter, rarity)
		upd := BookUpdate{Book: book, Rarities: map[int]Rarity{chapter: rarity}}
		l.planReconcile(next, &upd)
		err = l.commitLocked(ctx, next, upd)
	} else {
		err = l.store.SetChapterRarity(ctx, l.userID, book, chapter, rarity)
		if err == nil {
			l.cls.SetRarity(book, chapter, rarity)
		}
	}
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to set rarity of %s %d: %w", book, chapter, err)
	}
	VerboseLog("User %s set %s %d to %s", l.userID, book, chapter, rarity)
	ev := l.recomputeLocked()
	l.mu.Unlock()

	l.notify(ev)
	return nil
}

// ReconcileBookStatus disables a book whose chapters are all disabled and resets every
// one of its chapters to common. It reports whether the book was disabled.
func (l *Library) ReconcileBookStatus(ctx context.Context, book string) (bool, error) {
	if _, ok := l.corpus.Book(book); !ok {
		return false, NewNotFound("book", book)
	}

	l.mu.Lock()
	next := l.cls.Clone()
	upd := BookUpdate{Book: book, Rarities: map[int]Rarity{}}
	if !l.planReconcile(next, &upd) {
		l.mu.Unlock()
		return false, nil
	}
	if err := l.commitLocked(ctx, next, upd); err != nil {
		l.mu.Unlock()
		return false, fmt.Errorf("failed to disable %s: %w", book, err)
	}
	ev := l.recomputeLocked()
	l.mu.Unlock()

	l.notify(ev)
	return true, nil
}

// planReconcile applies the auto-disable rule to next and records the extra writes in upd
func (l *Library) planReconcile(next *Classifications, upd *BookUpdate) bool {
	b, ok := l.corpus.Book(upd.Book)
	if !ok || !next.Books[b.Name] {
		return false
	}
	for _, ch := range b.Chapters {
		if next.RarityOf(b.Name, ch.Number) != RarityDisabled {
			return false
		}
	}

	disabled := false
	next.Books[b.Name] = false
	upd.Enabled = &disabled
	if upd.Rarities == nil {
		upd.Rarities = make(map[int]Rarity, len(b.Chapters))
	}
	for _, ch := range b.Chapters {
		next.SetRarity(b.Name, ch.Number, RarityCommon)
		upd.Rarities[ch.Number] = RarityCommon
	}
	logf("All chapters of %s disabled for %s: book disabled and chapters reset to common", b.Name, l.userID)
	return true
}

// commitLocked persists upd and, only on success, adopts next as the current state
func (l *Library) commitLocked(ctx context.Context, next *Classifications, upd BookUpdate) error {
	if err := l.store.ApplyBookUpdate(ctx, l.userID, upd); err != nil {
		return err
	}
	l.cls = next
	return nil
}

// validateRange checks a bulk edit chapter range against the book
func (l *Library) validateRange(book string, from, to int) (*Book, error) {
	b, ok := l.corpus.Book(book)
	if !ok {
		return nil, NewNotFound("book", book)
	}
	switch {
	case from > to:
		return nil, &InvalidRangeError{Book: book, From: from, To: to, Reason: "start is after end"}
	case from < 1:
		return nil, &InvalidRangeError{Book: book, From: from, To: to, Reason: "chapters start at 1"}
	case to > len(b.Chapters):
		return nil, &InvalidRangeError{Book: book, From: from, To: to, Reason: fmt.Sprintf("%s has %d chapters", book, len(b.Chapters))}
	}
	return b, nil
}

// BulkApplyRarity sets every chapter in [from, to] whose current tier matches filter to
// toRarity, then runs the auto-disable rule once. It returns the number of chapters changed.
func (l *Library) BulkApplyRarity(ctx context.Context, book string, from, to int, filter RarityFilter, toRarity Rarity) (int, error) {
	b, err := l.validateRange(book, from, to)
	if err != nil {
		return 0, err
	}
	if !filter.All && len(filter.Rarities) == 0 {
		return 0, NewValidation("from", "select at least one rarity to change, or all rarities")
	}
	if !toRarity.Valid() {
		return 0, NewValidation("to", fmt.Sprintf("unknown rarity %q", toRarity))
	}

	l.mu.Lock()
	next := l.cls.Clone()
	upd := BookUpdate{Book: book, Rarities: make(map[int]Rarity)}
	for n := from; n <= to; n++ {
		if filter.matches(next.RarityOf(b.Name, n)) {
			next.SetRarity(b.Name, n, toRarity)
			upd.Rarities[n] = toRarity
		}
	}
	matched := len(upd.Rarities)
	if matched == 0 {
		l.mu.Unlock()
		return 0, &NoMatchError{Book: book, From: from, To: to}
	}

	l.planReconcile(next, &upd)
	if err := l.commitLocked(ctx, next, upd); err != nil {
		l.mu.Unlock()
		return 0, fmt.Errorf("failed to apply bulk rarity to %s: %w", book, err)
	}
	logf("User %s set %d chapters of %s %d-%d to %s", l.userID, matched, book, from, to, toRarity)
	ev := l.recomputeLocked()
	l.mu.Unlock()

	l.notify(ev)
	return matched, nil
}

// BulkShiftRarity moves every chapter in [from, to] one tier in dir, clamping at the
// ends of the tier list, then runs the auto-disable rule once. It returns the number
// of chapters whose tier changed.
func (l *Library) BulkShiftRarity(ctx context.Context, book string, from, to int, dir ShiftDirection) (int, error) {
	b, err := l.validateRange(book, from, to)
	if err != nil {
		return 0, err
	}
	if dir != ShiftRarer && dir != ShiftCommoner {
		return 0, NewValidation("direction", fmt.Sprintf("unknown shift direction %q", dir))
	}

	l.mu.Lock()
	next := l.cls.Clone()
	upd := BookUpdate{Book: book, Rarities: make(map[int]Rarity)}
	for n := from; n <= to; n++ {
		cur := next.RarityOf(b.Name, n)
		if shifted := cur.Shift(dir); shifted != cur {
			next.SetRarity(b.Name, n, shifted)
			upd.Rarities[n] = shifted
		}
	}
	changed := len(upd.Rarities)

	l.planReconcile(next, &upd)
	if len(upd.Rarities) > 0 || upd.Enabled != nil {
		if err := l.commitLocked(ctx, next, upd); err != nil {
			l.mu.Unlock()
			return 0, fmt.Errorf("failed to shift rarity of %s: %w", book, err)
		}
	}
	logf("User %s shifted %s %d-%d %s (%d changed)", l.userID, book, from, to, dir, changed)
	ev := l.recomputeLocked()
	l.mu.Unlock()

	l.notify(ev)
	return changed, nil
}

// RecomputeScoreEligibility re-evaluates the scoring gate and notifies listeners if
// it flipped
func (l *Library) RecomputeScoreEligibility() bool {
	l.mu.Lock()
	ev := l.recomputeLocked()
	enabled := l.scoreEnabled
	l.mu.Unlock()

	l.notify(ev)
	return enabled
}

func (l *Library) recomputeLocked() *ScoreEligibilityEvent {
	count := l.eligibleChapterCountLocked()
	enabled := count >= l.threshold
	if enabled == l.scoreEnabled {
		return nil
	}
	l.scoreEnabled = enabled
	logf("Scoring for %s is now enabled=%v (%d/%d eligible chapters)", l.userID, enabled, count, l.threshold)
	return &ScoreEligibilityEvent{Enabled: enabled, EligibleChapters: count, Threshold: l.threshold}
}

func (l *Library) notify(ev *ScoreEligibilityEvent) {
	if ev == nil {
		return
	}
	l.mu.Lock()
	listeners := make([]func(ScoreEligibilityEvent), len(l.listeners))
	copy(listeners, l.listeners)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(*ev)
	}
}
