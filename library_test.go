package versequiz

import (
	"context"
	"errors"
	"testing"
)

func TestOpenLibrarySeedsNewUser(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus(t, testBook("Genesis", 3), testBook("Exodus", 2))
	store := NewMemoryStore()

	lib := OpenLibrary(ctx, "new-user", corpus, store, "Genesis")
	if err := lib.Degraded(); err != nil {
		t.Fatalf("Degraded() = %v, want nil", err)
	}

	books := lib.Books()
	if len(books) != 2 {
		t.Fatalf("len(Books()) = %d, want 2", len(books))
	}
	if !books[0].Enabled || books[1].Enabled {
		t.Errorf("enabled = [%v %v], want [true false]", books[0].Enabled, books[1].Enabled)
	}
	if got := lib.EligibleChapterCount(); got != 3 {
		t.Errorf("EligibleChapterCount() = %d, want 3", got)
	}

	ok, _ := store.HasUser(ctx, "new-user")
	if !ok {
		t.Error("user was not seeded in the store")
	}
}

func TestOpenLibraryDropsOrphanRows(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus(t, testBook("Genesis", 2))
	store := NewMemoryStore()
	store.SetBookEnabled(ctx, "u1", "Genesis", true)
	store.SetBookEnabled(ctx, "u1", "Apocrypha", true)
	store.SetChapterRarity(ctx, "u1", "Genesis", 9, RarityRare)

	lib := OpenLibrary(ctx, "u1", corpus, store, "")
	cls := lib.Classifications()
	if _, ok := cls.Books["Apocrypha"]; ok {
		t.Error("book missing from the corpus was loaded")
	}
	if _, ok := cls.Chapters["Genesis"][9]; ok {
		t.Error("chapter missing from the corpus was loaded")
	}
}

func TestOpenLibraryDegraded(t *testing.T) {
	corpus := testCorpus(t, testBook("Genesis", 3), testBook("Exodus", 2))
	store := &failingStore{MemoryStore: NewMemoryStore(), failReads: true}

	lib := OpenLibrary(context.Background(), "u1", corpus, store, "Exodus")
	if err := lib.Degraded(); !errors.Is(err, errStoreDown) {
		t.Fatalf("Degraded() = %v, want %v", err, errStoreDown)
	}

	cls := lib.Classifications()
	if cls.Books["Genesis"] || !cls.Books["Exodus"] {
		t.Errorf("fallback books = %v, want only Exodus enabled", cls.Books)
	}
	if got := lib.EligibleChapterCount(); got != 2 {
		t.Errorf("EligibleChapterCount() = %d, want 2", got)
	}
}

func TestSetChapterRarityAutoDisable(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus(t, testBook("Ruth", 4))
	cls := NewClassifications()
	cls.Books["Ruth"] = true
	cls.SetRarity("Ruth", 1, RarityDisabled)
	cls.SetRarity("Ruth", 2, RarityDisabled)
	cls.SetRarity("Ruth", 3, RarityRare)
	lib, store := testLibrary(t, corpus, cls)

	if err := lib.SetChapterRarity(ctx, "Ruth", 3, RarityDisabled, true); err != nil {
		t.Fatalf("SetChapterRarity() error = %v", err)
	}
	view, _ := lib.Book("Ruth")
	if !view.Enabled {
		t.Fatal("book disabled while chapter 4 is still common")
	}

	if err := lib.SetChapterRarity(ctx, "Ruth", 4, RarityDisabled, true); err != nil {
		t.Fatalf("SetChapterRarity() error = %v", err)
	}
	view, _ = lib.Book("Ruth")
	if view.Enabled {
		t.Error("book still enabled after its last chapter was disabled")
	}
	for _, ch := range view.Chapters {
		if ch.Rarity != RarityCommon {
			t.Errorf("Ruth %d = %s, want common after auto-disable", ch.Number, ch.Rarity)
		}
	}

	// the store must agree with memory
	stored, _ := store.GetAll(ctx, "u1")
	if stored.Books["Ruth"] {
		t.Error("stored book still enabled")
	}
	for n := 1; n <= 4; n++ {
		if r := stored.RarityOf("Ruth", n); r != RarityCommon {
			t.Errorf("stored Ruth %d = %s, want common", n, r)
		}
	}
}

func TestSetChapterRarityWithoutReconcile(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus(t, testBook("Jonah", 1))
	cls := NewClassifications()
	cls.Books["Jonah"] = true
	lib, _ := testLibrary(t, corpus, cls)

	if err := lib.SetChapterRarity(ctx, "Jonah", 1, RarityDisabled, false); err != nil {
		t.Fatalf("SetChapterRarity() error = %v", err)
	}
	view, _ := lib.Book("Jonah")
	if !view.Enabled || view.Chapters[0].Rarity != RarityDisabled {
		t.Fatalf("state = enabled %v, rarity %s; want enabled with chapter disabled", view.Enabled, view.Chapters[0].Rarity)
	}

	disabled, err := lib.ReconcileBookStatus(ctx, "Jonah")
	if err != nil {
		t.Fatalf("ReconcileBookStatus() error = %v", err)
	}
	if !disabled {
		t.Error("ReconcileBookStatus() = false, want true")
	}
	view, _ = lib.Book("Jonah")
	if view.Enabled || view.Chapters[0].Rarity != RarityCommon {
		t.Errorf("state = enabled %v, rarity %s; want disabled book with common chapter", view.Enabled, view.Chapters[0].Rarity)
	}
}

func TestSetChapterRarityErrors(t *testing.T) {
	corpus := testCorpus(t, testBook("Jonah", 4))
	lib, _ := testLibrary(t, corpus, nil)

	tests := []struct {
		name    string
		book    string
		chapter int
		rarity  Rarity
		want    error
	}{
		{"unknown book", "Tobit", 1, RarityRare, ErrNotFound},
		{"chapter out of range", "Jonah", 5, RarityRare, ErrNotFound},
		{"unknown rarity", "Jonah", 1, Rarity("mythic"), ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := lib.SetChapterRarity(context.Background(), tt.book, tt.chapter, tt.rarity, true)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestToggleBookDoesNotReconcile(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus(t, testBook("Ruth", 2))
	cls := NewClassifications()
	cls.Books["Ruth"] = false
	cls.SetRarity("Ruth", 1, RarityDisabled)
	cls.SetRarity("Ruth", 2, RarityDisabled)
	lib, _ := testLibrary(t, corpus, cls)

	enabled, err := lib.ToggleBook(ctx, "Ruth")
	if err != nil {
		t.Fatalf("ToggleBook() error = %v", err)
	}
	if !enabled {
		t.Fatal("ToggleBook() = false, want true")
	}
	view, _ := lib.Book("Ruth")
	if !view.Enabled {
		t.Error("toggle was undone by the auto-disable rule")
	}
	for _, ch := range view.Chapters {
		if ch.Rarity != RarityDisabled {
			t.Errorf("Ruth %d = %s, want disabled to be left alone", ch.Number, ch.Rarity)
		}
	}

	if _, err := lib.ToggleBook(ctx, "Tobit"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ToggleBook(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestScoreEligibilityGate(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus(t, testBook("Genesis", 19), testBook("Jonah", 1))
	cls := NewClassifications()
	cls.Books["Genesis"] = true
	lib, _ := testLibrary(t, corpus, cls)

	var events []ScoreEligibilityEvent
	lib.OnScoreEligibilityChange(func(ev ScoreEligibilityEvent) {
		events = append(events, ev)
	})

	if got := lib.EligibleChapterCount(); got != MinChaptersEnabledForScore-1 {
		t.Fatalf("EligibleChapterCount() = %d, want %d", got, MinChaptersEnabledForScore-1)
	}
	if lib.ScoreEnabled() {
		t.Fatal("ScoreEnabled() = true with 19 eligible chapters")
	}

	if _, err := lib.ToggleBook(ctx, "Jonah"); err != nil {
		t.Fatalf("ToggleBook() error = %v", err)
	}
	if !lib.ScoreEnabled() {
		t.Fatal("ScoreEnabled() = false with 20 eligible chapters")
	}

	// a mutation that keeps the count at 20 emits nothing
	if err := lib.SetChapterRarity(ctx, "Genesis", 1, RarityRare, true); err != nil {
		t.Fatalf("SetChapterRarity() error = %v", err)
	}
	if lib.RecomputeScoreEligibility() != true {
		t.Error("RecomputeScoreEligibility() = false, want true")
	}

	if err := lib.SetChapterRarity(ctx, "Genesis", 2, RarityDisabled, true); err != nil {
		t.Fatalf("SetChapterRarity() error = %v", err)
	}
	if lib.ScoreEnabled() {
		t.Fatal("ScoreEnabled() = true after dropping to 19 eligible chapters")
	}

	want := []ScoreEligibilityEvent{
		{Enabled: true, EligibleChapters: 20, Threshold: MinChaptersEnabledForScore},
		{Enabled: false, EligibleChapters: 19, Threshold: MinChaptersEnabledForScore},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(events), events, len(want))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestScoreEligibilityDoesNotTouchScores(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus(t, testBook("Genesis", 19), testBook("Jonah", 1))
	cls := NewClassifications()
	cls.Books["Genesis"] = true
	lib, store := testLibrary(t, corpus, cls)
	store.SetOverallScore(ctx, "u1", 42)
	store.SetSessionScore(ctx, "u1", 7)

	if _, err := lib.ToggleBook(ctx, "Jonah"); err != nil {
		t.Fatalf("ToggleBook() error = %v", err)
	}
	overall, session, _ := store.GetScores(ctx, "u1")
	if overall != 42 || session != 7 {
		t.Errorf("scores = %d/%d after gate flip, want 42/7", overall, session)
	}
}

func TestBulkApplyRarity(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus(t, testBook("Genesis", 66))
	lib, _ := testLibrary(t, corpus, genesisScenario())

	n, err := lib.BulkApplyRarity(ctx, "Genesis", 1, 66, OnlyRarities(RarityCommon), RarityDisabled)
	if err != nil {
		t.Fatalf("BulkApplyRarity() error = %v", err)
	}
	if n != 3 {
		t.Errorf("BulkApplyRarity() changed %d chapters, want 3", n)
	}

	view, _ := lib.Book("Genesis")
	if !view.Enabled {
		t.Fatal("book disabled while chapter 4 is still rare")
	}
	for _, ch := range view.Chapters[:3] {
		if ch.Rarity != RarityDisabled {
			t.Errorf("Genesis %d = %s, want disabled", ch.Number, ch.Rarity)
		}
	}
	if r := view.Chapters[3].Rarity; r != RarityRare {
		t.Errorf("Genesis 4 = %s, want rare", r)
	}
}

func TestBulkApplyRarityDisablesBook(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus(t, testBook("Genesis", 66))
	lib, _ := testLibrary(t, corpus, genesisScenario())

	n, err := lib.BulkApplyRarity(ctx, "Genesis", 1, 4, AllRarities(), RarityDisabled)
	if err != nil {
		t.Fatalf("BulkApplyRarity() error = %v", err)
	}
	if n != 4 {
		t.Errorf("BulkApplyRarity() changed %d chapters, want 4", n)
	}

	view, _ := lib.Book("Genesis")
	if view.Enabled {
		t.Error("book still enabled after every chapter was disabled")
	}
	for _, ch := range view.Chapters {
		if ch.Rarity != RarityCommon {
			t.Fatalf("Genesis %d = %s, want every chapter reset to common", ch.Number, ch.Rarity)
		}
	}
}

func TestBulkApplyRarityErrors(t *testing.T) {
	corpus := testCorpus(t, testBook("Genesis", 66))

	tests := []struct {
		name     string
		from, to int
		filter   RarityFilter
		toRarity Rarity
		want     error
		isRange  bool
	}{
		{"start after end", 5, 2, AllRarities(), RarityRare, ErrInvalidInput, true},
		{"start before first chapter", 0, 2, AllRarities(), RarityRare, ErrInvalidInput, true},
		{"end past last chapter", 60, 67, AllRarities(), RarityRare, ErrInvalidInput, true},
		{"empty filter", 1, 3, OnlyRarities(), RarityRare, ErrInvalidInput, false},
		{"bad target", 1, 3, AllRarities(), Rarity("x"), ErrInvalidInput, false},
		{"nothing matches", 1, 3, OnlyRarities(RarityUltraRare), RarityRare, ErrNoMatch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib, _ := testLibrary(t, corpus, genesisScenario())
			before := lib.Classifications()

			_, err := lib.BulkApplyRarity(context.Background(), "Genesis", tt.from, tt.to, tt.filter, tt.toRarity)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var rangeErr *InvalidRangeError
			if got := errors.As(err, &rangeErr); got != tt.isRange {
				t.Errorf("errors.As(InvalidRangeError) = %v, want %v", got, tt.isRange)
			}

			after := lib.Classifications()
			for n := 1; n <= 66; n++ {
				if before.RarityOf("Genesis", n) != after.RarityOf("Genesis", n) {
					t.Fatalf("Genesis %d changed on a failed edit", n)
				}
			}
		})
	}
}

func TestBulkApplyRarityStoreFailure(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus(t, testBook("Ruth", 4))
	mem := NewMemoryStore()
	mem.Seed(ctx, "u1", corpus, "Ruth")
	store := &failingStore{MemoryStore: mem}
	lib := OpenLibrary(ctx, "u1", corpus, store, "Ruth")

	store.failWrites = true
	if _, err := lib.BulkApplyRarity(ctx, "Ruth", 1, 4, AllRarities(), RarityDisabled); !errors.Is(err, errStoreDown) {
		t.Fatalf("BulkApplyRarity() error = %v, want %v", err, errStoreDown)
	}

	view, _ := lib.Book("Ruth")
	if !view.Enabled {
		t.Error("book disabled in memory although the write failed")
	}
	for _, ch := range view.Chapters {
		if ch.Rarity != RarityCommon {
			t.Errorf("Ruth %d = %s in memory although the write failed", ch.Number, ch.Rarity)
		}
	}
	stored, _ := mem.GetAll(ctx, "u1")
	if !stored.Books["Ruth"] || stored.RarityOf("Ruth", 1) != RarityCommon {
		t.Error("store partially updated")
	}
}

func TestBulkShiftRarity(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus(t, testBook("Genesis", 66))

	tests := []struct {
		name     string
		from, to int
		dir      ShiftDirection
		changed  int
		want     map[int]Rarity
		disabled bool
	}{
		{
			name: "commoner clamps at common",
			from: 1, to: 4, dir: ShiftCommoner,
			changed: 1,
			want:    map[int]Rarity{1: RarityCommon, 3: RarityCommon, 4: RarityUncommon},
		},
		{
			name: "rarer clamps at disabled",
			from: 5, to: 66, dir: ShiftRarer,
			changed: 0,
			want:    map[int]Rarity{5: RarityDisabled, 66: RarityDisabled},
		},
		{
			name: "rarer moves one step",
			from: 2, to: 4, dir: ShiftRarer,
			changed: 3,
			want:    map[int]Rarity{1: RarityCommon, 2: RarityUncommon, 3: RarityUncommon, 4: RarityUltraRare},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib, _ := testLibrary(t, corpus, genesisScenario())
			n, err := lib.BulkShiftRarity(ctx, "Genesis", tt.from, tt.to, tt.dir)
			if err != nil {
				t.Fatalf("BulkShiftRarity() error = %v", err)
			}
			if n != tt.changed {
				t.Errorf("BulkShiftRarity() changed %d, want %d", n, tt.changed)
			}
			cls := lib.Classifications()
			for ch, want := range tt.want {
				if got := cls.RarityOf("Genesis", ch); got != want {
					t.Errorf("Genesis %d = %s, want %s", ch, got, want)
				}
			}
		})
	}
}

func TestBulkShiftRarityDisablesBook(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus(t, testBook("Jonah", 2))
	cls := NewClassifications()
	cls.Books["Jonah"] = true
	cls.SetRarity("Jonah", 1, RarityUltraRare)
	cls.SetRarity("Jonah", 2, RarityDisabled)
	lib, _ := testLibrary(t, corpus, cls)

	if _, err := lib.BulkShiftRarity(ctx, "Jonah", 1, 2, ShiftRarer); err != nil {
		t.Fatalf("BulkShiftRarity() error = %v", err)
	}
	view, _ := lib.Book("Jonah")
	if view.Enabled {
		t.Error("book still enabled after shifting every chapter to disabled")
	}
	for _, ch := range view.Chapters {
		if ch.Rarity != RarityCommon {
			t.Errorf("Jonah %d = %s, want common", ch.Number, ch.Rarity)
		}
	}

	if _, err := lib.BulkShiftRarity(ctx, "Jonah", 1, 2, ShiftDirection("sideways")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("BulkShiftRarity(bad direction) error = %v, want ErrInvalidInput", err)
	}
}
