package versequiz

import (
	"errors"
	"math/rand"
	"testing"
)

// genesisScenario has chapters 1-3 common, 4 rare and the rest disabled
func genesisScenario() *Classifications {
	cls := NewClassifications()
	cls.Books["Genesis"] = true
	for n := 5; n <= 66; n++ {
		cls.SetRarity("Genesis", n, RarityDisabled)
	}
	cls.SetRarity("Genesis", 4, RarityRare)
	return cls
}

func TestBuildWeightedPopulation(t *testing.T) {
	corpus := testCorpus(t, testBook("Genesis", 66), testBook("Exodus", 3))

	population := BuildWeightedPopulation(corpus, genesisScenario())

	wantWeights := []float64{1, 1, 1, 0.2}
	if len(population) != len(wantWeights) {
		t.Fatalf("len(population) = %d, want %d", len(population), len(wantWeights))
	}
	for i, wc := range population {
		if wc.Book != "Genesis" || wc.ChapterIndex != i+1 {
			t.Errorf("population[%d] = %s %d, want Genesis %d", i, wc.Book, wc.ChapterIndex, i+1)
		}
		if wc.Weight != wantWeights[i] {
			t.Errorf("population[%d].Weight = %v, want %v", i, wc.Weight, wantWeights[i])
		}
		if wc.Chapter == nil || wc.Chapter.Number != wc.ChapterIndex {
			t.Errorf("population[%d].Chapter does not point at chapter %d", i, wc.ChapterIndex)
		}
	}
}

func TestBuildWeightedPopulationExcludesDisabled(t *testing.T) {
	corpus := testCorpus(t, testBook("Genesis", 4), testBook("Exodus", 4), testBook("Ruth", 4))

	tests := []struct {
		name string
		cls  func() *Classifications
		want int
	}{
		{
			name: "no books enabled",
			cls:  NewClassifications,
			want: 0,
		},
		{
			name: "disabled book with common chapters",
			cls: func() *Classifications {
				c := NewClassifications()
				c.Books["Genesis"] = true
				c.Books["Exodus"] = false
				return c
			},
			want: 4,
		},
		{
			name: "disabled chapters in enabled book",
			cls: func() *Classifications {
				c := NewClassifications()
				c.Books["Genesis"] = true
				c.Books["Ruth"] = true
				c.SetRarity("Ruth", 2, RarityDisabled)
				c.SetRarity("Ruth", 3, RarityDisabled)
				return c
			},
			want: 6,
		},
		{
			name: "every chapter disabled",
			cls: func() *Classifications {
				c := NewClassifications()
				c.Books["Ruth"] = true
				for n := 1; n <= 4; n++ {
					c.SetRarity("Ruth", n, RarityDisabled)
				}
				return c
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := tt.cls()
			population := BuildWeightedPopulation(corpus, cls)
			if len(population) != tt.want {
				t.Fatalf("len(population) = %d, want %d", len(population), tt.want)
			}
			for _, wc := range population {
				if !cls.Books[wc.Book] {
					t.Errorf("%s %d drawn from a disabled book", wc.Book, wc.ChapterIndex)
				}
				if cls.RarityOf(wc.Book, wc.ChapterIndex) == RarityDisabled {
					t.Errorf("%s %d is disabled but in the population", wc.Book, wc.ChapterIndex)
				}
			}
		})
	}
}

func TestSelectWeightedChapter(t *testing.T) {
	corpus := testCorpus(t, testBook("Genesis", 66))
	population := BuildWeightedPopulation(corpus, genesisScenario())

	tests := []struct {
		r    float64
		want int
	}{
		{0, 1},
		{0.5, 1},
		{1, 1},
		{1.01, 2},
		{2.5, 3},
		{3, 3},
		{3.1, 4},
		{3.2, 4},
		{3.5, 4},
	}

	for _, tt := range tests {
		got, err := SelectWeightedChapter(population, tt.r)
		if err != nil {
			t.Fatalf("SelectWeightedChapter(%v) error = %v", tt.r, err)
		}
		if got.ChapterIndex != tt.want {
			t.Errorf("SelectWeightedChapter(%v) = chapter %d, want %d", tt.r, got.ChapterIndex, tt.want)
		}
	}
}

func TestSelectEmptyPopulation(t *testing.T) {
	if _, err := SelectWeightedChapter(nil, 0); !errors.Is(err, ErrInsufficientContent) {
		t.Errorf("SelectWeightedChapter(nil) error = %v, want ErrInsufficientContent", err)
	}
	if _, err := NewSelector().SelectChapter([]WeightedChapter{}); !errors.Is(err, ErrInsufficientContent) {
		t.Errorf("SelectChapter(empty) error = %v, want ErrInsufficientContent", err)
	}
	if _, err := NewSelector().SelectVerse(&Chapter{Number: 1}); !errors.Is(err, ErrInsufficientContent) {
		t.Errorf("SelectVerse(no verses) error = %v, want ErrInsufficientContent", err)
	}
}

func TestSelectChapterDistribution(t *testing.T) {
	corpus := testCorpus(t, testBook("Genesis", 2))
	cls := NewClassifications()
	cls.Books["Genesis"] = true
	cls.SetRarity("Genesis", 2, RarityRare)
	population := BuildWeightedPopulation(corpus, cls)

	s := NewSelectorWithSource(rand.NewSource(42))
	counts := map[int]int{}
	const draws = 60000
	for i := 0; i < draws; i++ {
		wc, err := s.SelectChapter(population)
		if err != nil {
			t.Fatalf("SelectChapter() error = %v", err)
		}
		counts[wc.ChapterIndex]++
	}

	ratio := float64(counts[1]) / float64(counts[2])
	if ratio < 4.5 || ratio > 5.5 {
		t.Errorf("common:rare ratio = %.2f (%d:%d), want about 5", ratio, counts[1], counts[2])
	}
}

func TestSelectVerseUniform(t *testing.T) {
	ch := &Chapter{Number: 1}
	for v := 1; v <= 4; v++ {
		ch.Verses = append(ch.Verses, Verse{Number: v, Text: "text"})
	}

	s := NewSelectorWithSource(rand.NewSource(7))
	counts := map[int]int{}
	const draws = 40000
	for i := 0; i < draws; i++ {
		v, err := s.SelectVerse(ch)
		if err != nil {
			t.Fatalf("SelectVerse() error = %v", err)
		}
		counts[v.Number]++
	}
	for v := 1; v <= 4; v++ {
		share := float64(counts[v]) / draws
		if share < 0.22 || share > 0.28 {
			t.Errorf("verse %d drawn %.3f of the time, want about 0.25", v, share)
		}
	}
}

func TestRarityShift(t *testing.T) {
	tests := []struct {
		from Rarity
		dir  ShiftDirection
		want Rarity
	}{
		{RarityCommon, ShiftCommoner, RarityCommon},
		{RarityCommon, ShiftRarer, RarityUncommon},
		{RarityUncommon, ShiftRarer, RarityRare},
		{RarityRare, ShiftRarer, RarityUltraRare},
		{RarityUltraRare, ShiftRarer, RarityDisabled},
		{RarityDisabled, ShiftRarer, RarityDisabled},
		{RarityDisabled, ShiftCommoner, RarityUltraRare},
		{RarityUncommon, ShiftCommoner, RarityCommon},
	}

	for _, tt := range tests {
		if got := tt.from.Shift(tt.dir); got != tt.want {
			t.Errorf("%s.Shift(%s) = %s, want %s", tt.from, tt.dir, got, tt.want)
		}
	}
}

func TestParseRarity(t *testing.T) {
	tests := []struct {
		in      string
		want    Rarity
		wantErr bool
	}{
		{"common", RarityCommon, false},
		{" Rare ", RarityRare, false},
		{"ultraRare", RarityUltraRare, false},
		{"ultrarare", RarityUltraRare, false},
		{"DISABLED", RarityDisabled, false},
		{"legendary", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRarity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRarity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRarity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
