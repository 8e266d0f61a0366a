package versequiz

import (
	"math/rand"
	"time"
)

// WeightedChapter is one entry of the draw population
type WeightedChapter struct {
	Book         string   `json:"book"`
	ChapterIndex int      `json:"chapter"`
	Chapter      *Chapter `json:"-"`
	Weight       float64  `json:"weight"`
}

// BuildWeightedPopulation lists every chapter of every enabled book with its rarity
// weight, in corpus order. Disabled chapters (weight 0) are left out.
func BuildWeightedPopulation(corpus *Corpus, cls *Classifications) []WeightedChapter {
	population := make([]WeightedChapter, 0)

	for i := range corpus.books {
		book := &corpus.books[i]
		if !cls.Books[book.Name] {
			continue
		}
		for j := range book.Chapters {
			ch := &book.Chapters[j]
			weight := cls.RarityOf(book.Name, ch.Number).Weight()
			if weight <= 0 {
				continue
			}
			population = append(population, WeightedChapter{
				Book:         book.Name,
				ChapterIndex: ch.Number,
				Chapter:      ch,
				Weight:       weight,
			})
		}
	}

	return population
}

// TotalWeight sums the weights of a population
func TotalWeight(population []WeightedChapter) float64 {
	total := 0.0
	for _, wc := range population {
		total += wc.Weight
	}
	return total
}

// SelectWeightedChapter walks the population accumulating weight and returns the first
// entry whose running sum reaches r. r is expected in [0, TotalWeight).
func SelectWeightedChapter(population []WeightedChapter, r float64) (WeightedChapter, error) {
	if len(population) == 0 {
		return WeightedChapter{}, &EmptyPopulationError{}
	}

	cumulative := 0.0
	for _, wc := range population {
		cumulative += wc.Weight
		if cumulative >= r {
			return wc, nil
		}
	}

	// float rounding can leave r a hair above the final sum
	return population[len(population)-1], nil
}

// Selector performs random draws over a weighted population
type Selector struct {
	rand *rand.Rand
}

// NewSelector creates a selector seeded from the clock
func NewSelector() *Selector {
	return &Selector{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSelectorWithSource creates a selector over a fixed source, for reproducible draws
func NewSelectorWithSource(src rand.Source) *Selector {
	return &Selector{rand: rand.New(src)}
}

// SelectChapter draws one chapter with probability proportional to its weight
func (s *Selector) SelectChapter(population []WeightedChapter) (WeightedChapter, error) {
	if len(population) == 0 {
		return WeightedChapter{}, &EmptyPopulationError{}
	}
	r := s.rand.Float64() * TotalWeight(population)
	return SelectWeightedChapter(population, r)
}

// SelectVerse picks a verse of the chapter uniformly at random. Rarity plays no
// part below chapter level.
func (s *Selector) SelectVerse(ch *Chapter) (Verse, error) {
	if ch == nil || len(ch.Verses) == 0 {
		return Verse{}, &EmptyPopulationError{}
	}
	return ch.Verses[s.rand.Intn(len(ch.Verses))], nil
}
