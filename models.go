package versequiz

import (
	"fmt"
	"strings"
)

// Rarity is the frequency tier a user assigns to a chapter
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityUltraRare Rarity = "ultraRare"
	RarityDisabled  Rarity = "disabled"
)

// Rarities lists every tier from most to least frequent
var Rarities = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityUltraRare, RarityDisabled}

var rarityWeights = map[Rarity]float64{
	RarityCommon:    1.0,
	RarityUncommon:  0.5,
	RarityRare:      0.2,
	RarityUltraRare: 0.1,
	RarityDisabled:  0.0,
}

// Weight returns the draw weight for the tier. Unknown tiers weigh 0.
func (r Rarity) Weight() float64 {
	return rarityWeights[r]
}

// Index returns the position of r in Rarities, or -1 if r is not a known tier
func (r Rarity) Index() int {
	for i, tier := range Rarities {
		if tier == r {
			return i
		}
	}
	return -1
}

// Valid reports whether r is one of the known tiers
func (r Rarity) Valid() bool {
	return r.Index() >= 0
}

// Shift moves r one tier in the given direction, clamped at either end
func (r Rarity) Shift(dir ShiftDirection) Rarity {
	i := r.Index()
	if i < 0 {
		i = 0
	}
	switch dir {
	case ShiftRarer:
		i++
	case ShiftCommoner:
		i--
	}
	if i < 0 {
		i = 0
	}
	if i >= len(Rarities) {
		i = len(Rarities) - 1
	}
	return Rarities[i]
}

// ParseRarity accepts a tier name case-insensitively ("ultrarare", "ultra-rare" and
// "ultra_rare" all map to RarityUltraRare)
func ParseRarity(s string) (Rarity, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "", " ", "").Replace(norm)
	for _, r := range Rarities {
		if strings.ToLower(string(r)) == norm {
			return r, nil
		}
	}
	return "", NewValidation("rarity", fmt.Sprintf("unknown rarity %q", s))
}

// ShiftDirection says which way a bulk shift moves chapters along the tier list
type ShiftDirection string

const (
	// ShiftRarer moves one step toward disabled
	ShiftRarer ShiftDirection = "rarer"
	// ShiftCommoner moves one step toward common
	ShiftCommoner ShiftDirection = "commoner"
)

// Verse is a single verse of the reference text
type Verse struct {
	Number     int                 `json:"number"`
	Text       string              `json:"text"`
	Duplicates []DuplicateLocation `json:"duplicates,omitempty"`
}

// DuplicateLocation points to another verse carrying the same text
type DuplicateLocation struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
}

// Chapter is a numbered chapter of a book, 1-based and contiguous
type Chapter struct {
	Number  int     `json:"number"`
	Summary string  `json:"summary,omitempty"`
	Verses  []Verse `json:"verses"`
}

// Book is a named book of the reference text
type Book struct {
	Name     string    `json:"name"`
	Chapters []Chapter `json:"chapters"`
}

// BookClassification records whether a user has a book enabled
type BookClassification struct {
	Book    string `json:"book"`
	Enabled bool   `json:"enabled"`
}

// ChapterClassification records the rarity a user assigned to a chapter
type ChapterClassification struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Rarity  Rarity `json:"rarity"`
}

// Classifications is the full per-user classification state
type Classifications struct {
	Books    map[string]bool           `json:"books"`
	Chapters map[string]map[int]Rarity `json:"chapters"`
}

// NewClassifications returns an empty classification set
func NewClassifications() *Classifications {
	return &Classifications{
		Books:    make(map[string]bool),
		Chapters: make(map[string]map[int]Rarity),
	}
}

// RarityOf returns the tier of a chapter, defaulting to common when unclassified
func (c *Classifications) RarityOf(book string, chapter int) Rarity {
	if r, ok := c.Chapters[book][chapter]; ok && r.Valid() {
		return r
	}
	return RarityCommon
}

// SetRarity records a chapter tier
func (c *Classifications) SetRarity(book string, chapter int, r Rarity) {
	if c.Chapters[book] == nil {
		c.Chapters[book] = make(map[int]Rarity)
	}
	c.Chapters[book][chapter] = r
}

// Clone returns a deep copy
func (c *Classifications) Clone() *Classifications {
	out := NewClassifications()
	for b, e := range c.Books {
		out.Books[b] = e
	}
	for b, chapters := range c.Chapters {
		m := make(map[int]Rarity, len(chapters))
		for n, r := range chapters {
			m[n] = r
		}
		out.Chapters[b] = m
	}
	return out
}

// Mode selects what a review question shows
type Mode string

const (
	ModeSummary Mode = "summary"
	ModeVerse   Mode = "verse"
)

// ParseMode validates a review mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSummary:
		return ModeSummary, nil
	case ModeVerse:
		return ModeVerse, nil
	}
	return "", NewValidation("mode", fmt.Sprintf("unknown review mode %q", s))
}

// DrawnQuestion is one review question drawn from the weighted population
type DrawnQuestion struct {
	Mode       Mode                `json:"mode"`
	Book       string              `json:"book"`
	Chapter    int                 `json:"chapter"`
	Text       string              `json:"text"`
	Context    []Verse             `json:"context"`
	Verse      int                 `json:"verse,omitempty"`
	Duplicates []DuplicateLocation `json:"duplicates,omitempty"`
}

// SubmitResult is the outcome of one answer submission
type SubmitResult struct {
	Correct       bool `json:"correct"`
	PointsAwarded int  `json:"points_awarded"`
	RevealAnswer  bool `json:"reveal_answer"`
	Attempt       int  `json:"attempt"`
	// Answer is set once the question resolves
	Answer *DrawnQuestion `json:"answer,omitempty"`
}
