package versequiz

import (
	"errors"
	"testing"
)

func referenceCorpus(t *testing.T) *Corpus {
	return testCorpus(t,
		testBook("Genesis", 50),
		testBook("1 Samuel", 31),
		testBook("2 Samuel", 24),
		testBook("Song of Solomon", 8),
		testBook("Jonah", 4),
		testBook("John", 21),
		testBook("1 John", 5),
	)
}

func TestParseReference(t *testing.T) {
	corpus := referenceCorpus(t)

	tests := []struct {
		in   string
		want VerseRef
	}{
		{"Genesis 1", VerseRef{"Genesis", 1, 0}},
		{"genesis 50", VerseRef{"Genesis", 50, 0}},
		{"Gen 3", VerseRef{"Genesis", 3, 0}},
		{"Gen. 3:15", VerseRef{"Genesis", 3, 15}},
		{"gen3", VerseRef{"Genesis", 3, 0}},
		{"1 Samuel 3", VerseRef{"1 Samuel", 3, 0}},
		{"1sam 17", VerseRef{"1 Samuel", 17, 0}},
		{"2 sam 7:12", VerseRef{"2 Samuel", 7, 12}},
		{"Song of Solomon 2", VerseRef{"Song of Solomon", 2, 0}},
		{"  John 3:16  ", VerseRef{"John", 3, 16}},
		{"1 John 4", VerseRef{"1 John", 4, 0}},
		{"jonah", VerseRef{"Jonah", 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReference(corpus, tt.in)
			if err != nil {
				t.Fatalf("ParseReference(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseReference(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseReferenceErrors(t *testing.T) {
	corpus := referenceCorpus(t)

	tests := []struct {
		in   string
		want error
	}{
		{"", ErrInvalidInput},
		{"3:16", ErrInvalidInput},
		{"Jo 2", ErrInvalidInput},
		{"Sam 3", ErrNotFound},
		{"Tobit 1", ErrNotFound},
		{"Jonah 5", ErrNotFound},
		{"Genesis 1:2:3", ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseReference(corpus, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseReference(%q) error = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestResolveBookPrefersExactName(t *testing.T) {
	corpus := referenceCorpus(t)

	// "john" is a prefix of "John" only; "1 John" must not make it ambiguous
	b, err := ResolveBook(corpus, "john")
	if err != nil || b.Name != "John" {
		t.Fatalf("ResolveBook(john) = %v, %v; want John", b, err)
	}
	b, err = ResolveBook(corpus, "1john")
	if err != nil || b.Name != "1 John" {
		t.Fatalf("ResolveBook(1john) = %v, %v; want 1 John", b, err)
	}
}
