package versequiz

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// referenceGrammar is a typed answer such as "1 Samuel 3", "Gen 3" or "John 3:16"
type referenceGrammar struct {
	Book    string `parser:"@Book"`
	Chapter *int   `parser:"( @Number"`
	Verse   *int   `parser:"  ( \":\" @Number )? )?"`
}

var referenceLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Genesis, Gen., 1 John, 1John, Song of Solomon
	{Name: "Book", Pattern: `(?:\d\s*)?[A-Za-z]+(?:\s+(?:of\s+)?[A-Za-z]+)*\.?`},
	{Name: "Number", Pattern: `\d+`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var referenceParser = participle.MustBuild[referenceGrammar](
	participle.Lexer(referenceLexer),
	participle.Elide("Whitespace"),
)

// ParseReference parses a typed answer and resolves the book against the corpus by
// exact name, case-insensitive name, or unique prefix. Chapter and verse are 0 when
// omitted.
func ParseReference(corpus *Corpus, input string) (VerseRef, error) {
	parsed, err := referenceParser.ParseString("", strings.TrimSpace(input))
	if err != nil {
		return VerseRef{}, NewValidation("reference", fmt.Sprintf("cannot parse %q: %v", input, err))
	}

	book, err := ResolveBook(corpus, parsed.Book)
	if err != nil {
		return VerseRef{}, err
	}

	ref := VerseRef{Book: book.Name}
	if parsed.Chapter != nil {
		ref.Chapter = *parsed.Chapter
		if _, ok := corpus.Chapter(book.Name, ref.Chapter); !ok {
			return VerseRef{}, NewNotFound("chapter", fmt.Sprintf("%s %d", book.Name, ref.Chapter))
		}
	}
	if parsed.Verse != nil {
		ref.Verse = *parsed.Verse
	}
	return ref, nil
}

// ResolveBook finds a corpus book from a possibly abbreviated name
func ResolveBook(corpus *Corpus, name string) (*Book, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	if b, ok := corpus.Book(name); ok {
		return b, nil
	}
	if b, ok := corpus.FindBook(name); ok {
		return b, nil
	}

	key := bookKey(name)
	if key == "" {
		return nil, NewValidation("book", "empty book name")
	}
	var match *Book
	for i := range corpus.books {
		if !strings.HasPrefix(bookKey(corpus.books[i].Name), key) {
			continue
		}
		if match != nil {
			return nil, NewValidation("book", fmt.Sprintf("%q is ambiguous: %s or %s", name, match.Name, corpus.books[i].Name))
		}
		match = &corpus.books[i]
	}
	if match == nil {
		return nil, NewNotFound("book", name)
	}
	return match, nil
}

func bookKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}
