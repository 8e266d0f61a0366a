package versequiz

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"
)

// VerseRef identifies a single verse
type VerseRef struct {
	Book    string
	Chapter int
	Verse   int
}

func (r VerseRef) String() string {
	return fmt.Sprintf("%s %d:%d", r.Book, r.Chapter, r.Verse)
}

// Corpus is the immutable reference text, loaded once at startup
type Corpus struct {
	books      []Book
	byName     map[string]int
	byFold     map[string]int
	duplicates map[VerseRef][]DuplicateLocation
	digest     string
}

type corpusFile struct {
	Books []Book `json:"books"`
}

// LoadCorpus reads a corpus from disk. Supported formats are .json, .json.xz and .xml
// (Zefania-style XMLBIBLE).
func LoadCorpus(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json.xz"):
		zr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open xz stream %s: %w", path, err)
		}
		return ParseCorpusJSON(zr)
	case strings.HasSuffix(lower, ".xml"):
		return ParseCorpusXML(f)
	case filepath.Ext(lower) == ".json":
		return ParseCorpusJSON(f)
	}
	return nil, NewValidation("corpus", fmt.Sprintf("unsupported corpus file %s", filepath.Base(path)))
}

// ParseCorpusJSON decodes the {"books": [...]} corpus schema
func ParseCorpusJSON(r io.Reader) (*Corpus, error) {
	var file corpusFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode corpus: %w", err)
	}
	return NewCorpus(file.Books)
}

// WriteCorpusJSON writes books in the schema ParseCorpusJSON reads
func WriteCorpusJSON(w io.Writer, c *Corpus) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(corpusFile{Books: c.books}); err != nil {
		return fmt.Errorf("failed to encode corpus: %w", err)
	}
	return nil
}

// SaveCorpus writes a corpus as .json or, if path ends in .json.xz, xz-compressed JSON
func SaveCorpus(path string, c *Corpus) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create corpus file: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(strings.ToLower(path), ".xz") {
		return WriteCorpusJSON(f, c)
	}

	zw, err := xz.NewWriter(f)
	if err != nil {
		return fmt.Errorf("failed to open xz writer: %w", err)
	}
	if err := WriteCorpusJSON(zw, c); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish xz stream: %w", err)
	}
	return f.Close()
}

// NewCorpus validates books and builds the lookup tables. The corpus keeps its own
// copy; later changes to books do not affect it.
func NewCorpus(books []Book) (*Corpus, error) {
	c := &Corpus{
		books:      cloneBooks(books),
		byName:     make(map[string]int, len(books)),
		byFold:     make(map[string]int, len(books)),
		duplicates: make(map[VerseRef][]DuplicateLocation),
	}

	for i := range c.books {
		b := &c.books[i]
		b.Name = strings.TrimSpace(b.Name)
		if b.Name == "" {
			return nil, NewValidation("book", fmt.Sprintf("book %d has no name", i+1))
		}
		if _, dup := c.byName[b.Name]; dup {
			return nil, NewValidation("book", fmt.Sprintf("duplicate book %q", b.Name))
		}
		if len(b.Chapters) == 0 {
			return nil, NewValidation("book", fmt.Sprintf("%s has no chapters", b.Name))
		}
		c.byName[b.Name] = i
		c.byFold[strings.ToLower(b.Name)] = i

		for j := range b.Chapters {
			ch := &b.Chapters[j]
			if ch.Number != j+1 {
				return nil, NewValidation("chapter", fmt.Sprintf("%s chapter %d out of sequence (got %d)", b.Name, j+1, ch.Number))
			}
			seen := make(map[int]bool, len(ch.Verses))
			for k := range ch.Verses {
				v := &ch.Verses[k]
				if seen[v.Number] {
					return nil, NewValidation("verse", fmt.Sprintf("%s %d has duplicate verse %d", b.Name, ch.Number, v.Number))
				}
				seen[v.Number] = true
				for d := range v.Duplicates {
					v.Duplicates[d].Book = strings.TrimSpace(v.Duplicates[d].Book)
				}
				if len(v.Duplicates) > 0 {
					c.duplicates[VerseRef{b.Name, ch.Number, v.Number}] = v.Duplicates
				}
			}
		}
	}

	data, err := json.Marshal(corpusFile{Books: c.books})
	if err != nil {
		return nil, fmt.Errorf("failed to hash corpus: %w", err)
	}
	sum := blake3.Sum256(data)
	c.digest = hex.EncodeToString(sum[:])

	return c, nil
}

func cloneBooks(books []Book) []Book {
	out := make([]Book, len(books))
	for i, b := range books {
		out[i] = b
		out[i].Chapters = make([]Chapter, len(b.Chapters))
		for j, ch := range b.Chapters {
			out[i].Chapters[j] = ch
			out[i].Chapters[j].Verses = make([]Verse, len(ch.Verses))
			for k, v := range ch.Verses {
				out[i].Chapters[j].Verses[k] = v
				if v.Duplicates != nil {
					out[i].Chapters[j].Verses[k].Duplicates = append([]DuplicateLocation(nil), v.Duplicates...)
				}
			}
		}
	}
	return out
}

// Books returns the books in corpus order. The slice must not be modified.
func (c *Corpus) Books() []Book {
	return c.books
}

// BookNames returns the book names in corpus order
func (c *Corpus) BookNames() []string {
	names := make([]string, len(c.books))
	for i, b := range c.books {
		names[i] = b.Name
	}
	return names
}

// Book looks up a book by exact name
func (c *Corpus) Book(name string) (*Book, bool) {
	i, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return &c.books[i], true
}

// FindBook looks up a book ignoring case and surrounding space
func (c *Corpus) FindBook(name string) (*Book, bool) {
	i, ok := c.byFold[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return &c.books[i], true
}

// Chapter looks up a chapter of a book
func (c *Corpus) Chapter(book string, number int) (*Chapter, bool) {
	b, ok := c.Book(book)
	if !ok || number < 1 || number > len(b.Chapters) {
		return nil, false
	}
	return &b.Chapters[number-1], true
}

// ChapterCount returns the number of chapters in a book, or 0 for unknown books
func (c *Corpus) ChapterCount(book string) int {
	b, ok := c.Book(book)
	if !ok {
		return 0
	}
	return len(b.Chapters)
}

// Duplicates returns the other locations carrying the same text as a verse
func (c *Corpus) Duplicates(book string, chapter, verse int) []DuplicateLocation {
	return c.duplicates[VerseRef{book, chapter, verse}]
}

// Digest is a blake3 hash of the normalized corpus content
func (c *Corpus) Digest() string {
	return c.digest
}

// SetSummary returns a copy of the corpus with one chapter summary replaced
func (c *Corpus) SetSummary(book string, chapter int, summary string) (*Corpus, error) {
	i, ok := c.byName[book]
	if !ok {
		return nil, NewNotFound("book", book)
	}
	if chapter < 1 || chapter > len(c.books[i].Chapters) {
		return nil, NewNotFound("chapter", fmt.Sprintf("%s %d", book, chapter))
	}
	books := cloneBooks(c.books)
	books[i].Chapters[chapter-1].Summary = summary
	return NewCorpus(books)
}
