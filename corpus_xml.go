package versequiz

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ParseCorpusXML reads a Zefania-style bible:
//
//	<XMLBIBLE><BIBLEBOOK bname="Genesis"><CHAPTER cnumber="1"><VERS vnumber="1">...</VERS>
//
// An optional <SUMMARY> child of CHAPTER fills the chapter summary.
func ParseCorpusXML(r io.Reader) (*Corpus, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse corpus xml: %w", err)
	}

	var books []Book
	for _, bn := range xmlquery.Find(doc, "//BIBLEBOOK") {
		name := strings.TrimSpace(bn.SelectAttr("bname"))
		if name == "" {
			name = strings.TrimSpace(bn.SelectAttr("bsname"))
		}
		book := Book{Name: name}

		for _, cn := range xmlquery.Find(bn, "CHAPTER") {
			num, err := strconv.Atoi(strings.TrimSpace(cn.SelectAttr("cnumber")))
			if err != nil {
				return nil, NewValidation("chapter", fmt.Sprintf("%s has a chapter with bad cnumber %q", name, cn.SelectAttr("cnumber")))
			}
			ch := Chapter{Number: num}
			if s := xmlquery.FindOne(cn, "SUMMARY"); s != nil {
				ch.Summary = strings.TrimSpace(s.InnerText())
			}
			for _, vn := range xmlquery.Find(cn, "VERS") {
				vnum, err := strconv.Atoi(strings.TrimSpace(vn.SelectAttr("vnumber")))
				if err != nil {
					return nil, NewValidation("verse", fmt.Sprintf("%s %d has a verse with bad vnumber %q", name, num, vn.SelectAttr("vnumber")))
				}
				ch.Verses = append(ch.Verses, Verse{
					Number: vnum,
					Text:   strings.Join(strings.Fields(vn.InnerText()), " "),
				})
			}
			book.Chapters = append(book.Chapters, ch)
		}
		books = append(books, book)
	}

	if len(books) == 0 {
		return nil, NewValidation("corpus", "no BIBLEBOOK elements found")
	}
	return NewCorpus(books)
}
