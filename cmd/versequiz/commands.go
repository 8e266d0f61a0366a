package main

import (
	"errors"
	"fmt"
	"os"

	"versequiz"
)

// BooksGroup contains book level operations
type BooksGroup struct {
	List   BooksListCmd   `cmd:"" default:"1" help:"List books with their status"`
	Toggle BooksToggleCmd `cmd:"" help:"Enable or disable a book"`
}

type BooksListCmd struct{}

func (c *BooksListCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.close()

	tw := newTable()
	fmt.Fprintln(tw, "BOOK\tSTATUS\tELIGIBLE")
	for _, b := range a.library.Books() {
		status := "disabled"
		if b.Enabled {
			status = "enabled"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\n", b.Name, status, b.EligibleChapters, len(b.Chapters))
	}
	tw.Flush()

	fmt.Printf("\n%d eligible chapters, scoring %s\n", a.library.EligibleChapterCount(), onOff(a.library.ScoreEnabled()))
	return nil
}

type BooksToggleCmd struct {
	Book string `arg:"" help:"Book name or abbreviation"`
}

func (c *BooksToggleCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.close()

	book, err := a.resolveBook(c.Book)
	if err != nil {
		return err
	}
	enabled, err := a.library.ToggleBook(a.ctx, book)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", book, map[bool]string{true: "enabled", false: "disabled"}[enabled])
	return nil
}

// ChaptersCmd prints the tier of every chapter of a book
type ChaptersCmd struct {
	Book string `arg:"" help:"Book name or abbreviation"`
}

func (c *ChaptersCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.close()

	book, err := a.resolveBook(c.Book)
	if err != nil {
		return err
	}
	view, err := a.library.Book(book)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", view.Name, map[bool]string{true: "enabled", false: "disabled"}[view.Enabled])
	tw := newTable()
	fmt.Fprintln(tw, "CHAPTER\tRARITY")
	for _, ch := range view.Chapters {
		fmt.Fprintf(tw, "%d\t%s\n", ch.Number, ch.Rarity)
	}
	return tw.Flush()
}

// RarityGroup contains chapter rarity edits
type RarityGroup struct {
	Set   RaritySetCmd   `cmd:"" help:"Set the rarity of one chapter"`
	Apply RarityApplyCmd `cmd:"" help:"Set the rarity of a chapter range, optionally only chapters with given rarities"`
	Shift RarityShiftCmd `cmd:"" help:"Move a chapter range one rarity step"`
}

type RaritySetCmd struct {
	Book        string `arg:"" help:"Book name or abbreviation"`
	Chapter     int    `arg:"" help:"Chapter number"`
	Rarity      string `arg:"" help:"common, uncommon, rare, ultraRare or disabled"`
	NoReconcile bool   `name:"no-reconcile" help:"Do not auto-disable the book when every chapter ends up disabled"`
}

func (c *RaritySetCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.close()

	book, err := a.resolveBook(c.Book)
	if err != nil {
		return err
	}
	rarity, err := versequiz.ParseRarity(c.Rarity)
	if err != nil {
		return err
	}
	if err := a.library.SetChapterRarity(a.ctx, book, c.Chapter, rarity, !c.NoReconcile); err != nil {
		return err
	}
	fmt.Printf("%s %d is now %s\n", book, c.Chapter, rarity)
	return nil
}

type RarityApplyCmd struct {
	Book string   `arg:"" help:"Book name or abbreviation"`
	From int      `arg:"" help:"First chapter"`
	To   int      `arg:"" help:"Last chapter"`
	Only []string `name:"only" help:"Only change chapters currently at these rarities"`
	All  bool     `name:"all" help:"Change chapters of any rarity"`
	Set  string   `name:"set" required:"" help:"Rarity to apply"`
}

func (c *RarityApplyCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.close()

	book, err := a.resolveBook(c.Book)
	if err != nil {
		return err
	}

	filter := versequiz.AllRarities()
	if !c.All {
		var only []versequiz.Rarity
		for _, name := range c.Only {
			r, err := versequiz.ParseRarity(name)
			if err != nil {
				return err
			}
			only = append(only, r)
		}
		filter = versequiz.OnlyRarities(only...)
	}
	to, err := versequiz.ParseRarity(c.Set)
	if err != nil {
		return err
	}

	n, err := a.library.BulkApplyRarity(a.ctx, book, c.From, c.To, filter, to)
	if errors.Is(err, versequiz.ErrNoMatch) {
		fmt.Fprintf(os.Stderr, "No chapters of %s %d-%d are %s\n", book, c.From, c.To, joinRarities(filter.Rarities))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Set %d chapters of %s to %s\n", n, book, to)
	return nil
}

type RarityShiftCmd struct {
	Book      string `arg:"" help:"Book name or abbreviation"`
	From      int    `arg:"" help:"First chapter"`
	To        int    `arg:"" help:"Last chapter"`
	Direction string `arg:"" enum:"rarer,commoner" help:"rarer or commoner"`
}

func (c *RarityShiftCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.close()

	book, err := a.resolveBook(c.Book)
	if err != nil {
		return err
	}
	n, err := a.library.BulkShiftRarity(a.ctx, book, c.From, c.To, versequiz.ShiftDirection(c.Direction))
	if err != nil {
		return err
	}
	fmt.Printf("Shifted %d chapters of %s %s\n", n, book, c.Direction)
	return nil
}

// ScoreCmd prints scores and optionally reconciles with the remote store
type ScoreCmd struct {
	Sync bool `name:"sync" help:"Reconcile the overall score with the remote store"`
}

func (c *ScoreCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.close()

	scores, err := versequiz.LoadScoreKeeper(a.ctx, g.User, a.db, a.remote)
	if err != nil {
		return err
	}
	if c.Sync {
		if a.remote == nil {
			return fmt.Errorf("no remote score store configured (set REDIS_ADDR)")
		}
		if _, err := scores.Sync(a.ctx); err != nil {
			return err
		}
	}
	fmt.Printf("Session: %d\nOverall: %d\nScoring: %s (%d/%d chapters)\n",
		scores.Session(), scores.Overall(), onOff(a.library.ScoreEnabled()),
		a.library.EligibleChapterCount(), versequiz.MinChaptersEnabledForScore)
	return nil
}

// CorpusGroup contains corpus maintenance
type CorpusGroup struct {
	Info    CorpusInfoCmd    `cmd:"" help:"Print corpus statistics and digest"`
	Convert CorpusConvertCmd `cmd:"" help:"Convert a corpus to .json or .json.xz"`
}

type CorpusInfoCmd struct {
	File string `arg:"" optional:"" help:"Corpus file (default: --corpus)" type:"existingfile"`
}

func (c *CorpusInfoCmd) Run(g *Globals) error {
	path := c.File
	if path == "" {
		path = g.Corpus
	}
	corpus, err := versequiz.LoadCorpus(path)
	if err != nil {
		return err
	}

	chapters, verses, summaries := 0, 0, 0
	for _, b := range corpus.Books() {
		chapters += len(b.Chapters)
		for _, ch := range b.Chapters {
			verses += len(ch.Verses)
			if ch.Summary != "" {
				summaries++
			}
		}
	}
	fmt.Printf("Books:     %d\nChapters:  %d\nVerses:    %d\nSummaries: %d\nDigest:    %s\n",
		len(corpus.Books()), chapters, verses, summaries, corpus.Digest())
	return nil
}

type CorpusConvertCmd struct {
	Input  string `arg:"" help:"Source corpus" type:"existingfile"`
	Output string `arg:"" help:"Destination (.json or .json.xz)"`
}

func (c *CorpusConvertCmd) Run(g *Globals) error {
	corpus, err := versequiz.LoadCorpus(c.Input)
	if err != nil {
		return err
	}
	if err := versequiz.SaveCorpus(c.Output, corpus); err != nil {
		return err
	}
	fmt.Printf("Wrote %d books to %s\n", len(corpus.Books()), c.Output)
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
