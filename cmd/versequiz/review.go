package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"versequiz"
)

// ReviewCmd runs the draw and answer loop on stdin
type ReviewCmd struct {
	Mode   string `name:"mode" short:"m" enum:"summary,verse" default:"verse" help:"Show chapter summaries or single verses"`
	Points int    `name:"points" default:"5" help:"Points for a first-try answer"`
	Reveal bool   `name:"reveal" help:"Print the whole chapter after each answer"`
}

func (c *ReviewCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.close()

	mode, err := versequiz.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	scores, err := versequiz.LoadScoreKeeper(a.ctx, g.User, a.db, a.remote)
	if err != nil {
		return err
	}
	if a.remote != nil {
		if _, err := scores.Sync(a.ctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: score sync failed: %v\n", err)
		}
	}

	review := versequiz.NewReviewSession(a.library, scores, nil, c.Points)
	if err := review.Reset(a.ctx); err != nil {
		return err
	}
	if !a.library.ScoreEnabled() {
		fmt.Printf("Scoring is off: enable at least %d chapters to earn points (currently %d).\n",
			versequiz.MinChaptersEnabledForScore, a.library.EligibleChapterCount())
	}
	fmt.Println(`Answer with "Book Chapter" (e.g. "gen 12"). "?" reveals the answer, "q" quits.`)

	in := bufio.NewScanner(os.Stdin)
	for {
		q, err := review.Draw(mode)
		if errors.Is(err, versequiz.ErrInsufficientContent) {
			fmt.Println("Nothing to review: enable a book or mark chapters less rare.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("\n%s\n", q.Text)
		if q.Verse > 0 {
			fmt.Printf("(verse %d)\n", q.Verse)
		}

		resolved := false
		for !resolved {
			fmt.Print("> ")
			if !in.Scan() {
				return finish(scores, in.Err())
			}
			line := strings.TrimSpace(in.Text())
			switch line {
			case "":
				continue
			case "q", "quit":
				return finish(scores, nil)
			case "?":
				answer, err := review.Forfeit()
				if err != nil {
					return err
				}
				fmt.Printf("It was %s %d.\n", answer.Book, answer.Chapter)
				c.reveal(a.corpus, answer)
				resolved = true
				continue
			}

			ref, err := versequiz.ParseReference(a.corpus, line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if ref.Chapter == 0 {
				fmt.Println("Include a chapter number.")
				continue
			}

			result, err := review.Submit(a.ctx, ref.Book, ref.Chapter)
			if err != nil {
				return err
			}
			if !result.Correct {
				fmt.Println("Not quite, try again.")
				continue
			}
			if result.PointsAwarded > 0 {
				fmt.Printf("Correct! +%d (session %d, overall %d)\n", result.PointsAwarded, scores.Session(), scores.Overall())
			} else {
				fmt.Println("Correct!")
			}
			c.reveal(a.corpus, result.Answer)
			resolved = true
		}
	}
}

func (c *ReviewCmd) reveal(corpus *versequiz.Corpus, q *versequiz.DrawnQuestion) {
	if q == nil {
		return
	}
	for _, d := range q.Duplicates {
		fmt.Printf("Also at %s %d:%d\n", d.Book, d.Chapter, d.Verse)
	}
	prev, next := versequiz.ChapterNeighbors(corpus, q.Book, q.Chapter)
	if prev > 0 || next > 0 {
		var parts []string
		if prev > 0 {
			parts = append(parts, fmt.Sprintf("previous %s %d", q.Book, prev))
		}
		if next > 0 {
			parts = append(parts, fmt.Sprintf("next %s %d", q.Book, next))
		}
		fmt.Printf("(%s)\n", strings.Join(parts, ", "))
	}
	if !c.Reveal {
		return
	}
	for _, v := range q.Context {
		marker := "  "
		if v.Number == q.Verse {
			marker = "> "
		}
		fmt.Printf("%s%d %s\n", marker, v.Number, v.Text)
	}
}

func finish(scores *versequiz.ScoreKeeper, err error) error {
	fmt.Printf("\nSession score: %d, overall: %d\n", scores.Session(), scores.Overall())
	return err
}
