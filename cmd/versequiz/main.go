// Command versequiz manages book and chapter classifications and runs review
// sessions from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"versequiz"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// Globals are the flags shared by every command
type Globals struct {
	DB        string `name:"db" help:"SQLite database path" env:"VERSEQUIZ_DB" default:"./versequiz.db" type:"path"`
	Corpus    string `name:"corpus" help:"Corpus file (.json, .json.xz or .xml)" env:"VERSEQUIZ_CORPUS" default:"./data/corpus.json" type:"path"`
	User      string `name:"user" short:"u" help:"User whose settings to use" env:"VERSEQUIZ_USER" default:"local"`
	SeedBook  string `name:"seed-book" help:"Book enabled for new users" env:"VERSEQUIZ_SEED_BOOK" default:"Genesis"`
	RedisAddr string `name:"redis-addr" help:"Redis address for the remote score store" env:"REDIS_ADDR"`
	RedisPwd  string `name:"redis-pwd" help:"Redis password" env:"REDIS_PWD"`
	RedisDB   int    `name:"redis-db" help:"Redis database number" env:"REDIS_DB" default:"0"`
	Verbose   bool   `name:"verbose" short:"v" help:"Enable verbose debugging output"`
}

// CLI defines the command-line interface for versequiz
var CLI struct {
	Globals

	Books    BooksGroup  `cmd:"" help:"List and toggle books"`
	Chapters ChaptersCmd `cmd:"" help:"Show chapter rarities of a book"`
	Rarity   RarityGroup `cmd:"" help:"Change chapter rarities"`
	Review   ReviewCmd   `cmd:"" help:"Run an interactive review session"`
	Score    ScoreCmd    `cmd:"" help:"Show and sync scores"`
	Corpus   CorpusGroup `cmd:"" help:"Corpus inspection and conversion"`
}

// app holds what a command needs once the corpus and database are open
type app struct {
	ctx     context.Context
	corpus  *versequiz.Corpus
	db      *versequiz.DB
	remote  versequiz.RemoteScoreStore
	library *versequiz.Library
	closers []func() error
}

func (g *Globals) open() (*app, error) {
	versequiz.SetVerbose(g.Verbose)
	ctx := context.Background()

	corpus, err := versequiz.LoadCorpus(g.Corpus)
	if err != nil {
		return nil, err
	}

	db, err := versequiz.OpenDB(g.DB)
	if err != nil {
		return nil, err
	}
	a := &app{ctx: ctx, corpus: corpus, db: db}
	a.closers = append(a.closers, db.CloseDB)

	if err := db.CreateTables(); err != nil {
		a.close()
		return nil, err
	}
	if err := db.EnsureCorpus(ctx, corpus); err != nil {
		a.close()
		return nil, err
	}

	if g.RedisAddr != "" {
		redisStore := versequiz.NewRedisScoreStore(ctx, versequiz.RedisConfig{
			Address:  g.RedisAddr,
			Password: g.RedisPwd,
			DB:       g.RedisDB,
		})
		a.remote = redisStore
		a.closers = append(a.closers, redisStore.Close)
	}

	a.library = versequiz.OpenLibrary(ctx, g.User, corpus, db, g.SeedBook)
	if err := a.library.Degraded(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: using default settings: %v\n", err)
	}
	a.library.OnScoreEligibilityChange(func(ev versequiz.ScoreEligibilityEvent) {
		if ev.Enabled {
			fmt.Printf("Scoring is now on (%d chapters enabled).\n", ev.EligibleChapters)
		} else {
			fmt.Printf("Scoring is now off: enable at least %d chapters (currently %d).\n", ev.Threshold, ev.EligibleChapters)
		}
	})
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// resolveBook accepts abbreviations such as "gen" or "1 sam"
func (a *app) resolveBook(name string) (string, error) {
	b, err := versequiz.ResolveBook(a.corpus, name)
	if err != nil {
		return "", err
	}
	return b.Name, nil
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func main() {
	if err := godotenv.Load(); err != nil && os.Getenv("VERSEQUIZ_VERBOSE") != "" {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	ctx := kong.Parse(&CLI,
		kong.Name("versequiz"),
		kong.Description("Scripture recall quiz"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}

func joinRarities(rs []versequiz.Rarity) string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
