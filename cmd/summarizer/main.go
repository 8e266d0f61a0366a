package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"versequiz"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	var (
		input     = flag.String("corpus", "", "Corpus file to summarise (.json, .json.xz or .xml; default: $VERSEQUIZ_CORPUS)")
		output    = flag.String("output", "", "Output corpus file (.json or .json.xz; default: overwrite the input)")
		books     = flag.String("books", "", "Comma separated books to summarise (default: all)")
		batchSize = flag.Int("batch", 5, "Chapters summarised per request")
		rounds    = flag.Int("rounds", 3, "Attempts per chapter before giving up")
		overwrite = flag.Bool("overwrite", false, "Regenerate chapters that already have a summary")
		dedup     = flag.Bool("dedup", true, "Reject summaries too similar to another chapter of the same book")
		logDir    = flag.String("log-dir", "log", "Directory for the LLM transcript")
		apiKey    = flag.String("api-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		timeout   = flag.Duration("timeout", 30*time.Minute, "Overall time limit")
		verbose   = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	if err := godotenv.Load(); err != nil && *verbose {
		log.Println("No .env file found, using environment variables")
	}
	versequiz.SetVerbose(*verbose)

	if *input == "" {
		*input = os.Getenv("VERSEQUIZ_CORPUS")
		if *input == "" {
			log.Fatal("Corpus is required. Use -corpus flag or set VERSEQUIZ_CORPUS.")
		}
	}
	if *output == "" {
		if strings.HasSuffix(strings.ToLower(*input), ".xml") {
			log.Fatal("Cannot write summaries back to an XML corpus. Use -output with a .json or .json.xz file.")
		}
		*output = *input
	}

	// Get API key from flag or environment
	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
		if *apiKey == "" {
			log.Fatal("OpenAI API key is required. Use -api-key flag or set OPENAI_API_KEY environment variable.")
		}
	}

	corpus, err := versequiz.LoadCorpus(*input)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}

	opts := versequiz.SummaryOptions{
		BatchSize: *batchSize,
		MaxRounds: *rounds,
		Overwrite: *overwrite,
	}
	if *books != "" {
		for _, b := range strings.Split(*books, ",") {
			if b = strings.TrimSpace(b); b != "" {
				opts.Books = append(opts.Books, b)
			}
		}
	}

	runID := uuid.NewString()
	transcript, err := versequiz.NewSummaryLog(*logDir, runID, opts)
	if err != nil {
		log.Fatalf("Failed to create transcript: %v", err)
	}
	defer transcript.Close()

	generator := versequiz.NewSummaryGenerator(*apiKey)
	if *dedup {
		generator.WithDedup(versequiz.NewSummaryDedup(*apiKey))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Printf("Starting summary run %s", runID)
	updated, report, err := generator.Generate(ctx, corpus, opts, transcript)
	if updated != nil && report.Accepted > 0 {
		if saveErr := versequiz.SaveCorpus(*output, updated); saveErr != nil {
			log.Fatalf("Failed to save corpus: %v", saveErr)
		}
		log.Printf("Corpus saved to: %s", *output)
	}
	if err != nil {
		log.Fatalf("Summary generation stopped: %v", err)
	}

	summary, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal report: %v", err)
	}
	fmt.Println(string(summary))
}
