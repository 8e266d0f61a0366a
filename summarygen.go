package versequiz

import (
	"context"
	"fmt"
)

// SummaryOptions controls a summary generation run
type SummaryOptions struct {
	// Books limits the run to these books; empty means every book
	Books []string
	// BatchSize is how many chapters are summarised per request
	BatchSize int
	// MaxRounds bounds how often a chapter is regenerated after rejection
	MaxRounds int
	// Overwrite regenerates chapters that already have a summary
	Overwrite bool
}

func (o SummaryOptions) withDefaults() SummaryOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 5
	}
	if o.MaxRounds <= 0 {
		o.MaxRounds = 3
	}
	return o
}

// SummaryReport counts what happened during a run
type SummaryReport struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Revised  int      `json:"revised"`
	Failed   []string `json:"failed,omitempty"`
}

// SummaryGenerator fills in missing chapter summaries for summary-mode review
type SummaryGenerator struct {
	maker   *SummaryMaker
	checker *SummaryChecker
	dedup   *SummaryDedup
	queue   *SummaryQueue
}

// NewSummaryGenerator creates a generator backed by the OpenAI API
func NewSummaryGenerator(apiKey string) *SummaryGenerator {
	return NewSummaryGeneratorWith(NewSummaryMaker(apiKey), NewSummaryChecker(apiKey))
}

// NewSummaryGeneratorWith creates a generator from an existing maker and checker
func NewSummaryGeneratorWith(maker *SummaryMaker, checker *SummaryChecker) *SummaryGenerator {
	return &SummaryGenerator{
		maker:   maker,
		checker: checker,
		queue:   NewSummaryQueue(),
	}
}

// WithDedup also rejects summaries too similar to another chapter of the same book
func (sg *SummaryGenerator) WithDedup(dedup *SummaryDedup) *SummaryGenerator {
	sg.dedup = dedup
	return sg
}

// Generate returns a copy of corpus with accepted summaries filled in. Chapters still
// without a summary after MaxRounds are listed in the report.
func (sg *SummaryGenerator) Generate(ctx context.Context, corpus *Corpus, opts SummaryOptions, transcript *SummaryLog) (*Corpus, SummaryReport, error) {
	opts = opts.withDefaults()
	report := SummaryReport{}

	books, err := sg.selectBooks(corpus, opts.Books)
	if err != nil {
		return nil, report, err
	}
	if sg.dedup != nil && !opts.Overwrite {
		sg.dedup.Seed(corpus)
	}

	for _, book := range books {
		pending := missingSummaries(book, opts.Overwrite)
		if len(pending) == 0 {
			VerboseLog("%s already has every summary", book.Name)
			continue
		}
		logf("Generating summaries for %d chapters of %s", len(pending), book.Name)

		for round := 0; round < opts.MaxRounds && len(pending) > 0; round++ {
			var retry []int
			for start := 0; start < len(pending); start += opts.BatchSize {
				if err := ctx.Err(); err != nil {
					return corpus, report, err
				}
				batch := pending[start:min(start+opts.BatchSize, len(pending))]

				tasks, err := sg.maker.GenerateSummaries(ctx, book, batch, transcript)
				if err != nil {
					logf("Error generating summaries for %s %v: %v", book.Name, batch, err)
					retry = append(retry, batch...)
					continue
				}
				for _, t := range tasks {
					sg.queue.Add(t)
				}

				processed := sg.processQueue(ctx, corpus, transcript)
				report.Accepted += len(processed.accepted)
				report.Rejected += len(processed.rejected)
				report.Revised += len(processed.revised)

				done := make(map[int]bool, len(processed.accepted))
				for _, t := range processed.accepted {
					updated, err := corpus.SetSummary(t.Book, t.Chapter, t.Summary)
					if err != nil {
						return corpus, report, fmt.Errorf("failed to store summary: %w", err)
					}
					corpus = updated
					done[t.Chapter] = true
				}
				for _, n := range batch {
					if !done[n] {
						retry = append(retry, n)
					}
				}

				logf("Processed %s %v: %d accepted, %d rejected, %d revised",
					book.Name, batch, len(processed.accepted), len(processed.rejected), len(processed.revised))
			}
			pending = retry
		}

		for _, n := range pending {
			report.Failed = append(report.Failed, fmt.Sprintf("%s %d", book.Name, n))
		}
	}

	logf("Summary generation complete: %d accepted, %d still missing", report.Accepted, len(report.Failed))
	return corpus, report, nil
}

func (sg *SummaryGenerator) selectBooks(corpus *Corpus, names []string) ([]*Book, error) {
	if len(names) == 0 {
		books := make([]*Book, 0, len(corpus.books))
		for i := range corpus.books {
			books = append(books, &corpus.books[i])
		}
		return books, nil
	}

	books := make([]*Book, 0, len(names))
	for _, name := range names {
		b, err := ResolveBook(corpus, name)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, nil
}

func missingSummaries(book *Book, overwrite bool) []int {
	var missing []int
	for _, ch := range book.Chapters {
		if overwrite || ch.Summary == "" {
			missing = append(missing, ch.Number)
		}
	}
	return missing
}

// processResult holds the outcome of draining the queue
type processResult struct {
	accepted []*SummaryTask
	rejected []*SummaryTask
	revised  []*SummaryTask
}

// processQueue checks every queued summary. Revised summaries go back on the queue
// and are checked again in the same pass.
func (sg *SummaryGenerator) processQueue(ctx context.Context, corpus *Corpus, transcript *SummaryLog) processResult {
	result := processResult{}

	for !sg.queue.IsEmpty() {
		task := sg.queue.Get()
		if task == nil {
			break
		}

		chapter, _ := corpus.Chapter(task.Book, task.Chapter)
		verdict, err := sg.checker.CheckSummary(ctx, task, chapter, transcript)
		if err != nil {
			logf("Error checking summary for %s %d: %v", task.Book, task.Chapter, err)
			task.Status = SummaryRejected
			result.rejected = append(result.rejected, task)
			continue
		}

		switch verdict.Action {
		case ActionAccept:
			if sg.isDuplicate(ctx, task, transcript) {
				task.Status = SummaryRejected
				result.rejected = append(result.rejected, task)
				continue
			}
			task.Status = SummaryAccepted
			result.accepted = append(result.accepted, task)
		case ActionReject:
			task.Status = SummaryRejected
			result.rejected = append(result.rejected, task)
		case ActionRevise:
			sg.queue.Add(verdict.Revised)
			result.revised = append(result.revised, verdict.Revised)
		}
	}

	return result
}

func (sg *SummaryGenerator) isDuplicate(ctx context.Context, task *SummaryTask, transcript *SummaryLog) bool {
	if sg.dedup == nil {
		return false
	}
	result, err := sg.dedup.CheckDuplicate(ctx, task, transcript)
	if err != nil {
		logf("Error checking %s %d for duplicates: %v", task.Book, task.Chapter, err)
		return true
	}
	return result.IsDuplicate
}
