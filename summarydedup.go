package versequiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// SummaryDedup rejects summaries that cannot be told apart from an already accepted
// summary of another chapter in the same book
type SummaryDedup struct {
	client ChatCompleter
	model  string
	// accepted summaries by book, then chapter
	cache map[string]map[int]string
}

// NewSummaryDedup creates a deduplicator with an OpenAI client
func NewSummaryDedup(apiKey string) *SummaryDedup {
	return NewSummaryDedupWithClient(openai.NewClient(apiKey), openai.GPT4o)
}

// NewSummaryDedupWithClient creates a deduplicator over any chat client
func NewSummaryDedupWithClient(client ChatCompleter, model string) *SummaryDedup {
	return &SummaryDedup{
		client: client,
		model:  model,
		cache:  make(map[string]map[int]string),
	}
}

// DedupResult is the outcome of a duplicate check
type DedupResult struct {
	IsDuplicate      bool   `json:"is_duplicate"`
	Reason           string `json:"reason"`
	DuplicateChapter int    `json:"duplicate_chapter,omitempty"`
}

// Seed records summaries already present in the corpus
func (sd *SummaryDedup) Seed(corpus *Corpus) {
	for _, b := range corpus.Books() {
		for _, ch := range b.Chapters {
			if ch.Summary != "" {
				sd.remember(b.Name, ch.Number, ch.Summary)
			}
		}
	}
}

func (sd *SummaryDedup) remember(book string, chapter int, summary string) {
	m, ok := sd.cache[book]
	if !ok {
		m = make(map[int]string)
		sd.cache[book] = m
	}
	m[chapter] = summary
}

// CheckDuplicate compares task against the accepted summaries of its book. A unique
// summary is remembered for later checks.
func (sd *SummaryDedup) CheckDuplicate(ctx context.Context, task *SummaryTask, transcript *SummaryLog) (*DedupResult, error) {
	existing := make(map[int]string)
	for n, s := range sd.cache[task.Book] {
		if n != task.Chapter {
			existing[n] = s
		}
	}
	if len(existing) == 0 {
		sd.remember(task.Book, task.Chapter, task.Summary)
		return &DedupResult{Reason: "first summary in book"}, nil
	}

	for n, s := range existing {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(task.Summary)) {
			result := &DedupResult{IsDuplicate: true, Reason: "identical text", DuplicateChapter: n}
			transcript.LogSummaryResult(task, "duplicate", fmt.Sprintf("same as chapter %d", n))
			return result, nil
		}
	}

	VerboseLog("Checking for duplicates: %s %d", task.Book, task.Chapter)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Accepted summaries of other chapters of %s:\n\n", task.Book))
	for n, s := range existing {
		sb.WriteString(fmt.Sprintf("Chapter %d: %s\n", n, s))
	}
	sb.WriteString(fmt.Sprintf("\nNew summary for chapter %d: %s\n\n", task.Chapter, task.Summary))
	sb.WriteString("Decide whether a reader could confuse the new summary with one of the accepted ones. ")
	sb.WriteString("Summaries of different events or teachings are not duplicates even if they share people or places. ")
	sb.WriteString("If it is a duplicate, give the chapter number it duplicates.")
	prompt := sb.String()
	transcript.LogLLMRequest("SummaryDedup", prompt)

	resp, err := sd.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: sd.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You detect chapter summaries that are too similar to tell apart.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Tools: []openai.Tool{
				{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        "check_duplicate",
						Description: "Report whether the new summary duplicates an accepted one",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"reason": map[string]interface{}{
									"type":        "string",
									"description": "Explanation for the decision",
								},
								"is_duplicate": map[string]interface{}{
									"type":        "boolean",
									"description": "Whether the new summary duplicates an accepted one",
								},
								"duplicate_chapter": map[string]interface{}{
									"type":        "integer",
									"description": "Chapter number of the duplicated summary, if any",
								},
							},
							"required": []string{"reason", "is_duplicate"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: "check_duplicate",
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicate: %w", err)
	}

	args, err := toolArguments(resp, "check_duplicate")
	if err != nil {
		return nil, err
	}
	transcript.LogLLMResponse("SummaryDedup", args)

	result := &DedupResult{}
	if err := json.Unmarshal([]byte(args), result); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}

	if !result.IsDuplicate {
		sd.remember(task.Book, task.Chapter, task.Summary)
		transcript.LogSummaryResult(task, "unique", result.Reason)
	} else {
		transcript.LogSummaryResult(task, "duplicate", fmt.Sprintf("of chapter %d - %s", result.DuplicateChapter, result.Reason))
	}

	VerboseLog("Summary %s: duplicate=%v, reason=%s", task.ID, result.IsDuplicate, result.Reason)
	return result, nil
}
