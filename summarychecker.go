package versequiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
)

// MaxSummaryRevisions is how often one summary may be revised before it is rejected
const MaxSummaryRevisions = 3

// VerdictAction is the checker's decision for a summary
type VerdictAction string

const (
	ActionAccept VerdictAction = "accept"
	ActionReject VerdictAction = "reject"
	ActionRevise VerdictAction = "revise"
)

// SummaryVerdict is the outcome of checking one summary
type SummaryVerdict struct {
	TaskID  string        `json:"task_id"`
	Action  VerdictAction `json:"action"`
	Reason  string        `json:"reason"`
	Revised *SummaryTask  `json:"revised,omitempty"`
}

// SummaryChecker validates generated summaries
type SummaryChecker struct {
	client ChatCompleter
	model  string
}

// NewSummaryChecker creates a summary checker with an OpenAI client
func NewSummaryChecker(apiKey string) *SummaryChecker {
	return NewSummaryCheckerWithClient(openai.NewClient(apiKey), openai.GPT4o)
}

// NewSummaryCheckerWithClient creates a summary checker over any chat client
func NewSummaryCheckerWithClient(client ChatCompleter, model string) *SummaryChecker {
	return &SummaryChecker{client: client, model: model}
}

// LeaksAnswer reports why a summary gives away its own location, or "" if it doesn't
func LeaksAnswer(summary, book string, chapter int) string {
	lower := strings.ToLower(summary)
	if strings.TrimSpace(lower) == "" {
		return "summary is empty"
	}
	if strings.Contains(lower, strings.ToLower(book)) {
		return fmt.Sprintf("summary names the book %q", book)
	}
	num := strconv.Itoa(chapter)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if w == num {
			return fmt.Sprintf("summary contains the chapter number %d", chapter)
		}
	}
	return ""
}

// CheckSummary validates one summary. Summaries that leak the answer or have been
// revised too often are rejected without asking the model.
func (sc *SummaryChecker) CheckSummary(ctx context.Context, task *SummaryTask, chapter *Chapter, transcript *SummaryLog) (*SummaryVerdict, error) {
	VerboseLog("Checking summary %s for %s %d (revision count: %d)", task.ID, task.Book, task.Chapter, task.RevisionCount)

	if task.RevisionCount >= MaxSummaryRevisions {
		return sc.decide(task, ActionReject, fmt.Sprintf("rejected after %d revision attempts", task.RevisionCount), nil, transcript), nil
	}
	if reason := LeaksAnswer(task.Summary, task.Book, task.Chapter); reason != "" {
		return sc.decide(task, ActionReject, reason, nil, transcript), nil
	}

	prompt := sc.buildPrompt(task, chapter)
	transcript.LogLLMRequest("SummaryChecker", prompt)

	resp, err := sc.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: sc.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You review chapter summaries for a scripture recall quiz. Judge accuracy, distinctiveness and whether the summary gives the answer away.",
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
						Name:        "evaluate_summary",
						Description: "Evaluate a chapter summary and decide whether to accept, reject, or revise it",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"reason": map[string]interface{}{
									"type":        "string",
									"description": "Explanation for the decision",
								},
								"action": map[string]interface{}{
									"type":        "string",
									"enum":        []string{"accept", "reject", "revise"},
									"description": "What to do with this summary",
								},
								"revised_summary": map[string]interface{}{
									"type":        "string",
									"description": "Revised summary (only if action is 'revise')",
								},
							},
							"required": []string{"reason", "action"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: "evaluate_summary",
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to check summary: %w", err)
	}

	args, err := toolArguments(resp, "evaluate_summary")
	if err != nil {
		return nil, err
	}
	transcript.LogLLMResponse("SummaryChecker", args)

	var toolArgs struct {
		Reason         string `json:"reason"`
		Action         string `json:"action"`
		RevisedSummary string `json:"revised_summary,omitempty"`
	}
	if err := json.Unmarshal([]byte(args), &toolArgs); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}

	action := VerdictAction(toolArgs.Action)
	switch action {
	case ActionAccept, ActionReject:
		return sc.decide(task, action, toolArgs.Reason, nil, transcript), nil
	case ActionRevise:
		revised := strings.TrimSpace(toolArgs.RevisedSummary)
		if revised == "" {
			return sc.decide(task, ActionReject, "revision requested without a revised summary", nil, transcript), nil
		}
		next := &SummaryTask{
			ID:            task.ID,
			Book:          task.Book,
			Chapter:       task.Chapter,
			Summary:       revised,
			Status:        SummaryRevised,
			RevisionCount: task.RevisionCount + 1,
		}
		return sc.decide(task, ActionRevise, toolArgs.Reason, next, transcript), nil
	default:
		return nil, fmt.Errorf("unknown verdict action %q", toolArgs.Action)
	}
}

func (sc *SummaryChecker) decide(task *SummaryTask, action VerdictAction, reason string, revised *SummaryTask, transcript *SummaryLog) *SummaryVerdict {
	transcript.LogSummaryResult(task, string(action), reason)
	VerboseLog("Summary %s: %s - %s", task.ID, action, reason)
	return &SummaryVerdict{
		TaskID:  task.ID,
		Action:  action,
		Reason:  reason,
		Revised: revised,
	}
}

func (sc *SummaryChecker) buildPrompt(task *SummaryTask, chapter *Chapter) string {
	var sb strings.Builder

	sb.WriteString("Evaluate the following chapter summary.\n\n")
	sb.WriteString(fmt.Sprintf("Chapter: %s %d\n\n", task.Book, task.Chapter))
	sb.WriteString(fmt.Sprintf("Summary: %s\n\n", task.Summary))
	if chapter != nil {
		sb.WriteString("Chapter text:\n")
		sb.WriteString(chapterExcerpt(chapter, maxPromptVerseChars))
		sb.WriteString("\n")
	}

	sb.WriteString("Evaluation criteria:\n")
	sb.WriteString("1. REJECT if the summary names the book, a chapter number or a verse number.\n")
	sb.WriteString("2. REJECT if the summary describes events that are not in the chapter.\n")
	sb.WriteString("3. REVISE if the summary is accurate but too vague to tell the chapter apart from its neighbours.\n")
	sb.WriteString("4. ACCEPT if the summary is accurate, distinctive and two or three sentences long.\n\n")
	sb.WriteString("If you choose to revise, provide the complete revised summary.")

	return sb.String()
}
