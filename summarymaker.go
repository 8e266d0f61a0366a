package versequiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatCompleter is the part of the OpenAI client the summary generator uses
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// maxPromptVerseChars caps how much chapter text goes into one prompt
const maxPromptVerseChars = 6000

// SummaryMaker writes chapter summaries with GPT-4o
type SummaryMaker struct {
	client ChatCompleter
	model  string
}

// NewSummaryMaker creates a summary maker with an OpenAI client
func NewSummaryMaker(apiKey string) *SummaryMaker {
	return NewSummaryMakerWithClient(openai.NewClient(apiKey), openai.GPT4o)
}

// NewSummaryMakerWithClient creates a summary maker over any chat client
func NewSummaryMakerWithClient(client ChatCompleter, model string) *SummaryMaker {
	return &SummaryMaker{client: client, model: model}
}

// GenerateSummaries asks for one summary per chapter of book
func (sm *SummaryMaker) GenerateSummaries(ctx context.Context, book *Book, chapters []int, transcript *SummaryLog) ([]*SummaryTask, error) {
	logf("Generating %d summaries for %s", len(chapters), book.Name)

	prompt, err := sm.buildPrompt(book, chapters)
	if err != nil {
		return nil, err
	}
	transcript.LogLLMRequest("SummaryMaker", prompt)

	resp, err := sm.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: sm.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You write short chapter summaries for a scripture recall quiz. A reader must be able to recognise the chapter from the summary without being told where it is.",
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
						Name:        "submit_summaries",
						Description: "Submit chapter summaries",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"summaries": map[string]interface{}{
									"type": "array",
									"items": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"chapter": map[string]interface{}{
												"type":        "integer",
												"description": "The chapter number being summarised",
											},
											"summary": map[string]interface{}{
												"type":        "string",
												"description": "Two or three sentences describing the chapter's events or teaching",
											},
										},
										"required": []string{"chapter", "summary"},
									},
								},
							},
							"required": []string{"summaries"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: "submit_summaries",
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summaries: %w", err)
	}

	args, err := toolArguments(resp, "submit_summaries")
	if err != nil {
		return nil, err
	}
	transcript.LogLLMResponse("SummaryMaker", args)

	var toolArgs struct {
		Summaries []struct {
			Chapter int    `json:"chapter"`
			Summary string `json:"summary"`
		} `json:"summaries"`
	}
	if err := json.Unmarshal([]byte(args), &toolArgs); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}

	wanted := make(map[int]bool, len(chapters))
	for _, n := range chapters {
		wanted[n] = true
	}

	tasks := make([]*SummaryTask, 0, len(toolArgs.Summaries))
	for _, s := range toolArgs.Summaries {
		if !wanted[s.Chapter] {
			VerboseLog("Ignoring summary for unrequested chapter %s %d", book.Name, s.Chapter)
			continue
		}
		delete(wanted, s.Chapter)
		tasks = append(tasks, NewSummaryTask(book.Name, s.Chapter, strings.TrimSpace(s.Summary)))
	}

	logf("Generated %d summaries for %s", len(tasks), book.Name)
	return tasks, nil
}

func (sm *SummaryMaker) buildPrompt(book *Book, chapters []int) (string, error) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Summarise each of the following %d chapters of %s.\n\n", len(chapters), book.Name))

	budget := maxPromptVerseChars / max(len(chapters), 1)
	for _, n := range chapters {
		if n < 1 || n > len(book.Chapters) {
			return "", NewNotFound("chapter", fmt.Sprintf("%s %d", book.Name, n))
		}
		sb.WriteString(fmt.Sprintf("--- Chapter %d ---\n", n))
		sb.WriteString(chapterExcerpt(&book.Chapters[n-1], budget))
		sb.WriteString("\n\n")
	}

	sb.WriteString("Requirements:\n")
	sb.WriteString("- Two or three sentences per chapter\n")
	sb.WriteString(fmt.Sprintf("- Never mention the book name (%s) or any chapter or verse number\n", book.Name))
	sb.WriteString("- Describe what happens or what is taught so the chapter can be told apart from its neighbours\n")
	sb.WriteString("- Do not quote whole verses\n")
	sb.WriteString("- Use the submit_summaries tool to return your summaries\n")

	return sb.String(), nil
}

func chapterExcerpt(ch *Chapter, budget int) string {
	var sb strings.Builder
	for _, v := range ch.Verses {
		line := fmt.Sprintf("%d %s\n", v.Number, v.Text)
		if sb.Len()+len(line) > budget && sb.Len() > 0 {
			sb.WriteString("...\n")
			break
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// toolArguments extracts the arguments of the named forced tool call
func toolArguments(resp openai.ChatCompletionResponse, name string) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		return "", fmt.Errorf("no tool calls in response")
	}

	toolCall := choice.Message.ToolCalls[0]
	if toolCall.Function.Name != name {
		return "", fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
	}
	return toolCall.Function.Arguments, nil
}
