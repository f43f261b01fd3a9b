// Package assist asks Claude to explain run output and code terms.
package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// MaxTranscriptLines bounds how much history is sent for an explanation.
const MaxTranscriptLines = 200

// Client wraps the Anthropic API.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates a client with the given API key and model. Extra request
// options are passed to the SDK.
func NewClient(apiKey, model string, extra ...option.RequestOption) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	opts = append(opts, extra...)
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildTranscriptPrompt constructs the prompts for explaining a transcript.
func buildTranscriptPrompt(lines []string, code, lang string) (system string, user string) {
	system = `You help a developer understand the output of commands they ran in a project workspace. The transcript lists commands prefixed with "$ " followed by their output. Lines starting with "Error: " are errors reported by the execution backend.

Rules:
- Explain what happened in the most recent command first
- If something failed, name the most likely cause and a concrete fix
- Refer to file names and line numbers from the output when present
- Be concise: at most a few short paragraphs, plain text, no markdown headings`

	if len(lines) > MaxTranscriptLines {
		lines = lines[len(lines)-MaxTranscriptLines:]
	}

	var sb strings.Builder
	sb.WriteString("Transcript:\n")
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	if code != "" {
		sb.WriteString("\nCurrently open file")
		if lang != "" {
			sb.WriteString(" (")
			sb.WriteString(lang)
			sb.WriteString(")")
		}
		sb.WriteString(":\n")
		sb.WriteString(code)
		sb.WriteString("\n")
	}
	user = sb.String()
	return
}

// buildTermPrompt constructs the prompts for explaining a single term.
func buildTermPrompt(term, lang string) (system string, user string) {
	system = `You explain programming terms briefly. Give a one or two sentence explanation followed by a short usage example. Plain text only.`
	if lang == "" {
		lang = "programming"
	}
	user = fmt.Sprintf("Explain the %s term %q.", lang, term)
	return
}

// ExplainTranscript explains recent transcript lines, optionally with the
// open file's code for context.
func (c *Client) ExplainTranscript(ctx context.Context, lines []string, code, lang string) (string, error) {
	if len(lines) == 0 {
		return "", fmt.Errorf("transcript is empty")
	}
	system, user := buildTranscriptPrompt(lines, code, lang)
	return c.complete(ctx, system, user, 1024)
}

// ExplainTerm explains a term in the given language.
func (c *Client) ExplainTerm(ctx context.Context, term, lang string) (string, error) {
	if strings.TrimSpace(term) == "" {
		return "", fmt.Errorf("term is empty")
	}
	system, user := buildTermPrompt(term, lang)
	return c.complete(ctx, system, user, 512)
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in API response")
	}
	return strings.TrimSpace(stripFence(text)), nil
}

// stripFence removes a surrounding markdown code fence.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) > 1 {
		text = lines[1]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return text
}
