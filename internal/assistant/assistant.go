// Package assistant talks to an OpenAI-compatible chat completion API for
// ticket summaries and the in-app chat assistant. Every exported call
// degrades to a fixed message instead of returning an error.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/metrics"
	"infinitetms/internal/models"
)

const (
	SummaryNoKey    = "API Key not configured for AI summaries."
	SummaryFailed   = "Failed to generate AI summary."
	SummaryEmpty    = "No summary generated."
	ChatNoKey       = "API Key not configured for the AI assistant."
	ChatFailed      = "The assistant is unavailable right now. Please try again later."
	defaultModel    = "gpt-4.1-mini"
	summaryMaxToken = 200
)

const chatInstruction = "You are InfiniteAI Assistant, the internal companion for InfiniteTech employees. " +
	"You help with tickets, attendance, documents and project workload. Be professional, concise, and helpful."

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Message is one turn of a chat history. Role is "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client struct {
	key     string
	model   string
	timeout time.Duration
	cli     openai.Client
	lg      *zap.SugaredLogger
}

func New(cfg Config, lg *zap.SugaredLogger) *Client {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		key:     cfg.APIKey,
		model:   model,
		timeout: cfg.Timeout,
		cli:     openai.NewClient(opts...),
		lg:      lg,
	}
}

func (c *Client) Configured() bool { return strings.TrimSpace(c.key) != "" }

// Summarize asks for a short progress summary of t.
func (c *Client) Summarize(ctx context.Context, t models.Ticket, updates []models.TicketUpdate) string {
	if !c.Configured() {
		return SummaryNoKey
	}
	text, err := c.complete(ctx, "summary", openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(BuildSummaryPrompt(t, updates))},
		Temperature:         openai.Float(0.7),
		MaxCompletionTokens: openai.Int(summaryMaxToken),
	})
	switch {
	case err != nil:
		c.lg.Warnw("ai summary failed", "ticket_id", t.ID, "error", err)
		return SummaryFailed
	case text == "":
		return SummaryEmpty
	}
	return text
}

// Chat answers message in the context of history.
func (c *Client) Chat(ctx context.Context, message string, history []Message) string {
	if !c.Configured() {
		return ChatNoKey
	}
	msgs := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(chatInstruction)}
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch m.Role {
		case "assistant", "model":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(message))

	text, err := c.complete(ctx, "chat", openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: msgs,
	})
	if err != nil || text == "" {
		if err != nil {
			c.lg.Warnw("ai chat failed", "error", err)
		}
		return ChatFailed
	}
	return text
}

func (c *Client) complete(ctx context.Context, kind string, params openai.ChatCompletionNewParams) (text string, err error) {
	defer func() { metrics.AIRequests.WithLabelValues(kind, metrics.Outcome(err)).Inc() }()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.cli.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrUpstreamAI, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func BuildSummaryPrompt(t models.Ticket, updates []models.TicketUpdate) string {
	var b strings.Builder
	b.WriteString("As a senior project manager, summarize the progress of the following ticket.\n\n")
	fmt.Fprintf(&b, "Ticket Title: %s\n", t.Title)
	fmt.Fprintf(&b, "Description: %s\n", t.Description)
	fmt.Fprintf(&b, "Current Status: %s\n\n", t.Status)
	b.WriteString("Work Updates:\n")
	if len(updates) == 0 {
		b.WriteString("- (none yet)\n")
	}
	for _, u := range updates {
		fmt.Fprintf(&b, "- [%s] %s\n", u.CreatedAt.Format(time.RFC3339), u.UpdateText)
	}
	b.WriteString("\nPlease provide a concise 3-sentence summary of the current progress and any potential bottlenecks.")
	return b.String()
}
