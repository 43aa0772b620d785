// Package concierge answers customer questions through a hosted language
// model. Only the most recent turns of a conversation are forwarded.
package concierge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	// HistoryLimit is how many trailing messages are sent to the model.
	HistoryLimit   = 10
	maxMessageSize = 2000
	// DefaultTimeout bounds one model call.
	DefaultTimeout = 20 * time.Second
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	ErrEmptyConversation = errors.New("concierge: no messages")
	ErrBadMessage        = errors.New("concierge: invalid message")
	ErrUnavailable       = errors.New("concierge: not configured")
)

type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Generator produces the assistant's next message.
type Generator interface {
	Generate(ctx context.Context, system string, history []Message) (string, error)
}

type Concierge struct {
	Gen     Generator
	System  string
	Log     *zap.Logger
	Timeout time.Duration
}

func New(gen Generator, log *zap.Logger) *Concierge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Concierge{Gen: gen, System: SystemPrompt, Log: log, Timeout: DefaultTimeout}
}

// Reply validates the conversation, keeps the last HistoryLimit messages and
// asks the model for an answer.
func (c *Concierge) Reply(ctx context.Context, msgs []Message) (string, error) {
	if c == nil || c.Gen == nil {
		return "", ErrUnavailable
	}
	recent, err := Recent(msgs)
	if err != nil {
		return "", err
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := c.Gen.Generate(ctx, c.System, recent)
	if err != nil {
		c.Log.Error("concierge generate", zap.Int("turns", len(recent)), zap.Error(err))
		return "", fmt.Errorf("concierge: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Recent returns the trailing window of a conversation after validating
// every message in it.
func Recent(msgs []Message) ([]Message, error) {
	if len(msgs) == 0 {
		return nil, ErrEmptyConversation
	}
	if len(msgs) > HistoryLimit {
		msgs = msgs[len(msgs)-HistoryLimit:]
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		text := strings.TrimSpace(m.Text)
		if text == "" || utf8.RuneCountInString(text) > maxMessageSize {
			return nil, ErrBadMessage
		}
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return nil, ErrBadMessage
		}
		out = append(out, Message{Role: m.Role, Text: text})
	}
	if out[len(out)-1].Role != RoleUser {
		return nil, ErrBadMessage
	}
	return out, nil
}

// GenAIGenerator talks to Gemini through google.golang.org/genai.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

func NewGenAIGenerator(ctx context.Context, apiKey, model string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIGenerator{client: client, model: model}, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, system string, history []Message) (string, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
