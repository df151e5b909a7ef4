package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/hh-autoapply/internal/ai"
	"github.com/spigell/hh-autoapply/internal/utils"
)

const (
	Provider = "gemini"

	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
	baseBackoff       = 2 * time.Second
	maxBackoff        = 30 * time.Second
	maxLogLength      = 200

	// Quota hints longer than this fail the request.
	maxQuotaDelay = 20 * time.Second
)

var (
	wait          = utils.WaitFor
	retryHintExpr = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*(ms|s|sec|secs|seconds?)?`)
)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := c.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Generator wraps the Google GenAI chats API with retries on temporary failures.
type Generator struct {
	chats      chatCreator
	model      string
	maxRetries int
	logger     *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		chats:      genaiChats{chats: client.Chats},
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// NewSession starts a conversation that keeps its history between messages.
func (g *Generator) NewSession(system string) *Session {
	return &Session{generator: g, system: system}
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Session is a stateful Gemini conversation.
type Session struct {
	generator *Generator
	system    string

	mu   sync.Mutex
	chat chatSession
}

var _ ai.ChatSession = (*Session)(nil)

func (s *Session) SendMessage(ctx context.Context, message string) (string, error) {
	g := s.generator
	if g == nil || g.chats == nil {
		return "", &ai.Error{Provider: Provider, Err: errors.New("gemini generator is not initialized")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g.logger.Debug("gemini chat message",
		zap.Int("message_length", len([]rune(message))),
		zap.String("message_preview", utils.TruncateForLog(message, maxLogLength)),
	)

	text, err := g.withRetries(ctx, func() (*genai.GenerateContentResponse, error) {
		if s.chat == nil {
			chat, err := g.chats.Create(ctx, g.model, chatConfig(s.system), nil)
			if err != nil {
				return nil, fmt.Errorf("create chat: %w", err)
			}
			s.chat = chat
		}
		return s.chat.SendMessage(ctx, genai.Part{Text: message})
	})
	if err != nil {
		return "", &ai.Error{Provider: Provider, Err: err}
	}

	g.logger.Debug("gemini chat response",
		zap.Int("response_length", len([]rune(text))),
		zap.String("response_preview", utils.TruncateForLog(text, maxLogLength)),
	)

	return text, nil
}

func (g *Generator) withRetries(ctx context.Context, call func() (*genai.GenerateContentResponse, error)) (string, error) {
	attempts := max(g.maxRetries, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := call()
		if err == nil {
			return extractText(resp)
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == attempts {
			break
		}

		g.logger.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := wait(ctx, delay); err != nil {
			return "", fmt.Errorf("waiting to retry: %w", err)
		}
	}

	return "", fmt.Errorf("generate content: %w", lastErr)
}

func chatConfig(system string) *genai.GenerateContentConfig {
	system = strings.TrimSpace(system)
	if system == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
	}
}

// retryDelay reports whether err is temporary and how long to wait before the next attempt.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if hint, ok := parseRetryHint(apiErr.Message); ok {
			if hint > maxQuotaDelay {
				return 0, false
			}
			return hint, true
		}
		return backoff(attempt), true
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff(attempt), true
	}

	return 0, false
}

func parseRetryHint(message string) (time.Duration, bool) {
	match := retryHintExpr.FindStringSubmatch(message)
	if match == nil {
		return 0, false
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}

	unit := time.Second
	if strings.EqualFold(match[2], "ms") {
		unit = time.Millisecond
	}

	return time.Duration(value * float64(unit)), true
}

func backoff(attempt int) time.Duration {
	d := baseBackoff << (attempt - 1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}
