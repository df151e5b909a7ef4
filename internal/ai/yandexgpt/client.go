package yandexgpt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	yandexgptclient "github.com/sheeiavellie/go-yandexgpt"
	"go.uber.org/zap"

	"github.com/spigell/hh-autoapply/internal/ai"
	"github.com/spigell/hh-autoapply/internal/utils"
)

const (
	Provider = "yandexgpt"

	maxLogLength = 200
)

type completer interface {
	complete(ctx context.Context, request yandexgptclient.YandexGPTRequest) (string, error)
}

type apiCompleter struct {
	client *yandexgptclient.YandexGPTClient
}

func (a apiCompleter) complete(ctx context.Context, request yandexgptclient.YandexGPTRequest) (string, error) {
	response, err := a.client.CreateRequest(ctx, request)
	if err != nil {
		return "", fmt.Errorf("send request to yandexgpt api: %w", err)
	}
	if len(response.Result.Alternatives) == 0 {
		return "", errors.New("yandexgpt api returned no alternatives")
	}
	return response.Result.Alternatives[0].Message.Text, nil
}

type Options struct {
	CatalogID string
	// ModelURI overrides the lite model of the catalog.
	ModelURI string
}

// Client talks to YandexGPT with an IAM token.
type Client struct {
	completer completer
	modelURI  string
	logger    *zap.Logger
}

func New(token string, opts Options, logger *zap.Logger) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("yandexgpt token is required")
	}

	modelURI := strings.TrimSpace(opts.ModelURI)
	if modelURI == "" {
		if opts.CatalogID == "" {
			return nil, errors.New("yandexgpt catalog id or model uri is required")
		}
		modelURI = yandexgptclient.MakeModelURI(opts.CatalogID, yandexgptclient.YandexGPTModelLite)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		completer: apiCompleter{client: yandexgptclient.NewYandexGPTClientWithIAMToken(token)},
		modelURI:  modelURI,
		logger:    logger,
	}, nil
}

func (c *Client) Model() string { return c.modelURI }

// NewSession starts a conversation. A non-empty system text becomes its first message.
func (c *Client) NewSession(system string) *Session {
	s := &Session{client: c}
	if system = strings.TrimSpace(system); system != "" {
		s.history = append(s.history, yandexgptclient.YandexGPTMessage{
			Role: yandexgptclient.YandexGPTMessageRoleSystem,
			Text: system,
		})
	}
	return s
}

// Session resends the whole history with every message, the API itself is stateless.
type Session struct {
	client *Client

	mu      sync.Mutex
	history []yandexgptclient.YandexGPTMessage
}

var _ ai.ChatSession = (*Session)(nil)

func (s *Session) SendMessage(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := yandexgptclient.YandexGPTMessage{
		Role: yandexgptclient.YandexGPTMessageRoleUser,
		Text: message,
	}

	messages := make([]yandexgptclient.YandexGPTMessage, 0, len(s.history)+1)
	messages = append(messages, s.history...)
	messages = append(messages, user)

	request := yandexgptclient.YandexGPTRequest{
		ModelURI: s.client.modelURI,
		CompletionOptions: yandexgptclient.YandexGPTCompletionOptions{
			Stream:      false,
			Temperature: 0.3,
			MaxTokens:   2000,
		},
		Messages: messages,
	}

	s.client.logger.Debug("yandexgpt chat message",
		zap.Int("history_length", len(s.history)),
		zap.String("message_preview", utils.TruncateForLog(message, maxLogLength)),
	)

	text, err := s.client.completer.complete(ctx, request)
	if err != nil {
		return "", &ai.Error{Provider: Provider, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ai.Error{Provider: Provider, Err: errors.New("yandexgpt api returned empty response")}
	}

	s.history = append(s.history, user, yandexgptclient.YandexGPTMessage{
		Role: yandexgptclient.YandexGPTMessageRoleAssistant,
		Text: text,
	})

	return text, nil
}
