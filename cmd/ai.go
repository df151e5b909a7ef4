package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-autoapply/internal/ai"
	"github.com/spigell/hh-autoapply/internal/ai/gemini"
	"github.com/spigell/hh-autoapply/internal/ai/yandexgpt"
	"github.com/spigell/hh-autoapply/internal/logger"
	"github.com/spigell/hh-autoapply/internal/secrets"
)

// newChatSession starts the conversation used for every cover letter of the run.
func newChatSession(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.ChatSession, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", gemini.Provider:
		if cfg.Gemini == nil {
			cfg.Gemini = &GeminiConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: cfg.Gemini.APIKeyFile,
			Env:  "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
		}

		genLogger := logger.WithFields(log, logger.AIFields(gemini.Provider, cfg.Gemini.Model)...).
			With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries))

		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
		if err != nil {
			return nil, err
		}

		genLogger.Info("using ai for cover letters", zap.String("model", generator.Model()))
		return generator.NewSession(cfg.FirstPrompt), nil

	case yandexgpt.Provider:
		if cfg.YandexGPT == nil {
			cfg.YandexGPT = &YandexGPTConfig{}
		}

		token, err := secrets.Load(secrets.Source{
			Name: "yandexgpt token",
			File: cfg.YandexGPT.TokenFile,
			Env:  "YANDEXGPT_TOKEN",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.yandexgpt.token-file, YANDEXGPT_TOKEN_FILE or YANDEXGPT_TOKEN)", err)
		}

		client, err := yandexgpt.New(token, yandexgpt.Options{
			CatalogID: cfg.YandexGPT.CatalogID,
			ModelURI:  cfg.YandexGPT.ModelURI,
		}, log)
		if err != nil {
			return nil, err
		}

		logger.WithFields(log, logger.AIFields(yandexgpt.Provider, client.Model())...).
			Info("using ai for cover letters")
		return client.NewSession(cfg.FirstPrompt), nil
	}

	return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
}
