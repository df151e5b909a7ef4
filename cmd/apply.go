package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-autoapply/internal/dispatch"
	"github.com/spigell/hh-autoapply/internal/filtering"
	"github.com/spigell/hh-autoapply/internal/headhunter"
	"github.com/spigell/hh-autoapply/internal/logger"
	"github.com/spigell/hh-autoapply/internal/messages"
	"github.com/spigell/hh-autoapply/internal/secrets"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var prompt = promptui.Select{
	Label: "Apply to similar vacancies?",
	Items: []string{PromptYes, PromptNo},
}

var applyCmd = &cobra.Command{
	Use:     "apply",
	Aliases: []string{"apply-similar"},
	Short:   "Apply published resumes to similar vacancies",
	Run: func(cmd *cobra.Command, _ []string) {
		apply(cmd)
	},
}

// applyFlags maps apply flags to config keys.
var applyFlags = map[string]string{
	"resume-id":      "apply.resume-id",
	"search":         "apply.search",
	"total-pages":    "apply.total-pages",
	"per-page":       "apply.per-page",
	"dry-run":        "apply.dry-run",
	"force-message":  "apply.force-message",
	"message-list":   "apply.message-list",
	"excluded-terms": "apply.excluded-terms",
	"exclude-file":   "apply.exclude-file",
	"use-ai":         "ai.enabled",
	"first-prompt":   "ai.first-prompt",
	"prompt":         "ai.prompt",
}

func init() {
	rootCmd.AddCommand(applyCmd)

	flags := applyCmd.Flags()
	flags.String("resume-id", "", "apply only with the resume with this id. Default is all published resumes.")
	flags.String("search", "", "text to narrow similar vacancies")
	flags.Int("total-pages", dispatch.DefaultTotalPages, "how many pages of similar vacancies to scan")
	flags.Int("per-page", dispatch.DefaultPerPage, "vacancies per page, 100 at most")
	flags.Bool("dry-run", false, "do everything except sending applications")
	flags.Bool("force-message", false, "send a cover letter with every application")
	flags.Bool("use-ai", false, "write cover letters with the configured ai provider")
	flags.String("first-prompt", "", "system instruction opening the ai chat")
	flags.String("prompt", "", "prompt sent to the ai chat before each vacancy name")
	flags.String("message-list", "", "file with cover letter templates, one per line")
	flags.String("excluded-terms", "", "comma separated terms, vacancies mentioning them are skipped")
	flags.StringP("exclude-file", "e", "", "special file with vacancies to exclude. Default is unset.")
	flags.BoolP("yes", "y", false, "do not ask for confirmation before applying")

	for flag, key := range applyFlags {
		viper.BindPFlag(key, flags.Lookup(flag))
	}
}

// apply is the main command for the cli.
func apply(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(logger.Options{
		JSON:     viper.GetBool("json"),
		Debug:    viper.GetBool("debug"),
		File:     viper.GetString("log-file"),
		NoRedact: viper.GetBool("no-redact"),
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the hh-autoapply", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	token, err := resolveToken(config)
	if err != nil {
		logger.Fatal(
			"loading headhunter token",
			zap.Error(err),
			zap.String("hint", "set HH_TOKEN_FILE or HH_TOKEN environment variable or the 'token-file' key in the configuration file"),
		)
	}

	hh := headhunter.New(logger, token, headhunter.Options{
		APIURL:    config.APIURL,
		UserAgent: config.UserAgent,
		Timeout:   config.Timeout,
		Retries:   config.Retries,
	})

	filters, err := prepareFilters(config.Apply, logger)
	if err != nil {
		logger.Fatal("preparing filters", zap.Error(err))
	}

	provider, err := prepareMessages(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing messages", zap.Error(err))
	}

	if !config.Apply.DryRun && !confirmed(cmd, logger) {
		logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return
	}

	dispatcher := dispatch.NewDispatcher(logger, filters, provider, hh, dispatch.Config{
		DryRun:       config.Apply.DryRun,
		ForceMessage: config.Apply.ForceMessage,
		DelayMin:     config.Apply.Delay.Min,
		DelayMax:     config.Apply.Delay.Max,
	}, nil)

	source := dispatch.NewSource(hh, searchParams(config.Apply), config.Apply.PerPage, config.Apply.TotalPages)
	runner := dispatch.NewRunner(logger, hh, source, dispatcher, config.Apply.ResumeID)

	if _, err := runner.Run(ctx); err != nil {
		logger.Fatal("applying to similar vacancies", zap.Error(err))
	}
}

func confirmed(cmd *cobra.Command, logger *zap.Logger) bool {
	if cmd.Flag("yes").Value.String() == "true" {
		return true
	}

	_, action, err := prompt.Run()
	if err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}

	return action == PromptYes
}

func resolveToken(config *Config) (string, error) {
	tokenFile := strings.TrimSpace(config.TokenFile)
	if tokenFile == "" {
		tokenFile = strings.TrimSpace(viper.GetString("token-file"))
	}

	return secrets.Load(secrets.Source{
		Name: "headhunter token",
		File: tokenFile,
		Env:  "HH_TOKEN",
	})
}

func searchParams(config *ApplyConfig) *headhunter.SearchParams {
	params := &headhunter.SearchParams{}
	if config.SearchParams != nil {
		*params = *config.SearchParams
	}

	if search := strings.TrimSpace(config.Search); search != "" {
		params.Text = search
	}

	return params
}

func prepareFilters(config *ApplyConfig, logger *zap.Logger) (*filtering.Filtering, error) {
	excludeFile, err := filtering.NewExcludeFile(config.ExcludeFile)
	if err != nil {
		return nil, err
	}

	filters := filtering.Default(
		filtering.ParseTerms(config.ExcludedTerms),
		filtering.NewExcludedEmployers(config.Exclude.Employers),
		excludeFile,
	)

	for _, status := range filters.Describe() {
		logger.Debug("filter",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.Any("details", status.Details),
		)
	}

	return filters, nil
}

func prepareMessages(ctx context.Context, config *Config, logger *zap.Logger) (messages.Provider, error) {
	if !config.AI.Enabled {
		pool, err := messages.LoadPool(config.Apply.MessageList)
		if err != nil {
			return nil, err
		}

		logger.Info("using message templates", zap.Int("count", pool.Len()))
		return messages.NewTemplateProvider(pool, nil), nil
	}

	session, err := newChatSession(ctx, config.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("building ai chat: %w", err)
	}

	return messages.NewAIProvider(session, config.AI.Prompt), nil
}
