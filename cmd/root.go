package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/hh-autoapply/internal/dispatch"
	"github.com/spigell/hh-autoapply/internal/headhunter"
)

const (
	app = "hh-autoapply"
)

type Config struct {
	TokenFile string        `mapstructure:"token-file"`
	UserAgent string        `mapstructure:"user-agent"`
	APIURL    string        `mapstructure:"api-url"`
	LogFile   string        `mapstructure:"log-file"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	Apply     *ApplyConfig  `mapstructure:"apply"`
	AI        *AIConfig     `mapstructure:"ai"`
}

type ApplyConfig struct {
	ResumeID      string `mapstructure:"resume-id"`
	Search        string `mapstructure:"search"`
	TotalPages    int    `mapstructure:"total-pages"`
	PerPage       int    `mapstructure:"per-page"`
	DryRun        bool   `mapstructure:"dry-run"`
	ForceMessage  bool   `mapstructure:"force-message"`
	MessageList   string `mapstructure:"message-list"`
	ExcludedTerms string `mapstructure:"excluded-terms"`
	ExcludeFile   string `mapstructure:"exclude-file"`
	Exclude       struct {
		Employers []string `mapstructure:"employers"`
	} `mapstructure:"exclude"`
	Delay struct {
		Min time.Duration `mapstructure:"min"`
		Max time.Duration `mapstructure:"max"`
	} `mapstructure:"delay"`
	SearchParams *headhunter.SearchParams `mapstructure:"search-params"`
}

type AIConfig struct {
	Enabled     bool             `mapstructure:"enabled"`
	Provider    string           `mapstructure:"provider"`
	FirstPrompt string           `mapstructure:"first-prompt"`
	Prompt      string           `mapstructure:"prompt"`
	Gemini      *GeminiConfig    `mapstructure:"gemini"`
	YandexGPT   *YandexGPTConfig `mapstructure:"yandexgpt"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type YandexGPTConfig struct {
	TokenFile string `mapstructure:"token-file"`
	CatalogID string `mapstructure:"catalog-id"`
	ModelURI  string `mapstructure:"model-uri"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hh-autoapply applies your published resumes to similar vacancies on hh.ru",
	}

	envBindings = map[string]string{
		"token-file":              "HH_TOKEN_FILE",
		"ai.gemini.api-key-file":  "GEMINI_API_KEY_FILE",
		"ai.yandexgpt.token-file": "YANDEXGPT_TOKEN_FILE",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// A missing .env is fine, variables may come from the environment itself.
	_ = godotenv.Load()

	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hh-autoapply.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("log-file", "", "also write every log entry, debug included, to this file")
	rootCmd.PersistentFlags().Bool("no-redact", false, "do not mask tokens and identifiers in logs")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("no-redact", rootCmd.PersistentFlags().Lookup("no-redact"))
}

func setDefaults() {
	viper.SetDefault("timeout", headhunter.DefaultTimeout)
	viper.SetDefault("retries", headhunter.DefaultRetries)
	viper.SetDefault("apply.total-pages", dispatch.DefaultTotalPages)
	viper.SetDefault("apply.per-page", dispatch.DefaultPerPage)
	viper.SetDefault("apply.delay.min", dispatch.DefaultDelayMin)
	viper.SetDefault("apply.delay.max", dispatch.DefaultDelayMax)
	viper.SetDefault("ai.provider", "gemini")
}

func initConfig() {
	// Config needed only for apply command. If it is not called, we can skip initialization.
	if applyCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error.
	// Without an explicit --config the file is optional, flags may be enough.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Apply == nil {
		config.Apply = &ApplyConfig{}
	}

	if config.AI == nil {
		config.AI = &AIConfig{}
	}

	return config, nil
}
