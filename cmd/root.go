package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/shortlister/internal/ai"
	"github.com/spigell/shortlister/internal/ai/gemini"
	"github.com/spigell/shortlister/internal/ai/openai"
	"github.com/spigell/shortlister/internal/intake"
	"github.com/spigell/shortlister/internal/report"
	"github.com/spigell/shortlister/internal/screening"
)

const (
	app       = "shortlister"
	envPrefix = "SHORTLISTER"
)

type Config struct {
	AI        AIConfig        `mapstructure:"ai" json:"ai"`
	Screening ScreeningConfig `mapstructure:"screening" json:"screening"`
	Intake    IntakeConfig    `mapstructure:"intake" json:"intake"`
	Report    ReportConfig    `mapstructure:"report" json:"report"`
}

type AIConfig struct {
	Provider     string       `mapstructure:"provider" json:"provider"`
	Temperature  float32      `mapstructure:"temperature" json:"temperature"`
	MaxLogLength int          `mapstructure:"max-log-length" json:"max-log-length"`
	Gemini       GeminiConfig `mapstructure:"gemini" json:"gemini"`
	OpenAI       OpenAIConfig `mapstructure:"openai" json:"openai"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file" json:"api-key-file"`
	Model      string `mapstructure:"model" json:"model"`
}

type OpenAIConfig struct {
	APIKey     string        `mapstructure:"api-key" json:"-"`
	APIKeyFile string        `mapstructure:"api-key-file" json:"api-key-file"`
	BaseURL    string        `mapstructure:"base-url" json:"base-url"`
	Model      string        `mapstructure:"model" json:"model"`
	Timeout    time.Duration `mapstructure:"timeout" json:"timeout"`
}

type ScreeningConfig struct {
	Concurrency int           `mapstructure:"concurrency" json:"concurrency"`
	ItemTimeout time.Duration `mapstructure:"item-timeout" json:"item-timeout"`
}

type IntakeConfig struct {
	MaxFiles int `mapstructure:"max-files" json:"max-files"`
}

type ReportConfig struct {
	Format string `mapstructure:"format" json:"format"`
	Output string `mapstructure:"output" json:"output"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "shortlister ranks a batch of resumes against a job description",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	setDefaults()

	for key, envs := range map[string][]string{
		"ai.gemini.api-key":      {"GEMINI_API_KEY"},
		"ai.gemini.api-key-file": {"GEMINI_API_KEY_FILE"},
		"ai.openai.api-key":      {"OPENAI_API_KEY"},
		"ai.openai.api-key-file": {"OPENAI_API_KEY_FILE"},
		"ai.openai.base-url":     {"OPENAI_BASE_URL"},
	} {
		// the prefixed name keeps working next to the conventional one
		args := append([]string{key, envName(key)}, envs...)
		if err := viper.BindEnv(args...); err != nil {
			log.Fatalf("binding %s environment variables: %v", key, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is shortlister.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("ai.provider", gemini.ProviderName)
	viper.SetDefault("ai.temperature", ai.DefaultTemperature)
	viper.SetDefault("ai.max-log-length", 200)
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.openai.base-url", openai.DefaultBaseURL)
	viper.SetDefault("ai.openai.model", openai.DefaultModel)
	viper.SetDefault("ai.openai.timeout", openai.DefaultTimeout)
	viper.SetDefault("screening.concurrency", screening.DefaultConcurrency)
	viper.SetDefault("screening.item-timeout", time.Duration(0))
	viper.SetDefault("intake.max-files", intake.DefaultMaxFiles)
	viper.SetDefault("report.format", string(report.FormatJSON))
	viper.SetDefault("report.output", "")
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

func initConfig() {
	// Only the screen command needs a config.
	if screenCmd.CalledAs() == "" {
		return
	}

	// .env is optional, real environment variables always win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// The default config file is optional. An explicit one is not.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
