package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/resume-screener/internal/notify"
	"github.com/spigell/resume-screener/internal/store"
)

const (
	app = "resume-screener"
)

type Config struct {
	Catalog  string          `mapstructure:"catalog"`
	Store    *StoreConfig    `mapstructure:"store"`
	AI       *AIConfig       `mapstructure:"ai"`
	Notify   *NotifyConfig   `mapstructure:"notify"`
	Pipeline *PipelineConfig `mapstructure:"pipeline"`
	Document *DocumentConfig `mapstructure:"document"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AIConfig struct {
	Provider          string          `mapstructure:"provider"`
	RequestsPerMinute int             `mapstructure:"requests-per-minute"`
	MaxLogLength      int             `mapstructure:"max-log-length"`
	Gemini            *GeminiConfig   `mapstructure:"gemini"`
	DeepSeek          *DeepSeekConfig `mapstructure:"deepseek"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	Backend    string `mapstructure:"backend"`
	Project    string `mapstructure:"project"`
	Location   string `mapstructure:"location"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type DeepSeekConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
	Model      string `mapstructure:"model"`
}

type NotifyConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	AcceptanceThreshold int    `mapstructure:"acceptance-threshold"`
	SMTPServer          string `mapstructure:"smtp-server"`
	SMTPPort            int    `mapstructure:"smtp-port"`
	Sender              string `mapstructure:"sender"`
	Password            string `mapstructure:"password"`
	PasswordFile        string `mapstructure:"password-file"`
}

type PipelineConfig struct {
	ConcurrentExtraction bool                     `mapstructure:"concurrent-extraction"`
	Timeouts             map[string]time.Duration `mapstructure:"timeouts"`
}

type DocumentConfig struct {
	Pdftotext string `mapstructure:"pdftotext"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-screener scores resumes against a job catalog and notifies candidates",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"ai.gemini.api-key":   "GEMINI_API_KEY",
		"ai.deepseek.api-key": "DEEPSEEK_API_KEY",
		"notify.sender":       "EMAIL_SENDER",
		"notify.password":     "EMAIL_PASSWORD",
		"notify.smtp-server":  "SMTP_SERVER",
		"notify.smtp-port":    "SMTP_PORT",
		"store.dsn":           "RESUME_SCREENER_DB",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("catalog", "job_description.csv")
	viper.SetDefault("store.driver", store.DriverSQLite)
	viper.SetDefault("store.dsn", "candidates_data.db")
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.max-log-length", 200)
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("notify.enabled", true)
	viper.SetDefault("notify.acceptance-threshold", notify.DefaultAcceptanceThreshold)
	viper.SetDefault("notify.smtp-server", notify.DefaultSMTPHost)
	viper.SetDefault("notify.smtp-port", notify.DefaultSMTPPort)
	viper.SetDefault("document.pdftotext", "pdftotext")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-screener.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("catalog", "", "job catalog file, csv or xlsx (default is job_description.csv)")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional: defaults and environment are enough to screen.
	// An explicitly requested or unparsable file is still fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
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

	if config == nil {
		config = &Config{}
	}
	if config.Store == nil {
		config.Store = &StoreConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.AI.DeepSeek == nil {
		config.AI.DeepSeek = &DeepSeekConfig{}
	}
	if config.Notify == nil {
		config.Notify = &NotifyConfig{}
	}
	if config.Pipeline == nil {
		config.Pipeline = &PipelineConfig{}
	}
	if config.Document == nil {
		config.Document = &DocumentConfig{}
	}

	return config, nil
}
