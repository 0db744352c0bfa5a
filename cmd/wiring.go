package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/ai/deepseek"
	"github.com/spigell/resume-screener/internal/ai/gemini"
	"github.com/spigell/resume-screener/internal/document"
	"github.com/spigell/resume-screener/internal/logger"
	"github.com/spigell/resume-screener/internal/notify"
	"github.com/spigell/resume-screener/internal/screening"
	"github.com/spigell/resume-screener/internal/secrets"
	"github.com/spigell/resume-screener/internal/store"
)

// components is everything a screening run needs, built from the config.
type components struct {
	pipeline *screening.Pipeline
	store    *store.Store
}

func (c *components) Close() {
	if c.store != nil {
		_ = c.store.Close()
	}
}

func newRateLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// newGenerator builds the inference client for the configured provider.
func newGenerator(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Generator, string, error) {
	limiter := newRateLimiter(cfg.RequestsPerMinute)

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	switch provider {
	case "", gemini.ProviderName:
		apiKey := ""
		if cfg.Gemini.Backend != gemini.BackendVertexAI {
			key, err := secrets.Load(secrets.Source{
				Name:  "gemini api key",
				Value: cfg.Gemini.APIKey,
				File:  cfg.Gemini.APIKeyFile,
			})
			if err != nil {
				return nil, "", fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
			}
			apiKey = key
		}

		genLogger := logger.ForProvider(log, gemini.ProviderName, cfg.Gemini.Model).
			With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries))

		generator, err := gemini.NewGenerator(ctx, gemini.Config{
			APIKey:     apiKey,
			Model:      cfg.Gemini.Model,
			Backend:    cfg.Gemini.Backend,
			Project:    cfg.Gemini.Project,
			Location:   cfg.Gemini.Location,
			MaxRetries: cfg.Gemini.MaxRetries,
		}, genLogger, limiter)
		if err != nil {
			return nil, "", err
		}
		return generator, gemini.ProviderName, nil

	case deepseek.ProviderName:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "deepseek api key",
			Value: cfg.DeepSeek.APIKey,
			File:  cfg.DeepSeek.APIKeyFile,
		})
		if err != nil {
			return nil, "", fmt.Errorf("%w (set ai.deepseek.api-key-file or DEEPSEEK_API_KEY)", err)
		}

		client, err := deepseek.New(deepseek.Config{
			APIKey:  apiKey,
			BaseURL: cfg.DeepSeek.BaseURL,
			Model:   cfg.DeepSeek.Model,
		}, logger.ForProvider(log, deepseek.ProviderName, cfg.DeepSeek.Model), limiter)
		if err != nil {
			return nil, "", err
		}
		return client, deepseek.ProviderName, nil

	default:
		return nil, "", fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// newNotifier returns nil and a reason when email delivery is not configured.
func newNotifier(cfg *NotifyConfig, log *zap.Logger) (*notify.Notifier, string, error) {
	if !cfg.Enabled {
		return nil, "disabled in configuration", nil
	}

	password, ok, err := secrets.LoadOptional(secrets.Source{
		Name:  "email password",
		Value: cfg.Password,
		File:  cfg.PasswordFile,
	})
	if err != nil {
		return nil, "", err
	}
	if !ok || strings.TrimSpace(cfg.Sender) == "" {
		return nil, "EMAIL_SENDER and EMAIL_PASSWORD are not configured", nil
	}

	mailLogger := log.Named("mail")
	mailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPServer,
		Port:     cfg.SMTPPort,
		Sender:   cfg.Sender,
		Password: password,
	}, mailLogger)
	if err != nil {
		return nil, "", err
	}

	n, err := notify.New(mailer, cfg.AcceptanceThreshold, mailLogger)
	if err != nil {
		return nil, "", err
	}
	return n, "", nil
}

// stageTimeouts maps configured timeouts onto stage names. Viper lowercases keys.
func stageTimeouts(configured map[string]time.Duration) (map[string]time.Duration, error) {
	names := []string{
		screening.StageValidate,
		screening.StageExtractResumeText,
		screening.StageExtractResumeInfo,
		screening.StageExtractJobInfo,
		screening.StageMatch,
		screening.StagePersist,
		screening.StageNotify,
	}

	out := make(map[string]time.Duration, len(configured))
	for key, d := range configured {
		found := false
		for _, name := range names {
			if strings.EqualFold(key, name) {
				out[name] = d
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown stage %q in pipeline.timeouts", key)
		}
	}
	return out, nil
}

func openStore(ctx context.Context, cfg *StoreConfig, log *zap.Logger) (*store.Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("store.dsn is required (or RESUME_SCREENER_DB)")
	}
	return store.Open(ctx, cfg.Driver, cfg.DSN, log.Named("store"))
}

// buildComponents wires the pipeline. Only configuration and bootstrap failures are returned.
func buildComponents(ctx context.Context, config *Config, log *zap.Logger) (*components, error) {
	generator, provider, err := newGenerator(ctx, config.AI, log)
	if err != nil {
		return nil, fmt.Errorf("building ai client: %w", err)
	}
	aiLogger := logger.ForProvider(log, provider, generator.Model())

	// unset keys get notify.DefaultAcceptanceThreshold from viper, so 0 is deliberate
	threshold := config.Notify.AcceptanceThreshold
	if err := notify.CheckThreshold(threshold); err != nil {
		return nil, fmt.Errorf("notify.acceptance-threshold: %w", err)
	}

	db, err := openStore(ctx, config.Store, log)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	deps := screening.Deps{
		Text:    document.NewExtractor(log.Named("document"), document.WithPdftotext(config.Document.Pdftotext)),
		Info:    ai.NewStructuredExtractor(generator, aiLogger, 0, config.AI.MaxLogLength),
		Matcher: ai.NewMatcher(generator, aiLogger, threshold, 0, config.AI.MaxLogLength),
		Store:   db,
	}

	notifier, reason, err := newNotifier(config.Notify, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building notifier: %w", err)
	}
	// keep the interface nil when there is no notifier
	if notifier != nil {
		deps.Notifier = notifier
	}

	timeouts, err := stageTimeouts(config.Pipeline.Timeouts)
	if err != nil {
		db.Close()
		return nil, err
	}

	pipeline, err := screening.New(deps, screening.Config{
		Timeouts:             timeouts,
		ConcurrentExtraction: config.Pipeline.ConcurrentExtraction,
	}, log.Named("pipeline"))
	if err != nil {
		db.Close()
		return nil, err
	}
	if reason != "" {
		pipeline.DisableStage(screening.StageNotify, reason)
	}

	return &components{pipeline: pipeline, store: db}, nil
}
