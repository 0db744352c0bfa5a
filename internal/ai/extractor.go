package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/apperr"
	"github.com/spigell/resume-screener/internal/models"
	"github.com/spigell/resume-screener/internal/utils"
)

//go:embed prompts/extract.md
var extractTemplate string

const (
	extractionSystem    = "You are a precise information extraction engine. You answer with a single JSON object and nothing else."
	defaultMaxLogLength = 200
)

// StructuredExtractor converts free text into a record that conforms to a target schema.
type StructuredExtractor struct {
	generator Generator
	timeout   time.Duration
	logger    *zap.Logger
	maxLogLen int
}

// NewStructuredExtractor builds an extractor. A zero timeout leaves the caller's deadline in charge.
func NewStructuredExtractor(generator Generator, logger *zap.Logger, timeout time.Duration, maxLogLength int) *StructuredExtractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StructuredExtractor{
		generator: generator,
		timeout:   timeout,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Extract asks the provider for a record matching schema and validates the answer.
func (e *StructuredExtractor) Extract(ctx context.Context, text string, schema models.Schema) (map[string]any, error) {
	// Empty text can never yield a conforming record; asking again will not help.
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.KindSchemaValidation, "%s text is empty", schema.Name)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	prompt := buildExtractionPrompt(schema, text)
	e.logger.Debug("structured extraction request",
		zap.String("schema", schema.Name),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, Request{
		System:      extractionSystem,
		Message:     prompt,
		Temperature: ExtractionTemperature,
		JSON:        true,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.KindExtractionTimeout, err, "%s extraction timed out", schema.Name)
		}
		return nil, apperr.Wrap(apperr.KindService, err, "%s extraction call failed", schema.Name)
	}

	e.logger.Debug("structured extraction response",
		zap.String("schema", schema.Name),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	cleaned := extractJSON(raw)
	if !json.Valid([]byte(cleaned)) {
		return nil, apperr.New(apperr.KindSchemaValidation, "%s response is not valid JSON", schema.Name)
	}
	if err := schema.Validate([]byte(cleaned)); err != nil {
		return nil, apperr.Wrap(apperr.KindSchemaValidation, err, "%s response rejected", schema.Name)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindSchemaValidation, err, "%s response is not a JSON object", schema.Name)
	}

	return payload, nil
}

func buildExtractionPrompt(schema models.Schema, text string) string {
	template := extractTemplate
	if strings.TrimSpace(template) == "" {
		template = "{{INSTRUCTION}}\nSchema:\n{{SCHEMA_JSON}}\n\nText:\n{{TEXT}}\n\nJSON Response:"
	}
	instruction := strings.TrimSpace(schema.Instruction)
	if instruction == "" {
		instruction = "Extract structured information from the text."
	}
	prompt := strings.ReplaceAll(template, "{{INSTRUCTION}}", instruction)
	prompt = strings.ReplaceAll(prompt, "{{SCHEMA_JSON}}", schema.JSON())
	return strings.ReplaceAll(prompt, "{{TEXT}}", text)
}
