package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/apperr"
	"github.com/spigell/resume-screener/internal/models"
	"github.com/spigell/resume-screener/internal/utils"
)

//go:embed prompts/match.md
var matchTemplate string

const (
	matchSystem = "You are an expert HR recruitment assistant. You answer with a single JSON object and nothing else."

	// FallbackFeedback replaces an empty feedback string.
	FallbackFeedback = "No detailed feedback was provided."

	MinScore = 0
	MaxScore = 100
)

// Matcher scores a resume against a job description.
type Matcher struct {
	generator Generator
	threshold int
	timeout   time.Duration
	logger    *zap.Logger
	maxLogLen int
}

// NewMatcher builds a matcher. threshold is only used to phrase the prompt.
func NewMatcher(generator Generator, logger *zap.Logger, threshold int, timeout time.Duration, maxLogLength int) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		generator: generator,
		threshold: threshold,
		timeout:   timeout,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Match compares the two records. Out-of-range scores are clamped, never rejected.
func (m *Matcher) Match(ctx context.Context, resume *models.ResumeInfo, job *models.JobDescriptionInfo) (*MatchAssessment, error) {
	if resume == nil {
		return nil, errors.New("resume info is required")
	}
	if job == nil {
		return nil, errors.New("job description info is required")
	}

	resumeJSON, err := json.MarshalIndent(resume, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resume payload: %w", err)
	}
	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	prompt := m.buildPrompt(string(resumeJSON), string(jobJSON))
	m.logger.Debug("match request",
		zap.String("job_title", job.JobTitle),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, m.maxLogLen)),
	)

	raw, err := m.generator.GenerateContent(ctx, Request{
		System:      matchSystem,
		Message:     prompt,
		Temperature: MatchTemperature,
		JSON:        true,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMatchService, err, "match call failed")
	}

	m.logger.Debug("match response",
		zap.String("job_title", job.JobTitle),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	assessment, err := parseMatch(raw)
	if err != nil {
		return nil, err
	}
	if assessment.Clamped {
		m.logger.Warn("match score out of range, clamped",
			zap.Float64("raw_score", assessment.RawScore),
			zap.Int("score", assessment.Score),
		)
	}
	return assessment, nil
}

func (m *Matcher) buildPrompt(resumeJSON, jobJSON string) string {
	template := matchTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job:\n{{JOB_JSON}}\n\nResume:\n{{RESUME_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{THRESHOLD}}", strconv.Itoa(m.threshold))
	prompt = strings.ReplaceAll(prompt, "{{JOB_JSON}}", jobJSON)
	return strings.ReplaceAll(prompt, "{{RESUME_JSON}}", resumeJSON)
}

func parseMatch(raw string) (*MatchAssessment, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, apperr.Wrap(apperr.KindMatchService, err, "parse match response")
	}

	rawScore := coerceFloat(data["match_score"])
	if math.IsNaN(rawScore) || math.IsInf(rawScore, 0) {
		return nil, apperr.New(apperr.KindMatchService, "match response has no numeric match_score")
	}

	score, clamped := ClampScore(rawScore)
	feedback := coerceString(data["feedback"])
	if feedback == "" {
		feedback = FallbackFeedback
	}

	return &MatchAssessment{
		Score:    score,
		RawScore: rawScore,
		Clamped:  clamped,
		Feedback: feedback,
		Raw:      raw,
	}, nil
}

// ClampScore rounds v and limits it to [MinScore, MaxScore].
func ClampScore(v float64) (int, bool) {
	rounded := math.Round(v)
	switch {
	case rounded < MinScore:
		return MinScore, true
	case rounded > MaxScore:
		return MaxScore, true
	default:
		return int(rounded), false
	}
}
