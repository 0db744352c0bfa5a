// Package notify tells candidates the outcome of their screening by email.
package notify

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/apperr"
)

// DefaultAcceptanceThreshold is the lowest score that earns an acceptance email.
const DefaultAcceptanceThreshold = 65

const (
	defaultName = "Candidate"
	defaultTeam = "The Recruitment Team"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Decision selects which template a message is rendered with.
type Decision string

const (
	Acceptance Decision = "acceptance"
	Rejection  Decision = "rejection"
)

// Select returns Acceptance when score reaches threshold.
func Select(score, threshold int) Decision {
	if score >= threshold {
		return Acceptance
	}
	return Rejection
}

// Message is everything needed to write to one candidate.
type Message struct {
	To            string
	CandidateName string
	JobTitle      string
	Company       string
	Score         int
	Feedback      string
}

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type templateData struct {
	Name     string
	JobTitle string
	Company  string
	Score    int
	Feedback string
	Team     string
}

// Templates holds the parsed acceptance and rejection emails.
type Templates struct {
	byDecision map[Decision]*template.Template
}

// DefaultTemplates parses the embedded templates.
func DefaultTemplates() (*Templates, error) {
	t := &Templates{byDecision: map[Decision]*template.Template{}}
	for _, d := range []Decision{Acceptance, Rejection} {
		tmpl, err := template.ParseFS(templateFS, "templates/"+string(d)+".tmpl")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", d, err)
		}
		t.byDecision[d] = tmpl
	}
	return t, nil
}

// Render produces the subject and body for msg under the given decision.
func (t *Templates) Render(d Decision, msg Message) (string, string, error) {
	tmpl, ok := t.byDecision[d]
	if !ok {
		return "", "", fmt.Errorf("no template for decision %q", d)
	}

	data := templateData{
		Name:     strings.TrimSpace(msg.CandidateName),
		JobTitle: strings.TrimSpace(msg.JobTitle),
		Company:  strings.TrimSpace(msg.Company),
		Score:    msg.Score,
		Feedback: strings.TrimSpace(msg.Feedback),
		Team:     defaultTeam,
	}
	if data.Name == "" {
		data.Name = defaultName
	}
	if data.Company != "" {
		data.Team = data.Company + " Recruitment Team"
	}

	var subject, body strings.Builder
	if err := tmpl.ExecuteTemplate(&subject, "subject", data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}

	return strings.TrimSpace(subject.String()), strings.TrimSpace(body.String()) + "\n", nil
}

// Notifier renders and sends screening outcome emails.
type Notifier struct {
	mailer    Mailer
	templates *Templates
	threshold int
	logger    *zap.Logger
}

// CheckThreshold rejects thresholds outside the 0-100 score range.
// Zero accepts every candidate.
func CheckThreshold(threshold int) error {
	if threshold < 0 || threshold > 100 {
		return fmt.Errorf("acceptance threshold %d is outside 0-100", threshold)
	}
	return nil
}

// New creates a Notifier that accepts scores at or above threshold.
func New(mailer Mailer, threshold int, logger *zap.Logger) (*Notifier, error) {
	if mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if err := CheckThreshold(threshold); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	templates, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}

	return &Notifier{mailer: mailer, templates: templates, threshold: threshold, logger: logger}, nil
}

func (n *Notifier) Threshold() int {
	return n.threshold
}

// Notify sends the acceptance or rejection email for msg.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return apperr.New(apperr.KindNotification, "recipient address is empty")
	}

	decision := Select(msg.Score, n.threshold)
	subject, body, err := n.templates.Render(decision, msg)
	if err != nil {
		return apperr.Wrap(apperr.KindNotification, err, "render %s email", decision)
	}

	n.logger.Info("sending email",
		zap.String("decision", string(decision)),
		zap.String("to", to),
		zap.String("job_title", msg.JobTitle),
	)

	if err := n.mailer.Send(ctx, to, subject, body); err != nil {
		return apperr.Wrap(apperr.KindNotification, err, "send %s email to %s", decision, to)
	}

	return nil
}
