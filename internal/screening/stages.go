package screening

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/apperr"
	"github.com/spigell/resume-screener/internal/document"
	"github.com/spigell/resume-screener/internal/models"
	"github.com/spigell/resume-screener/internal/notify"
	"github.com/spigell/resume-screener/internal/store"
)

const (
	StageValidate          = "validate"
	StageExtractResumeText = "extractResumeText"
	StageExtractResumeInfo = "extractResumeInfo"
	StageExtractJobInfo    = "extractJobInfo"
	StageMatch             = "match"
	StagePersist           = "persist"
	StageNotify            = "notify"
)

// Class decides what a stage failure does to the run.
type Class string

const (
	// ClassFatal failures halt the run.
	ClassFatal Class = "fatal"
	// ClassTail failures are recorded and the run continues.
	ClassTail Class = "tail"
)

// Stage is a single step of a screening run.
type Stage interface {
	Name() string
	Class() Class
	Disable(reason string)
	IsEnabled() bool

	// Apply reads the state and returns the fields it produced. It must not keep s.
	Apply(ctx context.Context, s RunState) (Patch, error)
}

// Status represents runtime information about a stage.
type Status struct {
	Name    string            `json:"name"`
	Class   Class             `json:"class"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type statusProvider interface {
	Status() Status
}

// TextExtractor turns an uploaded document into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc document.Document) (string, error)
}

// InfoExtractor turns free text into a schema-conforming record.
type InfoExtractor interface {
	Extract(ctx context.Context, text string, schema models.Schema) (map[string]any, error)
}

// Matcher scores a resume against a job description.
type Matcher interface {
	Match(ctx context.Context, resume *models.ResumeInfo, job *models.JobDescriptionInfo) (*ai.MatchAssessment, error)
}

// ResultStore keeps screened applications.
type ResultStore interface {
	Persist(ctx context.Context, app store.Application) error
}

// Notifier informs the candidate.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// fatal stages cannot be switched off.
type fatal struct{}

func (fatal) Class() Class    { return ClassFatal }
func (fatal) Disable(string)  {}
func (fatal) IsEnabled() bool { return true }

type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Class() Class { return ClassTail }

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

type validateStage struct{ fatal }

// NewValidate checks the run input and selects the catalog record.
func NewValidate() Stage { return &validateStage{} }

func (st *validateStage) Name() string { return StageValidate }

func (st *validateStage) Apply(_ context.Context, s RunState) (Patch, error) {
	title := strings.TrimSpace(s.JobTitle)
	if title == "" {
		return Patch{}, apperr.New(apperr.KindValidation, "job title is required")
	}
	if s.Resume.Empty() {
		return Patch{}, apperr.New(apperr.KindValidation, "resume file is empty")
	}
	record, ok := s.JobCatalog.Find(title)
	if !ok {
		return Patch{}, apperr.New(apperr.KindValidation, "job title %q is not in the catalog", title)
	}
	return Patch{Job: record}, nil
}

func (st *validateStage) Status() Status {
	return Status{Name: st.Name(), Class: st.Class(), Enabled: true}
}

type resumeTextStage struct {
	fatal
	extractor TextExtractor
}

// NewExtractResumeText extracts plain text from the resume document.
func NewExtractResumeText(extractor TextExtractor) Stage {
	return &resumeTextStage{extractor: extractor}
}

func (st *resumeTextStage) Name() string { return StageExtractResumeText }

func (st *resumeTextStage) Apply(ctx context.Context, s RunState) (Patch, error) {
	text, err := st.extractor.ExtractText(ctx, s.Resume)
	if err != nil {
		return Patch{}, err
	}
	return Patch{ResumeText: &text}, nil
}

func (st *resumeTextStage) Status() Status {
	return Status{
		Name:    st.Name(),
		Class:   st.Class(),
		Enabled: true,
		Details: map[string]string{"formats": formats()},
	}
}

func formats() string {
	out := make([]string, 0, len(document.SupportedFormats))
	for _, f := range document.SupportedFormats {
		out = append(out, string(f))
	}
	return strings.Join(out, ",")
}

type resumeInfoStage struct {
	fatal
	extractor InfoExtractor
}

// NewExtractResumeInfo turns the resume text into a ResumeInfo.
func NewExtractResumeInfo(extractor InfoExtractor) Stage {
	return &resumeInfoStage{extractor: extractor}
}

func (st *resumeInfoStage) Name() string { return StageExtractResumeInfo }

func (st *resumeInfoStage) Apply(ctx context.Context, s RunState) (Patch, error) {
	if s.ResumeText == nil {
		return Patch{}, apperr.New(apperr.KindInternal, "resume text is not available")
	}
	payload, err := st.extractor.Extract(ctx, *s.ResumeText, models.ResumeSchema())
	if err != nil {
		return Patch{}, err
	}
	info, err := models.DecodeResume(payload)
	if err != nil {
		return Patch{}, apperr.Wrap(apperr.KindSchemaValidation, err, "resume payload")
	}
	return Patch{ResumeInfo: info}, nil
}

func (st *resumeInfoStage) Status() Status {
	return Status{
		Name:    st.Name(),
		Class:   st.Class(),
		Enabled: true,
		Details: map[string]string{"schema": models.ResumeSchema().Name},
	}
}

type jobInfoStage struct {
	fatal
	extractor InfoExtractor
}

// NewExtractJobInfo turns the selected job description into a JobDescriptionInfo.
// The catalog stays authoritative for the title, company and location.
func NewExtractJobInfo(extractor InfoExtractor) Stage {
	return &jobInfoStage{extractor: extractor}
}

func (st *jobInfoStage) Name() string { return StageExtractJobInfo }

func (st *jobInfoStage) Apply(ctx context.Context, s RunState) (Patch, error) {
	if s.Job == nil {
		return Patch{}, apperr.New(apperr.KindInternal, "job record is not selected")
	}
	payload, err := st.extractor.Extract(ctx, s.Job.Description, models.JobDescriptionSchema())
	if err != nil {
		return Patch{}, err
	}
	info, err := models.DecodeJobDescription(payload)
	if err != nil {
		return Patch{}, apperr.Wrap(apperr.KindSchemaValidation, err, "job description payload")
	}

	info.JobTitle = s.Job.Title
	if strings.TrimSpace(info.Company) == "" {
		info.Company = s.Job.Company
	}
	if strings.TrimSpace(info.Location) == "" {
		info.Location = s.Job.Location
	}

	return Patch{JobInfo: info}, nil
}

func (st *jobInfoStage) Status() Status {
	return Status{
		Name:    st.Name(),
		Class:   st.Class(),
		Enabled: true,
		Details: map[string]string{"schema": models.JobDescriptionSchema().Name},
	}
}

type matchStage struct {
	fatal
	matcher Matcher
}

// NewMatch scores the extracted resume against the extracted job.
func NewMatch(matcher Matcher) Stage {
	return &matchStage{matcher: matcher}
}

func (st *matchStage) Name() string { return StageMatch }

func (st *matchStage) Apply(ctx context.Context, s RunState) (Patch, error) {
	if s.ResumeInfo == nil || s.JobInfo == nil {
		return Patch{}, apperr.New(apperr.KindInternal, "cannot match without both resume and job info")
	}
	assessment, err := st.matcher.Match(ctx, s.ResumeInfo, s.JobInfo)
	if err != nil {
		return Patch{}, err
	}
	if assessment == nil {
		return Patch{}, apperr.New(apperr.KindMatchService, "matcher returned no assessment")
	}
	return Patch{MatchResult: &MatchResult{Score: assessment.Score, Feedback: assessment.Feedback}}, nil
}

func (st *matchStage) Status() Status {
	return Status{Name: st.Name(), Class: st.Class(), Enabled: true}
}

type persistStage struct {
	toggle
	store ResultStore
	now   func() time.Time
}

// NewPersist stores the run under its id.
func NewPersist(s ResultStore) Stage {
	return &persistStage{store: s, now: time.Now}
}

func (st *persistStage) Name() string { return StagePersist }

func (st *persistStage) Apply(ctx context.Context, s RunState) (Patch, error) {
	app, err := st.application(s)
	if err != nil {
		return Patch{}, err
	}
	if err := st.store.Persist(ctx, app); err != nil {
		return Patch{}, err
	}
	return Patch{Persisted: true}, nil
}

func (st *persistStage) application(s RunState) (store.Application, error) {
	if s.ResumeInfo == nil || s.JobInfo == nil || s.MatchResult == nil {
		return store.Application{}, apperr.New(apperr.KindStorage, "run has no match result to persist")
	}

	resumeData, err := json.Marshal(s.ResumeInfo)
	if err != nil {
		return store.Application{}, apperr.Wrap(apperr.KindStorage, err, "marshal resume info")
	}
	jobData, err := json.Marshal(s.JobInfo)
	if err != nil {
		return store.Application{}, apperr.Wrap(apperr.KindStorage, err, "marshal job info")
	}

	return store.Application{
		ID:             s.RunID,
		CandidateName:  s.ResumeInfo.CandidateName,
		CandidateEmail: s.ResumeInfo.Email,
		JobTitle:       s.JobInfo.JobTitle,
		Company:        s.JobInfo.Company,
		Score:          s.MatchResult.Score,
		Feedback:       s.MatchResult.Feedback,
		ResumeData:     string(resumeData),
		JobData:        string(jobData),
		Status:         store.StatusScreened,
		CreatedAt:      st.now(),
	}, nil
}

func (st *persistStage) Status() Status {
	return Status{Name: st.Name(), Class: st.Class(), Enabled: st.IsEnabled(), Reason: st.reason}
}

type notifyStage struct {
	toggle
	notifier Notifier
}

// NewNotify emails the candidate. A missing address or score skips the stage with a note.
func NewNotify(n Notifier) Stage {
	st := &notifyStage{notifier: n}
	if n == nil {
		st.Disable("mail transport is not configured")
	}
	return st
}

func (st *notifyStage) Name() string { return StageNotify }

func (st *notifyStage) Apply(ctx context.Context, s RunState) (Patch, error) {
	if s.MatchResult == nil {
		return skipped("no match result to report"), nil
	}
	to, ok := s.ResumeInfo.ContactEmail()
	if !ok {
		return skipped("candidate email is missing or invalid"), nil
	}

	msg := notify.Message{
		To:       to,
		JobTitle: s.JobTitle,
		Score:    s.MatchResult.Score,
		Feedback: s.MatchResult.Feedback,
	}
	if s.ResumeInfo != nil {
		msg.CandidateName = s.ResumeInfo.CandidateName
	}
	if s.JobInfo != nil {
		msg.JobTitle = s.JobInfo.JobTitle
		msg.Company = s.JobInfo.Company
	}

	if err := st.notifier.Notify(ctx, msg); err != nil {
		return Patch{}, err
	}
	return Patch{Notified: true}, nil
}

func skipped(reason string) Patch {
	return Patch{Notes: []StageError{{Kind: apperr.KindNotificationSkipped, Message: reason}}}
}

func (st *notifyStage) Status() Status {
	details := map[string]string{}
	if t, ok := st.notifier.(interface{ Threshold() int }); ok {
		details["acceptance_threshold"] = strconv.Itoa(t.Threshold())
	}
	return Status{Name: st.Name(), Class: st.Class(), Enabled: st.IsEnabled(), Reason: st.reason, Details: details}
}

// DisableByName marks the stage with the provided name as disabled while keeping it in the list.
// Fatal stages ignore the request.
func DisableByName(stages []Stage, name, reason string) {
	for _, st := range stages {
		if st.Name() == name {
			st.Disable(reason)
		}
	}
}

// Describe returns status entries for the provided stages.
func Describe(stages []Stage) []Status {
	statuses := make([]Status, 0, len(stages))
	for _, st := range stages {
		if reporter, ok := st.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}
		statuses = append(statuses, Status{Name: st.Name(), Class: st.Class(), Enabled: st.IsEnabled()})
	}
	return statuses
}
