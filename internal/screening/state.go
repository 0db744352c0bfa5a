// Package screening runs a candidate's resume through the screening stages.
package screening

import (
	"time"

	"github.com/spigell/resume-screener/internal/apperr"
	"github.com/spigell/resume-screener/internal/catalog"
	"github.com/spigell/resume-screener/internal/document"
	"github.com/spigell/resume-screener/internal/models"
)

// Input starts a run.
type Input struct {
	JobTitle string
	Resume   document.Document
	Catalog  catalog.Catalog
}

// MatchResult is the outcome of comparing the resume with the job.
type MatchResult struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// StageError is one entry of a run's error log.
// Informational entries describe skipped work and never halt a run.
// Retryable entries may succeed when the same input is screened again.
type StageError struct {
	Stage         string      `json:"stage"`
	Kind          apperr.Kind `json:"kind"`
	Message       string      `json:"message"`
	Retryable     bool        `json:"retryable,omitempty"`
	Informational bool        `json:"informational,omitempty"`
}

// RunState is threaded through the stages by value.
// Apart from Errors and Halted, every field is written at most once.
type RunState struct {
	RunID      string
	JobTitle   string
	Resume     document.Document
	JobCatalog catalog.Catalog

	Job         *catalog.JobRecord
	ResumeText  *string
	ResumeInfo  *models.ResumeInfo
	JobInfo     *models.JobDescriptionInfo
	MatchResult *MatchResult
	Persisted   bool
	Notified    bool

	Errors []StageError
	Halted bool

	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether any non-informational error was recorded.
func (s RunState) Failed() bool {
	for _, e := range s.Errors {
		if !e.Informational {
			return true
		}
	}
	return false
}

// Patch carries the fields a stage produced. Zero values mean "not written".
type Patch struct {
	Job         *catalog.JobRecord
	ResumeText  *string
	ResumeInfo  *models.ResumeInfo
	JobInfo     *models.JobDescriptionInfo
	MatchResult *MatchResult
	Persisted   bool
	Notified    bool

	// Notes are informational entries, such as a skipped notification.
	Notes []StageError
}

// merge applies p on top of s. Rewriting a field that is already set is rejected
// and s is returned unchanged.
func merge(s RunState, stage string, p Patch) (RunState, error) {
	var rewritten []string
	if p.Job != nil {
		if s.Job != nil {
			rewritten = append(rewritten, "Job")
		}
		s.Job = p.Job
	}
	if p.ResumeText != nil {
		if s.ResumeText != nil {
			rewritten = append(rewritten, "ResumeText")
		}
		s.ResumeText = p.ResumeText
	}
	if p.ResumeInfo != nil {
		if s.ResumeInfo != nil {
			rewritten = append(rewritten, "ResumeInfo")
		}
		s.ResumeInfo = p.ResumeInfo
	}
	if p.JobInfo != nil {
		if s.JobInfo != nil {
			rewritten = append(rewritten, "JobInfo")
		}
		s.JobInfo = p.JobInfo
	}
	if p.MatchResult != nil {
		if s.MatchResult != nil {
			rewritten = append(rewritten, "MatchResult")
		}
		s.MatchResult = p.MatchResult
	}
	if p.Persisted {
		if s.Persisted {
			rewritten = append(rewritten, "Persisted")
		}
		s.Persisted = true
	}
	if p.Notified {
		if s.Notified {
			rewritten = append(rewritten, "Notified")
		}
		s.Notified = true
	}

	if len(rewritten) > 0 {
		return RunState{}, apperr.New(apperr.KindInternal, "stage %s rewrote already set fields %v", stage, rewritten)
	}

	notes := make([]StageError, 0, len(p.Notes))
	for _, n := range p.Notes {
		if n.Stage == "" {
			n.Stage = stage
		}
		n.Informational = true
		notes = append(notes, n)
	}
	s.Errors = appendErrors(s.Errors, notes...)

	return s, nil
}

// appendErrors never writes into the backing array of errs, so earlier
// snapshots of a state stay untouched.
func appendErrors(errs []StageError, more ...StageError) []StageError {
	if len(more) == 0 {
		return errs
	}
	out := make([]StageError, 0, len(errs)+len(more))
	out = append(out, errs...)
	return append(out, more...)
}

// Result is the caller-facing summary of a run.
type Result struct {
	RunID          string       `json:"run_id"`
	JobTitle       string       `json:"job_title"`
	CandidateName  string       `json:"candidate_name,omitempty"`
	CandidateEmail string       `json:"candidate_email,omitempty"`
	Score          *int         `json:"score,omitempty"`
	Feedback       string       `json:"feedback,omitempty"`
	Persisted      bool         `json:"persisted"`
	Notified       bool         `json:"notified"`
	Halted         bool         `json:"halted"`
	Errors         []StageError `json:"errors"`
}

// Result projects the terminal state.
func (s RunState) Result() Result {
	r := Result{
		RunID:     s.RunID,
		JobTitle:  s.JobTitle,
		Persisted: s.Persisted,
		Notified:  s.Notified,
		Halted:    s.Halted,
		Errors:    append([]StageError{}, s.Errors...),
	}
	if s.Job != nil {
		r.JobTitle = s.Job.Title
	}
	if s.ResumeInfo != nil {
		r.CandidateName = s.ResumeInfo.CandidateName
		r.CandidateEmail = s.ResumeInfo.Email
	}
	if s.MatchResult != nil {
		score := s.MatchResult.Score
		r.Score = &score
		r.Feedback = s.MatchResult.Feedback
	}
	return r
}
