package screening

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/resume-screener/internal/apperr"
	"github.com/spigell/resume-screener/internal/logger"
)

const (
	outcomeOK        = "ok"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
	outcomeDisabled  = "disabled"
	outcomeCancelled = "cancelled"
)

// DefaultTimeouts returns the per-stage deadlines. A missing or zero entry means no deadline.
func DefaultTimeouts() map[string]time.Duration {
	return map[string]time.Duration{
		StageExtractResumeText: 30 * time.Second,
		StageExtractResumeInfo: 90 * time.Second,
		StageExtractJobInfo:    60 * time.Second,
		StageMatch:             90 * time.Second,
		StagePersist:           10 * time.Second,
		StageNotify:            30 * time.Second,
	}
}

// fallback kinds for errors a collaborator returned without classifying them.
var defaultKinds = map[string]apperr.Kind{
	StageValidate:          apperr.KindValidation,
	StageExtractResumeText: apperr.KindExtraction,
	StageExtractResumeInfo: apperr.KindService,
	StageExtractJobInfo:    apperr.KindService,
	StageMatch:             apperr.KindMatchService,
	StagePersist:           apperr.KindStorage,
	StageNotify:            apperr.KindNotification,
}

// Deps aggregates the collaborators shared by all runs.
type Deps struct {
	Text     TextExtractor
	Info     InfoExtractor
	Matcher  Matcher
	Store    ResultStore
	Notifier Notifier
}

// Config tunes the pipeline.
type Config struct {
	// Timeouts overrides DefaultTimeouts per stage name.
	Timeouts map[string]time.Duration
	// ConcurrentExtraction runs the resume and job extraction stages together.
	ConcurrentExtraction bool
}

// Pipeline runs the screening stages in order. It is safe for concurrent use
// as long as stages are not disabled while runs are in flight.
type Pipeline struct {
	stages     []Stage
	timeouts   map[string]time.Duration
	concurrent bool
	logger     *zap.Logger

	newID func() string
	now   func() time.Time
}

// Stages builds the standard stage list. A nil Notifier leaves the notify stage disabled.
func Stages(deps Deps) ([]Stage, error) {
	switch {
	case deps.Text == nil:
		return nil, errors.New("text extractor is required")
	case deps.Info == nil:
		return nil, errors.New("info extractor is required")
	case deps.Matcher == nil:
		return nil, errors.New("matcher is required")
	case deps.Store == nil:
		return nil, errors.New("result store is required")
	}

	return []Stage{
		NewValidate(),
		NewExtractResumeText(deps.Text),
		NewExtractResumeInfo(deps.Info),
		NewExtractJobInfo(deps.Info),
		NewMatch(deps.Matcher),
		NewPersist(deps.Store),
		NewNotify(deps.Notifier),
	}, nil
}

// New builds a pipeline over the standard stages.
func New(deps Deps, cfg Config, log *zap.Logger) (*Pipeline, error) {
	stages, err := Stages(deps)
	if err != nil {
		return nil, err
	}
	return NewWithStages(stages, cfg, log), nil
}

// NewWithStages builds a pipeline over an explicit stage list.
func NewWithStages(stages []Stage, cfg Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	timeouts := DefaultTimeouts()
	for name, d := range cfg.Timeouts {
		timeouts[name] = d
	}
	return &Pipeline{
		stages:     stages,
		timeouts:   timeouts,
		concurrent: cfg.ConcurrentExtraction,
		logger:     log,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// DisableStage disables a tail stage by name.
func (p *Pipeline) DisableStage(name, reason string) {
	DisableByName(p.stages, name, reason)
}

// Describe reports every stage with its configured timeout.
func (p *Pipeline) Describe() []Status {
	statuses := Describe(p.stages)
	for i := range statuses {
		d := p.timeouts[statuses[i].Name]
		if d <= 0 {
			continue
		}
		details := make(map[string]string, len(statuses[i].Details)+1)
		for k, v := range statuses[i].Details {
			details[k] = v
		}
		details["timeout"] = d.String()
		statuses[i].Details = details
	}
	return statuses
}

// Run screens one resume. It never returns an error: failures are recorded in the state.
func (p *Pipeline) Run(ctx context.Context, in Input) RunState {
	state := RunState{
		RunID:      p.newID(),
		JobTitle:   in.JobTitle,
		Resume:     in.Resume,
		JobCatalog: in.Catalog,
		StartedAt:  p.now(),
	}
	log := logger.ForRun(p.logger, state.RunID)
	log.Info("screening started",
		zap.String("job_title", in.JobTitle),
		zap.String("resume", in.Resume.Filename),
	)

	for i := 0; i < len(p.stages); i++ {
		if state.Halted {
			break
		}

		st := p.stages[i]
		if p.concurrent && i+1 < len(p.stages) && p.pairable(st, p.stages[i+1]) {
			state = p.runPair(ctx, state, st, p.stages[i+1], log)
			i++
			continue
		}
		state = p.runStage(ctx, state, st, log)
	}

	state.FinishedAt = p.now()
	log.Info("screening finished",
		zap.Bool("halted", state.Halted),
		zap.Bool("persisted", state.Persisted),
		zap.Bool("notified", state.Notified),
		zap.Int("errors", len(state.Errors)),
		zap.Duration("duration", state.FinishedAt.Sub(state.StartedAt)),
	)
	return state
}

func (p *Pipeline) pairable(a, b Stage) bool {
	return a.Name() == StageExtractResumeInfo && b.Name() == StageExtractJobInfo &&
		a.IsEnabled() && b.IsEnabled()
}

func (p *Pipeline) apply(ctx context.Context, st Stage, state RunState) (Patch, error) {
	if d := p.timeouts[st.Name()]; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return st.Apply(ctx, state)
}

func (p *Pipeline) runStage(ctx context.Context, state RunState, st Stage, log *zap.Logger) RunState {
	log = log.With(zap.String(logger.FieldStage, st.Name()))

	if !st.IsEnabled() {
		reason := "disabled"
		if reporter, ok := st.(statusProvider); ok && reporter.Status().Reason != "" {
			reason = reporter.Status().Reason
		}
		state.Errors = appendErrors(state.Errors, StageError{
			Stage:         st.Name(),
			Kind:          apperr.KindStageDisabled,
			Message:       reason,
			Informational: true,
		})
		logStage(log, outcomeDisabled, 0, zap.String("reason", reason))
		return state
	}

	start := time.Now()
	patch, err := p.apply(ctx, st, state)
	elapsed := time.Since(start)

	if err != nil {
		logStage(log, outcomeFailed, elapsed, zap.Error(err))
		return fail(state, st, err)
	}
	return p.settle(state, st, patch, elapsed, log)
}

// settle merges a successful patch, halting the run when the merge is rejected.
func (p *Pipeline) settle(state RunState, st Stage, patch Patch, elapsed time.Duration, log *zap.Logger) RunState {
	next, err := merge(state, st.Name(), patch)
	if err != nil {
		logStage(log, outcomeFailed, elapsed, zap.Error(err))
		state.Errors = appendErrors(state.Errors, StageError{Stage: st.Name(), Kind: apperr.KindInternal, Message: err.Error()})
		state.Halted = true
		return state
	}

	outcome := outcomeOK
	if len(patch.Notes) > 0 {
		outcome = outcomeSkipped
		log = log.With(zap.String("reason", patch.Notes[0].Message))
	}
	logStage(log, outcome, elapsed)
	return next
}

// fail records err for st. Fatal stages halt the run.
func fail(state RunState, st Stage, err error) RunState {
	kind := apperr.KindOf(err)
	if kind == "" {
		kind = defaultKinds[st.Name()]
	}
	if kind == "" {
		kind = apperr.KindInternal
	}

	state.Errors = appendErrors(state.Errors, StageError{
		Stage:     st.Name(),
		Kind:      kind,
		Message:   err.Error(),
		Retryable: kind.Retryable(),
	})
	if st.Class() == ClassFatal {
		state.Halted = true
	}
	return state
}

type pairResult struct {
	patch    Patch
	err      error
	elapsed  time.Duration
	finished time.Time
}

// runPair runs the resume and job extraction stages on the same snapshot.
// A real failure of either cancels the other. Exactly one error is recorded:
// the earliest real failure, with declaration order breaking ties.
func (p *Pipeline) runPair(ctx context.Context, state RunState, resume, job Stage, log *zap.Logger) RunState {
	g, gctx := errgroup.WithContext(ctx)
	snapshot := state
	pair := []Stage{resume, job}

	results := make([]pairResult, len(pair))
	for i, st := range pair {
		g.Go(func() error {
			start := time.Now()
			patch, err := p.apply(gctx, st, snapshot)
			finished := time.Now()
			results[i] = pairResult{patch: patch, err: err, elapsed: finished.Sub(start), finished: finished}
			return err
		})
	}
	_ = g.Wait()

	for i, st := range pair {
		r := results[i]
		stageLog := log.With(zap.String(logger.FieldStage, st.Name()))

		switch {
		case r.err == nil:
			state = p.settle(state, st, r.patch, r.elapsed, stageLog)
		case cancelledBySibling(ctx, r.err):
			logStage(stageLog, outcomeCancelled, r.elapsed)
		default:
			logStage(stageLog, outcomeFailed, r.elapsed, zap.Error(r.err))
		}
	}

	if i := firstFailure(ctx, results); i >= 0 {
		state = fail(state, pair[i], results[i].err)
	}
	return state
}

// firstFailure returns the index of the failure to record, or -1 when every
// stage succeeded. Failures caused only by a sibling's cancellation lose to
// real ones.
func firstFailure(ctx context.Context, results []pairResult) int {
	first := -1
	for i, r := range results {
		if r.err == nil || cancelledBySibling(ctx, r.err) {
			continue
		}
		if first < 0 || r.finished.Before(results[first].finished) {
			first = i
		}
	}
	if first >= 0 {
		return first
	}
	for i, r := range results {
		if r.err != nil {
			return i
		}
	}
	return -1
}

// cancelledBySibling reports whether err only reflects the group context being
// cancelled while the caller's context is still live.
func cancelledBySibling(parent context.Context, err error) bool {
	return parent.Err() == nil && errors.Is(err, context.Canceled)
}

func logStage(log *zap.Logger, outcome string, elapsed time.Duration, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("outcome", outcome),
		zap.Duration("duration", elapsed),
	}, fields...)

	switch outcome {
	case outcomeFailed:
		log.Warn("stage", fields...)
	default:
		log.Info("stage", fields...)
	}
}

// String renders a short human summary of the state, used in logs and the CLI.
func (s RunState) String() string {
	score := "-"
	if s.MatchResult != nil {
		score = fmt.Sprintf("%d", s.MatchResult.Score)
	}
	return fmt.Sprintf("run %s: job=%q score=%s persisted=%t notified=%t halted=%t errors=%d",
		s.RunID, s.JobTitle, score, s.Persisted, s.Notified, s.Halted, len(s.Errors))
}
