package screening

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/apperr"
	"github.com/spigell/resume-screener/internal/catalog"
	"github.com/spigell/resume-screener/internal/document"
	"github.com/spigell/resume-screener/internal/models"
	"github.com/spigell/resume-screener/internal/notify"
	"github.com/spigell/resume-screener/internal/store"
)

type fakeText struct {
	mu    sync.Mutex
	calls int
	err   error
	block bool
}

func (f *fakeText) ExtractText(ctx context.Context, doc document.Document) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return string(doc.Content), nil
}

type infoReply struct {
	payload map[string]any
	err     error
	// blocks until the context is cancelled
	block bool
	// replies after delay without watching the context
	delay time.Duration
}

type fakeInfo struct {
	replies map[string]infoReply
}

func (f *fakeInfo) Extract(ctx context.Context, _ string, schema models.Schema) (map[string]any, error) {
	reply := f.replies[schema.Name]
	if reply.block {
		<-ctx.Done()
		return nil, apperr.Wrap(apperr.KindService, ctx.Err(), "%s extraction call failed", schema.Name)
	}
	if reply.delay > 0 {
		time.Sleep(reply.delay)
	}
	if reply.err != nil {
		return nil, reply.err
	}
	// copy so concurrent runs never share a map
	out := make(map[string]any, len(reply.payload))
	for k, v := range reply.payload {
		out[k] = v
	}
	return out, nil
}

type fakeMatcher struct {
	score int
	err   error
}

func (f *fakeMatcher) Match(_ context.Context, _ *models.ResumeInfo, _ *models.JobDescriptionInfo) (*ai.MatchAssessment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ai.MatchAssessment{Score: f.score, Feedback: "Solid match."}, nil
}

type fakeStore struct {
	mu   sync.Mutex
	apps []store.Application
	err  error
}

func (f *fakeStore) Persist(_ context.Context, app store.Application) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps = append(f.apps, app)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, msg notify.Message) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeNotifier) Threshold() int { return 65 }

type fixture struct {
	text     *fakeText
	info     *fakeInfo
	matcher  *fakeMatcher
	store    *fakeStore
	notifier *fakeNotifier
}

func newFixture() *fixture {
	return &fixture{
		text: &fakeText{},
		info: &fakeInfo{replies: map[string]infoReply{
			"resume": {payload: map[string]any{
				"candidate_name": "Jane Doe",
				"email":          "jane@example.com",
				"skills":         []any{"Go", "SQL"},
			}},
			"job_description": {payload: map[string]any{
				"job_title":       "Senior Data Person",
				"required_skills": []any{"Go"},
			}},
		}},
		matcher:  &fakeMatcher{score: 72},
		store:    &fakeStore{},
		notifier: &fakeNotifier{},
	}
}

func (f *fixture) deps() Deps {
	return Deps{Text: f.text, Info: f.info, Matcher: f.matcher, Store: f.store, Notifier: f.notifier}
}

func (f *fixture) pipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(f.deps(), cfg, nil)
	require.NoError(t, err)
	return p
}

func testCatalog() catalog.Catalog {
	return catalog.Catalog{
		{Title: "Data Scientist", Description: "Build models in Go and Python.", Company: "Acme", Location: "Remote"},
		{Title: "SRE", Description: "Keep the lights on."},
		{Title: "data scientist", Description: "Duplicate entry that must never win.", Company: "Other"},
	}
}

func testInput(title string) Input {
	return Input{
		JobTitle: title,
		Resume:   document.Document{Filename: "cv.txt", Format: document.FormatTXT, Content: []byte("Jane Doe, Go developer")},
		Catalog:  testCatalog(),
	}
}

func kinds(errs []StageError) []apperr.Kind {
	out := make([]apperr.Kind, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Kind)
	}
	return out
}

func TestRunSuccess(t *testing.T) {
	f := newFixture()
	state := f.pipeline(t, Config{}).Run(context.Background(), testInput("  data SCIENTIST "))

	assert.Empty(t, state.Errors)
	assert.False(t, state.Halted)
	assert.True(t, state.Persisted)
	assert.True(t, state.Notified)
	assert.False(t, state.Failed())
	assert.NotEmpty(t, state.RunID)
	assert.False(t, state.FinishedAt.Before(state.StartedAt))

	require.NotNil(t, state.Job)
	assert.Equal(t, "Acme", state.Job.Company)
	require.NotNil(t, state.ResumeText)
	assert.Equal(t, "Jane Doe, Go developer", *state.ResumeText)
	require.NotNil(t, state.MatchResult)
	assert.Equal(t, 72, state.MatchResult.Score)

	require.Len(t, f.store.apps, 1)
	app := f.store.apps[0]
	assert.Equal(t, state.RunID, app.ID)
	assert.Equal(t, "Data Scientist", app.JobTitle)
	assert.Equal(t, "Acme", app.Company)
	assert.Equal(t, "jane@example.com", app.CandidateEmail)
	assert.Equal(t, store.StatusScreened, app.Status)
	assert.Contains(t, app.ResumeData, `"candidate_name":"Jane Doe"`)
	assert.Contains(t, app.JobData, `"job_title":"Data Scientist"`)

	require.Len(t, f.notifier.msgs, 1)
	msg := f.notifier.msgs[0]
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "Jane Doe", msg.CandidateName)
	assert.Equal(t, "Data Scientist", msg.JobTitle)
	assert.Equal(t, 72, msg.Score)

	result := state.Result()
	assert.Equal(t, state.RunID, result.RunID)
	assert.Equal(t, "Data Scientist", result.JobTitle)
	require.NotNil(t, result.Score)
	assert.Equal(t, 72, *result.Score)
	assert.Equal(t, "Solid match.", result.Feedback)
	assert.NotNil(t, result.Errors)
}

func TestRunJobInfoFollowsCatalog(t *testing.T) {
	f := newFixture()
	state := f.pipeline(t, Config{}).Run(context.Background(), testInput("Data Scientist"))

	require.NotNil(t, state.JobInfo)
	assert.Equal(t, "Data Scientist", state.JobInfo.JobTitle)
	assert.Equal(t, "Acme", state.JobInfo.Company)
	assert.Equal(t, "Remote", state.JobInfo.Location)
}

func TestRunValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		input Input
	}{
		{name: "empty title", input: testInput("   ")},
		{name: "unknown title", input: testInput("Astronaut")},
		{name: "empty resume", input: Input{JobTitle: "SRE", Resume: document.Document{Filename: "cv.txt", Format: document.FormatTXT}, Catalog: testCatalog()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			state := f.pipeline(t, Config{}).Run(context.Background(), tt.input)

			require.Len(t, state.Errors, 1)
			assert.Equal(t, StageValidate, state.Errors[0].Stage)
			assert.Equal(t, apperr.KindValidation, state.Errors[0].Kind)
			assert.True(t, state.Halted)
			assert.Nil(t, state.Job)
			assert.Equal(t, 0, f.text.calls)
			assert.Empty(t, f.store.apps)
			assert.Empty(t, f.notifier.msgs)
			assert.False(t, state.Persisted)
			assert.False(t, state.Notified)
		})
	}
}

func TestRunJobExtractionFailureHalts(t *testing.T) {
	f := newFixture()
	f.info.replies["job_description"] = infoReply{err: apperr.New(apperr.KindSchemaValidation, "job_description response rejected")}

	state := f.pipeline(t, Config{}).Run(context.Background(), testInput("SRE"))

	require.Len(t, state.Errors, 1)
	assert.Equal(t, StageExtractJobInfo, state.Errors[0].Stage)
	assert.Equal(t, apperr.KindSchemaValidation, state.Errors[0].Kind)
	assert.False(t, state.Errors[0].Retryable)
	assert.True(t, state.Halted)
	assert.NotNil(t, state.ResumeInfo)
	assert.Nil(t, state.JobInfo)
	assert.Nil(t, state.MatchResult)
	assert.Empty(t, f.store.apps)
	assert.Empty(t, f.notifier.msgs)
}

func TestRunUnclassifiedErrorsGetStageKind(t *testing.T) {
	f := newFixture()
	f.matcher.err = errors.New("boom")

	state := f.pipeline(t, Config{}).Run(context.Background(), testInput("SRE"))

	require.Len(t, state.Errors, 1)
	assert.Equal(t, StageMatch, state.Errors[0].Stage)
	assert.Equal(t, apperr.KindMatchService, state.Errors[0].Kind)
	assert.True(t, state.Errors[0].Retryable)
	assert.Equal(t, "boom", state.Errors[0].Message)
}

func TestRunStorageFailureStillNotifies(t *testing.T) {
	f := newFixture()
	f.store.err = apperr.New(apperr.KindStorage, "database is locked")

	state := f.pipeline(t, Config{}).Run(context.Background(), testInput("SRE"))

	assert.Equal(t, []apperr.Kind{apperr.KindStorage}, kinds(state.Errors))
	assert.False(t, state.Halted)
	assert.False(t, state.Persisted)
	assert.True(t, state.Notified)
	assert.Len(t, f.notifier.msgs, 1)
}

func TestRunNotificationFailureKeepsPersisted(t *testing.T) {
	f := newFixture()
	f.notifier.err = apperr.New(apperr.KindNotification, "smtp auth failed")

	state := f.pipeline(t, Config{}).Run(context.Background(), testInput("SRE"))

	require.Len(t, state.Errors, 1)
	assert.Equal(t, StageNotify, state.Errors[0].Stage)
	assert.Equal(t, apperr.KindNotification, state.Errors[0].Kind)
	assert.False(t, state.Errors[0].Informational)
	assert.True(t, state.Persisted)
	assert.False(t, state.Notified)
	assert.False(t, state.Halted)
}

func TestRunMissingEmailSkipsNotification(t *testing.T) {
	for name, email := range map[string]any{"missing": nil, "invalid": "jane at example"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.info.replies["resume"] = infoReply{payload: map[string]any{"candidate_name": "Jane Doe", "email": email}}

			state := f.pipeline(t, Config{}).Run(context.Background(), testInput("SRE"))

			require.Len(t, state.Errors, 1)
			entry := state.Errors[0]
			assert.Equal(t, StageNotify, entry.Stage)
			assert.Equal(t, apperr.KindNotificationSkipped, entry.Kind)
			assert.True(t, entry.Informational)
			assert.False(t, state.Failed())
			assert.True(t, state.Persisted)
			assert.False(t, state.Notified)
			assert.Empty(t, f.notifier.msgs)
		})
	}
}

func TestRunWithoutNotifierRecordsDisabledStage(t *testing.T) {
	f := newFixture()
	deps := f.deps()
	deps.Notifier = nil
	p, err := New(deps, Config{}, nil)
	require.NoError(t, err)

	state := p.Run(context.Background(), testInput("SRE"))

	require.Len(t, state.Errors, 1)
	assert.Equal(t, apperr.KindStageDisabled, state.Errors[0].Kind)
	assert.Equal(t, "mail transport is not configured", state.Errors[0].Message)
	assert.True(t, state.Errors[0].Informational)
	assert.True(t, state.Persisted)
	assert.False(t, state.Notified)
}

func TestDisableStage(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, Config{})
	p.DisableStage(StageValidate, "nope")
	p.DisableStage(StagePersist, "dry run")

	state := p.Run(context.Background(), testInput("Astronaut"))
	require.Len(t, state.Errors, 1)
	assert.Equal(t, apperr.KindValidation, state.Errors[0].Kind)

	state = p.Run(context.Background(), testInput("SRE"))
	require.Len(t, state.Errors, 1)
	assert.Equal(t, StagePersist, state.Errors[0].Stage)
	assert.Equal(t, apperr.KindStageDisabled, state.Errors[0].Kind)
	assert.Equal(t, "dry run", state.Errors[0].Message)
	assert.False(t, state.Persisted)
	assert.True(t, state.Notified)
	assert.Empty(t, f.store.apps)
}

func TestRunStageTimeout(t *testing.T) {
	f := newFixture()
	f.text.block = true
	p := f.pipeline(t, Config{Timeouts: map[string]time.Duration{StageExtractResumeText: 20 * time.Millisecond}})

	state := p.Run(context.Background(), testInput("SRE"))

	require.Len(t, state.Errors, 1)
	assert.Equal(t, StageExtractResumeText, state.Errors[0].Stage)
	assert.Equal(t, apperr.KindExtraction, state.Errors[0].Kind)
	assert.Contains(t, state.Errors[0].Message, context.DeadlineExceeded.Error())
	assert.True(t, state.Halted)
}

func TestRunsAreIndependent(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, Config{})

	failed := p.Run(context.Background(), testInput("Astronaut"))
	ok := p.Run(context.Background(), testInput("SRE"))

	assert.NotEqual(t, failed.RunID, ok.RunID)
	assert.Len(t, failed.Errors, 1)
	assert.Empty(t, ok.Errors)
	assert.False(t, ok.Halted)
}

func TestConcurrentRunsAreIsolated(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, Config{ConcurrentExtraction: true})

	titles := []string{"Data Scientist", "SRE", "Astronaut"}
	const runs = 12

	states := make([]RunState, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = p.Run(context.Background(), testInput(titles[i%len(titles)]))
		}(i)
	}
	wg.Wait()

	ids := map[string]struct{}{}
	for i, state := range states {
		ids[state.RunID] = struct{}{}
		title := titles[i%len(titles)]
		if title == "Astronaut" {
			assert.True(t, state.Halted)
			assert.Len(t, state.Errors, 1)
			continue
		}
		assert.Empty(t, state.Errors, "run %d", i)
		require.NotNil(t, state.JobInfo)
		assert.Equal(t, title, state.JobInfo.JobTitle)
	}
	assert.Len(t, ids, runs)
	assert.Len(t, f.store.apps, runs/len(titles)*2)
}

func TestConcurrentExtraction(t *testing.T) {
	resumeErr := apperr.New(apperr.KindSchemaValidation, "resume response rejected")
	jobErr := apperr.New(apperr.KindService, "job_description extraction call failed")

	tests := []struct {
		name          string
		resume        infoReply
		job           infoReply
		wantStage     string
		wantKind      apperr.Kind
		wantRetryable bool
		wantResume    bool
		wantJob       bool
	}{
		{
			name:          "job fails and cancels blocked resume",
			resume:        infoReply{block: true},
			job:           infoReply{err: jobErr},
			wantStage:     StageExtractJobInfo,
			wantKind:      apperr.KindService,
			wantRetryable: true,
		},
		{
			name:      "resume fails and cancels blocked job",
			resume:    infoReply{err: resumeErr},
			job:       infoReply{block: true},
			wantStage: StageExtractResumeInfo,
			wantKind:  apperr.KindSchemaValidation,
		},
		{
			name:          "job fails first, slow resume fails later",
			resume:        infoReply{err: resumeErr, delay: 100 * time.Millisecond},
			job:           infoReply{err: jobErr},
			wantStage:     StageExtractJobInfo,
			wantKind:      apperr.KindService,
			wantRetryable: true,
		},
		{
			name:      "resume fails first, slow job fails later",
			resume:    infoReply{err: resumeErr},
			job:       infoReply{err: jobErr, delay: 100 * time.Millisecond},
			wantStage: StageExtractResumeInfo,
			wantKind:  apperr.KindSchemaValidation,
		},
		{
			name:          "resume succeeds, job fails",
			resume:        infoReply{payload: map[string]any{"candidate_name": "Jane Doe"}},
			job:           infoReply{err: jobErr},
			wantStage:     StageExtractJobInfo,
			wantKind:      apperr.KindService,
			wantRetryable: true,
			wantResume:    true,
		},
		{
			name:      "job succeeds, resume fails",
			resume:    infoReply{err: resumeErr},
			job:       infoReply{payload: map[string]any{"job_title": "x"}},
			wantStage: StageExtractResumeInfo,
			wantKind:  apperr.KindSchemaValidation,
			wantJob:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.info.replies["resume"] = tt.resume
			f.info.replies["job_description"] = tt.job

			state := f.pipeline(t, Config{ConcurrentExtraction: true}).Run(context.Background(), testInput("SRE"))

			require.Len(t, state.Errors, 1)
			assert.Equal(t, tt.wantStage, state.Errors[0].Stage)
			assert.Equal(t, tt.wantKind, state.Errors[0].Kind)
			assert.Equal(t, tt.wantRetryable, state.Errors[0].Retryable)
			assert.True(t, state.Halted)
			assert.Equal(t, tt.wantResume, state.ResumeInfo != nil)
			assert.Equal(t, tt.wantJob, state.JobInfo != nil)
			assert.Nil(t, state.MatchResult)
			assert.Empty(t, f.store.apps)
		})
	}
}

func TestFirstFailure(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	boom := errors.New("boom")
	sibling := apperr.Wrap(apperr.KindService, context.Canceled, "cancelled")

	tests := []struct {
		name    string
		results []pairResult
		want    int
	}{
		{name: "all succeeded", results: []pairResult{{}, {}}, want: -1},
		{name: "exact tie keeps declaration order", results: []pairResult{{err: boom, finished: at}, {err: boom, finished: at}}, want: 0},
		{name: "earlier second wins", results: []pairResult{{err: boom, finished: at.Add(time.Second)}, {err: boom, finished: at}}, want: 1},
		{name: "real failure beats earlier cancellation", results: []pairResult{{err: sibling, finished: at}, {err: boom, finished: at.Add(time.Second)}}, want: 1},
		{name: "only cancellations", results: []pairResult{{}, {err: sibling, finished: at}}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstFailure(ctx, tt.results))
		})
	}
}

func TestConcurrentExtractionSuccess(t *testing.T) {
	f := newFixture()
	state := f.pipeline(t, Config{ConcurrentExtraction: true}).Run(context.Background(), testInput("Data Scientist"))

	assert.Empty(t, state.Errors)
	require.NotNil(t, state.ResumeInfo)
	require.NotNil(t, state.JobInfo)
	assert.Equal(t, "Jane Doe", state.ResumeInfo.CandidateName)
	assert.Equal(t, "Data Scientist", state.JobInfo.JobTitle)
	assert.True(t, state.Persisted)
}

type rewriteStage struct{ fatal }

func (rewriteStage) Name() string { return "rewrite" }

func (rewriteStage) Apply(_ context.Context, s RunState) (Patch, error) {
	return Patch{Job: &catalog.JobRecord{Title: "Hijacked"}}, nil
}

type countingStage struct {
	toggle
	calls int
}

func (c *countingStage) Name() string { return "counting" }

func (c *countingStage) Apply(context.Context, RunState) (Patch, error) {
	c.calls++
	return Patch{}, nil
}

func TestRewriteHaltsRun(t *testing.T) {
	after := &countingStage{}
	p := NewWithStages([]Stage{NewValidate(), rewriteStage{}, after}, Config{}, nil)

	state := p.Run(context.Background(), testInput("SRE"))

	require.Len(t, state.Errors, 1)
	assert.Equal(t, "rewrite", state.Errors[0].Stage)
	assert.Equal(t, apperr.KindInternal, state.Errors[0].Kind)
	assert.True(t, state.Halted)
	require.NotNil(t, state.Job)
	assert.Equal(t, "SRE", state.Job.Title)
	assert.Equal(t, 0, after.calls)
}

func TestMergeRejectsRewrites(t *testing.T) {
	text := "a"
	s := RunState{ResumeText: &text, Persisted: true}

	_, err := merge(s, "x", Patch{ResumeText: &text})
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindInternal})

	_, err = merge(s, "x", Patch{Persisted: true})
	assert.Error(t, err)

	next, err := merge(s, "x", Patch{Notified: true, Notes: []StageError{{Kind: apperr.KindNotificationSkipped, Message: "m"}}})
	require.NoError(t, err)
	assert.True(t, next.Notified)
	require.Len(t, next.Errors, 1)
	assert.Equal(t, "x", next.Errors[0].Stage)
	assert.True(t, next.Errors[0].Informational)
}

func TestAppendErrorsDoesNotAlias(t *testing.T) {
	base := make([]StageError, 1, 4)
	base[0] = StageError{Stage: "a"}

	left := appendErrors(base, StageError{Stage: "b"})
	right := appendErrors(base, StageError{Stage: "c"})

	assert.Equal(t, "b", left[1].Stage)
	assert.Equal(t, "c", right[1].Stage)
	assert.Len(t, base, 1)
}

func TestNewRequiresCollaborators(t *testing.T) {
	f := newFixture()
	deps := f.deps()
	deps.Store = nil
	_, err := New(deps, Config{}, nil)
	assert.ErrorContains(t, err, "result store")
}

func TestDescribe(t *testing.T) {
	f := newFixture()
	deps := f.deps()
	deps.Notifier = nil
	p, err := New(deps, Config{Timeouts: map[string]time.Duration{StageMatch: 2 * time.Minute}}, nil)
	require.NoError(t, err)

	statuses := p.Describe()
	require.Len(t, statuses, 7)

	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		StageValidate, StageExtractResumeText, StageExtractResumeInfo, StageExtractJobInfo,
		StageMatch, StagePersist, StageNotify,
	}, names)

	assert.Equal(t, ClassFatal, statuses[0].Class)
	assert.Empty(t, statuses[0].Details)
	assert.Equal(t, "2m0s", statuses[4].Details["timeout"])
	assert.Equal(t, "pdf,docx,txt", statuses[1].Details["formats"])
	assert.Equal(t, ClassTail, statuses[6].Class)
	assert.False(t, statuses[6].Enabled)
	assert.Equal(t, "mail transport is not configured", statuses[6].Reason)
}

func TestRunLogsEveryStage(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture()
	p, err := New(f.deps(), Config{}, zap.New(core))
	require.NoError(t, err)

	state := p.Run(context.Background(), testInput("SRE"))

	entries := logs.FilterMessage("stage").All()
	require.Len(t, entries, 7)
	for i, entry := range entries {
		fields := entry.ContextMap()
		assert.Equal(t, state.RunID, fields["run_id"], "entry %d", i)
		assert.Equal(t, "ok", fields["outcome"], "entry %d", i)
		assert.Contains(t, fields, "duration")
	}
	assert.Equal(t, StageValidate, entries[0].ContextMap()["stage"])
	assert.Equal(t, StageNotify, entries[6].ContextMap()["stage"])
}

func TestResultOfHaltedRun(t *testing.T) {
	f := newFixture()
	state := f.pipeline(t, Config{}).Run(context.Background(), testInput("Astronaut"))

	result := state.Result()
	assert.True(t, result.Halted)
	assert.Nil(t, result.Score)
	assert.Equal(t, "Astronaut", result.JobTitle)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, state.String(), fmt.Sprintf("run %s", state.RunID))
}
