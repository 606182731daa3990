package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeAPI struct {
	mu        sync.Mutex
	createErr error
	statuses  []Status
	statusErr error
	errAfter  int
	polls     int
	requests  []Request
	block     chan struct{}
}

func (f *fakeAPI) CreateJob(_ context.Context, req Request) (Created, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return Created{}, f.createErr
	}
	return Created{ID: "job-42", Stage: StagePending}, nil
}

func (f *fakeAPI) JobStatus(ctx context.Context, jobID string) (Status, error) {
	f.mu.Lock()
	f.polls++
	n := f.polls
	block := f.block
	f.mu.Unlock()

	if block != nil && n > len(f.statuses) {
		select {
		case <-block:
		case <-ctx.Done():
			return Status{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if jobID != "job-42" {
		return Status{}, errors.New("unknown job")
	}
	if f.statusErr != nil && n > f.errAfter {
		return Status{}, f.statusErr
	}
	idx := n - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return f.statuses[idx], nil
}

func (f *fakeAPI) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

type progressCall struct {
	stage    Stage
	progress float64
}

type recorder struct {
	mu    sync.Mutex
	calls []progressCall
}

func (r *recorder) record(stage Stage, progress float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, progressCall{stage, progress})
}

func (r *recorder) snapshot() []progressCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progressCall(nil), r.calls...)
}

func newTestSession(api API) *Session {
	return NewSession(api, SessionOptions{Interval: time.Millisecond})
}

func TestSubmitResolvesWithCompletedJob(t *testing.T) {
	api := &fakeAPI{statuses: []Status{
		{Stage: StagePending, Progress: 0},
		{Stage: StageGeneratingStory, Progress: 20},
		{Stage: StageGeneratingSpeech, Progress: 55},
		{Stage: StageCompleted, Progress: 100, Result: &Result{AudioURL: "/audio/job-42.mp3", Title: "Squeaky Shares"}},
	}}
	rec := &recorder{}
	job, err := newTestSession(api).Submit(context.Background(), Request{Theme: "A brave squirrel who learns to share"}, rec.record)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Progress != 100 || job.Stage != StageCompleted {
		t.Fatalf("job = %+v, want completed/100", job)
	}
	if job.Result == nil || job.Result.AudioURL != "/audio/job-42.mp3" {
		t.Fatalf("result = %+v", job.Result)
	}

	want := []progressCall{
		{StagePending, 0},
		{StageGeneratingStory, 20},
		{StageGeneratingSpeech, 55},
		{StageCompleted, 100},
	}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("progress calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("progress call %d = %v, want %v", i, got[i], want[i])
		}
	}
	if api.pollCount() != 4 {
		t.Fatalf("polls = %d, want 4", api.pollCount())
	}
}

func TestSubmitRejectsWithGenerationError(t *testing.T) {
	api := &fakeAPI{statuses: []Status{
		{Stage: StageGeneratingStory, Progress: 10},
		{Stage: StageFailed, Progress: 10, Error: "content policy violation"},
	}}
	_, err := newTestSession(api).Submit(context.Background(), Request{Theme: "x"}, nil)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Message != "content policy violation" {
		t.Fatalf("Message = %q", genErr.Message)
	}
	if genErr.JobID != "job-42" {
		t.Fatalf("JobID = %q", genErr.JobID)
	}
	polls := api.pollCount()
	time.Sleep(10 * time.Millisecond)
	if api.pollCount() != polls {
		t.Fatal("polling continued after failure")
	}
}

func TestGenerationErrorFallbackMessage(t *testing.T) {
	api := &fakeAPI{statuses: []Status{{Stage: StageFailed}}}
	_, err := newTestSession(api).Submit(context.Background(), Request{Theme: "x"}, nil)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Message == "" || genErr.Error() == "" {
		t.Fatal("expected stable non-empty message")
	}
}

func TestSubmitReturnsSubmissionError(t *testing.T) {
	cause := errors.New("503 service unavailable")
	api := &fakeAPI{createErr: cause}
	rec := &recorder{}
	_, err := newTestSession(api).Submit(context.Background(), Request{Theme: "x"}, rec.record)
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("SubmissionError should unwrap to the cause")
	}
	if api.pollCount() != 0 || len(rec.snapshot()) != 0 {
		t.Fatal("no polling should happen after a failed submission")
	}
}

func TestSubmitSurfacesPollError(t *testing.T) {
	api := &fakeAPI{
		statuses:  []Status{{Stage: StageGeneratingStory, Progress: 5}},
		statusErr: errors.New("connection reset"),
		errAfter:  1,
	}
	_, err := newTestSession(api).Submit(context.Background(), Request{Theme: "x"}, nil)
	var pollErr *PollError
	if !errors.As(err, &pollErr) {
		t.Fatalf("expected PollError, got %v", err)
	}
	if pollErr.Attempt != 2 {
		t.Fatalf("Attempt = %d, want 2", pollErr.Attempt)
	}
}

func TestCancelAbandonsSession(t *testing.T) {
	api := &fakeAPI{
		statuses: []Status{{Stage: StageGeneratingStory, Progress: 20}},
		block:    make(chan struct{}),
	}
	session := newTestSession(api)
	rec := &recorder{}

	type outcome struct {
		job *Job
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		job, err := session.Submit(context.Background(), Request{Theme: "x"}, rec.record)
		done <- outcome{job, err}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no progress before cancel")
		}
		time.Sleep(time.Millisecond)
	}
	session.Cancel()
	seen := len(rec.snapshot())
	close(api.block)

	select {
	case res := <-done:
		if !errors.Is(res.err, ErrCancelled) || res.job != nil {
			t.Fatalf("Submit = %v, %v; want ErrCancelled", res.job, res.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Submit did not return after cancel")
	}
	if len(rec.snapshot()) != seen {
		t.Fatal("progress delivered after cancel")
	}
	session.Cancel()
}

func TestCancelBeforeSubmit(t *testing.T) {
	api := &fakeAPI{statuses: []Status{{Stage: StageCompleted, Progress: 100}}}
	session := newTestSession(api)
	session.Cancel()
	if _, err := session.Submit(context.Background(), Request{Theme: "x"}, nil); !IsCancelled(err) {
		t.Fatalf("Submit after cancel = %v, want ErrCancelled", err)
	}
	if len(api.requests) != 0 {
		t.Fatal("cancelled session should not submit")
	}
}

func TestSessionIsSingleUse(t *testing.T) {
	api := &fakeAPI{statuses: []Status{{Stage: StageCompleted, Progress: 100}}}
	session := newTestSession(api)
	if _, err := session.Submit(context.Background(), Request{Theme: "x"}, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := session.Submit(context.Background(), Request{Theme: "x"}, nil); !errors.Is(err, ErrSessionStarted) {
		t.Fatalf("second Submit = %v, want ErrSessionStarted", err)
	}
}

func TestResumeTracksExistingJob(t *testing.T) {
	api := &fakeAPI{statuses: []Status{
		{Stage: StageMixingAudio, Progress: 90},
		{Stage: StageCompleted, Progress: 100},
	}}
	session := newTestSession(api)
	job, err := session.Resume(context.Background(), "job-42", nil)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if job.ID != "job-42" || job.Stage != StageCompleted {
		t.Fatalf("job = %+v", job)
	}
	if len(api.requests) != 0 {
		t.Fatal("Resume should not submit")
	}
	if snap := session.Job(); snap == nil || snap.Stage != StageCompleted {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestParentContextCancelIsAbandonment(t *testing.T) {
	api := &fakeAPI{
		statuses: []Status{{Stage: StagePending}},
		block:    make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	if _, err := newTestSession(api).Submit(ctx, Request{Theme: "x"}, nil); !IsCancelled(err) {
		t.Fatalf("Submit = %v, want ErrCancelled", err)
	}
}

func TestCancelFromProgressCallback(t *testing.T) {
	api := &fakeAPI{statuses: []Status{
		{Stage: StagePending, Progress: 0},
		{Stage: StageGeneratingStory, Progress: 20},
		{Stage: StageGeneratingSpeech, Progress: 55},
		{Stage: StageCompleted, Progress: 100},
	}}
	session := newTestSession(api)
	rec := &recorder{}

	done := make(chan error, 1)
	go func() {
		_, err := session.Submit(context.Background(), Request{Theme: "x"}, func(stage Stage, progress float64) {
			rec.record(stage, progress)
			if stage == StageGeneratingStory {
				session.Cancel()
			}
		})
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("Submit = %v, want ErrCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Submit did not return after Cancel from onProgress (polls=%d)", api.pollCount())
	}

	calls := rec.snapshot()
	if len(calls) != 2 || calls[1].stage != StageGeneratingStory {
		t.Fatalf("unexpected progress calls: %+v", calls)
	}
	if !session.Observed() {
		t.Fatal("expected Observed after statuses were applied")
	}
}

func TestObservedFalseBeforeFirstStatus(t *testing.T) {
	api := &fakeAPI{
		statuses: []Status{},
		block:    make(chan struct{}),
	}
	session := newTestSession(api)

	done := make(chan error, 1)
	go func() {
		_, err := session.Resume(context.Background(), "job-42", nil)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for api.pollCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no poll started")
		}
		time.Sleep(time.Millisecond)
	}
	session.Cancel()
	if err := <-done; !IsCancelled(err) {
		t.Fatalf("Resume = %v, want ErrCancelled", err)
	}
	if session.Observed() {
		t.Fatal("no status was received, Observed should be false")
	}
	if job := session.Job(); job == nil || job.Stage != StagePending {
		t.Fatalf("expected placeholder job, got %+v", job)
	}
}
