package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"stylefit/internal/domain"

	"github.com/rs/zerolog"
)

// fakePredictions records submissions and serves scripted statuses.
type fakePredictions struct {
	mu         sync.Mutex
	submitted  []domain.RenderSpec
	submitErr  []error
	statuses   map[string]domain.PredictionStatus
	statusErr  map[string]error
	checkCalls int
}

func (f *fakePredictions) Submit(_ context.Context, spec domain.RenderSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.submitted)
	f.submitted = append(f.submitted, spec)
	if n < len(f.submitErr) && f.submitErr[n] != nil {
		return "", f.submitErr[n]
	}
	return fmt.Sprintf("pred-%d", n+1), nil
}

func (f *fakePredictions) CheckStatus(_ context.Context, predictionID string) (domain.PredictionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	if err, ok := f.statusErr[predictionID]; ok {
		return domain.PredictionStatus{}, err
	}
	status, ok := f.statuses[predictionID]
	if !ok {
		return domain.PredictionStatus{Status: domain.PredictionProcessing}, nil
	}
	return status, nil
}

// fakeJobStore is an in-memory store with the same compare-and-swap terminal
// transitions as the real one.
type fakeJobStore struct {
	mu      sync.Mutex
	jobs    map[string]*domain.GenerationJob
	listErr error
	failOn  map[string]error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[string]*domain.GenerationJob{}}
}

func (f *fakeJobStore) Create(_ context.Context, job *domain.GenerationJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	clone := *job
	f.jobs[job.ID] = &clone
	return nil
}

func (f *fakeJobStore) GetByID(_ context.Context, id string) (*domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (f *fakeJobStore) ListProcessing(_ context.Context, limit int) ([]domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.GenerationJob
	for _, job := range f.jobs {
		if job.Status == domain.JobStatusProcessing && job.PredictionID != "" {
			out = append(out, *job)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeJobStore) Complete(_ context.Context, id, resultPath string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[id]; err != nil {
		return false, err
	}
	job, ok := f.jobs[id]
	if !ok || job.Status != domain.JobStatusProcessing {
		return false, nil
	}
	job.Status = domain.JobStatusCompleted
	job.ResultPath = resultPath
	job.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeJobStore) Fail(_ context.Context, id, message string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[id]; err != nil {
		return false, err
	}
	job, ok := f.jobs[id]
	if !ok || job.Status != domain.JobStatusProcessing {
		return false, nil
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = message
	job.UpdatedAt = time.Now()
	return true, nil
}

// fakeFetcher returns a local path, or fails to force the remote-URL fallback.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeFetcher) DownloadAndPersist(_ context.Context, remoteURL, suggestedName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "/static/generated/" + suggestedName, nil
}

type fakeCredits struct {
	balance int
	err     error
}

func (f *fakeCredits) Credits(_ context.Context, _ string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.balance, nil
}

func newTestService(jobs JobStore, predictions PredictionClient, fetcher ImageFetcher, balance int) *Service {
	gate := NewCreditGate(&fakeCredits{balance: balance}, zerolog.Nop())
	return NewService(jobs, predictions, fetcher, gate, 2, zerolog.Nop())
}

func TestSubmitRenderCreatesProcessingJob(t *testing.T) {
	store := newFakeJobStore()
	predictions := &fakePredictions{}
	svc := newTestService(store, predictions, &fakeFetcher{}, 10)

	job, err := svc.SubmitRender(context.Background(), "user-1", "project-1", domain.RenderSpec{
		ProductCategory: "dress",
		SourceImageURL:  "https://cdn.example.com/dress.jpg",
		ModelAssetID:    "model-7",
	})
	if err != nil {
		t.Fatalf("SubmitRender: %v", err)
	}
	if job.Status != domain.JobStatusProcessing {
		t.Fatalf("status = %q, want Processing", job.Status)
	}
	if job.PredictionID != "pred-1" {
		t.Fatalf("prediction id = %q", job.PredictionID)
	}
	if job.ModelAssetID != "model-7" {
		t.Fatalf("model asset id = %q", job.ModelAssetID)
	}
	stored, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if stored.PredictionID != job.PredictionID {
		t.Fatalf("stored prediction id = %q", stored.PredictionID)
	}
}

func TestSubmitRenderDefaultsModelAssetID(t *testing.T) {
	store := newFakeJobStore()
	svc := newTestService(store, &fakePredictions{}, &fakeFetcher{}, 10)

	job, err := svc.SubmitRender(context.Background(), "user-1", "project-1", domain.RenderSpec{})
	if err != nil {
		t.Fatalf("SubmitRender: %v", err)
	}
	if job.ModelAssetID != "ai-generated" {
		t.Fatalf("model asset id = %q, want ai-generated", job.ModelAssetID)
	}
}

func TestSubmitRenderInsufficientCredits(t *testing.T) {
	store := newFakeJobStore()
	predictions := &fakePredictions{}
	svc := newTestService(store, predictions, &fakeFetcher{}, 1)

	_, err := svc.SubmitRender(context.Background(), "user-1", "project-1", domain.RenderSpec{})
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if len(predictions.submitted) != 0 {
		t.Fatalf("provider was called %d times before the credit gate", len(predictions.submitted))
	}
	if !strings.Contains(err.Error(), "have 1, need 2") {
		t.Fatalf("error should carry balances, got %q", err)
	}
}

func TestSubmitRenderProviderRejection(t *testing.T) {
	store := newFakeJobStore()
	predictions := &fakePredictions{submitErr: []error{domain.ErrProviderRejected}}
	svc := newTestService(store, predictions, &fakeFetcher{}, 10)

	_, err := svc.SubmitRender(context.Background(), "user-1", "project-1", domain.RenderSpec{})
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("err = %v, want ErrProviderRejected", err)
	}
	if len(store.jobs) != 0 {
		t.Fatalf("no job should be persisted on a rejected submission")
	}
}

func TestGetJobStatusTerminalSkipsProvider(t *testing.T) {
	store := newFakeJobStore()
	predictions := &fakePredictions{}
	svc := newTestService(store, predictions, &fakeFetcher{}, 10)

	done := &domain.GenerationJob{ID: "job-1", PredictionID: "pred-1", Status: domain.JobStatusCompleted, ResultPath: "/static/generated/x.jpg"}
	if err := store.Create(context.Background(), done); err != nil {
		t.Fatal(err)
	}

	job, err := svc.GetJobStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q", job.Status)
	}
	if predictions.checkCalls != 0 {
		t.Fatalf("provider queried %d times for a terminal job", predictions.checkCalls)
	}
}

func TestGetJobStatusCompletesAndDownloads(t *testing.T) {
	store := newFakeJobStore()
	predictions := &fakePredictions{statuses: map[string]domain.PredictionStatus{
		"pred-1": {Status: domain.PredictionSucceeded, OutputURL: "https://replicate.delivery/out.jpg"},
	}}
	fetcher := &fakeFetcher{}
	svc := newTestService(store, predictions, fetcher, 10)

	inflight := &domain.GenerationJob{ID: "job-1", PredictionID: "pred-1", Status: domain.JobStatusProcessing}
	if err := store.Create(context.Background(), inflight); err != nil {
		t.Fatal(err)
	}

	job, err := svc.GetJobStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want Completed", job.Status)
	}
	if !strings.HasPrefix(job.ResultPath, "/static/generated/gen_job-1_") {
		t.Fatalf("result path = %q", job.ResultPath)
	}
	if fetcher.calls != 1 {
		t.Fatalf("fetcher calls = %d", fetcher.calls)
	}
	stored, _ := store.GetByID(context.Background(), "job-1")
	if stored.Status != domain.JobStatusCompleted {
		t.Fatalf("persisted status = %q", stored.Status)
	}
}

func TestGetJobStatusDownloadFailureFallsBackToRemoteURL(t *testing.T) {
	store := newFakeJobStore()
	remote := "https://replicate.delivery/out.jpg"
	predictions := &fakePredictions{statuses: map[string]domain.PredictionStatus{
		"pred-1": {Status: domain.PredictionSucceeded, OutputURL: remote},
	}}
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: connection reset", domain.ErrDownloadFailed)}
	svc := newTestService(store, predictions, fetcher, 10)

	inflight := &domain.GenerationJob{ID: "job-1", PredictionID: "pred-1", Status: domain.JobStatusProcessing}
	if err := store.Create(context.Background(), inflight); err != nil {
		t.Fatal(err)
	}

	job, err := svc.GetJobStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want Completed despite download failure", job.Status)
	}
	if job.ResultPath != remote {
		t.Fatalf("result path = %q, want remote url", job.ResultPath)
	}
}

func TestGetJobStatusFailedCarriesProviderError(t *testing.T) {
	store := newFakeJobStore()
	predictions := &fakePredictions{statuses: map[string]domain.PredictionStatus{
		"pred-1": {Status: domain.PredictionFailed, Err: "NSFW content detected"},
	}}
	svc := newTestService(store, predictions, &fakeFetcher{}, 10)

	inflight := &domain.GenerationJob{ID: "job-1", PredictionID: "pred-1", Status: domain.JobStatusProcessing}
	if err := store.Create(context.Background(), inflight); err != nil {
		t.Fatal(err)
	}

	job, err := svc.GetJobStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want Failed", job.Status)
	}
	if job.ErrorMessage != "NSFW content detected" {
		t.Fatalf("error message = %q", job.ErrorMessage)
	}
}

func TestGetJobStatusProviderErrorLeavesJobInFlight(t *testing.T) {
	store := newFakeJobStore()
	predictions := &fakePredictions{statusErr: map[string]error{
		"pred-1": errors.New("transport down"),
	}}
	svc := newTestService(store, predictions, &fakeFetcher{}, 10)

	inflight := &domain.GenerationJob{ID: "job-1", PredictionID: "pred-1", Status: domain.JobStatusProcessing}
	if err := store.Create(context.Background(), inflight); err != nil {
		t.Fatal(err)
	}

	job, err := svc.GetJobStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("transient check failures must not surface: %v", err)
	}
	if job.Status != domain.JobStatusProcessing {
		t.Fatalf("status = %q, want Processing", job.Status)
	}
}

func TestGetJobStatusUnknownJob(t *testing.T) {
	svc := newTestService(newFakeJobStore(), &fakePredictions{}, &fakeFetcher{}, 10)
	_, err := svc.GetJobStatus(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPersistMutationLostRaceReloadsWinner(t *testing.T) {
	store := newFakeJobStore()
	svc := newTestService(store, &fakePredictions{}, &fakeFetcher{}, 10)

	inflight := &domain.GenerationJob{ID: "job-1", PredictionID: "pred-1", Status: domain.JobStatusProcessing}
	if err := store.Create(context.Background(), inflight); err != nil {
		t.Fatal(err)
	}
	// Another reconciler wins the race and fails the job first.
	if changed, err := store.Fail(context.Background(), "job-1", "boom"); err != nil || !changed {
		t.Fatalf("setup fail: changed=%v err=%v", changed, err)
	}

	job := &domain.GenerationJob{ID: "job-1", PredictionID: "pred-1", Status: domain.JobStatusProcessing}
	svc.persistMutation(context.Background(), job, &jobMutation{status: domain.JobStatusCompleted, result: "/static/x.jpg"})

	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want the winner's Failed state", job.Status)
	}
	if job.ErrorMessage != "boom" {
		t.Fatalf("error message = %q", job.ErrorMessage)
	}
}
