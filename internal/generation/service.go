package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stylefit/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultFailureMessage = "image generation failed"

// Service submits renders and reconciles job state against the provider. The
// on-demand path (GetJobStatus) and the background sweep share one transition
// algorithm via evaluate/persistMutation.
type Service struct {
	jobs        JobStore
	predictions PredictionClient
	fetcher     ImageFetcher
	credits     *CreditGate
	creditCost  int
	logger      zerolog.Logger
}

func NewService(jobs JobStore, predictions PredictionClient, fetcher ImageFetcher, credits *CreditGate, creditCost int, logger zerolog.Logger) *Service {
	if creditCost <= 0 {
		creditCost = 1
	}
	return &Service{
		jobs:        jobs,
		predictions: predictions,
		fetcher:     fetcher,
		credits:     credits,
		creditCost:  creditCost,
		logger:      logger,
	}
}

// SubmitRender checks the user's balance, submits one prediction and persists
// the job in Processing. It never returns a terminal job: terminal states are
// the reconciler's business.
func (s *Service) SubmitRender(ctx context.Context, userID, projectID string, spec domain.RenderSpec) (*domain.GenerationJob, error) {
	spec.Normalize()

	check, err := s.credits.CheckBalance(ctx, userID, s.creditCost)
	if err != nil {
		return nil, fmt.Errorf("credit check: %w", err)
	}
	if !check.Sufficient {
		return nil, fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientCredits, check.Current, check.Required)
	}

	predictionID, err := s.predictions.Submit(ctx, spec)
	if err != nil {
		return nil, err
	}

	modelAssetID := spec.ModelAssetID
	if modelAssetID == "" {
		modelAssetID = "ai-generated"
	}
	job := &domain.GenerationJob{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		ClothingPath: spec.SourceImageURL,
		ModelAssetID: modelAssetID,
		PredictionID: predictionID,
		Status:       domain.JobStatusProcessing,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("prediction_id", predictionID).
		Str("project_id", projectID).
		Msg("generation: render submitted")
	return job, nil
}

// GetJobStatus returns the job record, reconciling it against the provider
// first when it is still in flight. Terminal jobs are returned from the store
// without any network call. A transient status-check failure leaves the job
// in Processing and is not surfaced to the caller.
func (s *Service) GetJobStatus(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() || job.PredictionID == "" {
		return job, nil
	}

	mutation, err := s.evaluate(ctx, job)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("generation: on-demand status check failed")
		return job, nil
	}
	if mutation == nil {
		return job, nil
	}
	s.persistMutation(ctx, job, mutation)
	return job, nil
}

// jobMutation is one computed terminal transition, persisted separately so
// the sweep can batch its writes at the end of a tick.
type jobMutation struct {
	status  domain.JobStatus
	result  string
	message string
}

// evaluate queries the provider once and computes the transition for the
// job. It returns nil when the job should stay in Processing. Result download
// happens here: a failed download degrades to storing the remote URL, it
// never blocks completion.
func (s *Service) evaluate(ctx context.Context, job *domain.GenerationJob) (*jobMutation, error) {
	status, err := s.predictions.CheckStatus(ctx, job.PredictionID)
	if err != nil {
		return nil, err
	}

	switch status.Status {
	case domain.PredictionSucceeded:
		if status.OutputURL == "" {
			return nil, nil
		}
		result := s.fetchResult(ctx, job, status.OutputURL)
		return &jobMutation{status: domain.JobStatusCompleted, result: result}, nil
	case domain.PredictionFailed:
		message := status.Err
		if message == "" {
			message = defaultFailureMessage
		}
		return &jobMutation{status: domain.JobStatusFailed, message: message}, nil
	default:
		// starting/processing: still in flight.
		return nil, nil
	}
}

func (s *Service) fetchResult(ctx context.Context, job *domain.GenerationJob, remoteURL string) string {
	name := fmt.Sprintf("gen_%s_%s.jpg", job.ID, strings.ReplaceAll(uuid.NewString(), "-", ""))
	local, err := s.fetcher.DownloadAndPersist(ctx, remoteURL, name)
	if err != nil {
		if !errors.Is(err, domain.ErrDownloadFailed) {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("generation: unexpected download error")
		} else {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Str("url", remoteURL).
				Msg("generation: result download failed, storing remote url")
		}
		return remoteURL
	}
	return local
}

// persistMutation applies the transition through the store's compare-and-swap
// update and mirrors it onto the in-memory record when the row changed. A
// lost race (row already terminal) reloads the winner's state.
func (s *Service) persistMutation(ctx context.Context, job *domain.GenerationJob, m *jobMutation) {
	var changed bool
	var err error
	switch m.status {
	case domain.JobStatusCompleted:
		changed, err = s.jobs.Complete(ctx, job.ID, m.result)
	case domain.JobStatusFailed:
		changed, err = s.jobs.Fail(ctx, job.ID, m.message)
	default:
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("generation: persist transition failed")
		return
	}
	if changed {
		job.Status = m.status
		job.ResultPath = m.result
		job.ErrorMessage = m.message
		s.logger.Info().
			Str("job_id", job.ID).
			Str("status", string(m.status)).
			Msg("generation: job reconciled")
		return
	}
	if current, loadErr := s.jobs.GetByID(ctx, job.ID); loadErr == nil {
		*job = *current
	}
}
