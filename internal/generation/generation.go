// Package generation contains the asynchronous render-orchestration core:
// submitting predictions, pacing variation sets, reconciling in-flight jobs
// against the provider (on client demand and via the background sweep), and
// gating submissions on user credits.
package generation

import (
	"context"

	"stylefit/internal/domain"
)

// PredictionClient is the provider contract the core depends on.
type PredictionClient interface {
	Submit(ctx context.Context, spec domain.RenderSpec) (string, error)
	CheckStatus(ctx context.Context, predictionID string) (domain.PredictionStatus, error)
}

// ImageFetcher downloads a remote result into durable local storage.
type ImageFetcher interface {
	DownloadAndPersist(ctx context.Context, remoteURL, suggestedName string) (string, error)
}

// JobStore is the durable record of generation jobs. Complete and Fail are
// compare-and-swap transitions guarded on the Processing state; they report
// whether the row actually changed so concurrent reconcilers cannot clobber a
// terminal state.
type JobStore interface {
	Create(ctx context.Context, job *domain.GenerationJob) error
	GetByID(ctx context.Context, id string) (*domain.GenerationJob, error)
	ListProcessing(ctx context.Context, limit int) ([]domain.GenerationJob, error)
	Complete(ctx context.Context, id, resultPath string) (bool, error)
	Fail(ctx context.Context, id, message string) (bool, error)
}

// CreditReader exposes the user balance consumed by the credit gate.
type CreditReader interface {
	Credits(ctx context.Context, userID string) (int, error)
}
