package generation

import (
	"context"
	"time"

	"stylefit/internal/domain"

	"github.com/rs/zerolog"
)

const (
	// DefaultVariationPacing keeps successive submissions under the
	// provider's rate limit.
	DefaultVariationPacing = 12 * time.Second
	maxVariationCount      = 4
)

// Orchestrator submits a set of render variations for one base spec. The
// variations share all parameters; only the provider's sampling randomness
// differs. Submissions are strictly sequential with a pacing pause between
// them.
type Orchestrator struct {
	predictions PredictionClient
	pacing      time.Duration
	logger      zerolog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// OrchestratorOptions tunes pacing; Sleep is injectable for tests.
type OrchestratorOptions struct {
	Pacing time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(predictions PredictionClient, logger zerolog.Logger, opts OrchestratorOptions) *Orchestrator {
	pacing := opts.Pacing
	if pacing <= 0 {
		pacing = DefaultVariationPacing
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
	return &Orchestrator{predictions: predictions, pacing: pacing, logger: logger, sleep: sleep}
}

// GenerateSet submits between 1 and 4 variations of the base spec and returns
// the prediction ids that were accepted. A failed variation is logged and
// skipped; partial success is success, even when the surviving set is empty.
func (o *Orchestrator) GenerateSet(ctx context.Context, base domain.RenderSpec) ([]string, error) {
	base.Normalize()
	count := base.NumberOfImages
	if count < 1 {
		count = 1
	}
	if count > maxVariationCount {
		count = maxVariationCount
	}

	o.logger.Info().
		Str("model_asset_id", base.ModelAssetID).
		Int("count", count).
		Msg("orchestrator: starting variation set")

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return ids, err
		}

		spec := base.Clone()
		id, err := o.predictions.Submit(ctx, spec)
		if err != nil {
			o.logger.Warn().Err(err).Int("variation", i+1).Msg("orchestrator: variation failed, skipping")
			continue
		}
		ids = append(ids, id)
		o.logger.Info().
			Int("variation", i+1).
			Str("vibe", spec.Vibe).
			Str("prediction_id", id).
			Msg("orchestrator: variation submitted")

		if i < count-1 {
			if err := o.sleep(ctx, o.pacing); err != nil {
				return ids, err
			}
		}
	}
	return ids, nil
}
