package generation

import (
	"context"
	"time"

	"stylefit/internal/domain"

	"github.com/rs/zerolog"
)

const (
	DefaultSweepInterval  = 5 * time.Second
	DefaultSweepBatchSize = 10
	DefaultSweepMaxJobAge = 30 * time.Minute

	timeoutFailureMessage = "generation timed out"
)

// Sweeper periodically reconciles all in-flight jobs without a per-job client
// trigger. Ticks never overlap: the interval timer only fires again after the
// current batch finished. One job's reconciliation failure never stops the
// rest of the batch.
type Sweeper struct {
	service   *Service
	jobs      JobStore
	interval  time.Duration
	batchSize int
	maxJobAge time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

type SweeperOptions struct {
	Interval  time.Duration
	BatchSize int

	// MaxJobAge fails jobs the provider apparently lost; zero disables the
	// age check.
	MaxJobAge time.Duration
}

func NewSweeper(service *Service, jobs JobStore, logger zerolog.Logger, opts SweeperOptions) *Sweeper {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultSweepBatchSize
	}
	return &Sweeper{
		service:   service,
		jobs:      jobs,
		interval:  interval,
		batchSize: batch,
		maxJobAge: opts.MaxJobAge,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes the sweep loop until ctx is canceled. An in-flight tick is
// allowed to finish; only scheduling of the next tick observes cancellation.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Int("batch_size", s.batchSize).
		Msg("sweeper: started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick reconciles one batch of in-flight jobs. Transitions are computed
// first (including result downloads) and persisted together at the end of
// the tick.
func (s *Sweeper) Tick(ctx context.Context) {
	jobs, err := s.jobs.ListProcessing(ctx, s.batchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweeper: list in-flight jobs failed")
		return
	}
	if len(jobs) == 0 {
		return
	}

	s.logger.Debug().Int("count", len(jobs)).Msg("sweeper: checking in-flight jobs")

	type pending struct {
		job      domain.GenerationJob
		mutation *jobMutation
	}
	var updates []pending

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if job.PredictionID == "" {
			continue
		}

		if s.maxJobAge > 0 && s.now().Sub(job.CreatedAt) > s.maxJobAge {
			s.logger.Warn().
				Str("job_id", job.ID).
				Time("created_at", job.CreatedAt).
				Msg("sweeper: job exceeded max age, failing")
			updates = append(updates, pending{job: job, mutation: &jobMutation{
				status:  domain.JobStatusFailed,
				message: timeoutFailureMessage,
			}})
			continue
		}

		mutation, err := s.service.evaluate(ctx, &job)
		if err != nil {
			// Transient: leave the job in Processing for the next tick.
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("sweeper: status check failed")
			continue
		}
		if mutation != nil {
			updates = append(updates, pending{job: job, mutation: mutation})
		}
	}

	for _, u := range updates {
		job := u.job
		s.service.persistMutation(ctx, &job, u.mutation)
	}
}
