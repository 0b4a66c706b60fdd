package generation

import (
	"context"
	"fmt"

	"stylefit/internal/domain"
	"stylefit/internal/infra"
	"stylefit/internal/sqlinline"
)

// Store is the pgx-backed implementation of JobStore and CreditReader. All
// statements go through the marker-checked SQL runner.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) Create(ctx context.Context, job *domain.GenerationJob) error {
	row := s.sql.QueryRow(ctx, sqlinline.QInsertGenerationJob,
		job.ID, job.ProjectID, job.ClothingPath, job.ModelAssetID, job.PredictionID, string(job.Status))
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("insert generation job: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.GenerationJob, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectJobByID, id)
	job, err := scanJob(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select generation job: %w", err)
	}
	return job, nil
}

func (s *Store) ListProcessing(ctx context.Context, limit int) ([]domain.GenerationJob, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QSelectProcessingJobs, limit)
	if err != nil {
		return nil, fmt.Errorf("select processing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan processing job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *Store) Complete(ctx context.Context, id, resultPath string) (bool, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QCompleteJob, id, resultPath)
	if err != nil {
		return false, fmt.Errorf("complete generation job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Fail(ctx context.Context, id, message string) (bool, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QFailJob, id, message)
	if err != nil {
		return false, fmt.Errorf("fail generation job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Credits(ctx context.Context, userID string) (int, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectUserCredits, userID)
	var credits int
	if err := row.Scan(&credits); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("select user credits: %w", err)
	}
	return credits, nil
}

// ProjectOwner returns the owning user id; handlers use it for access checks.
func (s *Store) ProjectOwner(ctx context.Context, projectID string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectProjectOwner, projectID)
	var owner string
	if err := row.Scan(&owner); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("select project owner: %w", err)
	}
	return owner, nil
}

// ProjectResult references one completed render of a project.
type ProjectResult struct {
	JobID      string
	ResultPath string
}

// ProjectResults lists the completed results of a project, oldest first.
func (s *Store) ProjectResults(ctx context.Context, projectID string) ([]ProjectResult, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QSelectProjectResults, projectID)
	if err != nil {
		return nil, fmt.Errorf("select project results: %w", err)
	}
	defer rows.Close()

	var results []ProjectResult
	for rows.Next() {
		var r ProjectResult
		if err := rows.Scan(&r.JobID, &r.ResultPath); err != nil {
			return nil, fmt.Errorf("scan project result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	var status string
	if err := row.Scan(
		&job.ID,
		&job.ProjectID,
		&job.ClothingPath,
		&job.ModelAssetID,
		&job.PredictionID,
		&status,
		&job.ResultPath,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

var (
	_ JobStore     = (*Store)(nil)
	_ CreditReader = (*Store)(nil)
)
