package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"stylefit/internal/domain"

	"github.com/go-chi/chi/v5"
)

type tryonGenerateRequest struct {
	ProjectID string `json:"project_id"`
	domain.RenderSpec
}

type tryonJobResponse struct {
	JobID        string    `json:"job_id"`
	ProjectID    string    `json:"project_id"`
	PredictionID string    `json:"prediction_id"`
	Status       string    `json:"status"`
	ResultURL    string    `json:"result_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *App) jobResponse(job *domain.GenerationJob) tryonJobResponse {
	return tryonJobResponse{
		JobID:        job.ID,
		ProjectID:    job.ProjectID,
		PredictionID: job.PredictionID,
		Status:       string(job.Status),
		ResultURL:    a.resultURL(job.ResultPath),
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

func (a *App) TryonGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req tryonGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ProjectID == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", "project_id required")
		return
	}
	if !a.authorizeProject(w, r, req.ProjectID, userID) {
		return
	}

	job, err := a.Renders.SubmitRender(r.Context(), userID, req.ProjectID, req.RenderSpec)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, a.jobResponse(job))
}

func (a *App) TryonStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	job, err := a.Renders.GetJobStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: job status failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	if !a.authorizeProject(w, r, job.ProjectID, userID) {
		return
	}
	a.json(w, http.StatusOK, a.jobResponse(job))
}

type tryonVariationsRequest struct {
	Count int `json:"count"`
	domain.RenderSpec
}

type tryonVariationsResponse struct {
	PredictionIDs []string `json:"prediction_ids"`
}

func (a *App) TryonVariations(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req tryonVariationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Count > 0 {
		req.RenderSpec.NumberOfImages = req.Count
	}

	required := a.Config.RenderCreditCost * clampVariations(req.RenderSpec.NumberOfImages)
	check, err := a.Credits.CheckBalance(r.Context(), userID, required)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: credit check failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to check credits")
		return
	}
	if !check.Sufficient {
		a.error(w, r, http.StatusPaymentRequired, "insufficient_credits", "insufficient credits")
		return
	}

	ids, err := a.Variations.GenerateSet(r.Context(), req.RenderSpec)
	if err != nil && len(ids) == 0 {
		a.error(w, r, http.StatusServiceUnavailable, "provider_unavailable", "variation set aborted")
		return
	}
	a.json(w, http.StatusAccepted, tryonVariationsResponse{PredictionIDs: ids})
}

func clampVariations(count int) int {
	if count < 1 {
		return 1
	}
	if count > 4 {
		return 4
	}
	return count
}

func (a *App) renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, r, http.StatusPaymentRequired, "insufficient_credits", "insufficient credits")
	case errors.Is(err, domain.ErrProviderRejected):
		a.error(w, r, http.StatusUnprocessableEntity, "provider_rejected", "provider rejected the render")
	case errors.Is(err, domain.ErrProviderUnavailable):
		a.error(w, r, http.StatusServiceUnavailable, "provider_unavailable", "provider unavailable, try again later")
	default:
		a.Logger.Error().Err(err).Msg("handlers: render submission failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to submit render")
	}
}

// authorizeProject hides projects the caller does not own behind a 404.
func (a *App) authorizeProject(w http.ResponseWriter, r *http.Request, projectID, userID string) bool {
	owner, err := a.Projects.ProjectOwner(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, r, http.StatusNotFound, "not_found", "project not found")
			return false
		}
		a.Logger.Error().Err(err).Str("project_id", projectID).Msg("handlers: project lookup failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to load project")
		return false
	}
	if owner != userID {
		a.error(w, r, http.StatusNotFound, "not_found", "project not found")
		return false
	}
	return true
}
