package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"stylefit/pkg/zip"

	"github.com/go-chi/chi/v5"
)

// ProjectResultsZip streams all completed results of a project as one
// archive. Remote-URL results (rows where the download fallback kicked in)
// are included as a text entry pointing at the source.
func (a *App) ProjectResultsZip(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	projectID := chi.URLParam(r, "id")
	if projectID == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", "project id required")
		return
	}
	if !a.authorizeProject(w, r, projectID, userID) {
		return
	}

	results, err := a.Projects.ProjectResults(r.Context(), projectID)
	if err != nil {
		a.Logger.Error().Err(err).Str("project_id", projectID).Msg("handlers: project results failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to load results")
		return
	}

	var entries []zip.Entry
	for _, result := range results {
		lower := strings.ToLower(result.ResultPath)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			entries = append(entries, zip.Entry{
				Name: result.JobID + ".url.txt",
				Data: []byte(result.ResultPath),
			})
			continue
		}
		data, err := a.Files.Read(r.Context(), result.ResultPath)
		if err != nil {
			a.Logger.Warn().Err(err).Str("job_id", result.JobID).Msg("handlers: result file missing, skipping")
			continue
		}
		name := path.Base(result.ResultPath)
		if name == "" || name == "." {
			name = result.JobID + ".jpg"
		}
		entries = append(entries, zip.Entry{Name: name, Data: data})
	}

	archive := zip.Archive(entries)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=project-%s-results.zip", projectID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
