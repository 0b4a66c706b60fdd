package handlers

import (
	"errors"
	"net/http"

	"stylefit/internal/domain"
)

func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	check, err := a.Credits.CheckBalance(r.Context(), userID, a.Config.RenderCreditCost)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, r, http.StatusNotFound, "not_found", "user not found")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: credit balance failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to load credits")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"credits":     check.Current,
		"render_cost": check.Required,
		"sufficient":  check.Sufficient,
	})
}
