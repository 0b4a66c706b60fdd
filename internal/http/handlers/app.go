package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"stylefit/internal/domain"
	"stylefit/internal/generation"
	"stylefit/internal/infra"
	"stylefit/internal/middleware"
	"stylefit/internal/storage"

	"github.com/rs/zerolog"
)

// RenderService is the generation surface the handlers consume.
type RenderService interface {
	SubmitRender(ctx context.Context, userID, projectID string, spec domain.RenderSpec) (*domain.GenerationJob, error)
	GetJobStatus(ctx context.Context, jobID string) (*domain.GenerationJob, error)
}

// VariationService submits paced variation sets.
type VariationService interface {
	GenerateSet(ctx context.Context, base domain.RenderSpec) ([]string, error)
}

// ProjectReader exposes project ownership and completed results.
type ProjectReader interface {
	ProjectOwner(ctx context.Context, projectID string) (string, error)
	ProjectResults(ctx context.Context, projectID string) ([]generation.ProjectResult, error)
}

// BalanceChecker is the pre-flight credit check.
type BalanceChecker interface {
	CheckBalance(ctx context.Context, userID string, required int) (generation.CreditCheck, error)
}

type App struct {
	Renders    RenderService
	Variations VariationService
	Projects   ProjectReader
	Credits    BalanceChecker
	Files      *storage.FileStore
	Config     *infra.Config
	Logger     zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	locale := middleware.LocaleFromContext(r.Context())
	a.json(w, status, map[string]string{
		"error":   code,
		"message": localizedMessage(locale, code, message),
	})
}

// localizedMessage swaps the English default for the Turkish copy when the
// request locale asks for it. Unknown codes fall through to the default.
func localizedMessage(locale, code, fallback string) string {
	if locale != "tr" {
		return fallback
	}
	if msg, ok := turkishMessages[code]; ok {
		return msg
	}
	return fallback
}

var turkishMessages = map[string]string{
	"unauthorized":         "oturum dogrulanamadi",
	"bad_request":          "gecersiz istek",
	"not_found":            "kayit bulunamadi",
	"insufficient_credits": "yetersiz kredi",
	"provider_rejected":    "gorsel saglayicisi istegi reddetti",
	"provider_unavailable": "gorsel saglayicisina ulasilamiyor",
	"internal":             "beklenmeyen bir hata olustu",
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// resultURL maps a stored result path to what clients should fetch: remote
// URLs pass through (download-fallback rows), storage keys get the public
// static base prefixed.
func (a *App) resultURL(resultPath string) string {
	if resultPath == "" {
		return ""
	}
	lower := strings.ToLower(resultPath)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return resultPath
	}
	base := ""
	if a.Config != nil {
		base = strings.TrimRight(a.Config.StorageBaseURL, "/")
	}
	return base + "/" + strings.TrimLeft(resultPath, "/")
}
