package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stylefit/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// generatedDir is the key prefix for downloaded render results.
const generatedDir = "generated"

// Fetcher downloads a completed remote result and persists it into the
// FileStore. Download failures are reported as domain.ErrDownloadFailed so
// the reconciler can fall back to keeping the remote URL.
type Fetcher struct {
	httpClient *http.Client
	store      *FileStore
	logger     zerolog.Logger
}

func NewFetcher(store *FileStore, httpClient *http.Client, logger zerolog.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Fetcher{httpClient: httpClient, store: store, logger: logger}
}

// DownloadAndPersist fetches the remote image and writes it under the
// generated-results directory, returning the storage key.
func (f *Fetcher) DownloadAndPersist(ctx context.Context, remoteURL, suggestedName string) (string, error) {
	if f == nil || f.store == nil {
		return "", errors.New("storage: fetcher not configured")
	}
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return "", fmt.Errorf("%w: empty url", domain.ErrDownloadFailed)
	}

	name := strings.TrimSpace(suggestedName)
	if name == "" {
		name = uuid.NewString() + ".jpg"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: http %d", domain.ErrDownloadFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	key, err := f.store.Write(ctx, generatedDir+"/"+name, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	f.logger.Info().
		Str("url", remoteURL).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("storage: result persisted")
	return key, nil
}
