package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stylefit/internal/domain"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL     = "https://api.replicate.com/v1"
	defaultMaxAttempts = 5
	retryBackoffUnit   = 5 * time.Second
)

// PromptBuilder produces the positive and negative prompt text for a render
// spec. The client treats both as opaque strings.
type PromptBuilder interface {
	BuildPrompt(spec domain.RenderSpec) string
	BuildNegativePrompt(spec domain.RenderSpec) string
}

// Options configures the prediction client. Token and model identifier are
// explicit here rather than read from ambient state.
type Options struct {
	APIToken   string
	Model      string // "owner/name" or a bare version hash
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     zerolog.Logger

	// MaxAttempts caps submissions against transient provider errors.
	MaxAttempts int

	// Sleep is the retry pause; tests inject a recorder. Nil uses a
	// context-aware real sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client submits predictions to the Replicate API and checks their status.
// It is stateless: every call maps to exactly one logical provider operation.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	model       string
	prompts     PromptBuilder
	logger      zerolog.Logger
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewClient(opts Options, prompts PromptBuilder) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Client{
		httpClient:  client,
		baseURL:     base,
		token:       strings.TrimSpace(opts.APIToken),
		model:       strings.TrimSpace(opts.Model),
		prompts:     prompts,
		logger:      opts.Logger,
		maxAttempts: attempts,
		sleep:       sleep,
	}
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	URLs   struct {
		Get    string `json:"get"`
		Stream string `json:"stream"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

// Submit posts one prediction and returns the provider's job id. Transient
// provider errors (429/500/503) are retried with linear backoff; any other
// non-success response fails immediately with the raw provider body attached.
func (c *Client) Submit(ctx context.Context, spec domain.RenderSpec) (string, error) {
	if c == nil {
		return "", errors.New("replicate client not configured")
	}
	if c.token == "" {
		return "", errors.New("replicate: API token is missing")
	}

	endpoint, body, err := c.buildSubmission(spec)
	if err != nil {
		return "", err
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Token "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("replicate: submit: %w", err)
		}

		if retryableStatus(resp.StatusCode) {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if attempt == c.maxAttempts {
				return "", fmt.Errorf("%w: http %d after %d attempts", domain.ErrProviderUnavailable, resp.StatusCode, attempt)
			}
			wait := retryBackoffUnit * time.Duration(attempt)
			c.logger.Warn().
				Int("status", resp.StatusCode).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("replicate: provider busy, retrying")
			if err := c.sleep(ctx, wait); err != nil {
				return "", err
			}
			continue
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("body", string(raw)).
				Msg("replicate: submission rejected")
			return "", fmt.Errorf("%w: http %d: %s", domain.ErrProviderRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
		}

		var out predictionResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("replicate: decode submission response: %w", err)
		}
		if out.ID == "" {
			return "", errors.New("replicate: response missing prediction id")
		}
		c.logger.Info().Str("prediction_id", out.ID).Msg("replicate: prediction created")
		return out.ID, nil
	}

	return "", fmt.Errorf("%w: retry budget exhausted", domain.ErrProviderUnavailable)
}

// buildSubmission assembles the endpoint and request body. A model identifier
// containing "/" is an owner/name alias and routes to the per-model endpoint;
// anything else is a version hash sent through the generic predictions
// endpoint with an explicit version field.
func (c *Client) buildSubmission(spec domain.RenderSpec) (string, []byte, error) {
	if c.model == "" {
		return "", nil, errors.New("replicate: model identifier is missing")
	}

	input := map[string]any{
		"prompt":              c.prompts.BuildPrompt(spec),
		"aspect_ratio":        aspectRatio(spec),
		"output_format":       "jpg",
		"resolution":          "2K",
		"safety_filter_level": "block_only_high",
		"negative_prompt":     c.prompts.BuildNegativePrompt(spec),
	}

	var refs []string
	if spec.SourceImageURL != "" {
		refs = append(refs, spec.SourceImageURL)
	}
	if spec.ModelImageURL != "" {
		refs = append(refs, spec.ModelImageURL)
	}
	if len(refs) > 0 {
		input["image_input"] = refs
		input["strength"] = 0.4
		input["guidance_scale"] = 8
	}

	var endpoint string
	var payload map[string]any
	if strings.Contains(c.model, "/") {
		endpoint = fmt.Sprintf("%s/models/%s/predictions", c.baseURL, c.model)
		payload = map[string]any{"input": input}
	} else {
		endpoint = c.baseURL + "/predictions"
		payload = map[string]any{"version": c.model, "input": input}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, err
	}
	return endpoint, body, nil
}

// CheckStatus fetches the prediction and normalizes the provider's
// heterogeneous output field (bare string, array of strings, or absent with a
// stream URL) into a single OutputURL.
func (c *Client) CheckStatus(ctx context.Context, predictionID string) (domain.PredictionStatus, error) {
	if c == nil {
		return domain.PredictionStatus{}, errors.New("replicate client not configured")
	}
	predictionID = strings.TrimSpace(predictionID)
	if predictionID == "" {
		return domain.PredictionStatus{}, errors.New("replicate: prediction id required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+predictionID, nil)
	if err != nil {
		return domain.PredictionStatus{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PredictionStatus{}, fmt.Errorf("replicate: status check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(resp.Body)
		return domain.PredictionStatus{}, fmt.Errorf("replicate: status check http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.PredictionStatus{}, fmt.Errorf("replicate: decode status response: %w", err)
	}

	status := domain.PredictionStatus{
		Status:    out.Status,
		OutputURL: normalizeOutput(out.Output),
		Err:       normalizeError(out.Error),
	}
	if status.OutputURL == "" && status.Status == domain.PredictionSucceeded && out.URLs.Stream != "" {
		status.OutputURL = out.URLs.Stream
	}
	return status, nil
}

func normalizeOutput(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, u := range many {
			if u != "" {
				return u
			}
		}
	}
	return ""
}

func normalizeError(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg
	}
	return strings.TrimSpace(string(raw))
}

func aspectRatio(spec domain.RenderSpec) string {
	if spec.Width == spec.Height && spec.Width > 0 {
		return "1:1"
	}
	// Portrait 3:4 is the fashion default and matches the 1080x1350 spec.
	return "3:4"
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusInternalServerError
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
