package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stylefit/internal/domain"
)

type stubPrompts struct{}

func (stubPrompts) BuildPrompt(spec domain.RenderSpec) string         { return "photo of a model" }
func (stubPrompts) BuildNegativePrompt(spec domain.RenderSpec) string { return "blurry" }

func noSleep(recorded *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*recorded = append(*recorded, d)
		return nil
	}
}

func testClient(t *testing.T, url, model string) *Client {
	t.Helper()
	return NewClient(Options{APIToken: "test-token", Model: model, BaseURL: url}, stubPrompts{})
}

func TestSubmitOwnerNameRouting(t *testing.T) {
	var gotPath string
	var payload map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if got := r.Header.Get("Authorization"); got != "Token test-token" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pred-1", "status": "starting"})
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, "google/nano-banana-pro")
	id, err := client.Submit(context.Background(), domain.RenderSpec{Vibe: "Studio Minimal"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if id != "pred-1" {
		t.Fatalf("unexpected prediction id: %s", id)
	}
	if gotPath != "/models/google/nano-banana-pro/predictions" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if _, ok := payload["version"]; ok {
		t.Fatal("owner/name routing must not send a version field")
	}
	input, ok := payload["input"].(map[string]any)
	if !ok {
		t.Fatalf("missing input object: %#v", payload)
	}
	if input["prompt"] != "photo of a model" {
		t.Fatalf("unexpected prompt: %v", input["prompt"])
	}
	if input["negative_prompt"] != "blurry" {
		t.Fatalf("unexpected negative prompt: %v", input["negative_prompt"])
	}
}

func TestSubmitVersionHashRouting(t *testing.T) {
	var gotPath string
	var payload map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pred-2"})
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, "c221b2b8ef527c5f")
	if _, err := client.Submit(context.Background(), domain.RenderSpec{}); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if gotPath != "/predictions" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if payload["version"] != "c221b2b8ef527c5f" {
		t.Fatalf("version field mismatch: %v", payload["version"])
	}
}

func TestSubmitIncludesImageInput(t *testing.T) {
	var payload map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pred-3"})
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, "google/nano-banana-pro")
	spec := domain.RenderSpec{
		SourceImageURL: "https://cdn.example.com/garment.jpg",
		ModelImageURL:  "https://cdn.example.com/model.jpg",
	}
	if _, err := client.Submit(context.Background(), spec); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	input := payload["input"].(map[string]any)
	refs, ok := input["image_input"].([]any)
	if !ok || len(refs) != 2 {
		t.Fatalf("image_input mismatch: %#v", input["image_input"])
	}
	if refs[0] != "https://cdn.example.com/garment.jpg" {
		t.Fatalf("garment reference mismatch: %v", refs[0])
	}
	if _, ok := input["strength"]; !ok {
		t.Fatal("expected strength with image input")
	}
}

func TestSubmitRetriesWithLinearBackoff(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pred-4"})
	}))
	defer ts.Close()

	var sleeps []time.Duration
	client := NewClient(Options{
		APIToken: "test-token",
		Model:    "google/nano-banana-pro",
		BaseURL:  ts.URL,
		Sleep:    noSleep(&sleeps),
	}, stubPrompts{})

	id, err := client.Submit(context.Background(), domain.RenderSpec{})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if id != "pred-4" {
		t.Fatalf("unexpected prediction id: %s", id)
	}
	if calls != 4 {
		t.Fatalf("expected 4 requests, got %d", calls)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), sleeps)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, sleeps[i], want[i])
		}
	}
}

func TestSubmitExhaustsRetryBudget(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	var sleeps []time.Duration
	client := NewClient(Options{
		APIToken: "test-token",
		Model:    "google/nano-banana-pro",
		BaseURL:  ts.URL,
		Sleep:    noSleep(&sleeps),
	}, stubPrompts{})

	_, err := client.Submit(context.Background(), domain.RenderSpec{})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if calls != defaultMaxAttempts {
		t.Fatalf("expected %d requests, got %d", defaultMaxAttempts, calls)
	}
	if len(sleeps) != defaultMaxAttempts-1 {
		t.Fatalf("expected %d sleeps, got %d", defaultMaxAttempts-1, len(sleeps))
	}
}

func TestSubmitRejectedNotRetried(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"detail":"Insufficient credit"}`))
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, "google/nano-banana-pro")
	_, err := client.Submit(context.Background(), domain.RenderSpec{})
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("expected ErrProviderRejected, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single request, got %d", calls)
	}
	if got := err.Error(); !strings.Contains(got, "Insufficient credit") {
		t.Fatalf("provider body missing from error: %s", got)
	}
}

func TestSubmitMissingToken(t *testing.T) {
	client := NewClient(Options{Model: "google/nano-banana-pro"}, stubPrompts{})
	if _, err := client.Submit(context.Background(), domain.RenderSpec{}); err == nil {
		t.Fatal("expected error when token missing")
	}
}

func TestCheckStatusNormalizesOutputShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bare string", `{"id":"p","status":"succeeded","output":"http://x/img.jpg"}`},
		{"array", `{"id":"p","status":"succeeded","output":["http://x/img.jpg"]}`},
		{"stream fallback", `{"id":"p","status":"succeeded","output":null,"urls":{"stream":"http://x/img.jpg"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/predictions/p" {
					t.Fatalf("unexpected path: %s", r.URL.Path)
				}
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			client := testClient(t, ts.URL, "google/nano-banana-pro")
			status, err := client.CheckStatus(context.Background(), "p")
			if err != nil {
				t.Fatalf("CheckStatus error: %v", err)
			}
			if status.Status != domain.PredictionSucceeded {
				t.Fatalf("unexpected status: %s", status.Status)
			}
			if status.OutputURL != "http://x/img.jpg" {
				t.Fatalf("unexpected output url: %q", status.OutputURL)
			}
		})
	}
}

func TestCheckStatusStreamIgnoredWhileProcessing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p","status":"processing","output":null,"urls":{"stream":"http://x/partial"}}`))
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, "google/nano-banana-pro")
	status, err := client.CheckStatus(context.Background(), "p")
	if err != nil {
		t.Fatalf("CheckStatus error: %v", err)
	}
	if status.OutputURL != "" {
		t.Fatalf("stream url must not leak for in-flight predictions: %q", status.OutputURL)
	}
}

func TestCheckStatusFailedCarriesError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p","status":"failed","error":"NSFW content detected"}`))
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, "google/nano-banana-pro")
	status, err := client.CheckStatus(context.Background(), "p")
	if err != nil {
		t.Fatalf("CheckStatus error: %v", err)
	}
	if status.Status != domain.PredictionFailed {
		t.Fatalf("unexpected status: %s", status.Status)
	}
	if status.Err != "NSFW content detected" {
		t.Fatalf("unexpected error message: %q", status.Err)
	}
}

func TestCheckStatusHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := testClient(t, ts.URL, "google/nano-banana-pro")
	if _, err := client.CheckStatus(context.Background(), "p"); err == nil {
		t.Fatal("expected error for non-success status response")
	}
}
