package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stylefit/internal/domain"

	"github.com/rs/zerolog"
)

func TestDownloadAndPersist(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer ts.Close()

	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	fetcher := NewFetcher(store, nil, zerolog.Nop())

	key, err := fetcher.DownloadAndPersist(context.Background(), ts.URL, "gen_job1_abc.jpg")
	if err != nil {
		t.Fatalf("DownloadAndPersist error: %v", err)
	}
	if key != "generated/gen_job1_abc.jpg" {
		t.Fatalf("unexpected key: %s", key)
	}
	data, err := store.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected data: %q", data)
	}
}

func TestDownloadAndPersistHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	fetcher := NewFetcher(store, nil, zerolog.Nop())

	_, err = fetcher.DownloadAndPersist(context.Background(), ts.URL, "x.jpg")
	if !errors.Is(err, domain.ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestDownloadAndPersistUnreachable(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	fetcher := NewFetcher(store, nil, zerolog.Nop())

	_, err = fetcher.DownloadAndPersist(context.Background(), "http://127.0.0.1:0/none", "x.jpg")
	if !errors.Is(err, domain.ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestDownloadAndPersistGeneratesName(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer ts.Close()

	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	fetcher := NewFetcher(store, nil, zerolog.Nop())

	key, err := fetcher.DownloadAndPersist(context.Background(), ts.URL, "")
	if err != nil {
		t.Fatalf("DownloadAndPersist error: %v", err)
	}
	if key == "generated/" || key == "" {
		t.Fatalf("expected generated filename, got %q", key)
	}
}
