package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrProviderRejected marks a non-transient provider refusal (schema,
	// billing, quota). The wrapped message carries the raw provider body so
	// it can be surfaced to the end user.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrProviderUnavailable marks a transient 429/5xx that survived the
	// retry budget.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrDownloadFailed marks a completed render whose bytes could not be
	// fetched; callers fall back to storing the remote URL.
	ErrDownloadFailed = errors.New("result download failed")
)
