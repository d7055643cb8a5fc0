package domain

import (
	"errors"
	"fmt"
)

// SourceFetchError reports the total failure of one source. Transient
// failures (timeouts, 5xx, rate limits) are retried by the orchestrator;
// permanent ones (bad config, auth) are not.
type SourceFetchError struct {
	Source    string
	Transient bool
	Err       error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// AssetError reports that every image of one item failed to localize.
type AssetError struct {
	ItemID string
	Err    error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("assets for %s: %v", e.ItemID, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

// RenderError reports the failure of one format renderer, including an
// unavailable external render engine.
type RenderError struct {
	Format string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Format, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

type transientErr struct {
	err error
}

func (e *transientErr) Error() string { return e.err.Error() }
func (e *transientErr) Unwrap() error { return e.err }

// Transient marks err as retryable for IsTransient.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientErr{err: err}
}

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	var sf *SourceFetchError
	if errors.As(err, &sf) {
		return sf.Transient
	}
	var te *transientErr
	return errors.As(err, &te)
}
