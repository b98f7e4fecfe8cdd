// Package metadata assembles a token's display record from several
// eventually-consistent sources: the on-chain asset registry, the JSON
// document behind the asset's metadata URI, and the launchpad's token page.
package metadata

import (
	"context"
	"errors"

	"bagwatch/internal/domain"
)

// Source is the capability every metadata provider adapter implements.
// A failed Fetch never aborts reconciliation; the caller substitutes an
// empty partial record.
type Source interface {
	// Name identifies the adapter in logs and metrics.
	Name() string

	// Fetch returns this source's partial view of the token's metadata.
	Fetch(ctx context.Context, mint domain.Mint) (*domain.PartialMetadataRecord, error)
}

// Failure taxonomy. Adapters wrap provider failures into one of these so the
// caller can pick a retry policy without inspecting provider details.
var (
	// ErrNotIndexed means the source has no data for the mint yet. Distinct
	// from a record with all-null fields: the source was reachable but has
	// not seen the token.
	ErrNotIndexed = errors.New("metadata: not indexed yet")

	// ErrRateLimited means the provider throttled us; retry only after a
	// longer backoff.
	ErrRateLimited = errors.New("metadata: rate limited")

	// ErrMalformed means the response parsed but its shape was unusable.
	// Retrying the same request is unlikely to help.
	ErrMalformed = errors.New("metadata: malformed response")
)

// Retryable reports whether the failure is transport-class, i.e. worth an
// immediate bounded retry. Rate limiting is retryable too, but callers give
// it a longer delay.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotIndexed) || errors.Is(err, ErrMalformed) {
		return false
	}
	return true
}

// FailureKind labels an adapter failure for metrics.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNotIndexed):
		return "not_indexed"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "network"
	}
}
