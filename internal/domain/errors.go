package domain

import "errors"

// Error kinds for the hazard core. Callers match with errors.Is; sites that
// need context wrap these with fmt.Errorf("...: %w", err).
var (
	// ErrInvalidInput marks a required attribute missing or malformed.
	// Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidGeometry marks an empty or inconsistent shape list.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrIllegalTransition marks a VTEC merge that would violate the action
	// transition table. The whole engine invocation fails; no partial
	// records are persisted.
	ErrIllegalTransition = errors.New("illegal vtec transition")

	// ErrStoreConflict marks a concurrent writer detected by the store's
	// revision guard. Callers re-read and retry the observe-merge-write
	// cycle.
	ErrStoreConflict = errors.New("store conflict")

	// ErrStoreUnavailable marks an underlying transport failure. Callers
	// may retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConfigMissing marks a required config key absent at every overlay
	// level and without a documented default.
	ErrConfigMissing = errors.New("config missing")

	// ErrRecommenderFailed marks a recommender raising during execution.
	// The run produces no store mutation.
	ErrRecommenderFailed = errors.New("recommender failed")
)
