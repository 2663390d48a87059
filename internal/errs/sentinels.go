// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates input rejected locally before any remote call.
	ErrValidation = errors.New("validation")

	// ErrPlanActive indicates an operation that is only allowed before activation.
	ErrPlanActive = errors.New("plan is active")
)

// Screen-level outcomes of the plan drafting core.
var (
	// ErrMissingPlanID indicates a screen was opened without a plan identifier.
	ErrMissingPlanID = errors.New("missing plan id")

	// ErrPlanUnavailable indicates the plan could not be fetched; the screen cannot continue.
	ErrPlanUnavailable = errors.New("plan unavailable")

	// ErrPriceUnavailable indicates a failed price calculation; shown inline, user may keep editing.
	ErrPriceUnavailable = errors.New("price calculation error")

	// ErrSaveFailed indicates a failed save; edits are kept and the save may be retried.
	ErrSaveFailed = errors.New("save failed")

	// ErrSaveInProgress indicates a second save was requested while one is in flight.
	ErrSaveInProgress = errors.New("save in progress")
)
