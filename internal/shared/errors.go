package shared

import "fmt"

var (
	// Lookup errors
	ErrNotFound         = fmt.Errorf("not found")
	ErrCategoryNotFound = fmt.Errorf("category not found")
	ErrJobNotFound      = fmt.Errorf("job not found")

	// Remote API errors
	ErrRemoteUnavailable = fmt.Errorf("remote service unavailable")
	ErrMalformedResponse = fmt.Errorf("malformed remote response")

	// Job engine errors
	ErrConflict     = fmt.Errorf("analysis already running for category")
	ErrStoreFailure = fmt.Errorf("result store failure")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
