package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing remote store credentials")

	// Store errors
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	ErrRemoteDisabled   = fmt.Errorf("remote store disabled")
	ErrRemoteRequest    = fmt.Errorf("remote store request failed")
	ErrNotFound         = fmt.Errorf("not found")

	// Constraint violations, surfaced as rejected operations rather than crashes
	ErrDuplicateAccount = fmt.Errorf("account already exists")
	ErrInvalidReorder   = fmt.Errorf("reorder set does not match playlist")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
