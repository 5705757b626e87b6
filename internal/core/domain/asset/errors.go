package asset

import "errors"

var (
	ErrNetwork           = errors.New("network request failed")
	ErrNoResponse        = errors.New("no cached or network response available")
	ErrInstallFailed     = errors.New("install failed")
	ErrActivateFailed    = errors.New("activate failed")
	ErrInvalidGeneration = errors.New("generation tag must not be empty")
	ErrNotCacheable      = errors.New("request is not cacheable")
	ErrNotStored         = errors.New("generation is not fully stored")
)
