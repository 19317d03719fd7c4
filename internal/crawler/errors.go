package crawler

import (
	"errors"
	"fmt"

	"github.com/nao1215/kbcrawl/internal/model"
)

// Sentinel errors for the crawl failure taxonomy.
// Use errors.Is to classify an error returned by this package.
var (
	// ErrBackendUnavailable means the rendering backend could not be
	// started. No fetch can succeed after it, so the crawl is aborted.
	ErrBackendUnavailable = errors.New("rendering backend unavailable")

	// ErrNavigation means a single endpoint could not be loaded.
	ErrNavigation = errors.New("navigation failed")

	// ErrStorage means an artifact could not be written.
	ErrStorage = errors.New("artifact write failed")

	// ErrInvalidInput means the seed URL or the crawl settings are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyStarted is returned when Crawl is called twice on one Engine.
	ErrAlreadyStarted = errors.New("engine already started")
)

// FatalBackendError aborts the whole crawl.
type FatalBackendError struct {
	// Endpoint is the endpoint being fetched when the backend failed.
	Endpoint model.Endpoint

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FatalBackendError) Error() string {
	return fmt.Sprintf("%s while fetching %s: %v", ErrBackendUnavailable, e.Endpoint, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FatalBackendError) Unwrap() error {
	return e.Err
}

// Is matches ErrBackendUnavailable.
func (e *FatalBackendError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// NavigationError is a recovered, per-endpoint fetch failure.
// The crawl continues; the endpoint simply yields no links.
type NavigationError struct {
	// URL is the absolute URL that failed to load.
	URL string

	// Err is the underlying cause (timeout, network error...).
	Err error
}

// Error implements the error interface.
func (e *NavigationError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrNavigation, e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Is matches ErrNavigation.
func (e *NavigationError) Is(target error) bool {
	return target == ErrNavigation
}

// StorageError is a swallowed artifact write failure.
type StorageError struct {
	// Endpoint is the endpoint whose artifact failed.
	Endpoint model.Endpoint

	// Artifact is "screenshot" or "content".
	Artifact string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s of %s: %v", ErrStorage, e.Artifact, e.Endpoint, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// InvalidInputError is reported before any traversal begins.
type InvalidInputError struct {
	// Input is the offending value.
	Input string

	// Reason explains what is wrong with it.
	Reason string
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidInput, e.Input, e.Reason)
}

// Is matches ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IsFatal reports whether err must abort a crawl.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsInvalidInput reports whether err was caused by invalid user input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
