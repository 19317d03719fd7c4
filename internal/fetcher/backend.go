package fetcher

import (
	"context"
	"errors"
)

// ErrScreenshotUnsupported is returned by sessions that cannot capture
// screenshots. The fetcher treats it as "no screenshot", not as a failure.
var ErrScreenshotUnsupported = errors.New("screenshots are not supported by this backend")

// Backend creates rendering sessions.
type Backend interface {
	// Name identifies the backend in logs and errors.
	Name() string

	// Open acquires a rendering resource. An error means the backend
	// itself is unusable.
	Open(ctx context.Context) (Session, error)
}

// Session is one rendering resource, used for a single page.
type Session interface {
	// Navigate loads url and waits until the page is ready or ctx expires.
	Navigate(ctx context.Context, url string) error

	// HTML returns the markup of the loaded page.
	HTML(ctx context.Context) (string, error)

	// Screenshot captures the loaded page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close releases the resource.
	Close() error
}
