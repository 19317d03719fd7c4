package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when no seed URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one seed URL")

	// ErrInvalidAlgorithm is returned for an algorithm other than bfs or dfs.
	ErrInvalidAlgorithm = errors.New("invalid algorithm: must be bfs or dfs")

	// ErrInvalidDepth is returned when the maximum depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative (0 means unbounded)")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative (0 means unlimited)")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRenderer is returned for an unknown renderer.
	ErrInvalidRenderer = errors.New("invalid renderer: must be browser or static")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidViewport is returned when a viewport dimension is not positive.
	ErrInvalidViewport = errors.New("invalid viewport: width and height must be positive")

	// ErrNoOutputDir is returned when the artifact directory is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrInvalidProxy is returned when the proxy is not a socks5:// or
	// http(s):// URL with a host and port.
	ErrInvalidProxy = errors.New("invalid proxy: expected socks5://host:port or http(s)://host:port")
)
