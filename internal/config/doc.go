// Package config provides configuration structures and utilities for
// kbcrawl: built-in defaults, validation, and the .kbcrawl YAML file with
// per-site overrides.
package config
