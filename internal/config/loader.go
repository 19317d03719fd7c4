package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/kbcrawl/internal/model"
)

// DefaultConfigFile is the name looked up in the working and home directories.
const DefaultConfigFile = ".kbcrawl"

// XDGConfigFile is the name looked up in XDGConfigDir.
const XDGConfigFile = "config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads and checks a YAML site configuration file.
// Site keys are lowercased so that lookups by host are case-insensitive.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	sites := make(map[string]SiteConfig, len(cf.Sites))
	for host, site := range cf.Sites {
		sites[strings.ToLower(host)] = site
	}
	cf.Sites = sites

	if err := checkSiteConfig(cf.Defaults); err != nil {
		return nil, fmt.Errorf("%s: defaults: %w", path, err)
	}
	for host, site := range cf.Sites {
		if err := checkSiteConfig(site); err != nil {
			return nil, fmt.Errorf("%s: site %s: %w", path, host, err)
		}
	}
	return &cf, nil
}

// checkSiteConfig rejects values the crawler cannot run with.
func checkSiteConfig(sc SiteConfig) error {
	if sc.Algorithm != "" {
		if _, err := model.ParseAlgorithm(sc.Algorithm); err != nil {
			return ErrInvalidAlgorithm
		}
	}
	if sc.Depth != nil && *sc.Depth < 0 {
		return ErrInvalidDepth
	}
	if sc.Timeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// FindConfigFile returns the configuration file to load, or "" if none
// exists. An explicit configPath is the only candidate when set; otherwise
// the working directory, the home directory and XDGConfigDir are tried in
// that order.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if fileExists(configPath) {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), XDGConfigFile))

	for _, candidate := range candidates {
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
