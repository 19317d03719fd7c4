// Package store writes page artifacts to the local filesystem.
//
// Artifacts are grouped per site in a directory named after the
// sanitized hostname, and per endpoint within it:
//
//	<root>/<hostname>/<safe name>.png   screenshot
//	<root>/<hostname>/<safe name>.md    metadata JSON line + text blocks
//
// The root endpoint is stored as "home".
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nao1215/kbcrawl/internal/model"
)

// Artifact file extensions.
const (
	ScreenshotExt = ".png"
	ContentExt    = ".md"
)

// HomeName is the file name used for the root endpoint.
const HomeName = "home"

// fallbackSiteDir is used when a hostname has no alphanumeric character.
const fallbackSiteDir = "site"

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// FileStore writes artifacts below a root directory.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at root. The directory is created
// lazily on the first write.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Root returns the root directory.
func (s *FileStore) Root() string {
	return s.root
}

// SiteDir returns the directory holding the artifacts of site.
func (s *FileStore) SiteDir(site model.Site) string {
	return filepath.Join(s.root, SiteDirName(site))
}

// ScreenshotPath returns where the screenshot of endpoint is written.
func (s *FileStore) ScreenshotPath(site model.Site, endpoint model.Endpoint) string {
	return filepath.Join(s.SiteDir(site), SafeName(endpoint)+ScreenshotExt)
}

// ContentPath returns where the content document of endpoint is written.
func (s *FileStore) ContentPath(site model.Site, endpoint model.Endpoint) string {
	return filepath.Join(s.SiteDir(site), SafeName(endpoint)+ContentExt)
}

// WriteScreenshot writes the PNG screenshot of endpoint.
func (s *FileStore) WriteScreenshot(site model.Site, endpoint model.Endpoint, data []byte) (string, error) {
	path := s.ScreenshotPath(site, endpoint)
	if err := s.write(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteContent writes the content document of endpoint.
func (s *FileStore) WriteContent(site model.Site, endpoint model.Endpoint, content string) (string, error) {
	path := s.ContentPath(site, endpoint)
	if err := s.write(path, []byte(content)); err != nil {
		return "", err
	}
	return path, nil
}

func (s *FileStore) write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SiteDirName turns the hostname of site into a directory name by
// dropping every non-alphanumeric character.
func SiteDirName(site model.Site) string {
	name := nonAlnum.ReplaceAllString(site.Hostname(), "")
	if name == "" {
		return fallbackSiteDir
	}
	return name
}

// SafeName turns an endpoint into a file name: the root becomes "home",
// every other endpoint has its slashes replaced by underscores.
func SafeName(endpoint model.Endpoint) string {
	if endpoint.IsRoot() || endpoint == "" {
		return HomeName
	}
	return strings.ReplaceAll(endpoint.String(), "/", "_")
}
