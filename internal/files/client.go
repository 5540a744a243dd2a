// Package files browses the user's cloud file storage over WebDAV.
package files

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/emersion/go-webdav"
)

// Config points at a WebDAV endpoint (Nextcloud and friends).
type Config struct {
	URL      string
	Username string
	Password string
}

// Entry is one file or directory.
type Entry struct {
	Path  string
	Size  int64
	IsDir bool
}

// maxSearchResults caps what a name search hands to the model.
const maxSearchResults = 25

// Client wraps a WebDAV client.
type Client struct {
	dav    *webdav.Client
	logger *slog.Logger
}

// NewClient creates a WebDAV client with basic auth.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := webdav.HTTPClientWithBasicAuth(nil, cfg.Username, cfg.Password)
	dav, err := webdav.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("webdav client for %s: %w", cfg.URL, err)
	}
	return &Client{dav: dav, logger: logger}, nil
}

// List returns the immediate children of a directory, directories
// first, each group alphabetical.
func (c *Client) List(ctx context.Context, dir string) ([]Entry, error) {
	if dir == "" {
		dir = "/"
	}

	infos, err := c.dav.ReadDir(ctx, dir, false)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var entries []Entry
	for _, info := range infos {
		if strings.TrimSuffix(info.Path, "/") == strings.TrimSuffix(dir, "/") {
			continue // the collection itself
		}
		entries = append(entries, Entry{Path: info.Path, Size: info.Size, IsDir: info.IsDir})
	}
	sortEntries(entries)
	return entries, nil
}

// Search walks the tree under root and returns entries whose base name
// contains the query, case-insensitively. Results are capped.
func (c *Client) Search(ctx context.Context, root, query string) ([]Entry, error) {
	if root == "" {
		root = "/"
	}

	infos, err := c.dav.ReadDir(ctx, root, true)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", root, err)
	}

	needle := strings.ToLower(query)
	var entries []Entry
	for _, info := range infos {
		if info.IsDir {
			continue
		}
		if !strings.Contains(strings.ToLower(path.Base(info.Path)), needle) {
			continue
		}
		entries = append(entries, Entry{Path: info.Path, Size: info.Size})
		if len(entries) == maxSearchResults {
			c.logger.Debug("file search capped", "root", root, "query", query)
			break
		}
	}
	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Path < entries[j].Path
	})
}

// humanSize renders a byte count the way a person reads it.
func humanSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
