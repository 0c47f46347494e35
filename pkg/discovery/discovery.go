// Package discovery walks a document-library folder tree and reports
// folders holding enough photos to be shown.
//
// The walk proceeds level by level from the configured root. Within a
// level, folder listings run with bounded concurrency so a deep library
// cannot overwhelm the remote API. Transient listing failures are
// retried a small number of times; a subtree whose listing keeps
// failing is skipped and the walk continues with the remainder.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/graph"
	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/match"
)

// Lister lists the children of a library-relative folder path.
// *graph.Client satisfies this.
type Lister interface {
	ListChildren(ctx context.Context, folderPath string) ([]graph.DriveItem, error)
}

// Folder is one eligible photo folder. Produced transiently by a
// discovery pass; not persisted.
type Folder struct {
	// Path is the library-relative folder path (unique key).
	Path string `json:"path"`

	// Name is the display name: the path relative to the discovery
	// root, or the last segment when the folder lies outside it.
	Name string `json:"name"`

	// PhotoCount is the number of image files directly in the folder.
	PhotoCount int `json:"photo_count"`
}

// Config configures a Walker.
type Config struct {
	// Concurrency bounds parallel listings per tree level.
	// Default: 4
	Concurrency int

	// Retries is the number of attempts per folder listing before the
	// subtree is skipped. Default: 3
	Retries int

	// RetryBackoff is the delay between listing attempts.
	// Default: 500ms
	RetryBackoff time.Duration

	// Logger receives walk progress. Default: no-op.
	Logger *zap.Logger
}

// DefaultConfig returns the default walker configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:  4,
		Retries:      3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// Walker discovers eligible photo folders beneath a root.
//
// A Walker is safe for concurrent use; each Discover call runs an
// independent walk.
type Walker struct {
	lister  Lister
	matcher *match.ImageMatcher
	cfg     Config
	logger  *zap.Logger
}

// New creates a walker over the given lister. Items whose names match
// the matcher count as photos.
func New(lister Lister, matcher *match.ImageMatcher, cfg Config) *Walker {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Retries <= 0 {
		cfg.Retries = def.Retries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Walker{lister: lister, matcher: matcher, cfg: cfg, logger: logger}
}

// listing is the outcome of scanning one folder.
type listing struct {
	path       string
	photoCount int
	subfolders []string
	err        error
}

// Discover walks the tree under root and returns every folder whose
// direct photo count is at least minPhotos, sorted by path. Folders
// below the threshold are dropped silently but their subfolders are
// still explored. A root listing that fails after retries is an error;
// deeper failures only skip their subtree.
func (w *Walker) Discover(ctx context.Context, root string, minPhotos int) ([]Folder, error) {
	root = normalizePath(root)
	start := time.Now()

	var (
		eligible []Folder
		skipped  int
	)

	frontier := []string{root}
	first := true

	for len(frontier) > 0 {
		results := w.scanLevel(ctx, frontier)

		var next []string
		for _, res := range results {
			if res.err != nil {
				if first && res.path == root {
					return nil, fmt.Errorf("list root folder %s: %w", root, res.err)
				}
				if errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded) {
					return nil, res.err
				}
				skipped++
				w.logger.Warn("skipping subtree after repeated listing failures",
					zap.String("path", res.path),
					zap.Error(res.err))
				continue
			}

			if res.photoCount >= minPhotos {
				eligible = append(eligible, Folder{
					Path:       res.path,
					Name:       displayName(res.path, root),
					PhotoCount: res.photoCount,
				})
			}
			next = append(next, res.subfolders...)
		}

		frontier = next
		first = false
	}

	// Goroutine scheduling must not leak into the result order.
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Path < eligible[j].Path })

	w.logger.Info("folder discovery complete",
		zap.String("root", root),
		zap.Int("eligible", len(eligible)),
		zap.Int("skipped_subtrees", skipped),
		zap.Duration("duration", time.Since(start)))

	return eligible, nil
}

// scanLevel lists every folder in the frontier with bounded
// concurrency, preserving frontier order in the results.
func (w *Walker) scanLevel(ctx context.Context, frontier []string) []listing {
	results := make([]listing, len(frontier))
	sem := make(chan struct{}, w.cfg.Concurrency)

	var wg sync.WaitGroup
	for i, path := range frontier {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = listing{path: path, err: ctx.Err()}
			continue
		}

		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = w.scanFolder(ctx, path)
		}(i, path)
	}
	wg.Wait()

	return results
}

// scanFolder lists one folder with retry and classifies its children.
func (w *Walker) scanFolder(ctx context.Context, path string) listing {
	items, err := w.listWithRetry(ctx, path)
	if err != nil {
		return listing{path: path, err: err}
	}

	res := listing{path: path}
	for _, item := range items {
		switch {
		case item.IsFolder():
			res.subfolders = append(res.subfolders, joinPath(path, item.Name))
		case item.IsFile() && w.matcher.Match(item.Name):
			res.photoCount++
		}
	}

	// Deterministic recursion order per fixed remote state.
	sort.Strings(res.subfolders)
	return res
}

// listWithRetry attempts a folder listing up to cfg.Retries times.
// Permanent conditions (missing folder, denied access) are not retried.
func (w *Walker) listWithRetry(ctx context.Context, path string) ([]graph.DriveItem, error) {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.Retries; attempt++ {
		items, err := w.lister.ListChildren(ctx, path)
		if err == nil {
			return items, nil
		}
		lastErr = err

		if errors.Is(err, graph.ErrNotFound) || errors.Is(err, graph.ErrAccessDenied) || graph.IsAuth(err) {
			return nil, err
		}
		if attempt == w.cfg.Retries {
			break
		}

		w.logger.Debug("folder listing failed, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.cfg.RetryBackoff):
		}
	}
	return nil, lastErr
}

// normalizePath reduces a folder path to "/"-prefixed canonical form.
func normalizePath(p string) string {
	return "/" + strings.Trim(p, "/")
}

// joinPath appends a child name to a canonical folder path.
func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// displayName returns the folder path relative to the discovery root,
// falling back to the last path segment.
func displayName(path, root string) string {
	trimmedPath := strings.Trim(path, "/")
	trimmedRoot := strings.Trim(root, "/")

	if trimmedRoot != "" {
		pathParts := strings.Split(trimmedPath, "/")
		rootParts := strings.Split(trimmedRoot, "/")
		if len(pathParts) > len(rootParts) && strings.Join(pathParts[:len(rootParts)], "/") == trimmedRoot {
			return strings.Join(pathParts[len(rootParts):], "/")
		}
	}

	if idx := strings.LastIndex(trimmedPath, "/"); idx >= 0 {
		return trimmedPath[idx+1:]
	}
	return trimmedPath
}
