// Package match provides filename pattern matching for photo files
// using doublestar glob semantics.
package match

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultImagePatterns is the allow-list of filename globs treated as
// photos when no patterns are configured.
var DefaultImagePatterns = []string{
	"*.jpg", "*.jpeg", "*.png", "*.gif", "*.bmp", "*.webp", "*.tiff",
}

// Errors returned by matcher construction.
var (
	// ErrNoPatterns is returned when no patterns are provided.
	ErrNoPatterns = errors.New("at least one pattern is required")

	// ErrInvalidPattern is returned when a pattern cannot be compiled.
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// ImageMatcher evaluates filename patterns against drive item names.
//
// Matching is case-insensitive and applies to the base name only, so
// patterns like "*.jpg" match regardless of folder. The matcher is
// safe for concurrent use after creation.
type ImageMatcher struct {
	patterns []string
}

// NewImageMatcher creates a matcher from the given glob patterns.
// Use DefaultImagePatterns for the standard photo extensions.
//
// Returns an error if no patterns are provided or any pattern is
// invalid.
func NewImageMatcher(patterns []string) (*ImageMatcher, error) {
	if len(patterns) == 0 {
		return nil, ErrNoPatterns
	}

	lowered := make([]string, 0, len(patterns))
	for _, raw := range patterns {
		p := strings.ToLower(raw)
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
		lowered = append(lowered, p)
	}

	return &ImageMatcher{patterns: lowered}, nil
}

// Match reports whether the item name matches any configured pattern.
func (m *ImageMatcher) Match(name string) bool {
	// Base name only; drive item names never contain separators, but
	// callers may pass full paths.
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.ToLower(name)

	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Patterns returns the normalized patterns the matcher was built with.
func (m *ImageMatcher) Patterns() []string {
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}
