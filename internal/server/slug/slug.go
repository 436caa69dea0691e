// Package slug derives URL slugs from a person's name and makes them unique
// among existing profiles by appending -1, -2, and so on.
package slug

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/xtouch/internal/common"
)

const (
	// Fallback is used when a name normalizes to nothing.
	Fallback = "profile"

	// DefaultMaxCandidates bounds the suffix search.
	DefaultMaxCandidates = 10000
)

var (
	invalidRun = regexp.MustCompile(`[^a-z0-9-]+`)
	hyphenRun  = regexp.MustCompile(`-{2,}`)
)

// Normalize lower-cases s, replaces runs of characters outside [a-z0-9-]
// with a hyphen, collapses repeated hyphens and trims them from both ends.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = invalidRun.ReplaceAllString(s, "-")
	s = hyphenRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Base returns the normalized "first-last" slug, or Fallback when empty.
func Base(firstName, lastName string) string {
	b := Normalize(firstName + "-" + lastName)
	if b == "" {
		return Fallback
	}
	return b
}

// Source lists slugs already in use. Implementations return base itself
// and any "base-..." slug, ignoring the profile excludeID.
type Source interface {
	SlugsWithPrefix(ctx context.Context, base string, excludeID string) ([]string, error)
}

// Allocator picks the first free slug for a name.
type Allocator struct {
	source        Source
	maxCandidates int
}

func NewAllocator(source Source, maxCandidates int) *Allocator {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Allocator{source: source, maxCandidates: maxCandidates}
}

// Allocate returns Base(firstName, lastName) when it is free, otherwise the
// first of base-1, base-2, ... that is. excludeProfileID lets a profile keep
// competing for its own current slug. The result is deterministic for a
// given set of existing slugs, and is not reserved: the caller's insert may
// still race with another writer.
func (a *Allocator) Allocate(ctx context.Context, firstName, lastName, excludeProfileID string) (string, error) {
	base := Base(firstName, lastName)

	existing, err := a.source.SlugsWithPrefix(ctx, base, excludeProfileID)
	if err != nil {
		return "", asStorageError(err)
	}

	taken := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		taken[s] = struct{}{}
	}

	if _, ok := taken[base]; !ok {
		return base, nil
	}

	for i := 1; i <= a.maxCandidates; i++ {
		candidate := base + "-" + strconv.Itoa(i)
		if _, ok := taken[candidate]; !ok {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: no free slug for %q after %d candidates", common.ErrorConflict, base, a.maxCandidates)
}

func asStorageError(err error) error {
	var se *common.StorageError
	if errors.As(err, &se) {
		return err
	}
	return common.NewStorageError("slug.lookup", err)
}
