// Package thresholds supplies versioned, read-only ThresholdSet
// snapshots to classification callers.
package thresholds

import (
	"context"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// Provider hands out threshold snapshots. Snapshots are immutable;
// callers fetch a fresh one for every classification call so version
// rollouts take effect without restarts.
type Provider interface {
	// Snapshot returns the current threshold set.
	Snapshot(ctx context.Context) (*domain.ThresholdSet, error)

	// ByVersion returns a specific historical version, if available.
	ByVersion(ctx context.Context, version string) (*domain.ThresholdSet, error)
}
