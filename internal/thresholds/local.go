package thresholds

import (
	"context"
	"fmt"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// LocalProvider serves a single threshold set materialized from
// configuration. It validates once at construction so classification
// callers never see a partial set.
type LocalProvider struct {
	set *domain.ThresholdSet
}

// NewLocalProvider creates a provider around a configured set. A nil
// set falls back to the laboratory baseline.
func NewLocalProvider(set *domain.ThresholdSet) (*LocalProvider, error) {
	if set == nil {
		set = domain.DefaultThresholdSet()
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("configured threshold set rejected: %w", err)
	}
	return &LocalProvider{set: set}, nil
}

// Snapshot returns the configured threshold set.
func (p *LocalProvider) Snapshot(ctx context.Context) (*domain.ThresholdSet, error) {
	return p.set, nil
}

// ByVersion returns the configured set when the version matches.
func (p *LocalProvider) ByVersion(ctx context.Context, version string) (*domain.ThresholdSet, error) {
	if version != p.set.Version {
		return nil, fmt.Errorf("threshold version %q: %w", version, domain.ErrNotFound)
	}
	return p.set, nil
}
