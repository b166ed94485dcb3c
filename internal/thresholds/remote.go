package thresholds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

const defaultSnapshotCacheSize = 16

// RemoteProvider fetches versioned threshold sets from a central
// service over HTTP. Fetches run behind a circuit breaker; validated
// snapshots are kept in an LRU keyed by version so historical versions
// stay resolvable while the service is down.
type RemoteProvider struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	cache   *lru.Cache[string, *domain.ThresholdSet]
	logger  *logrus.Logger

	// latest is the version of the most recently fetched snapshot,
	// used as a stale fallback when the breaker is open. Snapshot is
	// called concurrently by import workers, so access is serialized.
	mu     sync.Mutex
	latest string
}

// NewRemoteProvider creates a provider for the given service URL.
func NewRemoteProvider(cfg domain.ThresholdsConfig, logger *logrus.Logger) (*RemoteProvider, error) {
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("remote threshold URL is required")
	}
	timeout := cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultSnapshotCacheSize
	}

	cache, err := lru.New[string, *domain.ThresholdSet](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot cache: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "thresholds",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RemoteProvider{
		baseURL: cfg.RemoteURL,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		cache:   cache,
		logger:  logger,
	}, nil
}

// Snapshot returns the service's current threshold set, falling back
// to the most recently cached snapshot while the service is down.
func (p *RemoteProvider) Snapshot(ctx context.Context) (*domain.ThresholdSet, error) {
	set, err := p.fetch(ctx, p.baseURL+"/current")
	if err != nil {
		p.mu.Lock()
		latest := p.latest
		p.mu.Unlock()

		if latest != "" {
			if cached, ok := p.cache.Get(latest); ok {
				p.logger.WithError(err).WithField("version", latest).
					Warn("Threshold service unavailable, serving cached snapshot")
				return cached, nil
			}
		}
		return nil, fmt.Errorf("failed to fetch current threshold set: %w", err)
	}

	p.mu.Lock()
	p.latest = set.Version
	p.mu.Unlock()
	return set, nil
}

// ByVersion returns a specific version, served from the snapshot cache
// when possible.
func (p *RemoteProvider) ByVersion(ctx context.Context, version string) (*domain.ThresholdSet, error) {
	if cached, ok := p.cache.Get(version); ok {
		return cached, nil
	}

	set, err := p.fetch(ctx, p.baseURL+"/versions/"+url.PathEscape(version))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch threshold version %q: %w", version, err)
	}
	if set.Version != version {
		return nil, fmt.Errorf("threshold service returned version %q for %q", set.Version, version)
	}
	return set, nil
}

// fetch performs one breaker-guarded GET and validates the payload
// before caching it.
func (p *RemoteProvider) fetch(ctx context.Context, fetchURL string) (*domain.ThresholdSet, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("threshold service returned status %d", resp.StatusCode)
		}

		var set domain.ThresholdSet
		if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
			return nil, fmt.Errorf("failed to decode threshold set: %w", err)
		}
		return &set, nil
	})
	if err != nil {
		return nil, err
	}

	set := result.(*domain.ThresholdSet)
	if err := set.Validate(); err != nil {
		return nil, err
	}
	p.cache.Add(set.Version, set)
	return set, nil
}
