package config

import (
	"errors"
	"fmt"

	lcierrors "github.com/probelabs/probe/internal/errors"
)

// Validator validates configuration and sets smart defaults.
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart
// defaults. Returns an error if validation fails.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return lcierrors.NewConfigError("project", "", err)
	}

	if err := v.validateSearchConfig(&cfg.Search); err != nil {
		return lcierrors.NewConfigError("search", "", err)
	}

	if err := v.validateDaemonConfig(&cfg.Daemon); err != nil {
		return lcierrors.NewConfigError("daemon", "", err)
	}

	if err := v.validateCacheConfig(&cfg.Cache); err != nil {
		return lcierrors.NewConfigError("cache", "", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateSearchConfig(search *SearchConfig) error {
	switch search.Reranker {
	case "", "tfidf", "bm25", "hybrid":
	default:
		return fmt.Errorf("reranker must be one of tfidf, bm25, hybrid, got %q", search.Reranker)
	}

	if search.MaxResults < 0 {
		return fmt.Errorf("MaxResults cannot be negative, got %d", search.MaxResults)
	}

	if search.ContextLines < 0 {
		return fmt.Errorf("ContextLines cannot be negative, got %d", search.ContextLines)
	}

	if search.MergeThreshold < 0 {
		return fmt.Errorf("MergeThreshold cannot be negative, got %d", search.MergeThreshold)
	}

	if search.Weights.ContextFallback > 0 {
		return fmt.Errorf("Weights.ContextFallback must be <= 0 (it demotes, not promotes), got %v", search.Weights.ContextFallback)
	}

	return nil
}

func (v *Validator) validateDaemonConfig(daemon *DaemonConfig) error {
	if daemon.MaxFailingRetries < 0 {
		return fmt.Errorf("MaxFailingRetries cannot be negative, got %d", daemon.MaxFailingRetries)
	}
	if daemon.MaxFailingRetries > 7 {
		return fmt.Errorf("MaxFailingRetries must not exceed 7 (320s backoff cap), got %d", daemon.MaxFailingRetries)
	}
	if daemon.ServerTimeouts.ColdCallHierarchySec <= 0 {
		return fmt.Errorf("ServerTimeouts.ColdCallHierarchySec must be positive, got %d", daemon.ServerTimeouts.ColdCallHierarchySec)
	}
	if daemon.ServerTimeouts.ReadinessProbeSec <= 0 {
		return fmt.Errorf("ServerTimeouts.ReadinessProbeSec must be positive, got %d", daemon.ServerTimeouts.ReadinessProbeSec)
	}
	return nil
}

func (v *Validator) validateCacheConfig(cache *CacheConfig) error {
	if cache.Capacity < 0 {
		return fmt.Errorf("Capacity cannot be negative, got %d", cache.Capacity)
	}
	if cache.TTLSeconds < 0 {
		return fmt.Errorf("TTLSeconds cannot be negative, got %d", cache.TTLSeconds)
	}
	if cache.InvalidationDepth < 0 {
		return fmt.Errorf("InvalidationDepth cannot be negative, got %d", cache.InvalidationDepth)
	}
	return nil
}

// setSmartDefaults fills zero-valued fields with the same fixed defaults
// Default uses.
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 100
	}

	if cfg.Search.ContextLines == 0 {
		cfg.Search.ContextLines = DefaultContextLines
	}

	if cfg.Search.MergeThreshold == 0 {
		cfg.Search.MergeThreshold = DefaultMergeThreshold
	}

	if cfg.Search.Reranker == "" {
		cfg.Search.Reranker = "hybrid"
	}

	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = 10000
	}

	if cfg.Cache.InvalidationDepth == 0 {
		cfg.Cache.InvalidationDepth = 2
	}

	if cfg.Daemon.MaxFailingRetries == 0 {
		cfg.Daemon.MaxFailingRetries = 7
	}

	if cfg.Daemon.LogRingSize == 0 {
		cfg.Daemon.LogRingSize = 1000
	}
}

// ValidateConfig is a convenience function for quick validation.
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
