package provider

import (
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
)

// keyFailer is implemented by backends whose credentials can be retired
// after a quota failure.
type keyFailer interface {
	MarkKeyFailed()
}

// Router picks the generation backend. Candidates are probed in a fixed
// order of preference the first time a generator is needed: accelerator,
// then cloud, then local. The winning binding is memoized for the life of
// the router.
type Router struct {
	mu         sync.Mutex
	candidates []routerCandidate
	bound      Generator
	logger     *zap.Logger
}

type routerCandidate struct {
	name  string
	build func() Generator
}

// NewRouter builds a router from the provider configuration. A candidate
// qualifies when its required settings are present; the local backend only
// needs an endpoint.
func NewRouter(cfg config.ProvidersConfig, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{logger: logger}

	if cfg.Accelerator.Endpoint != "" && cfg.Accelerator.APIKey != "" {
		acc := cfg.Accelerator
		r.candidates = append(r.candidates, routerCandidate{
			name: "accelerator",
			build: func() Generator {
				return NewOpenAIGenerator(acc.Endpoint, acc.Model, acc.APIKey)
			},
		})
	}

	if keys := cloudKeys(cfg.Cloud); len(keys) > 0 && cfg.Cloud.Endpoint != "" {
		cloud := cfg.Cloud
		r.candidates = append(r.candidates, routerCandidate{
			name: "cloud",
			build: func() Generator {
				pool := NewKeyPool(keys, logger)
				return NewGeminiGenerator(cloud.Endpoint, cloud.Model, pool, logger)
			},
		})
	}

	if cfg.Local.Endpoint != "" {
		local := cfg.Local
		r.candidates = append(r.candidates, routerCandidate{
			name: "local",
			build: func() Generator {
				return NewOllamaGenerator(local.Endpoint, local.Model)
			},
		})
	}

	return r
}

// cloudKeys merges the single-key and key-list settings into one pool.
func cloudKeys(cfg config.ProviderConfig) []string {
	keys := make([]string, 0, len(cfg.APIKeys)+1)
	if cfg.APIKey != "" {
		keys = append(keys, cfg.APIKey)
	}
	for _, k := range cfg.APIKeys {
		if k != "" && k != cfg.APIKey {
			keys = append(keys, k)
		}
	}
	return keys
}

// Generator returns the bound backend, binding the first qualified
// candidate on first use.
func (r *Router) Generator() (Generator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound != nil {
		return r.bound, nil
	}
	if len(r.candidates) == 0 {
		return nil, ErrNoProvider
	}
	chosen := r.candidates[0]
	r.bound = chosen.build()
	r.logger.Info("generation provider bound", zap.String("provider", chosen.name))
	return r.bound, nil
}

// MarkQuotaExhausted tells the bound backend a quota failure happened so it
// can retire the credential it used. A no-op for keyless backends.
func (r *Router) MarkQuotaExhausted() {
	r.mu.Lock()
	bound := r.bound
	r.mu.Unlock()
	if kf, ok := bound.(keyFailer); ok {
		kf.MarkKeyFailed()
	}
}

// Reset drops the memoized binding so the next call re-probes candidates.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound = nil
}
