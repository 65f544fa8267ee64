package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	domainllm "mrilo/internal/domain/services/llm"
	"mrilo/internal/metrics"
)

// ErrCoolingDown is returned when a provider is called during its cooldown
var ErrCoolingDown = errors.New("provider is cooling down")

// scopedCredentialProvider is implemented by adapters that accept a per-request key
type scopedCredentialProvider interface {
	AcceptsScopedCredential() bool
}

// Entry is one provider plus its breaker and timeout budget
type Entry struct {
	spec       *Spec
	provider   domainllm.Provider
	breaker    *Breaker
	configured bool
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Name returns the provider name.
func (e *Entry) Name() string {
	return e.spec.Name
}

// State returns the provider's state for this request. Providers without a
// server credential are disabled unless the request carries one they accept.
func (e *Entry) State(req *domainllm.GenerateRequest) State {
	if !e.hasCredential(req) {
		return StateDisabled
	}
	return e.breaker.State()
}

func (e *Entry) hasCredential(req *domainllm.GenerateRequest) bool {
	if e.provider == nil {
		return false
	}
	if e.configured {
		return true
	}
	scoped, ok := e.provider.(scopedCredentialProvider)
	return ok && scoped.AcceptsScopedCredential() && req.CredentialFor(e.spec.Name) != ""
}

// Generate calls the provider under its timeout budget and feeds the breaker.
func (e *Entry) Generate(ctx context.Context, req *domainllm.GenerateRequest) (*domainllm.GenerateResponse, error) {
	switch e.State(req) {
	case StateDisabled:
		return nil, fmt.Errorf("%s: %w", e.spec.Name, ErrNoCredential)
	case StateCoolingDown:
		return nil, fmt.Errorf("%s: %w", e.spec.Name, ErrCoolingDown)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.spec.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.provider.Generate(callCtx, req)
	e.metrics.ObserveProviderCall(e.spec.Name, err, time.Since(start))

	if err != nil {
		// A caller that went away says nothing about the provider
		if ctx.Err() == nil && e.breaker.Failure() {
			e.logger.Warn("provider cooling down",
				"provider", e.spec.Name,
				"cooldown", e.spec.Cooldown,
			)
		}
		e.publishState()
		return nil, err
	}

	e.breaker.Success()
	e.publishState()
	return resp, nil
}

func (e *Entry) publishState() {
	state := e.breaker.State()
	if !e.configured {
		state = StateDisabled
	}
	e.metrics.SetProviderState(e.spec.Name, float64(state))
}

// ProviderStatus is a provider's state as reported by the health endpoint
type ProviderStatus struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	State string `json:"state"`
}

// RegistryConfig holds dependencies for NewRegistry
type RegistryConfig struct {
	Catalog *Catalog
	// APIKey returns the server credential for a provider name
	APIKey func(name string) string
	// Chain overrides the catalogue fallback order when non-empty
	Chain      []string
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Registry holds every catalogued provider and the fallback chain.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	chain   []string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRegistry builds an entry for every catalogued provider.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("provider catalogue is not configured")
	}
	if cfg.APIKey == nil {
		cfg.APIKey = func(string) string { return "" }
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	chain := cfg.Chain
	if len(chain) == 0 {
		chain = cfg.Catalog.Fallback
	}

	r := &Registry{
		entries: make(map[string]*Entry, len(cfg.Catalog.Providers)),
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}

	for _, name := range cfg.Catalog.Names() {
		spec := cfg.Catalog.Providers[name]
		key := cfg.APIKey(name)

		provider, configured, err := newProvider(spec, key, cfg.HTTPClient, cfg.Logger)
		if err != nil {
			cfg.Logger.Warn("provider not available", "provider", name, "error", err)
		}
		r.add(spec, provider, configured)

		if configured {
			cfg.Logger.Info("provider available", "name", name, "model", spec.Model)
		}
	}

	for _, name := range chain {
		if _, ok := r.entries[name]; !ok {
			return nil, fmt.Errorf("provider chain names unknown provider %s", name)
		}
	}
	r.chain = append([]string(nil), chain...)

	cfg.Logger.Info("provider registry initialized", "chain", r.chain)
	return r, nil
}

// newProvider creates the adapter for spec. The returned provider may be
// usable with request-scoped credentials even when configured is false.
func newProvider(spec *Spec, apiKey string, httpClient *http.Client, logger *slog.Logger) (domainllm.Provider, bool, error) {
	configured := apiKey != ""
	switch spec.Kind {
	case KindChatCompletions:
		switch spec.Name {
		case "perplexity":
			return NewPerplexityProvider(spec, apiKey, httpClient, logger), configured, nil
		case "openai":
			return NewOpenAIProvider(spec, apiKey, httpClient, logger), configured, nil
		default:
			return NewGrokProvider(spec, apiKey, httpClient, logger), configured, nil
		}
	case KindGemini:
		return NewGeminiProvider(spec, apiKey, httpClient, logger), configured, nil
	case KindHuggingFace:
		return NewHuggingFaceProvider(spec, apiKey, httpClient, logger), configured, nil
	case KindLibrary:
		backend, err := newLibraryBackend(spec.Name, apiKey)
		if err != nil {
			return nil, false, err
		}
		return NewLibraryProvider(spec, backend), true, nil
	default:
		return nil, false, fmt.Errorf("unknown provider kind %q", spec.Kind)
	}
}

func (r *Registry) add(spec *Spec, provider domainllm.Provider, configured bool) *Entry {
	entry := &Entry{
		spec:       spec,
		provider:   provider,
		breaker:    NewBreaker(spec.FailureThreshold, spec.Cooldown),
		configured: configured && provider != nil,
		metrics:    r.metrics,
		logger:     r.logger,
	}
	r.mu.Lock()
	r.entries[spec.Name] = entry
	r.mu.Unlock()
	entry.publishState()
	return entry
}

// Register replaces (or adds) a provider under spec.Name
func (r *Registry) Register(spec *Spec, provider domainllm.Provider) *Entry {
	if spec.FailureThreshold <= 0 {
		spec.FailureThreshold = 1
	}
	if spec.Timeout <= 0 {
		spec.Timeout = 30 * time.Second
	}
	return r.add(spec, provider, true)
}

// SetChain replaces the fallback order
func (r *Registry) SetChain(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, ok := r.entries[name]; !ok {
			return fmt.Errorf("unknown provider %s", name)
		}
	}
	r.chain = append([]string(nil), names...)
	return nil
}

// Chain returns the fallback entries in priority order
func (r *Registry) Chain() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.chain))
	for _, name := range r.chain {
		out = append(out, r.entries[name])
	}
	return out
}

// Get returns the named entry
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry, ok
}

// Status reports every chained provider's state without request credentials
func (r *Registry) Status() []ProviderStatus {
	entries := r.Chain()
	out := make([]ProviderStatus, 0, len(entries))
	for _, e := range entries {
		out = append(out, ProviderStatus{
			Name:  e.spec.Name,
			Model: e.spec.Model,
			State: e.State(&domainllm.GenerateRequest{}).String(),
		})
	}
	return out
}
