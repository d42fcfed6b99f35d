package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kevin-toles/llm-gateway/gwerrors"
	"github.com/kevin-toles/llm-gateway/gwlog"
)

// Router maps a model name to exactly one loaded Adapter, or rejects. No
// wildcards, no implicit fallback: a model not on the allow-list cannot be
// reached, full stop.
type Router struct {
	adapters       map[string]Adapter // provider name -> loaded adapter
	registered     map[string]string  // model name -> provider name (the bouncer list)
	prefixes       map[string]string  // prefix -> provider name, longest-checked-first not required (spec: first match in PREFIX_MAP)
	prefixOrder    []string
	aliases        map[string]string // alias -> model name
	defaultProvide string            // "" means no default (reject unknown)
	log            gwlog.Logger
}

// NewRouter builds a Router from a parsed registry file and the set of
// adapters that were actually constructed at startup (i.e. "loaded" —
// credentials present, client constructed). Adapters not present in
// adapters are treated as nonexistent for routing even if the registry
// lists models for them.
func NewRouter(cfg *RegistryConfig, adapters map[string]Adapter, log gwlog.Logger) *Router {
	if log == nil {
		log = gwlog.NoopLogger{}
	}
	if cfg == nil {
		cfg = &RegistryConfig{Providers: map[string]ProviderEntry{}, Aliases: map[string]string{}}
	}

	order := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		order = append(order, name)
	}
	sort.Strings(order)

	registered, duplicates := buildRegisteredModels(cfg, order)
	for _, d := range duplicates {
		log.Warn(context.Background(), "duplicate model registration, first registration wins", gwlog.F("detail", d))
	}
	prefixes := buildPrefixMap(cfg, order)
	prefixOrder := make([]string, 0, len(prefixes))
	for p := range prefixes {
		prefixOrder = append(prefixOrder, p)
	}
	sort.Strings(prefixOrder)

	aliases := cfg.Aliases
	if aliases == nil {
		aliases = map[string]string{}
	}

	var def string
	if cfg.RoutingDefault != nil {
		def = *cfg.RoutingDefault
	}

	r := &Router{
		adapters:       adapters,
		registered:     registered,
		prefixes:       prefixes,
		prefixOrder:    prefixOrder,
		aliases:        aliases,
		defaultProvide: def,
		log:            log,
	}
	log.Info(context.Background(), "provider router initialized",
		gwlog.F("loaded_providers", loadedNames(adapters)),
		gwlog.F("registered_models", len(registered)))
	return r
}

func loadedNames(adapters map[string]Adapter) []string {
	names := make([]string, 0, len(adapters))
	for n := range adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetProvider resolves model to exactly one loaded Adapter, following the
// resolution order: alias, then explicit prefix, then exact registration,
// then the routing default if one is configured and loaded, then reject
// with NoProvider.
func (r *Router) GetProvider(model string) (Adapter, error) {
	if len(r.adapters) == 0 {
		return nil, gwerrors.Wrap(gwerrors.KindNoProvider, "no providers registered", gwerrors.ErrNoProvider)
	}

	lower := strings.ToLower(model)

	// 1. Alias.
	if resolved, ok := r.aliases[lower]; ok {
		return r.GetProvider(resolved)
	}

	// 2. Explicit prefix — first match in PREFIX_MAP whose provider is loaded.
	for _, prefix := range r.prefixOrder {
		if strings.HasPrefix(lower, prefix) {
			name := r.prefixes[prefix]
			if a, ok := r.adapters[name]; ok {
				return a, nil
			}
		}
	}

	// 3. Exact registration, case-sensitive first then lowercase.
	if name, ok := r.registered[model]; ok {
		if a, ok := r.adapters[name]; ok {
			return a, nil
		}
	}
	if name, ok := r.registered[lower]; ok {
		if a, ok := r.adapters[name]; ok {
			return a, nil
		}
	}

	if r.defaultProvide != "" {
		if a, ok := r.adapters[r.defaultProvide]; ok {
			return a, nil
		}
	}

	return nil, gwerrors.Wrap(gwerrors.KindNoProvider,
		fmt.Sprintf("model %q is not registered with any loaded provider", model),
		gwerrors.ErrNoProvider)
}

// ResolveAlias resolves a model alias to its canonical model name. If model
// is not an alias, it is returned unchanged.
func (r *Router) ResolveAlias(model string) string {
	lower := strings.ToLower(model)
	if resolved, ok := r.aliases[lower]; ok {
		return resolved
	}
	return model
}

// ListAvailableModels returns every registered model whose provider is
// actually loaded.
func (r *Router) ListAvailableModels() []string {
	models := make([]string, 0, len(r.registered))
	for model, providerName := range r.registered {
		if _, ok := r.adapters[providerName]; ok {
			models = append(models, model)
		}
	}
	sort.Strings(models)
	return models
}

// ListAvailableModelsByProvider groups registered, loaded models by
// provider name.
func (r *Router) ListAvailableModelsByProvider() map[string][]string {
	result := make(map[string][]string)
	for model, providerName := range r.registered {
		if _, ok := r.adapters[providerName]; ok {
			result[providerName] = append(result[providerName], model)
		}
	}
	for name := range result {
		sort.Strings(result[name])
	}
	return result
}

// RegisterAdapter adds or replaces a loaded adapter at runtime (used by
// tests and by startup wiring once credentials are validated).
func (r *Router) RegisterAdapter(name string, a Adapter) {
	r.adapters[name] = a
}
