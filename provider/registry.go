package provider

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RegistryConfig is the parsed shape of the model registry YAML file: the
// single source of truth for model-to-provider routing. No hardcoded
// tables — everything used by the router is built from this file.
type RegistryConfig struct {
	Providers      map[string]ProviderEntry `yaml:"providers"`
	Aliases        map[string]string        `yaml:"aliases"`
	RoutingDefault *string                  `yaml:"routing_default"`
}

// ProviderEntry is one provider's section of the registry file.
type ProviderEntry struct {
	Models []string `yaml:"models"`
	Prefix string   `yaml:"prefix"`
}

// LoadRegistryConfig reads and parses the model registry YAML from path. A
// missing file is not fatal to the caller — the gateway starts with empty
// routing tables and a warning, per the external-interfaces contract — but
// this function itself reports the error so the caller can log it.
func LoadRegistryConfig(path string) (*RegistryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model registry %s: %w", path, err)
	}
	var cfg RegistryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse model registry %s: %w", path, err)
	}
	return &cfg, nil
}

// buildRegisteredModels builds the complete model→provider allow-list by
// reading every provider's models: list in providerOrder. A model already
// claimed by an earlier provider keeps its original owner (first-wins, see
// Open Question i in SPEC_FULL.md). Since Go's yaml.v3 unmarshal into a map
// loses document order, providerOrder is the sorted provider-name list
// (sort.Strings) rather than document order — this keeps resolution
// deterministic across runs at the cost of depending on alphabetical order
// instead of document order when two providers genuinely collide.
func buildRegisteredModels(cfg *RegistryConfig, providerOrder []string) (map[string]string, []string) {
	registered := make(map[string]string)
	var duplicates []string
	for _, name := range providerOrder {
		entry := cfg.Providers[name]
		for _, model := range entry.Models {
			if owner, exists := registered[model]; exists {
				duplicates = append(duplicates, fmt.Sprintf("%s already registered to %s, %s ignored", model, owner, name))
				continue
			}
			registered[model] = name
		}
	}
	return registered, duplicates
}

func buildPrefixMap(cfg *RegistryConfig, providerOrder []string) map[string]string {
	prefixes := make(map[string]string)
	for _, name := range providerOrder {
		entry := cfg.Providers[name]
		if entry.Prefix != "" {
			prefixes[entry.Prefix] = name
		}
	}
	return prefixes
}
