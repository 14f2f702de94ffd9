package compose

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProviderFactory creates providers.
type ProviderFactory func(cfg Config) (Provider, error)

// DefaultModels maps provider names to their default models.
var DefaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-20250514",
	"openai":    "gpt-4o-mini",
	"gemini":    "gemini-2.0-flash",
	"ollama":    "llama3.2",
}

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{
		"anthropic": func(cfg Config) (Provider, error) { return NewAnthropicProvider(cfg) },
		"openai":    func(cfg Config) (Provider, error) { return NewOpenAIProvider(cfg) },
		"gemini":    func(cfg Config) (Provider, error) { return NewGeminiProvider(cfg) },
		"ollama":    func(cfg Config) (Provider, error) { return NewOllamaProvider(cfg) },
	}
)

// NewProvider creates a provider by name.
func NewProvider(name string, cfg Config) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: %s)", name, strings.Join(AvailableProviders(), ", "))
	}
	return factory(cfg)
}

// RegisterProvider adds a custom provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// AvailableProviders returns the registered provider names, sorted.
func AvailableProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultModel returns the default model for a provider.
func DefaultModel(provider string) string {
	return DefaultModels[provider]
}

// KeyVariables maps providers to the credential that enables them, in
// detection order.
var KeyVariables = []struct {
	Provider string
	Key      string
}{
	{"gemini", "GEMINI_API_KEY"},
	{"anthropic", "ANTHROPIC_API_KEY"},
	{"openai", "OPENAI_API_KEY"},
}

// DetectProvider picks a provider from the first credential lookup can
// resolve, falling back to ollama, which needs none.
func DetectProvider(lookup func(name string) string) (provider string, apiKey string) {
	for _, kv := range KeyVariables {
		if key := lookup(kv.Key); key != "" {
			return kv.Provider, key
		}
	}
	return "ollama", ""
}
