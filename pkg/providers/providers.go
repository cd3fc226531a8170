// Package providers validates and normalizes (provider, api-key) pairs
// against the closed set of supported LLM providers.
//
// The checks here are fail-fast UX, not access control: a key that passes
// still has to be accepted by the provider itself.
package providers

import (
	"fmt"
	"sort"
	"strings"
)

// Provider is the canonical, lowercase identifier of a supported provider.
type Provider string

const (
	Anthropic   Provider = "anthropic"
	OpenAI      Provider = "openai"
	Google      Provider = "google"
	Groq        Provider = "groq"
	Cohere      Provider = "cohere"      // legacy
	HuggingFace Provider = "huggingface" // legacy
)

// keyRule holds the per-provider key format constraints. Exactly one required
// prefix and one minimum length per provider; an empty prefix means no prefix
// check beyond the generic rule.
type keyRule struct {
	prefix      string
	minLength   int
	displayName string
}

// genericMinLength applies to every provider on top of its own rule.
const genericMinLength = 10

var keyRules = map[Provider]keyRule{
	Anthropic:   {prefix: "sk-ant-", minLength: 20, displayName: "Anthropic"},
	OpenAI:      {prefix: "sk-", minLength: 10, displayName: "OpenAI"},
	Google:      {prefix: "", minLength: 20, displayName: "Google"},
	Groq:        {prefix: "gsk_", minLength: 20, displayName: "Groq"},
	Cohere:      {prefix: "", minLength: 20, displayName: "Cohere"},
	HuggingFace: {prefix: "hf_", minLength: 10, displayName: "Hugging Face"},
}

// UnsupportedProviderError reports a provider name outside the closed set.
type UnsupportedProviderError struct {
	Name string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported LLM provider %q; supported providers: %s",
		e.Name, strings.Join(allNames(), ", "))
}

// InvalidKeyFormatError reports an API key that fails the provider's rule.
type InvalidKeyFormatError struct {
	Provider Provider
	Reason   string
}

func (e *InvalidKeyFormatError) Error() string {
	return fmt.Sprintf("invalid API key for provider %q: %s", e.Provider, e.Reason)
}

// All returns every supported provider in stable order.
func All() []Provider {
	out := make([]Provider, 0, len(keyRules))
	for p := range keyRules {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func allNames() []string {
	ps := All()
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return names
}

// DisplayName returns the human-readable name for a provider.
func DisplayName(p Provider) string {
	if rule, ok := keyRules[p]; ok {
		return rule.displayName
	}
	return string(p)
}

// IsSupported reports whether name (case-insensitive) is in the closed set.
func IsSupported(name string) bool {
	_, ok := keyRules[Provider(strings.ToLower(strings.TrimSpace(name)))]
	return ok
}

// Validate normalizes the provider name and checks the key format.
// It returns the canonical provider and the trimmed key.
func Validate(name, key string) (Provider, string, error) {
	canonical := Provider(strings.ToLower(strings.TrimSpace(name)))
	rule, ok := keyRules[canonical]
	if !ok {
		return "", "", &UnsupportedProviderError{Name: name}
	}

	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", "", &InvalidKeyFormatError{Provider: canonical, Reason: "key is empty"}
	}
	if rule.prefix != "" && !strings.HasPrefix(trimmed, rule.prefix) {
		return "", "", &InvalidKeyFormatError{
			Provider: canonical,
			Reason:   fmt.Sprintf("key must start with %q", rule.prefix),
		}
	}
	if len(trimmed) < rule.minLength {
		return "", "", &InvalidKeyFormatError{
			Provider: canonical,
			Reason:   fmt.Sprintf("key must be at least %d characters", rule.minLength),
		}
	}
	if len(trimmed) < genericMinLength {
		return "", "", &InvalidKeyFormatError{
			Provider: canonical,
			Reason:   fmt.Sprintf("key must be at least %d characters", genericMinLength),
		}
	}
	if !validCharset(trimmed) {
		return "", "", &InvalidKeyFormatError{
			Provider: canonical,
			Reason:   "key contains invalid characters (allowed: alphanumerics, '-', '_', '.')",
		}
	}

	return canonical, trimmed, nil
}

func validCharset(key string) bool {
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
