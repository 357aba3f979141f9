// Package llm provides the generative-text backend used by the answer
// synthesizer, behind a provider-agnostic client interface. The backend
// is treated as untrusted and possibly slow: every call is
// context-bounded by the caller.
package llm

// ModelTier selects the capability level of the underlying model.
type ModelTier string

const (
	// TierLite is for cheap classification-style calls (choice picking).
	TierLite ModelTier = "lite"
	// TierStandard is for free-text answer generation.
	TierStandard ModelTier = "standard"
)

// Provider identifies an LLM provider.
type Provider string

// Supported providers.
const (
	ProviderGemini Provider = "gemini"
)

// Config holds the model configuration for the synthesizer.
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
	}
}

// Model returns the model name for a tier, falling back to the standard
// tier when the requested one is not configured.
func (c *Config) Model(tier ModelTier) string {
	if m, ok := c.Models[tier]; ok {
		return m
	}
	return c.Models[TierStandard]
}
