// Provider factory - creating completion providers by type.
//
// Quick Start:
//
//	// Gemini with the key from GEMINI_API_KEY
//	provider, err := llm.ProviderGemini.FromEnv()
//
//	// Explicit key
//	provider := llm.ProviderGemini.New("AIza...")
//
//	// Default model cascade for a provider
//	tiers := llm.ProviderGemini.DefaultTiers()

package llm

import (
	"fmt"
	"os"
	"strings"
)

// ProviderType represents supported completion backends.
type ProviderType int

const (
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini ProviderType = iota
	// ProviderOpenAI is the OpenAI provider (GPT models).
	ProviderOpenAI
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	switch p {
	case ProviderGemini:
		return "gemini"
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable name for this provider's API key.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// BackupEnvVar returns the environment variable name for this provider's
// optional backup API key.
func (p ProviderType) BackupEnvVar() string {
	env := p.EnvVar()
	if env == "" {
		return ""
	}
	return env + "_BACKUP"
}

// DefaultTiers returns the default model cascade for this provider,
// most capable first.
func (p ProviderType) DefaultTiers() []string {
	switch p {
	case ProviderGemini:
		return []string{ModelGeminiPro3, ModelGeminiFlash3, ModelGeminiFlash2}
	case ProviderOpenAI:
		return []string{ModelOpenAIGPT52, ModelOpenAIGPT5, ModelOpenAIGPT4o}
	case ProviderAnthropic:
		return []string{ModelAnthropicClaudeOpus45, ModelAnthropicClaudeSonnet4, ModelAnthropicClaudeHaiku4}
	default:
		return nil
	}
}

// ParseProviderType parses a provider from string (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(s) {
	case "gemini", "google":
		return ProviderGemini, nil
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// New creates a provider of this type bound to one API key.
func (p ProviderType) New(apiKey string) Provider {
	switch p {
	case ProviderGemini:
		return NewGeminiProvider(apiKey)
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey)
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey)
	default:
		return nil
	}
}

// FromEnv creates a provider, reading the API key from the environment.
func (p ProviderType) FromEnv() (Provider, error) {
	envVar := p.EnvVar()
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", p, envVar)
	}
	return p.New(apiKey), nil
}

// CredentialsFromEnv builds a credential set from the provider's primary
// and optional backup key environment variables.
func (p ProviderType) CredentialsFromEnv() (*CredentialSet, error) {
	primary := os.Getenv(p.EnvVar())
	if primary == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", p, p.EnvVar())
	}
	return NewCredentialSet(primary, os.Getenv(p.BackupEnvVar()))
}
