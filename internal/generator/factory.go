package generator

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/medkb/medqa-go/internal/medrag"
)

// Backend enumerates the supported generation providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects an Ark/OpenAI-compatible gateway endpoint.
	BackendArk Backend = "ark"
)

// Config holds generation provider settings resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which provider to use.
	Backend Backend

	// Model is the model name or deployment ID (e.g. "gemini-2.0-flash", "llama3").
	Model string

	// BaseURL overrides the default API endpoint (required for Azure and Ark).
	BaseURL string

	// APIKey is the authentication credential for the selected provider.
	APIKey string

	// AzureDeployment is the Azure OpenAI deployment name (Azure only).
	AzureDeployment string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps the tokens the model may generate per answer.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0). Answers are
	// grounded in retrieved context, so the default is low.
	Temperature float32
}

// Validate checks that the backend has the credentials and endpoints it
// needs. A failure here is a startup-fatal ConfigError: the operator
// fixes the environment before any ingestion or query proceeds.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		// Local instance, no credentials required.
	case BackendOpenAI:
		if c.APIKey == "" {
			return &medrag.ConfigError{Key: "OPENAI_API_KEY", Reason: "required for the openai backend"}
		}
	case BackendAzure:
		if c.APIKey == "" {
			return &medrag.ConfigError{Key: "AZURE_OPENAI_API_KEY", Reason: "required for the azure backend"}
		}
		if c.BaseURL == "" {
			return &medrag.ConfigError{Key: "AZURE_OPENAI_ENDPOINT", Reason: "required for the azure backend"}
		}
		if c.AzureDeployment == "" {
			return &medrag.ConfigError{Key: "AZURE_OPENAI_DEPLOYMENT", Reason: "required for the azure backend"}
		}
	case BackendGemini:
		if c.APIKey == "" {
			return &medrag.ConfigError{Key: "GOOGLE_API_KEY", Reason: "required for the gemini backend"}
		}
	case BackendArk:
		if c.APIKey == "" {
			return &medrag.ConfigError{Key: "ARK_API_KEY", Reason: "required for the ark backend"}
		}
	default:
		return &medrag.ConfigError{
			Key:    "MODEL_PROVIDER",
			Reason: fmt.Sprintf("unknown backend %q, valid values: ollama, openai, azure, gemini, ark", c.Backend),
		}
	}
	return nil
}

// ConfigFromEnv resolves the generation provider configuration from
// environment variables.
//
// Environment variables:
//
//	MODEL_PROVIDER = ollama | openai | azure | gemini | ark (default: gemini)
//
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3)
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o)
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Gemini:  GOOGLE_API_KEY (GEMINI_API_KEY also accepted), GEMINI_MODEL (default: gemini-2.0-flash)
//	Ark:     ARK_API_KEY, ARK_BASE_URL, ARK_MODEL
//
//	Shared:  MODEL_MAX_TOKENS (default: 2048), MODEL_TEMPERATURE (default: 0.2)
func ConfigFromEnv() *Config {
	cfg := &Config{
		Backend:     Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendGemini))),
		MaxTokens:   getEnvInt("MODEL_MAX_TOKENS", 2048),
		Temperature: getEnvFloat32("MODEL_TEMPERATURE", 0.2),
	}

	switch cfg.Backend {
	case BackendOllama:
		cfg.BaseURL = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		cfg.Model = getEnvOrDefault("OLLAMA_MODEL", "llama3")
	case BackendOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Model = getEnvOrDefault("OPENAI_MODEL", "gpt-4o")
	case BackendAzure:
		cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		cfg.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
		cfg.AzureDeployment = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		cfg.AzureAPIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01")
	case BackendGemini:
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		}
		cfg.Model = getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash")
	case BackendArk:
		cfg.APIKey = os.Getenv("ARK_API_KEY")
		cfg.BaseURL = os.Getenv("ARK_BASE_URL")
		cfg.Model = os.Getenv("ARK_MODEL")
	}

	return cfg
}

// New constructs a Generator from an explicit Config. It validates first
// so the operator gets a clear error at startup rather than on the first
// question.
func New(ctx context.Context, cfg *Config) (medrag.Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch cfg.Backend {
	case BackendOllama:
		chatModel, err = newOllama(ctx, cfg)
	case BackendOpenAI:
		chatModel, err = newOpenAI(ctx, cfg)
	case BackendAzure:
		chatModel, err = newAzure(ctx, cfg)
	case BackendGemini:
		chatModel, err = newGemini(ctx, cfg)
	case BackendArk:
		chatModel, err = newArk(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	return NewChatModelGenerator(chatModel)
}

// NewFromEnv constructs a Generator from environment variables.
func NewFromEnv(ctx context.Context) (medrag.Generator, error) {
	return New(ctx, ConfigFromEnv())
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment
// variable, or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
