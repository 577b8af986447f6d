package config

import (
	"net/http"
	"time"
)

// ProviderConfig holds the credentials and constants of one inference provider.
type ProviderConfig struct {
	APIKey       string   `yaml:"api_key"`
	BaseURL      string   `yaml:"base_url"`
	DefaultModel string   `yaml:"default_model"`
	Fallback     []string `yaml:"fallback_models"`
}

type ProvidersConfig struct {
	Gemini ProviderConfig `yaml:"gemini"`
	Groq   ProviderConfig `yaml:"groq"`
	// HeaderTimeout bounds the wait for a provider's response headers.
	// Zero disables it. Streaming bodies are never cut short.
	HeaderTimeout time.Duration `yaml:"header_timeout"`
}

func DefaultProviders() ProvidersConfig {
	return ProvidersConfig{
		Gemini: ProviderConfig{
			BaseURL:      "https://generativelanguage.googleapis.com",
			DefaultModel: "gemini-2.0-flash",
			Fallback:     []string{"gemini-2.0-flash", "gemini-1.5-flash"},
		},
		Groq: ProviderConfig{
			BaseURL:      "https://api.groq.com/openai/v1",
			DefaultModel: "llama3-70b-8192",
			Fallback:     []string{"llama3-8b-8192", "mixtral-8x7b-32768"},
		},
		HeaderTimeout: 60 * time.Second,
	}
}

// HTTPClient returns the client shared by both providers. It has no overall
// timeout so long verdicts can keep streaming.
func (p ProvidersConfig) HTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = p.HeaderTimeout
	return &http.Client{Transport: transport}
}
