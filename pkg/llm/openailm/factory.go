package openailm

import (
	"fmt"

	"labagent/pkg/config"
	"labagent/pkg/llm"
)

// OpenAIFactory handles creation of OpenAI Clients
type OpenAIFactory struct{}

// Create implements ProviderFactory
func (f *OpenAIFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.LLMClient, error) {
	keys := cfg.ResolvedKeys()
	if len(keys) == 0 && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai: no api key configured")
	}

	apiKey := ""
	if len(keys) > 0 {
		apiKey = keys[0]
	}

	clients := make([]llm.LLMClient, 0, len(cfg.Models))
	for _, model := range cfg.Models {
		clients = append(clients, NewClient("openai", apiKey, model, cfg.BaseURL, cfg.Options))
	}
	return clients, nil
}

func init() {
	llm.RegisterProvider("openai", &OpenAIFactory{})
}
