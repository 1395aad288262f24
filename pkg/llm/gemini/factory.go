package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"labagent/pkg/config"
	"labagent/pkg/llm"
)

// GeminiFactory handles creation of Gemini Clients
type GeminiFactory struct{}

// Create implements ProviderFactory
func (f *GeminiFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.LLMClient, error) {
	keys := cfg.ResolvedKeys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("gemini: no api key configured")
	}

	useThought := false
	if effort, ok := cfg.Options["thinking_effort"].(string); ok && effort != "" && effort != "off" {
		useThought = true
	}

	// Models x Keys (prioritize models)
	var clients []llm.LLMClient
	for _, model := range cfg.Models {
		for _, key := range keys {
			client, err := NewGeminiClient(context.Background(), key, model, useThought, cfg.Options)
			if err != nil {
				slog.Error("Failed to create Gemini client", "model", model, "error", err)
				continue
			}
			clients = append(clients, client)
		}
	}
	return clients, nil
}

func init() {
	llm.RegisterProvider("gemini", &GeminiFactory{})
}
