package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"labagent/pkg/llm"

	"google.golang.org/genai"
)

// GeminiClient Google Gemini API client
type GeminiClient struct {
	client       *genai.Client
	model        string
	useThought   bool
	temperature  *float32
	debugEnabled bool
}

// SetDebug implements llm.DebugSetter
func (g *GeminiClient) SetDebug(enabled bool) {
	g.debugEnabled = enabled
}

// NewGeminiClient creates a Gemini client with a single model and API key
func NewGeminiClient(ctx context.Context, apiKey string, model string, useThought bool, options map[string]any) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	g := &GeminiClient{
		client:     client,
		model:      model,
		useThought: useThought,
	}
	if t, ok := options["temperature"].(float64); ok {
		g.temperature = genai.Ptr(float32(t))
	}
	return g, nil
}

func (g *GeminiClient) Provider() string {
	return "gemini"
}

// StreamChat implements llm.LLMClient.StreamChat
func (g *GeminiClient) StreamChat(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	contents, systemInstruction := g.convertMessages(messages)

	chunkCh := make(chan llm.StreamChunk, 100)
	startResultCh := make(chan error, 1)

	slog.DebugContext(ctx, "Streaming", "provider", "gemini", "model", g.model)

	go func() {
		defer close(chunkCh)

		genCfg := &genai.GenerateContentConfig{
			SystemInstruction: systemInstruction,
			Temperature:       g.temperature,
		}
		if g.useThought {
			genCfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
		}

		debugger := llm.NewStreamDebugger(ctx, "gemini", g.debugEnabled)
		defer debugger.Close()

		started := false
		var lastUsage *llm.LLMUsage

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, genCfg) {
			if resp != nil {
				debugger.WriteJSON(resp)
			}
			if err != nil && resp == nil {
				slog.ErrorContext(ctx, "Stream error", "provider", "gemini", "error", err)
				if !started {
					startResultCh <- err
				} else {
					chunkCh <- llm.NewErrorChunk("stream interrupted", err, g.IsTransientError(err))
				}
				return
			}

			if !started {
				started = true
				startResultCh <- nil
			}

			if u := resp.UsageMetadata; u != nil {
				lastUsage = &llm.LLMUsage{
					PromptTokens:     int(u.PromptTokenCount),
					CompletionTokens: int(u.CandidatesTokenCount),
					TotalTokens:      int(u.TotalTokenCount),
					ThoughtsTokens:   int(u.ThoughtsTokenCount),
					CachedTokens:     int(u.CachedContentTokenCount),
				}
			}

			for _, candidate := range resp.Candidates {
				if candidate.FinishReason != "" && lastUsage != nil {
					lastUsage.StopReason = normalizeStopReason(candidate.FinishReason)
				}
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part.Text == "" {
						continue
					}
					if part.Thought {
						chunkCh <- llm.NewThinkingChunk(part.Text)
					} else {
						chunkCh <- llm.NewTextChunk(part.Text)
					}
				}
			}
		}

		if !started {
			startResultCh <- nil
		}

		reason := llm.StopReasonStop
		if lastUsage != nil && lastUsage.StopReason != "" {
			reason = lastUsage.StopReason
		}
		llm.LogUsage(ctx, g.model, lastUsage)
		chunkCh <- llm.NewFinalChunk(reason, lastUsage)
	}()

	// Wait for the first chunk or an immediate error
	select {
	case err := <-startResultCh:
		if err != nil {
			return nil, err
		}
		return chunkCh, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// convertMessages converts messages to GenAI format; system messages become
// the system instruction.
func (g *GeminiClient) convertMessages(messages []llm.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemInstruction *genai.Content

	for _, msg := range messages {
		text := msg.GetTextContent()
		if text == "" {
			continue
		}

		switch msg.Role {
		case llm.RoleSystem:
			systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: text}}}
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: text}}})
		}
	}

	return contents, systemInstruction
}

// IsTransientError implements llm.LLMClient
func (g *GeminiClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())

	return strings.Contains(errMsg, "503") || strings.Contains(errMsg, "overloaded") ||
		strings.Contains(errMsg, "429") || strings.Contains(errMsg, "resource exhausted") ||
		strings.Contains(errMsg, "500") || strings.Contains(errMsg, "internal error")
}

func normalizeStopReason(reason genai.FinishReason) string {
	switch reason {
	case genai.FinishReasonStop:
		return llm.StopReasonStop
	case genai.FinishReasonMaxTokens:
		return llm.StopReasonLength
	default:
		return strings.ToLower(string(reason))
	}
}
