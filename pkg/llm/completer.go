package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Completer sends a single prompt, framed by fixed instructions, to an
// LLMClient and returns the collected text of the answer.
type Completer struct {
	client       LLMClient
	instructions string
	timeout      time.Duration
}

// NewCompleter creates a Completer. A zero timeout means the caller's
// context is the only deadline.
func NewCompleter(client LLMClient, instructions string, timeout time.Duration) *Completer {
	return &Completer{
		client:       client,
		instructions: instructions,
		timeout:      timeout,
	}
}

// Run implements the prompt-in, text-out contract used by the agents.
func (c *Completer) Run(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]Message, 0, 2)
	if c.instructions != "" {
		messages = append(messages, NewSystemMessage(c.instructions))
	}
	messages = append(messages, NewUserMessage(prompt))

	return Collect(ctx, c.client, messages)
}

// Collect drains a chat stream and joins its text blocks. Thinking blocks
// are dropped. The first error reported by the stream is returned after
// the channel has been fully drained.
func Collect(ctx context.Context, client LLMClient, messages []Message) (string, error) {
	chunkCh, err := client.StreamChat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("stream init failed: %w", err)
	}

	var text strings.Builder
	var streamErr error
	for chunk := range chunkCh {
		if chunk.Error != "" || chunk.RawError != nil {
			if streamErr == nil {
				streamErr = chunkError(chunk)
			}
			continue
		}
		for _, block := range chunk.ContentBlocks {
			if block.Type == BlockTypeText {
				text.WriteString(block.Text)
			}
		}
		if chunk.IsFinal && chunk.FinishReason == StopReasonLength {
			slog.WarnContext(ctx, "LLM response truncated due to length")
		}
	}

	if streamErr != nil {
		return "", streamErr
	}
	return strings.TrimSpace(text.String()), nil
}

func chunkError(chunk StreamChunk) error {
	if chunk.RawError != nil {
		if chunk.Error != "" {
			return fmt.Errorf("%s: %w", chunk.Error, chunk.RawError)
		}
		return chunk.RawError
	}
	return errors.New(chunk.Error)
}
