package console

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"labagent/pkg/llm"

	"github.com/stretchr/testify/assert"
)

func TestCustomHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCustomHandler(&buf, slog.LevelInfo)).With("agent", "protocol")

	ctx := llm.WithDebugID(context.Background(), "a1b2")
	logger.InfoContext(ctx, "Processing request", "intent", "run_protocol", "routed", true)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "[INFO] [a1b2] Processing request agent=\"protocol\" intent=\"run_protocol\" routed=true")
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestLevelVarChangesVerbosity(t *testing.T) {
	var buf bytes.Buffer
	lv := &slog.LevelVar{}
	lv.Set(ParseLevel("warn"))
	logger := slog.New(NewCustomHandler(&buf, lv))

	logger.Info("quiet")
	lv.Set(ParseLevel("debug"))
	logger.Debug("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "[DEBUG] loud")
}

func TestEchoOnMessage(t *testing.T) {
	var buf bytes.Buffer
	e := NewEchoTo(&buf)
	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	e.OnMessage(Message{Timestamp: ts, Direction: DirectionUser, ChannelID: "web", Username: "ana", Content: "list protocols", Intent: "list_protocols"})
	e.OnMessage(Message{Timestamp: ts, Direction: DirectionAgent, Agent: "protocol", Content: "3 found"})

	out := buf.String()
	assert.Contains(t, out, "[web/ana] list protocols (intent=list_protocols)")
	assert.Contains(t, out, "[protocol] 3 found")
	assert.Contains(t, out, "2026-05-01 10:00:00")
}
