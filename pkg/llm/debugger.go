package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type contextKey string

// DebugDirContextKey carries the per-request debug ID. Stream dumps are
// nested under it and the log handler prints it.
const DebugDirContextKey contextKey = "llm_debug_dir"

// WithDebugID returns a context carrying the given debug ID.
func WithDebugID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, DebugDirContextKey, id)
}

// DebugID extracts the debug ID from ctx, or "".
func DebugID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(DebugDirContextKey).(string)
	return id
}

// StreamDebugger writes raw provider chunks to debug/chunks/[debug_id/]provider.
type StreamDebugger struct {
	file *os.File
}

// NewStreamDebugger opens the dump file when enabled. A disabled or failed
// debugger is a no-op.
func NewStreamDebugger(ctx context.Context, provider string, enabled bool) *StreamDebugger {
	if !enabled {
		return &StreamDebugger{}
	}

	debugDir := filepath.Join("debug", "chunks", provider)
	if id := DebugID(ctx); id != "" {
		debugDir = filepath.Join("debug", "chunks", id, provider)
	}

	if err := os.MkdirAll(debugDir, 0755); err != nil {
		slog.Error("Failed to create debug directory", "dir", debugDir, "error", err)
		return &StreamDebugger{}
	}

	filename := filepath.Join(debugDir, fmt.Sprintf("%s.log", time.Now().Format("20060102_150405")))
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("Failed to open debug file", "file", filename, "error", err)
		return &StreamDebugger{}
	}

	slog.Debug("Debug mode ON", "provider", provider, "file", filename)
	return &StreamDebugger{file: f}
}

// WriteJSON marshals v and appends it as one line.
func (d *StreamDebugger) WriteJSON(v any) {
	if d.file == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal debug chunk", "error", err)
		return
	}
	d.WriteString(string(data))
}

// WriteString appends s followed by a newline.
func (d *StreamDebugger) WriteString(s string) {
	if d.file == nil {
		return
	}
	if _, err := d.file.WriteString(s + "\n"); err != nil {
		slog.Warn("Failed to write to debug file", "error", err)
	}
}

// Close closes the debug file handle.
func (d *StreamDebugger) Close() {
	if d.file != nil {
		d.file.Close()
		d.file = nil
	}
}
