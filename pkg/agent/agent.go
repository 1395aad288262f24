// Package agent implements the protocol and measurement-control agents.
// Each agent routes a request by intent to a handler that builds a prompt
// from the host's state snapshot, asks the model, and turns the answer
// (plus any side effect on the host or the monitor registry) into a reply.
package agent

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"labagent/pkg/state"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Agent names used for explicit routing.
const (
	NameProtocol    = "protocol"
	NameMeasurement = "measurement"
)

// Model answers a single prompt. *llm.Completer satisfies it.
type Model interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// Agent is the inbound contract shared by both agents.
type Agent interface {
	Name() string
	// ResolveIntent returns the intent the request will be routed by.
	ResolveIntent(text string, rc RequestContext) string
	ProcessRequest(ctx context.Context, text string, params Parameters, rc RequestContext) string
}

// HistoryEntry is one turn of the per-session conversation.
type HistoryEntry struct {
	Role   string `json:"role"`
	Text   string `json:"text"`
	Intent string `json:"intent,omitempty"`
}

// RequestContext carries the state snapshot and the conversation so far.
type RequestContext struct {
	SystemState         state.Snapshot
	ConversationHistory []HistoryEntry
}

// LastIntent returns the intent recorded on the most recent history entry.
func (rc RequestContext) LastIntent() string {
	if n := len(rc.ConversationHistory); n > 0 {
		if it := rc.ConversationHistory[n-1].Intent; it != "" {
			return it
		}
	}
	return state.UnknownIntent
}

// Request is what a handler sees after routing.
type Request struct {
	Text    string
	Params  Parameters
	Context RequestContext
	Intent  string
}

// State is shorthand for the request's snapshot.
func (r *Request) State() state.Snapshot {
	return r.Context.SystemState
}

// Parameters holds values extracted from the user's message by the host's
// intent classifier. Values are untyped JSON.
type Parameters map[string]any

// String returns the value for key as text, "" when absent.
func (p Parameters) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the numeric value for key, or def when absent or invalid.
func (p Parameters) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// Format renders the parameters as "{k: v, ...}" with sorted keys.
func (p Parameters) Format() string {
	if len(p) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(p))
	for _, k := range slices.Sorted(maps.Keys(p)) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, p[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatNames renders names as "[a, b, c]".
func formatNames(names []string) string {
	return "[" + strings.Join(names, ", ") + "]"
}

// formatData renders foreign protocol data for a prompt.
func formatData(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// containsAny reports whether the lowered text contains any of keywords.
func containsAny(text string, keywords ...string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
