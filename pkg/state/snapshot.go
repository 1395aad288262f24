package state

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

const (
	// NoSample is what the host reports when no sample is selected.
	NoSample = "None"
	// UnknownIntent is returned when the snapshot carries no intent.
	UnknownIntent = "unknown"
)

// Snapshot is the host's view of the lab: protocols, instruments, active
// sample and execution progress. It is foreign data and never validated;
// accessors fall back to zero values on missing or mistyped keys.
type Snapshot map[string]any

// Intent returns the classified intent, or "unknown".
func (s Snapshot) Intent() string {
	if v, ok := s["intent"].(string); ok && v != "" {
		return v
	}
	return UnknownIntent
}

// WithIntent returns a shallow copy of s with the intent key set.
func (s Snapshot) WithIntent(intent string) Snapshot {
	out := s.Clone()
	out["intent"] = intent
	return out
}

// Clone returns a shallow copy that is safe to extend.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s)+1)
	maps.Copy(out, s)
	return out
}

// Protocols returns the protocol map keyed by protocol name.
func (s Snapshot) Protocols() map[string]any {
	return asMap(s["protocols"])
}

// Protocol looks up one protocol's data.
func (s Snapshot) Protocol(name string) (any, bool) {
	v, ok := s.Protocols()[name]
	return v, ok
}

// ProtocolNames returns the protocol names in sorted order.
func (s Snapshot) ProtocolNames() []string {
	return sortedKeys(s.Protocols())
}

// Instruments returns the instrument map keyed by instrument name.
func (s Snapshot) Instruments() map[string]any {
	return asMap(s["instruments"])
}

// InstrumentNames returns the instrument names in sorted order.
func (s Snapshot) InstrumentNames() []string {
	return sortedKeys(s.Instruments())
}

// ActiveSample returns the active sample name, "None" when unset.
func (s Snapshot) ActiveSample() string {
	switch v := s["active_sample"].(type) {
	case nil:
		return NoSample
	case string:
		if v == "" {
			return NoSample
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}

// HasActiveSample reports whether the host has a sample selected.
func (s Snapshot) HasActiveSample() bool {
	return s.ActiveSample() != NoSample
}

// ProtocolRunning reports whether the host is executing a protocol.
func (s Snapshot) ProtocolRunning() bool {
	switch v := s["protocol_running"].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// CurrentProtocol returns the running protocol's name, "None" when idle.
func (s Snapshot) CurrentProtocol() string {
	if v, ok := s["current_protocol"].(string); ok && v != "" {
		return v
	}
	return "None"
}

// ExecutionProgress returns the progress percentage of the running protocol.
func (s Snapshot) ExecutionProgress() float64 {
	switch v := s["execution_progress"].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case Snapshot:
		return m
	default:
		return nil
	}
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
