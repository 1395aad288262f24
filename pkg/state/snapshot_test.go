package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSnapshotDefaults(t *testing.T) {
	var s Snapshot

	assert.Equal(t, UnknownIntent, s.Intent())
	assert.Equal(t, NoSample, s.ActiveSample())
	assert.False(t, s.HasActiveSample())
	assert.False(t, s.ProtocolRunning())
	assert.Equal(t, "None", s.CurrentProtocol())
	assert.Zero(t, s.ExecutionProgress())
	assert.Empty(t, s.ProtocolNames())
	assert.Empty(t, s.InstrumentNames())
}

func TestSnapshotAccessors(t *testing.T) {
	s := Snapshot{
		"intent":             "run_protocol",
		"protocols":          map[string]any{"zeta": 1, "alpha": map[string]any{"steps": 3}},
		"instruments":        map[string]any{"keithley": nil, "agilent": nil},
		"active_sample":      "Si-wafer-7",
		"protocol_running":   true,
		"current_protocol":   "alpha",
		"execution_progress": 42.5,
	}

	assert.Equal(t, "run_protocol", s.Intent())
	assert.Equal(t, []string{"alpha", "zeta"}, s.ProtocolNames())
	assert.Equal(t, []string{"agilent", "keithley"}, s.InstrumentNames())
	assert.Equal(t, "Si-wafer-7", s.ActiveSample())
	assert.True(t, s.HasActiveSample())
	assert.True(t, s.ProtocolRunning())
	assert.Equal(t, "alpha", s.CurrentProtocol())
	assert.Equal(t, 42.5, s.ExecutionProgress())

	p, ok := s.Protocol("alpha")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"steps": 3}, p)
	_, ok = s.Protocol("missing")
	assert.False(t, ok)
}

func TestWithIntentDoesNotMutate(t *testing.T) {
	s := Snapshot{"active_sample": "A"}
	out := s.WithIntent("list_protocols")

	assert.Equal(t, "list_protocols", out.Intent())
	assert.Equal(t, UnknownIntent, s.Intent())
	assert.Equal(t, "A", out.ActiveSample())
}

func TestStoreLoadAndFollow(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"active_sample":"A","protocols":{"p1":{}}}`), 0o644))

	store := NewStore(path)
	require.NoError(t, store.Load())
	assert.Equal(t, "A", store.Snapshot().ActiveSample())
	assert.Equal(t, []string{"p1"}, store.Snapshot().ProtocolNames())

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan string)
	done := make(chan struct{})
	go func() {
		store.Follow(ctx, changes)
		close(done)
	}()

	require.NoError(t, os.WriteFile(path, []byte(`{"active_sample":"B"}`), 0o644))
	changes <- filepath.Join(dir, "other.json")
	changes <- store.Path()

	require.Eventually(t, func() bool {
		return store.Snapshot().ActiveSample() == "B"
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestStoreMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, store.Load())
	assert.Empty(t, store.Snapshot())
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	store := NewStore("")
	store.Replace(Snapshot{"active_sample": "A"})

	snap := store.Snapshot()
	snap["active_sample"] = "changed"
	assert.Equal(t, "A", store.Snapshot().ActiveSample())
}
