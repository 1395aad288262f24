package config

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

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	app := filepath.Join(dir, "config.json")
	sys := filepath.Join(dir, "system.json")

	_, _, err := Load(app, sys)
	assert.ErrorContains(t, err, "not found")

	writeFile(t, app, `{"channels":{"web":{"port":9000}}}`)
	_, _, err = Load(app, sys)
	assert.ErrorContains(t, err, "'llm'")

	writeFile(t, app, `{
		"llm": [{"type":"ollama","models":["llama3"]}],
		"channels": {"web": {"port": 9000}},
		"state_file": "state.json",
		"host": {"run_url": "http://localhost:5000/cmd"},
		"agents": {"protocol_instructions": "custom"}
	}`)
	writeFile(t, sys, `{"history_limit": 10, "log_level": "debug"}`)

	cfg, system, err := Load(app, sys)
	require.NoError(t, err)
	assert.Contains(t, cfg.Channels, "web")
	assert.Equal(t, "state.json", cfg.StateFile)
	assert.Equal(t, "http://localhost:5000/cmd", cfg.Host.RunURL)
	assert.Equal(t, "custom", cfg.Agents.ProtocolInstructions)
	assert.Empty(t, cfg.Agents.MeasurementInstructions)

	// Fields absent from system.json keep their defaults.
	assert.Equal(t, 10, system.HistoryLimit)
	assert.Equal(t, "debug", system.LogLevel)
	assert.Equal(t, DefaultSystemConfig().ConditionPollMs, system.ConditionPollMs)
	assert.Equal(t, DefaultSystemConfig().MaxRetries, system.MaxRetries)
}

func TestLoadSystemConfigFallsBack(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, DefaultSystemConfig(), LoadSystemConfig(filepath.Join(dir, "missing.json")))

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{not json`)
	assert.Equal(t, DefaultSystemConfig(), LoadSystemConfig(bad))
}

func TestLoadEnvAndResolveSecret(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	writeFile(t, env, "LABAGENT_TOKEN_TEST=abc123\n")
	t.Cleanup(func() { os.Unsetenv("LABAGENT_TOKEN_TEST") })

	require.NoError(t, LoadEnv(filepath.Join(dir, "absent.env"), env))
	assert.Equal(t, "abc123", ResolveSecret("env:LABAGENT_TOKEN_TEST"))
	assert.Equal(t, "literal", ResolveSecret("literal"))
	assert.Empty(t, ResolveSecret("env:LABAGENT_NOT_SET_ANYWHERE"))
}

func TestWatchFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	target := filepath.Join(dir, "state.json")
	other := filepath.Join(dir, "other.json")
	writeFile(t, target, `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	changes := WatchFiles(ctx, target, "")

	// Give the watcher a moment to register the directory.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, other, `{}`)
	writeFile(t, target, `{"active_sample":"Si"}`)
	writeFile(t, target, `{"active_sample":"Ge"}`)

	select {
	case name := <-changes:
		abs, _ := filepath.Abs(target)
		assert.Equal(t, abs, name)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	for range changes {
	}
}
