package handler

import (
	"context"
	"sync"
	"testing"

	"labagent/pkg/agent"
	"labagent/pkg/api"
	"labagent/pkg/config"
	"labagent/pkg/monitor"
	"labagent/pkg/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type echoModel struct {
	mu    sync.Mutex
	calls int
}

func (m *echoModel) Run(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return "model says hi", nil
}

type sentReply struct {
	agent, text string
}

type fakeResponder struct {
	mu      sync.Mutex
	replies []sentReply
	signals []string
}

func (r *fakeResponder) SendReply(session api.SessionContext, content string) error {
	return r.SendAgentReply(session, "", content)
}

func (r *fakeResponder) SendAgentReply(session api.SessionContext, agentName, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, sentReply{agentName, content})
	return nil
}

func (r *fakeResponder) SendSignal(session api.SessionContext, signal string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, signal)
	return nil
}

func (r *fakeResponder) last() sentReply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replies[len(r.replies)-1]
}

type fixture struct {
	h        *AgentHandler
	out      *fakeResponder
	monitors *monitor.Registry
	store    *state.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	model := &echoModel{}
	monitors := monitor.NewRegistry()
	t.Cleanup(monitors.Close)

	store := state.NewStore("")
	store.Replace(state.Snapshot{
		"protocols":     map[string]any{"IV_sweep": map[string]any{}, "cooldown": map[string]any{}},
		"instruments":   map[string]any{"keithley": map[string]any{}},
		"active_sample": "Si-7",
	})

	sys := config.DefaultSystemConfig()
	sys.HistoryLimit = 4
	h := NewAgentHandler(
		agent.NewProtocolAgent(model, nil),
		agent.NewMeasurementAgent(model, monitors),
		monitors, store, sys,
	)
	out := &fakeResponder{}
	h.SetResponder(out)
	return &fixture{h: h, out: out, monitors: monitors, store: store}
}

var webSession = api.SessionContext{ChannelID: "web", UserID: "u1", ChatID: "c1", Username: "ana"}

func TestAgentSelection(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)

	cases := []struct {
		intent, explicit, want string
	}{
		{agent.IntentListProtocols, "", agent.NameProtocol},
		{agent.IntentInspectProtocol, "", agent.NameProtocol},
		{"", "", agent.NameProtocol},
		{agent.IntentMonitorDevices, "", agent.NameMeasurement},
		{agent.IntentStopMonitoring, "", agent.NameMeasurement},
		{"measurement_control", "", agent.NameMeasurement},
		{agent.IntentInspectProtocol, agent.NameMeasurement, agent.NameMeasurement},
		{agent.IntentStopMonitoring, agent.NameProtocol, agent.NameProtocol},
	}
	for _, tc := range cases {
		f.h.OnMessage(&api.UnifiedMessage{Session: webSession, Content: "hello", Intent: tc.intent, Agent: tc.explicit})
		assert.Equal(t, tc.want, f.out.last().agent, "%s/%s", tc.intent, tc.explicit)
	}
	assert.Contains(t, f.out.signals, "thinking")
}

func TestHistoryIsBoundedAndCarriesIntent(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)

	f.h.OnMessage(&api.UnifiedMessage{Session: webSession, Content: "list them", Intent: agent.IntentListProtocols})
	hist := f.h.Sessions().History(webSession.Key())
	require.Len(t, hist, 2)
	assert.Equal(t, agent.HistoryEntry{Role: "user", Text: "list them", Intent: agent.IntentListProtocols}, hist[0])
	assert.Equal(t, "assistant", hist[1].Role)

	// No intent: the protocol agent falls back to the previous turn.
	f.h.OnMessage(&api.UnifiedMessage{Session: webSession, Content: "again please"})
	assert.Contains(t, f.out.last().text, "Available Protocols (2 found)")

	f.h.OnMessage(&api.UnifiedMessage{Session: webSession, Content: "and once more"})
	assert.Len(t, f.h.Sessions().History(webSession.Key()), 4)

	other := api.SessionContext{ChannelID: "telegram", ChatID: "42"}
	assert.Empty(t, f.h.Sessions().History(other.Key()))
}

func TestMessageStateOverridesStore(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)

	f.h.OnMessage(&api.UnifiedMessage{
		Session:     webSession,
		Content:     "run it",
		Intent:      agent.IntentRunProtocol,
		Parameters:  map[string]any{"protocol_name": "IV_sweep"},
		SystemState: map[string]any{"protocols": map[string]any{"IV_sweep": map[string]any{}}, "active_sample": "None"},
	})
	assert.Contains(t, f.out.last().text, "Cannot execute protocol 'IV_sweep'")

	f.h.OnMessage(&api.UnifiedMessage{
		Session:    webSession,
		Content:    "run it",
		Intent:     agent.IntentRunProtocol,
		Parameters: map[string]any{"protocol_name": "IV_sweep"},
	})
	assert.Contains(t, f.out.last().text, "Please use the main interface")
}

func TestSlashCommands(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	send := func(text string) string {
		f.h.OnMessage(&api.UnifiedMessage{Session: webSession, Content: text})
		return f.out.last().text
	}

	assert.Equal(t, "ℹ️ No active monitoring tasks.", send("/monitors"))
	assert.Equal(t, "ℹ️ No active monitoring tasks to stop.", send("/stop"))

	rec, err := f.monitors.StartDevice("gauge", "pressure", 0)
	require.NoError(t, err)
	out := send("/monitors")
	assert.Contains(t, out, "Monitoring tasks (1)")
	assert.Contains(t, out, rec.ID)

	assert.Equal(t, "🛑 Stopped monitoring task: "+rec.ID, send("/stop "+rec.ID))
	assert.Zero(t, f.monitors.Len())

	spaced, err := f.monitors.StartConditional("IV sweep", "when current > 1mA")
	require.NoError(t, err)
	require.Contains(t, spaced.ID, "IV sweep")
	assert.Equal(t, "🛑 Stopped monitoring task: "+spaced.ID, send("/stop  "+spaced.ID+" "))
	assert.Zero(t, f.monitors.Len())

	out = send("/state")
	assert.Contains(t, out, "Active sample: Si-7")
	assert.Contains(t, out, "Protocols: IV_sweep, cooldown")

	f.h.OnMessage(&api.UnifiedMessage{Session: webSession, Content: "hi", Intent: agent.IntentListProtocols})
	require.NotEmpty(t, f.h.Sessions().History(webSession.Key()))
	send("/reset")
	assert.Empty(t, f.h.Sessions().History(webSession.Key()))

	assert.Contains(t, send("/bogus"), "Unknown command: /bogus")
}

func TestSessionsLimit(t *testing.T) {
	s := NewSessions(3)
	for _, txt := range []string{"a", "b", "c", "d", "e"} {
		s.Append("k", agent.HistoryEntry{Role: "user", Text: txt})
	}
	h := s.History("k")
	require.Len(t, h, 3)
	assert.Equal(t, "c", h[0].Text)
	assert.Equal(t, "e", h[2].Text)

	h[0].Text = "mutated"
	assert.Equal(t, "c", s.History("k")[0].Text)
}
