package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"labagent/pkg/agent"
	"labagent/pkg/api"
	"labagent/pkg/config"
	"labagent/pkg/llm"
	"labagent/pkg/monitor"
	"labagent/pkg/state"

	"github.com/google/uuid"
)

// measurementIntents are routed to the measurement agent when the message
// does not name an agent.
var measurementIntents = map[string]bool{
	agent.IntentConditionalExecution: true,
	agent.IntentMonitorDevices:       true,
	agent.IntentStopMonitoring:       true,
	"measurement_control":            true,
}

// AgentHandler turns gateway messages into agent requests. It picks the
// agent, assembles the state snapshot and the session history, and sends
// the agent's text back through the responder.
type AgentHandler struct {
	responder   api.MessageResponder
	protocol    agent.Agent
	measurement agent.Agent
	monitors    *monitor.Registry
	store       *state.Store
	sessions    *Sessions
	system      *config.SystemConfig
}

// NewAgentHandler wires both agents to the shared state store and monitor
// registry.
func NewAgentHandler(protocol, measurement agent.Agent, monitors *monitor.Registry, store *state.Store, sys *config.SystemConfig) *AgentHandler {
	if sys == nil {
		sys = config.DefaultSystemConfig()
	}
	return &AgentHandler{
		protocol:    protocol,
		measurement: measurement,
		monitors:    monitors,
		store:       store,
		sessions:    NewSessions(sys.HistoryLimit),
		system:      sys,
	}
}

// SetResponder implements api.ResponderAware.
func (h *AgentHandler) SetResponder(responder api.MessageResponder) {
	h.responder = responder
}

// Sessions exposes the conversation store.
func (h *AgentHandler) Sessions() *Sessions {
	return h.sessions
}

// OnMessage implements api.MessageProcessor.
func (h *AgentHandler) OnMessage(msg *api.UnifiedMessage) {
	if msg.DebugID == "" {
		msg.DebugID = uuid.NewString()[:8]
	}
	start := time.Now()

	ctx := llm.WithDebugID(context.Background(), msg.DebugID)
	if h.system.LLMTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(h.system.LLMTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	slog.InfoContext(ctx, "Message received", "channel", msg.Session.ChannelID, "user", msg.Session.Username, "intent", msg.Intent, "agent", msg.Agent)

	if strings.HasPrefix(strings.TrimSpace(msg.Content), "/") {
		h.reply(msg.Session, "", h.handleSlashCommand(msg))
		return
	}

	if h.responder != nil {
		h.responder.SendSignal(msg.Session, "thinking")
	}

	name, reply, intent := h.Process(ctx, msg)
	h.reply(msg.Session, name, reply)

	slog.InfoContext(ctx, "Request finished", "agent", name, "intent", intent, "duration", time.Since(start).String())
}

// Process runs one request through the selected agent and records the
// exchange in the session history. It returns the agent name, the reply and
// the resolved intent.
func (h *AgentHandler) Process(ctx context.Context, msg *api.UnifiedMessage) (string, string, string) {
	snap := h.snapshot(msg)
	key := msg.Session.Key()
	rc := agent.RequestContext{
		SystemState:         snap,
		ConversationHistory: h.sessions.History(key),
	}

	a := h.selectAgent(msg.Agent, snap.Intent())
	intent := a.ResolveIntent(msg.Content, rc)
	reply := a.ProcessRequest(ctx, msg.Content, agent.Parameters(msg.Parameters), rc)

	if intent == state.UnknownIntent {
		intent = ""
	}
	h.sessions.Append(key,
		agent.HistoryEntry{Role: "user", Text: msg.Content, Intent: intent},
		agent.HistoryEntry{Role: "assistant", Text: reply, Intent: intent},
	)
	return a.Name(), reply, intent
}

// snapshot prefers the state sent with the message over the shared store.
func (h *AgentHandler) snapshot(msg *api.UnifiedMessage) state.Snapshot {
	var snap state.Snapshot
	if msg.SystemState != nil {
		snap = state.Snapshot(msg.SystemState).Clone()
	} else if h.store != nil {
		snap = h.store.Snapshot()
	} else {
		snap = state.Snapshot{}
	}
	if msg.Intent != "" {
		snap = snap.WithIntent(msg.Intent)
	}
	return snap
}

func (h *AgentHandler) selectAgent(explicit, intent string) agent.Agent {
	switch explicit {
	case agent.NameMeasurement:
		return h.measurement
	case agent.NameProtocol:
		return h.protocol
	}
	if measurementIntents[intent] {
		return h.measurement
	}
	return h.protocol
}

func (h *AgentHandler) reply(session api.SessionContext, agentName, text string) {
	if h.responder == nil {
		slog.Warn("No responder set, dropping reply", "channel", session.ChannelID)
		return
	}
	if err := h.responder.SendAgentReply(session, agentName, text); err != nil {
		slog.Error("Failed to send reply", "channel", session.ChannelID, "error", err)
	}
}

// handleSlashCommand executes operator commands that bypass the agents.
func (h *AgentHandler) handleSlashCommand(msg *api.UnifiedMessage) string {
	command := strings.TrimPrefix(strings.TrimSpace(msg.Content), "/")
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return slashUsage
	}

	switch fields[0] {
	case "monitors":
		return h.describeMonitors()
	case "stop":
		// 監控 ID 可能含空白 (protocol / device 名稱)
		id := strings.TrimSpace(strings.TrimPrefix(command, fields[0]))
		return agent.StopMonitors(h.monitors, id)
	case "state":
		return describeState(h.snapshot(msg))
	case "reset":
		h.sessions.Reset(msg.Session.Key())
		return "🧹 Conversation history cleared."
	default:
		return fmt.Sprintf("❌ Unknown command: /%s\n%s", fields[0], slashUsage)
	}
}

const slashUsage = "Available commands: /monitors, /stop [monitor_id], /state, /reset"

func (h *AgentHandler) describeMonitors() string {
	records := h.monitors.Active()
	if len(records) == 0 {
		return "ℹ️ No active monitoring tasks."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📡 Monitoring tasks (%d):", len(records))
	for _, rec := range records {
		b.WriteString("\n• " + rec.String())
		if rec.Err != "" {
			b.WriteString(" error=" + rec.Err)
		}
	}
	return b.String()
}

func describeState(s state.Snapshot) string {
	var b strings.Builder
	b.WriteString("🧪 System state:")
	fmt.Fprintf(&b, "\n• Active sample: %s", s.ActiveSample())
	fmt.Fprintf(&b, "\n• Protocol running: %t", s.ProtocolRunning())
	if s.ProtocolRunning() {
		fmt.Fprintf(&b, " (%s, %g%%)", s.CurrentProtocol(), s.ExecutionProgress())
	}
	fmt.Fprintf(&b, "\n• Protocols: %s", strings.Join(s.ProtocolNames(), ", "))
	fmt.Fprintf(&b, "\n• Instruments: %s", strings.Join(s.InstrumentNames(), ", "))
	return b.String()
}
