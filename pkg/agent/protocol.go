package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"labagent/pkg/host"
	"labagent/pkg/state"
)

// Protocol agent intents.
const (
	IntentRunProtocol     = "run_protocol"
	IntentListProtocols   = "list_protocols"
	IntentInspectProtocol = "inspect_protocol"
	IntentProtocolStatus  = "protocol_status"
)

const noProtocolsGuidance = `📋 **No measurement protocols found.**

This could be because:
1. **No protocols have been loaded yet**: protocols need to be loaded from files or created
2. **The system is still initializing**: please wait a moment and try again
3. **Protocols are stored elsewhere**: check whether protocols are loaded in the main interface

🔧 **Loading existing protocols:**
- Use **File → Load Protocol** in the main menu
- Select your protocol files (usually ` + "`.json`" + ` or ` + "`.camels`" + `)

🔧 **Creating new protocols:**
- Open the **Protocol Builder** in the main interface
- Define measurement steps, instruments and parameters, then save

📝 **Need help?** Ask me:
- "How do I create a new protocol?"
- "How do I load existing protocols?"
- "Show me protocol examples"`

// ProtocolAgent runs, lists, inspects and reports on measurement protocols.
type ProtocolAgent struct {
	model  Model
	runner host.ProtocolRunner
	router *Router
}

// NewProtocolAgent creates the agent. runner may be nil when the host has
// no run entry point.
func NewProtocolAgent(model Model, runner host.ProtocolRunner) *ProtocolAgent {
	a := &ProtocolAgent{model: model, runner: runner}
	a.router = NewRouter("protocol", a.generalQuery).
		Handle(IntentRunProtocol, a.runProtocol).
		Handle(IntentListProtocols, a.listProtocols).
		Handle(IntentInspectProtocol, inspectHandler(model, protocolInspectionPoints)).
		Handle(IntentProtocolStatus, a.protocolStatus)
	return a
}

// Name implements Agent.
func (a *ProtocolAgent) Name() string { return NameProtocol }

// ProcessRequest implements Agent.
func (a *ProtocolAgent) ProcessRequest(ctx context.Context, text string, params Parameters, rc RequestContext) string {
	req := &Request{
		Text:    text,
		Params:  params,
		Context: rc,
		Intent:  a.ResolveIntent(text, rc),
	}
	return a.router.Dispatch(ctx, req)
}

// ResolveIntent prefers the classified intent, then the intent of the
// previous turn, then keyword detection on the text.
func (a *ProtocolAgent) ResolveIntent(text string, rc RequestContext) string {
	if intent := rc.SystemState.Intent(); intent != state.UnknownIntent {
		return intent
	}
	if intent := rc.LastIntent(); intent != state.UnknownIntent {
		return intent
	}
	return DetectProtocolIntent(text)
}

// DetectProtocolIntent guesses an intent from keywords in text.
func DetectProtocolIntent(text string) string {
	switch {
	case containsAny(text, "list", "show", "provide") && containsAny(text, "protocol"):
		return IntentListProtocols
	case containsAny(text, "run", "execute", "start"):
		return IntentRunProtocol
	case containsAny(text, "inspect", "analyze", "examine"):
		return IntentInspectProtocol
	default:
		return state.UnknownIntent
	}
}

func (a *ProtocolAgent) runProtocol(ctx context.Context, req *Request) (string, error) {
	name := req.Params.String("protocol_name")
	if name == "" {
		return "I need a protocol name to execute. Which protocol would you like to run?", nil
	}

	s := req.State()
	data, ok := s.Protocol(name)
	if !ok {
		return fmt.Sprintf("Protocol '%s' not found. Available protocols: %s", name, formatNames(s.ProtocolNames())), nil
	}

	resp, err := a.model.Run(ctx, executionPrompt(req, name, data))
	if err != nil {
		slog.ErrorContext(ctx, "Error in protocol execution", "protocol", name, "error", err)
		return fmt.Sprintf("I encountered an error while preparing to execute the protocol: %v", err), nil
	}

	if blockers := executionBlockers(s); len(blockers) > 0 {
		slog.InfoContext(ctx, "Protocol execution blocked", "protocol", name, "reasons", blockers)
		return fmt.Sprintf("⚠️ Cannot execute protocol '%s' right now (%s):\n%s", name, strings.Join(blockers, "; "), resp), nil
	}

	if a.runner == nil {
		return fmt.Sprintf("🔬 Protocol '%s' ready to start:\n%s\n\n⚠️ Please use the main interface to start execution.", name, resp), nil
	}

	// 模型呼叫可能已用掉大半 deadline；host 呼叫由 runner 自己的 timeout 控制
	if err := a.runner.RunProtocol(context.WithoutCancel(ctx), name); err != nil {
		slog.ErrorContext(ctx, "Host failed to start protocol", "protocol", name, "error", err)
		return fmt.Sprintf("🔬 Protocol '%s' ready to start:\n%s\n\n❌ The host could not start the protocol: %v", name, resp, err), nil
	}
	return fmt.Sprintf("🔬 Starting protocol '%s':\n%s\n\n✅ Protocol execution initiated!", name, resp), nil
}

// executionBlockers lists the reasons a protocol cannot start now.
func executionBlockers(s state.Snapshot) []string {
	var out []string
	if !s.HasActiveSample() {
		out = append(out, "no active sample")
	}
	if s.ProtocolRunning() {
		out = append(out, fmt.Sprintf("protocol '%s' is already running", s.CurrentProtocol()))
	}
	return out
}

func (a *ProtocolAgent) listProtocols(ctx context.Context, req *Request) (string, error) {
	names := req.State().ProtocolNames()
	slog.InfoContext(ctx, "Listing protocols", "count", len(names))

	if len(names) == 0 {
		return noProtocolsGuidance, nil
	}

	header := fmt.Sprintf("📋 **Available Protocols (%d found):**\n\n", len(names))

	resp, err := a.model.Run(ctx, listPrompt(req))
	if err != nil {
		slog.ErrorContext(ctx, "Error listing protocols", "error", err)
		var b strings.Builder
		b.WriteString(header)
		for i, n := range names {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("• " + n)
		}
		fmt.Fprintf(&b, "\n\nNote: Error occurred while getting detailed information: %v", err)
		return b.String(), nil
	}
	return header + resp, nil
}

func (a *ProtocolAgent) protocolStatus(ctx context.Context, req *Request) (string, error) {
	resp, err := a.model.Run(ctx, statusPrompt(req))
	if err != nil {
		slog.ErrorContext(ctx, "Error getting protocol status", "error", err)
		return fmt.Sprintf("I encountered an error while checking protocol status: %v", err), nil
	}
	return "📊 Protocol Status:\n\n" + resp, nil
}

func (a *ProtocolAgent) generalQuery(ctx context.Context, req *Request) (string, error) {
	resp, err := a.model.Run(ctx, protocolQueryPrompt(req))
	if err != nil {
		slog.ErrorContext(ctx, "Error handling protocol query", "error", err)
		return fmt.Sprintf("I encountered an error while answering your protocol question: %v", err), nil
	}
	return "🔬 Protocol Information: " + resp, nil
}
