package agent

import (
	"fmt"
	"strings"
)

// prompt accumulates a plain-text prompt section by section.
type prompt struct {
	b strings.Builder
}

func newPrompt(intro, userText string) *prompt {
	p := &prompt{}
	p.b.WriteString(intro)
	p.b.WriteString(":\n")
	fmt.Fprintf(&p.b, "%q\n", userText)
	return p
}

func (p *prompt) section(title string) *prompt {
	fmt.Fprintf(&p.b, "\n%s:\n", title)
	return p
}

func (p *prompt) field(name string, value any) *prompt {
	fmt.Fprintf(&p.b, "- %s: %v\n", name, value)
	return p
}

func (p *prompt) line(s string) *prompt {
	p.b.WriteString(s)
	p.b.WriteByte('\n')
	return p
}

func (p *prompt) numbered(title string, items ...string) *prompt {
	fmt.Fprintf(&p.b, "\n%s\n", title)
	for i, it := range items {
		fmt.Fprintf(&p.b, "%d. %s\n", i+1, it)
	}
	return p
}

func (p *prompt) String() string {
	return strings.TrimSpace(p.b.String())
}

// Inspection checklists differ slightly between the two agents.
var (
	protocolInspectionPoints = []string{
		"Protocol overview and purpose",
		"Step-by-step breakdown of the measurement sequence",
		"Required instruments and their specific roles",
		"Expected data outputs and formats",
		"Estimated execution time and resource usage",
		"Safety considerations and potential risks",
		"Prerequisites and dependencies",
		"Suggestions for optimization or modifications",
		"Compatibility with conditional execution features",
	}
	measurementInspectionPoints = []string{
		"Protocol overview and purpose",
		"Detailed step-by-step breakdown",
		"Required instruments and their roles",
		"Estimated execution time",
		"Resource requirements (memory, disk space, etc.)",
		"Potential safety considerations",
		"Optimization suggestions",
		"Dependencies and prerequisites",
	}
)

func inspectionPrompt(req *Request, name string, data any, points []string) string {
	s := req.State()
	return newPrompt(fmt.Sprintf("The user wants to inspect protocol '%s'", name), req.Text).
		section("Protocol data").line(formatData(data)).
		section("Context").
		field("Available instruments", formatNames(s.InstrumentNames())).
		field("Current sample", s.ActiveSample()).
		numbered("Provide a comprehensive protocol analysis including:", points...).
		String()
}

func executionPrompt(req *Request, name string, data any) string {
	s := req.State()
	return newPrompt(fmt.Sprintf("The user wants to execute protocol '%s'", name), req.Text).
		section("Current context").
		field("Active sample", s.ActiveSample()).
		field("Protocol running", s.ProtocolRunning()).
		field("Available instruments", formatNames(s.InstrumentNames())).
		section("Protocol details").line(formatData(data)).
		numbered("Provide guidance for protocol execution, including:",
			"Pre-execution checks",
			"Required instruments and their status",
			"Estimated execution time",
			"Any warnings or considerations",
			"Recommendations for conditional execution if applicable",
		).
		String()
}

func listPrompt(req *Request) string {
	s := req.State()
	return newPrompt("The user wants to see the protocol list", req.Text).
		section("Available protocols").line(formatData(s.Protocols())).
		section("Current system context").
		field("Active sample", s.ActiveSample()).
		field("Available instruments", formatNames(s.InstrumentNames())).
		numbered("Format this information in a user-friendly way, showing:",
			"Protocol names and descriptions",
			"Key requirements for each protocol",
			"Estimated execution times (if available)",
			"Compatibility with current setup",
			"Recommended use cases",
		).
		line("\nPresent this as a numbered list with clear formatting.").
		String()
}

func statusPrompt(req *Request) string {
	s := req.State()
	return newPrompt("The user wants to check protocol status", req.Text).
		section("Current status").
		field("Protocol running", s.ProtocolRunning()).
		field("Current protocol", s.CurrentProtocol()).
		field("Execution progress", fmt.Sprintf("%g%%", s.ExecutionProgress())).
		field("Available protocols", formatNames(s.ProtocolNames())).
		line("\nProvide a clear status report and suggest next actions if appropriate.").
		String()
}

func protocolQueryPrompt(req *Request) string {
	s := req.State()
	return newPrompt("The user has a general protocol-related question", req.Text).
		section("Current context").
		field("Available protocols", formatNames(s.ProtocolNames())).
		field("Parameters extracted", req.Params.Format()).
		field("Active sample", s.ActiveSample()).
		field("Available instruments", formatNames(s.InstrumentNames())).
		line("\nProvide a helpful response and suggest specific actions if appropriate.").
		numbered("Consider whether this query might benefit from:",
			"Protocol inspection capabilities",
			"Conditional execution features",
			"Device monitoring",
			"Protocol modification suggestions",
		).
		String()
}

type conditionalSetup struct {
	protocol, condition, device, parameter, threshold string
}

func conditionalPrompt(req *Request, c conditionalSetup) string {
	s := req.State()
	return newPrompt("The user wants to set up conditional protocol execution", req.Text).
		section("Context").
		field("Protocol", c.protocol).
		field("Condition", c.condition).
		field("Device", c.device).
		field("Parameter", c.parameter).
		field("Threshold", c.threshold).
		field("Available protocols", formatNames(s.ProtocolNames())).
		field("Available instruments", formatNames(s.InstrumentNames())).
		numbered("Analyze this request and provide:",
			"Interpretation of the condition",
			"Required monitoring setup",
			"Safety considerations",
			"Estimated monitoring frequency needed",
			"Clear execution plan",
			"Fallback procedures if conditions aren't met",
		).
		String()
}

func deviceMonitoringPrompt(req *Request, device, parameter string, intervalSeconds float64) string {
	s := req.State()
	return newPrompt("The user wants to set up device monitoring", req.Text).
		section("Context").
		field("Device", device).
		field("Parameter", parameter).
		field("Monitoring interval", fmt.Sprintf("%gs", intervalSeconds)).
		field("Available instruments", formatNames(s.InstrumentNames())).
		numbered("Provide guidance for:",
			"Monitoring setup requirements",
			"Recommended monitoring intervals",
			"Data logging considerations",
			"Alert conditions to watch for",
			"Performance impact assessment",
		).
		String()
}

func measurementAnalysisPrompt(req *Request) string {
	s := req.State()
	return newPrompt("The user has a measurement control question or request", req.Text).
		section("Current system context").
		field("Available protocols", formatNames(s.ProtocolNames())).
		field("Available instruments", formatNames(s.InstrumentNames())).
		field("Active sample", s.ActiveSample()).
		field("Parameters extracted", req.Params.Format()).
		line("\nProvide helpful guidance and suggest specific actions for measurement control.").
		String()
}
