package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"labagent/pkg/monitor"
)

// Measurement agent intents.
const (
	IntentConditionalExecution = "conditional_execution"
	IntentMonitorDevices       = "monitor_devices"
	IntentStopMonitoring       = "stop_monitoring"
)

var conditionKeywords = []string{"until", "when", "if", "reaches", "below", "above"}

// MeasurementAgent inspects protocols and manages background monitors.
type MeasurementAgent struct {
	model    Model
	monitors *monitor.Registry
	router   *Router
}

// NewMeasurementAgent creates the agent on top of a shared monitor registry.
func NewMeasurementAgent(model Model, monitors *monitor.Registry) *MeasurementAgent {
	a := &MeasurementAgent{model: model, monitors: monitors}
	a.router = NewRouter("measurement control", a.analyze).
		Handle(IntentInspectProtocol, inspectHandler(model, measurementInspectionPoints)).
		Handle(IntentConditionalExecution, a.setupConditional).
		Handle(IntentMonitorDevices, a.setupDeviceMonitoring).
		Handle(IntentStopMonitoring, a.stopMonitoring)
	return a
}

// Name implements Agent.
func (a *MeasurementAgent) Name() string { return NameMeasurement }

// Monitors exposes the registry for status listing.
func (a *MeasurementAgent) Monitors() *monitor.Registry { return a.monitors }

// ProcessRequest implements Agent.
func (a *MeasurementAgent) ProcessRequest(ctx context.Context, text string, params Parameters, rc RequestContext) string {
	req := &Request{
		Text:    text,
		Params:  params,
		Context: rc,
		Intent:  a.ResolveIntent(text, rc),
	}
	return a.router.Dispatch(ctx, req)
}

// ResolveIntent returns the classified intent; there is no fallback.
func (a *MeasurementAgent) ResolveIntent(text string, rc RequestContext) string {
	return rc.SystemState.Intent()
}

func (a *MeasurementAgent) setupConditional(ctx context.Context, req *Request) (string, error) {
	setup := conditionalSetup{
		protocol:  req.Params.String("protocol_name"),
		condition: req.Params.String("condition"),
		device:    req.Params.String("device"),
		parameter: req.Params.String("parameter"),
		threshold: req.Params.String("threshold"),
	}
	// The sentence itself is the condition; the model interprets it.
	if setup.condition == "" && containsAny(req.Text, conditionKeywords...) {
		setup.condition = req.Text
	}

	resp, err := a.model.Run(ctx, conditionalPrompt(req, setup))
	if err != nil {
		slog.ErrorContext(ctx, "Error setting up conditional execution", "error", err)
		return fmt.Sprintf("I encountered an error while setting up conditional execution: %v", err), nil
	}

	if setup.protocol == "" || setup.condition == "" {
		return fmt.Sprintf("🎯 Conditional Execution Analysis:\n\n%s\n\n⚠️ Please provide more specific details to set up the actual monitoring.", resp), nil
	}

	rec, err := a.monitors.StartConditional(setup.protocol, setup.condition)
	if err != nil {
		return "", fmt.Errorf("failed to create conditional monitor: %w", err)
	}
	return fmt.Sprintf("🎯 Conditional Execution Setup:\n\n%s\n\n✅ Monitor created with ID: %s", resp, rec.ID), nil
}

func (a *MeasurementAgent) setupDeviceMonitoring(ctx context.Context, req *Request) (string, error) {
	device := req.Params.String("device")
	parameter := req.Params.String("parameter")
	seconds := req.Params.Float("interval", 1)
	if seconds <= 0 {
		seconds = 1
	}

	resp, err := a.model.Run(ctx, deviceMonitoringPrompt(req, device, parameter, seconds))
	if err != nil {
		slog.ErrorContext(ctx, "Error setting up device monitoring", "error", err)
		return fmt.Sprintf("I encountered an error while setting up device monitoring: %v", err), nil
	}

	if device == "" {
		return "📊 Device Monitoring Analysis:\n\n" + resp, nil
	}

	interval := time.Duration(seconds * float64(time.Second))
	rec, err := a.monitors.StartDevice(device, parameter, interval)
	if err != nil {
		return "", fmt.Errorf("failed to create device monitor: %w", err)
	}
	return fmt.Sprintf("📊 Device Monitoring Setup:\n\n%s\n\n✅ Monitor started with ID: %s", resp, rec.ID), nil
}

func (a *MeasurementAgent) stopMonitoring(ctx context.Context, req *Request) (string, error) {
	return StopMonitors(a.monitors, req.Params.String("monitor_id")), nil
}

// StopMonitors stops one monitor by id, or all of them when id is empty,
// and describes the outcome.
func StopMonitors(monitors *monitor.Registry, id string) string {
	if id != "" {
		if _, ok := monitors.Stop(id); ok {
			return "🛑 Stopped monitoring task: " + id
		}
	}

	active := monitors.Active()
	if len(active) == 0 {
		return "ℹ️ No active monitoring tasks to stop."
	}

	if id == "" {
		return "🛑 Stopped all monitoring tasks: " + formatNames(monitors.StopAll())
	}

	ids := make([]string, len(active))
	for i, rec := range active {
		ids[i] = rec.ID
	}
	return fmt.Sprintf("ℹ️ Monitoring task '%s' is not active. Active monitoring tasks: %s", id, formatNames(ids))
}

func (a *MeasurementAgent) analyze(ctx context.Context, req *Request) (string, error) {
	resp, err := a.model.Run(ctx, measurementAnalysisPrompt(req))
	if err != nil {
		slog.ErrorContext(ctx, "Error analyzing measurement request", "error", err)
		return fmt.Sprintf("I encountered an error while analyzing your measurement request: %v", err), nil
	}
	return "🔬 Measurement Control Analysis:\n\n" + resp, nil
}
