package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// inspectHandler returns the protocol inspection handler shared by both
// agents. Unknown protocols are answered locally without calling the model.
func inspectHandler(model Model, points []string) HandlerFunc {
	return func(ctx context.Context, req *Request) (string, error) {
		name := req.Params.String("protocol_name")
		s := req.State()
		names := s.ProtocolNames()

		if name == "" {
			if len(names) > 0 {
				return fmt.Sprintf("📋 I can inspect any of these protocols: %s. Which one would you like to analyze?", formatNames(names)), nil
			}
			return "📋 No protocols are currently loaded. Please load a protocol first.", nil
		}

		data, ok := s.Protocol(name)
		if !ok {
			return fmt.Sprintf("❌ Protocol '%s' not found. Available protocols: %s", name, formatNames(names)), nil
		}

		resp, err := model.Run(ctx, inspectionPrompt(req, name, data, points))
		if err != nil {
			slog.ErrorContext(ctx, "Error inspecting protocol", "protocol", name, "error", err)
			return fmt.Sprintf("I encountered an error while inspecting the protocol: %v", err), nil
		}
		return fmt.Sprintf("🔍 Protocol Analysis for '%s':\n\n%s", name, resp), nil
	}
}
