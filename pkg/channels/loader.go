package channels

import (
	"log/slog"
	"maps"
	"slices"

	"labagent/pkg/config"
	"labagent/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

// LoadFromConfig builds every configured channel whose factory is
// registered. Broken channel configs are logged and skipped so one bad
// entry does not keep the others down.
func LoadFromConfig(configs map[string]jsoniter.RawMessage, system *config.SystemConfig) []gateway.Channel {
	var out []gateway.Channel
	for _, name := range slices.Sorted(maps.Keys(configs)) {
		factory, ok := GetChannelFactory(name)
		if !ok {
			slog.Warn("Unknown channel type", "name", name)
			continue
		}

		channel, err := factory.Create(configs[name], system)
		if err != nil {
			slog.Error("Failed to create channel", "name", name, "error", err)
			continue
		}

		// A nil channel means "disabled", not an error.
		if channel == nil {
			continue
		}

		out = append(out, channel)
		slog.Info("Channel created", "name", name)
	}
	return out
}
