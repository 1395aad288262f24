package gateway

import (
	"fmt"

	"labagent/pkg/api"
	"labagent/pkg/console"
)

// GatewayBuilder provides a fluent builder pattern interface for constructing
// and initializing a GatewayManager with all its necessary dependencies.
//
// Channels and the handler are pre-built and injected as instances; the
// Builder wires and starts them.
type GatewayBuilder struct {
	gw             *GatewayManager                                 // The GatewayManager instance being constructed
	console        console.Console                                 // Terminal mirror, optional
	handlerBuilder func(api.MessageResponder) api.MessageProcessor // Strategy to construct and wire the message handler
	channels       []api.Channel                                   // Pre-built channel instances to register
}

// NewGatewayBuilder creates a fresh GatewayBuilder instance and allocates
// an internal GatewayManager to be configured.
func NewGatewayBuilder() *GatewayBuilder {
	return &GatewayBuilder{
		gw: NewGatewayManager(),
	}
}

// WithConsole injects a console; it is started during Build().
func (b *GatewayBuilder) WithConsole(c console.Console) *GatewayBuilder {
	b.console = c
	return b
}

// WithChannel adds pre-built channel instances to the gateway.
func (b *GatewayBuilder) WithChannel(channels ...api.Channel) *GatewayBuilder {
	b.channels = append(b.channels, channels...)
	return b
}

// WithHandler injects a message handler instance into the gateway.
// If the handler implements api.ResponderAware, the gateway is injected as
// its responder.
func (b *GatewayBuilder) WithHandler(h api.MessageProcessor) *GatewayBuilder {
	b.handlerBuilder = func(responder api.MessageResponder) api.MessageProcessor {
		if setter, ok := h.(api.ResponderAware); ok {
			setter.SetResponder(responder)
		}
		return h
	}
	return b
}

// Build finalizes the configuration, registers all channels and starts
// everything. Returns the running GatewayManager or the first failure.
func (b *GatewayBuilder) Build() (*GatewayManager, error) {
	// 1. Console
	if b.console != nil {
		b.gw.SetConsole(b.console)
		if err := b.console.Start(); err != nil {
			return nil, fmt.Errorf("failed to start console: %w", err)
		}
	}

	// 2. Channels
	for _, c := range b.channels {
		b.gw.Register(c)
	}

	// 3. Handler
	if b.handlerBuilder != nil {
		if handler := b.handlerBuilder(b.gw); handler != nil {
			b.gw.SetMessageHandler(handler.OnMessage)
		}
	}

	// 4. Start
	if err := b.gw.StartAll(); err != nil {
		return nil, fmt.Errorf("failed to start channels: %w", err)
	}

	return b.gw, nil
}
