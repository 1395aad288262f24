package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// HandlerFunc serves one intent. Expected failures (unknown protocol, model
// errors) are reported in the returned text; a returned error is turned
// into a generic apology by the Router.
type HandlerFunc func(ctx context.Context, req *Request) (string, error)

// Router maps intents to handlers with a fallback for everything else.
type Router struct {
	domain   string
	routes   map[string]HandlerFunc
	fallback HandlerFunc
}

// NewRouter creates a router. domain names the request kind in error
// replies, e.g. "protocol" or "measurement control".
func NewRouter(domain string, fallback HandlerFunc) *Router {
	return &Router{
		domain:   domain,
		routes:   make(map[string]HandlerFunc),
		fallback: fallback,
	}
}

// Handle registers h for intent.
func (r *Router) Handle(intent string, h HandlerFunc) *Router {
	r.routes[intent] = h
	return r
}

// Dispatch runs exactly one handler for req.Intent. It never returns an
// error or panics; failures become a user-facing message.
func (r *Router) Dispatch(ctx context.Context, req *Request) (reply string) {
	h, ok := r.routes[req.Intent]
	if !ok {
		h = r.fallback
	}

	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "Handler panicked", "domain", r.domain, "intent", req.Intent, "panic", p, "stack", string(debug.Stack()))
			reply = r.apology(fmt.Errorf("%v", p))
		}
	}()

	slog.InfoContext(ctx, "Processing request", "domain", r.domain, "intent", req.Intent, "routed", ok)

	out, err := h(ctx, req)
	if err != nil {
		slog.ErrorContext(ctx, "Error processing request", "domain", r.domain, "intent", req.Intent, "error", err)
		return r.apology(err)
	}
	return out
}

func (r *Router) apology(err error) string {
	return fmt.Sprintf("I encountered an error while processing your %s request: %v. Please try again.", r.domain, err)
}
