package gateway

import (
	"errors"
	"sync"
	"testing"

	"labagent/pkg/api"
	"labagent/pkg/console"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	id      string
	mu      sync.Mutex
	ctx     api.ChannelContext
	sent    []string
	started bool
	stopped bool
}

func (c *fakeChannel) ID() string { return c.id }

func (c *fakeChannel) Start(ctx api.ChannelContext) error {
	c.ctx = ctx
	c.started = true
	return nil
}

func (c *fakeChannel) Stop() error {
	c.stopped = true
	return nil
}

func (c *fakeChannel) Send(s api.SessionContext, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, message)
	return nil
}

type signalingChannel struct {
	fakeChannel
	signals []string
}

func (c *signalingChannel) SendSignal(s api.SessionContext, signal string) error {
	c.signals = append(c.signals, signal)
	return nil
}

type failingChannel struct{ fakeChannel }

func (c *failingChannel) Start(api.ChannelContext) error { return errors.New("port in use") }

type recordingConsole struct {
	msgs    []console.Message
	stopped bool
}

func (c *recordingConsole) Start() error { return nil }
func (c *recordingConsole) Stop() error  { c.stopped = true; return nil }
func (c *recordingConsole) OnMessage(m console.Message) {
	c.msgs = append(c.msgs, m)
}

// echoProcessor replies to every message through its responder.
type echoProcessor struct {
	responder api.MessageResponder
}

func (p *echoProcessor) SetResponder(r api.MessageResponder) { p.responder = r }

func (p *echoProcessor) OnMessage(msg *api.UnifiedMessage) {
	p.responder.SendSignal(msg.Session, "thinking")
	p.responder.SendAgentReply(msg.Session, "protocol", "re: "+msg.Content)
}

func TestGatewayRoutesRepliesToOriginChannel(t *testing.T) {
	web := &signalingChannel{fakeChannel: fakeChannel{id: "web"}}
	tg := &fakeChannel{id: "telegram"}
	con := &recordingConsole{}

	gw, err := NewGatewayBuilder().
		WithConsole(con).
		WithChannel(web, tg).
		WithHandler(&echoProcessor{}).
		Build()
	require.NoError(t, err)
	assert.True(t, web.started)
	assert.True(t, tg.started)

	web.ctx.OnMessage("web", &api.UnifiedMessage{
		Session: api.SessionContext{ChannelID: "web", ChatID: "c1", Username: "host"},
		Content: "list protocols",
		Intent:  "list_protocols",
	})
	assert.Equal(t, []string{"re: list protocols"}, web.sent)
	assert.Equal(t, []string{"thinking"}, web.signals)
	assert.Empty(t, tg.sent)

	// Channels without signal support ignore signals silently.
	tg.ctx.OnMessage("telegram", &api.UnifiedMessage{
		Session: api.SessionContext{ChannelID: "telegram", ChatID: "42"},
		Content: "status",
	})
	assert.Equal(t, []string{"re: status"}, tg.sent)

	require.Len(t, con.msgs, 4)
	assert.Equal(t, console.DirectionUser, con.msgs[0].Direction)
	assert.Equal(t, "list_protocols", con.msgs[0].Intent)
	assert.Equal(t, console.DirectionAgent, con.msgs[1].Direction)
	assert.Equal(t, "protocol", con.msgs[1].Agent)

	err = gw.SendReply(api.SessionContext{ChannelID: "slack"}, "x")
	assert.ErrorContains(t, err, "channel slack not found")

	gw.StopAll()
	assert.True(t, web.stopped)
	assert.True(t, tg.stopped)
	assert.True(t, con.stopped)
}

func TestBuildFailsWhenChannelCannotStart(t *testing.T) {
	_, err := NewGatewayBuilder().
		WithChannel(&failingChannel{fakeChannel{id: "web"}}).
		Build()
	assert.ErrorContains(t, err, "port in use")
}

func TestMessageWithoutHandlerIsDropped(t *testing.T) {
	ch := &fakeChannel{id: "web"}
	_, err := NewGatewayBuilder().WithChannel(ch).Build()
	require.NoError(t, err)

	ch.ctx.OnMessage("web", &api.UnifiedMessage{Session: api.SessionContext{ChannelID: "web"}, Content: "hi"})
	assert.Empty(t, ch.sent)
}
