package console

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Echo prints every user and agent message flowing through the gateway.
type Echo struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewEcho creates an Echo writing to stdout.
func NewEcho() *Echo {
	return NewEchoTo(os.Stdout)
}

// NewEchoTo creates an Echo writing to w.
func NewEchoTo(w io.Writer) *Echo {
	return &Echo{writer: w}
}

// Start prints the header.
func (e *Echo) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintln(e.writer, "----------------------------------------------------------------")
	fmt.Fprintln(e.writer, "💬 Console active - agent conversations will appear here")
	fmt.Fprintln(e.writer, "----------------------------------------------------------------")
	return nil
}

// Stop implements Console.
func (e *Echo) Stop() error {
	return nil
}

// OnMessage prints one message.
func (e *Echo) OnMessage(msg Message) {
	var line string
	if msg.Direction == DirectionAgent {
		label := "AI"
		if msg.Agent != "" {
			label = msg.Agent
		}
		line = fmt.Sprintf("[%s] %s", label, msg.Content)
	} else {
		line = fmt.Sprintf("[%s/%s] %s", msg.ChannelID, msg.Username, msg.Content)
		if msg.Intent != "" {
			line += fmt.Sprintf(" (intent=%s)", msg.Intent)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// 時間戳使用灰色
	fmt.Fprintf(e.writer, "\033[90m[%s]\033[0m %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"), line)
}
