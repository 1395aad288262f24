// Package console mirrors gateway traffic on the terminal and installs the
// process-wide slog handler.
package console

import "time"

// 訊息方向
const (
	DirectionUser  = "USER"
	DirectionAgent = "AGENT"
)

// Message 代表一則經過 Gateway 的對話訊息
type Message struct {
	Timestamp time.Time
	Direction string // DirectionUser or DirectionAgent
	ChannelID string
	Username  string
	Agent     string // agent that answered, empty for user messages
	Intent    string
	Content   string
}

// Console 介面定義了訊息鏡像輸出的行為
type Console interface {
	Start() error
	Stop() error
	OnMessage(msg Message)
}
