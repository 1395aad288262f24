package gateway

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"labagent/pkg/console"
)

// GatewayManager 負責管理所有的 Channels 並統一路由訊息
type GatewayManager struct {
	channels   map[string]Channel
	msgHandler MessageHandler
	console    console.Console // 終端鏡像輸出
	mu         sync.RWMutex
}

// NewGatewayManager 建立一個新的 GatewayManager
func NewGatewayManager() *GatewayManager {
	return &GatewayManager{
		channels: make(map[string]Channel),
	}
}

// SetMessageHandler 設定處理訊息的核心邏輯 (agent handler)
func (g *GatewayManager) SetMessageHandler(handler MessageHandler) {
	g.msgHandler = handler
}

// SetConsole 設定終端鏡像輸出
func (g *GatewayManager) SetConsole(c console.Console) {
	g.console = c
}

// Register 註冊一個 Channel
func (g *GatewayManager) Register(c Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[c.ID()] = c
}

// GetChannel 取得特定的 Channel (通常用於主動發送訊息)
func (g *GatewayManager) GetChannel(id string) (Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.channels[id]
	return c, ok
}

// StartAll 啟動所有已註冊的 Channels
func (g *GatewayManager) StartAll() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, c := range g.channels {
		slog.Info("Starting channel", "channel", id)
		// 啟動 Channel，並傳入 self 作為 Context
		if err := c.Start(g); err != nil {
			return fmt.Errorf("failed to start channel %s: %w", id, err)
		}
	}
	return nil
}

// StopAll 停止所有 Channels
func (g *GatewayManager) StopAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, c := range g.channels {
		slog.Info("Stopping channel", "channel", id)
		if err := c.Stop(); err != nil {
			slog.Error("Error stopping channel", "channel", id, "error", err)
		}
	}
	if g.console != nil {
		g.console.Stop()
	}
}

// SendReply 統一的回覆介面，透過 Channel 介面送回訊息
func (g *GatewayManager) SendReply(session SessionContext, content string) error {
	return g.SendAgentReply(session, "", content)
}

// SendAgentReply 與 SendReply 相同，但標註回覆的 agent
func (g *GatewayManager) SendAgentReply(session SessionContext, agent, content string) error {
	slog.Debug("Reply", "channel", session.ChannelID, "user", session.Username, "agent", agent, "bytes", len(content))

	if g.console != nil {
		g.console.OnMessage(console.Message{
			Timestamp: time.Now(),
			Direction: console.DirectionAgent,
			ChannelID: session.ChannelID,
			Username:  session.Username,
			Agent:     agent,
			Content:   content,
		})
	}

	c, ok := g.GetChannel(session.ChannelID)
	if !ok {
		return fmt.Errorf("channel %s not found", session.ChannelID)
	}
	return c.Send(session, content)
}

// SendSignal 發送一個控制訊號 (如 thinking) 到 Channel
func (g *GatewayManager) SendSignal(session SessionContext, signal string) error {
	c, ok := g.GetChannel(session.ChannelID)
	if !ok {
		return fmt.Errorf("channel %s not found", session.ChannelID)
	}

	// 不支援訊號的通道安靜地忽略
	if sc, ok := c.(SignalingChannel); ok {
		return sc.SendSignal(session, signal)
	}
	return nil
}

// OnMessage 實作 ChannelContext 介面，接收來自 Channel 的訊息
func (g *GatewayManager) OnMessage(channelID string, msg *UnifiedMessage) {
	slog.Info("Received message", "channel", channelID, "user", msg.Session.Username, "user_id", msg.Session.UserID, "intent", msg.Intent)

	if g.console != nil {
		g.console.OnMessage(console.Message{
			Timestamp: time.Now(),
			Direction: console.DirectionUser,
			ChannelID: channelID,
			Username:  msg.Session.Username,
			Intent:    msg.Intent,
			Content:   msg.Content,
		})
	}

	if g.msgHandler != nil {
		g.msgHandler(msg)
	} else {
		slog.Warn("No message handler set")
	}
}
