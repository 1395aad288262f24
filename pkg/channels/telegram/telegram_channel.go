package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"labagent/pkg/api"
	"labagent/pkg/llm"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig holds the bot credentials and routing options.
type TelegramConfig struct {
	Token        string  `json:"token"`                   // Bot API token, or "env:NAME"
	AllowedChats []int64 `json:"allowed_chats,omitempty"` // Empty allows every chat
	Agent        string  `json:"agent,omitempty"`         // Agent used for every message from this bot, optional
}

// TelegramChannel lets lab staff talk to the agents from a Telegram chat.
// Messages are plain text; the host's classifier is not involved, so
// intents are detected by the agents themselves.
type TelegramChannel struct {
	config       TelegramConfig
	bot          *tgbotapi.BotAPI
	messageLimit int
	stopCtx      context.Context    // Aborts the long-polling request on Stop
	stopCancel   context.CancelFunc
	done         chan struct{}
}

func NewTelegramChannel(cfg TelegramConfig, msgLimit int) (api.Channel, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Dials are tied to stopCtx so an in-flight getUpdates dies with the
	// channel; otherwise a restarted bot gets 409 Conflict.
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	botHttpClient := &http.Client{
		Timeout: 90 * time.Second,
		Transport: &http.Transport{
			DialContext: func(dialCtx context.Context, network, addr string) (net.Conn, error) {
				mergedCtx, mergedCancel := context.WithCancel(dialCtx)
				go func() {
					select {
					case <-ctx.Done():
						mergedCancel()
					case <-mergedCtx.Done():
					}
				}()
				return dialer.DialContext(mergedCtx, network, addr)
			},
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, botHttpClient)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	if msgLimit <= 0 {
		msgLimit = 4000
	}

	return &TelegramChannel{
		config:       cfg,
		bot:          bot,
		messageLimit: msgLimit,
		stopCtx:      ctx,
		stopCancel:   cancel,
		done:         make(chan struct{}),
	}, nil
}

// ID returns the unique platform identifier "telegram".
func (t *TelegramChannel) ID() string {
	return "telegram"
}

// Start runs the long-polling loop in the background.
func (t *TelegramChannel) Start(ctx api.ChannelContext) error {
	go t.poll(ctx)
	return nil
}

func (t *TelegramChannel) poll(ctx api.ChannelContext) {
	defer close(t.done)
	offset := 0

	for {
		select {
		case <-t.stopCtx.Done():
			return
		default:
		}

		reqConfig := tgbotapi.NewUpdate(offset)
		reqConfig.Timeout = 60

		updates, err := t.bot.GetUpdates(reqConfig)
		if err != nil {
			slog.Debug("Failed to get telegram updates", "error", err)
			select {
			case <-t.stopCtx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID < offset {
				continue
			}
			offset = update.UpdateID + 1

			if msg := t.toUnified(update.Message); msg != nil {
				// 依序處理，保持同一聊天的歷史順序
				ctx.OnMessage(t.ID(), msg)
			}
		}
	}
}

// toUnified converts a Telegram message, or returns nil when it must be
// ignored (non-text, foreign chat).
func (t *TelegramChannel) toUnified(m *tgbotapi.Message) *api.UnifiedMessage {
	if m == nil || m.From == nil || strings.TrimSpace(m.Text) == "" {
		return nil
	}
	if len(t.config.AllowedChats) > 0 && !slices.Contains(t.config.AllowedChats, m.Chat.ID) {
		slog.Warn("Ignoring message from unauthorized chat", "chat_id", m.Chat.ID, "user", m.From.UserName)
		return nil
	}

	return &api.UnifiedMessage{
		Session: api.SessionContext{
			ChannelID: "telegram",
			UserID:    strconv.FormatInt(m.From.ID, 10),
			ChatID:    strconv.FormatInt(m.Chat.ID, 10),
			Username:  m.From.UserName,
		},
		Content: m.Text,
		Agent:   t.config.Agent,
		Raw:     m,
	}
}

// SendSignal shows the typing indicator while an agent is thinking.
func (t *TelegramChannel) SendSignal(session api.SessionContext, signal string) error {
	if signal != llm.BlockTypeThinking {
		return nil
	}
	chatID, err := strconv.ParseInt(session.ChatID, 10, 64)
	if err != nil {
		return err
	}
	_, err = t.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

func (t *TelegramChannel) Stop() error {
	t.stopCancel()

	if httpClient, ok := t.bot.Client.(*http.Client); ok && httpClient != nil {
		if transport, ok := httpClient.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
	}

	select {
	case <-t.done:
	case <-time.After(5 * time.Second):
		slog.Warn("Telegram polling did not stop in time")
	}
	return nil
}

// Send delivers a reply, split into chunks of at most messageLimit runes.
func (t *TelegramChannel) Send(session api.SessionContext, message string) error {
	chatID, err := strconv.ParseInt(session.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id for telegram: %s", session.ChatID)
	}

	for i, chunk := range splitMessage(message, t.messageLimit) {
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("telegram send chunk %d failed: %w", i, err)
		}
	}
	return nil
}

// splitMessage cuts text into pieces of at most limit runes, preferring to
// break after a newline in the second half of a piece.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i >= limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
