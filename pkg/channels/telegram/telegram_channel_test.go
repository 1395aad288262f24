package telegram

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	chunks := splitMessage(strings.Repeat("a", 25), 10)
	assert.Equal(t, []string{strings.Repeat("a", 10), strings.Repeat("a", 10), "aaaaa"}, chunks)

	// Breaks after the newline instead of mid-line.
	chunks = splitMessage("line one\nline two is long", 12)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "line one\n", chunks[0])
	assert.Equal(t, "line one\nline two is long", strings.Join(chunks, ""))

	// Counts runes, not bytes.
	chunks = splitMessage(strings.Repeat("🔬", 7), 3)
	assert.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("🔬", 3), chunks[0])
}

func TestToUnified(t *testing.T) {
	ch := &TelegramChannel{config: TelegramConfig{AllowedChats: []int64{42}, Agent: "measurement"}}

	msg := ch.toUnified(&tgbotapi.Message{
		Text: "stop all monitors",
		From: &tgbotapi.User{ID: 7, UserName: "lab"},
		Chat: &tgbotapi.Chat{ID: 42},
	})
	require.NotNil(t, msg)
	assert.Equal(t, "telegram", msg.Session.ChannelID)
	assert.Equal(t, "42", msg.Session.ChatID)
	assert.Equal(t, "7", msg.Session.UserID)
	assert.Equal(t, "measurement", msg.Agent)
	assert.Equal(t, "stop all monitors", msg.Content)

	assert.Nil(t, ch.toUnified(&tgbotapi.Message{Text: "hi", From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 99}}))
	assert.Nil(t, ch.toUnified(&tgbotapi.Message{Text: "  ", From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 42}}))
	assert.Nil(t, ch.toUnified(nil))
}
