package bot

import (
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/raine/pricebanner/internal/session"
)

type BotState struct {
	bot      *Bot
	mu       sync.Mutex
	sessions map[int64]*session.Controller
}

func (b *Bot) NewBotState() BotState {
	return BotState{
		bot:      b,
		sessions: make(map[int64]*session.Controller),
	}
}

// getSession returns the chat's controller, creating it on first use.
func (bs *BotState) getSession(chatID int64) *session.Controller {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if c, ok := bs.sessions[chatID]; ok {
		return c
	}

	c := session.New("tg:"+strconv.FormatInt(chatID, 10), bs.bot.gateway, &chatListener{bot: bs.bot, chatID: chatID})
	bs.sessions[chatID] = c
	log.Info().Int64("chatId", chatID).Msg("new chat session created")
	return c
}

// Shutdown stops all session controllers gracefully.
func (bs *BotState) Shutdown() {
	bs.mu.Lock()
	sessions := make([]*session.Controller, 0, len(bs.sessions))
	for _, c := range bs.sessions {
		sessions = append(sessions, c)
	}
	bs.sessions = make(map[int64]*session.Controller)
	bs.mu.Unlock()

	// Stop outside the lock to avoid blocking
	for _, c := range sessions {
		c.Stop()
	}
	log.Info().Int("count", len(sessions)).Msg("stopped all chat sessions")
}
