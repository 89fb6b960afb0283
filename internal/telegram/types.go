package telegram

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tokenwatch-telegram-bot/internal/ads"
	"tokenwatch-telegram-bot/internal/reports"
	"tokenwatch-telegram-bot/internal/resolver"
	"tokenwatch-telegram-bot/internal/types"
	"tokenwatch-telegram-bot/internal/watchlist"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
	AdminIDs       []int64
}

// Bot telegram interaction client
type Bot struct {
	Bot    *tgbotapi.BotAPI
	Config BotConfig

	store   *watchlist.Store
	quotes  *resolver.Resolver
	reports *reports.Reports
	ads     *ads.Selector

	mu            sync.Mutex
	conversations map[int64]*conversation
	// fired keeps recently fired entries per user so the re-add button can
	// reference them by index; callback data is capped at 64 bytes.
	fired map[int64][]types.WatchEntry
}

// Message a telegram message struct
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
}
