package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"tokenwatch-telegram-bot/internal/ads"
	"tokenwatch-telegram-bot/internal/chart"
	"tokenwatch-telegram-bot/internal/reports"
	"tokenwatch-telegram-bot/internal/resolver"
	"tokenwatch-telegram-bot/internal/types"
	"tokenwatch-telegram-bot/internal/watchlist"
	"tokenwatch-telegram-bot/lib/helpers"
	"tokenwatch-telegram-bot/lib/translation"
)

const reportLimit = 10

// NewBot creates new telegram bot
func NewBot(c BotConfig, store *watchlist.Store, quotes *resolver.Resolver, rep *reports.Reports, selector *ads.Selector) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	return &Bot{
		Bot:           bot,
		Config:        c,
		store:         store,
		quotes:        quotes,
		reports:       rep,
		ads:           selector,
		conversations: make(map[int64]*conversation),
		fired:         make(map[int64][]types.WatchEntry),
	}, nil
}

// GetUpdatesChannel gets new updates
func (b *Bot) GetUpdatesChannel() tgbotapi.UpdatesChannel {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig)
}

// SendMessage sends a MarkdownV2 message.
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"
	_, err := b.Bot.Send(msg)
	return errors.Wrapf(err, "could not send message to chat %d", m.ChatID)
}

func (b *Bot) isAdmin(userID int64) bool {
	for _, id := range b.Config.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HandleUpdate routes one Telegram update. Replies are sent directly; the
// returned text, if any, is sent by the caller as a plain MarkdownV2 reply.
func (b *Bot) HandleUpdate(u tgbotapi.Update) string {
	if u.CallbackQuery != nil {
		b.HandleCallbackQuery(u.CallbackQuery)
		return ""
	}
	if u.Message == nil {
		return ""
	}

	chatID := u.Message.Chat.ID

	if cmd := u.Message.Command(); cmd != "" {
		b.clearConversation(chatID)
		return b.handleCommand(u, cmd)
	}

	if conv := b.conversation(chatID); conv != nil {
		return b.handleConversationMessage(chatID, conv, strings.TrimSpace(u.Message.Text))
	}

	return ""
}

func (b *Bot) handleCommand(u tgbotapi.Update, cmd string) string {
	chatID := u.Message.Chat.ID
	log.Debugf("received command /%s from chat %d", cmd, chatID)

	switch cmd {
	case "start", "menu":
		b.sendMenu(chatID)
		return ""
	case "chart":
		return b.handleChartCommand(u)
	case "source":
		return helpers.EscapeMarkdownV2("https://github.com/tokenwatch/telegram-bot")
	}

	return helpers.EscapeMarkdownV2(translation.Translate("Use /menu to see what I can do."))
}

// handleChartCommand renders the observed price history for a watched
// token: /chart <chain> <address>.
func (b *Bot) handleChartCommand(u tgbotapi.Update) string {
	parts := strings.Fields(u.Message.CommandArguments())
	if len(parts) != 2 {
		return helpers.EscapeMarkdownV2(translation.Translate("Usage: /chart <chain> <address>"))
	}
	chain, address := strings.ToLower(parts[0]), parts[1]

	points := b.quotes.History(chain, address)
	png, err := chart.Render(symbolForChart(b.store, u.Message.Chat.ID, chain, address), points)
	if err == chart.ErrNotEnoughHistory {
		return helpers.EscapeMarkdownV2(translation.Translate("Not enough observations yet. Charts fill up while a token is monitored."))
	}
	if err != nil {
		log.Errorf("chart render failed for %s:%s: %v", chain, address, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Could not render the chart. Please try again later."))
	}

	photo := tgbotapi.NewPhoto(u.Message.Chat.ID, tgbotapi.FileBytes{
		Name:  "chart.png",
		Bytes: png,
	})
	photo.Caption = helpers.EscapeMarkdownV2(fmt.Sprintf("%s on %s", helpers.ShortAddress(address), chain))
	photo.ParseMode = "MarkdownV2"
	photo.ReplyToMessageID = u.Message.MessageID
	if _, err := b.Bot.Send(photo); err != nil {
		log.Error("error sending chart: ", err)
	}
	return ""
}

// symbolForChart prefers the symbol the user stored for this token; falls
// back to a shortened address.
func symbolForChart(store *watchlist.Store, userID int64, chain, address string) string {
	entries, err := store.Get(userID)
	if err == nil {
		for _, e := range entries {
			if e.Chain == chain && e.Address == address {
				return e.Symbol
			}
		}
	}
	return helpers.ShortAddress(address)
}

func (b *Bot) sendMenu(chatID int64) {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("🔍 Monitor a token"), cbMonitor),
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("🗑 Stop monitoring"), cbUnmonitor),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("📋 My watchlist"), cbWatchlist),
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("📈 Chart"), cbChart),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("🔥 Top monitored"), cbTopMonitored),
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("🏆 Leaderboard"), cbLeaderboard),
		),
	}
	if b.isAdmin(chatID) {
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(translation.Translate("📣 Broadcast"), cbBroadcast),
				tgbotapi.NewInlineKeyboardButtonData(translation.Translate("🧹 Clear watchlist"), cbClearWatchlist),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(translation.Translate("➕ Post ad"), cbPostAd),
				tgbotapi.NewInlineKeyboardButtonData(translation.Translate("📜 List ads"), cbListAds),
				tgbotapi.NewInlineKeyboardButtonData(translation.Translate("❌ Delete ad"), cbDeleteAd),
			),
		)
	}

	msg := tgbotapi.NewMessage(chatID, helpers.EscapeMarkdownV2(translation.Translate("What would you like to do?")))
	msg.ParseMode = "MarkdownV2"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.Bot.Send(msg); err != nil {
		log.Error("failed to send menu: ", err)
	}
}

func (b *Bot) sendWatchlist(chatID int64) {
	entries, err := b.store.Get(chatID)
	if err != nil {
		log.Errorf("failed to load watchlist for %d: %v", chatID, err)
		b.sendText(chatID, translation.Translate("Could not load your watchlist. Please try again later."))
		return
	}
	if len(entries) == 0 {
		b.sendText(chatID, translation.Translate("Your watchlist is empty. Use the menu to monitor a token."))
		return
	}

	var sb strings.Builder
	sb.WriteString("*" + helpers.EscapeMarkdownV2(translation.Translate("Your watchlist")) + "*\n\n")
	for i, e := range entries {
		sb.WriteString(fmt.Sprintf("%d\\. [%s](https://dexscreener.com/%s/%s) \\(%s\\)\n", i+1,
			helpers.EscapeMarkdownV2(e.Symbol), e.Chain, e.Address,
			helpers.EscapeMarkdownV2(e.Chain)))
		sb.WriteString(fmt.Sprintf("   %s\n", formatCondition(e)))
		sb.WriteString(fmt.Sprintf("   %s: $%s, MCap %s\n",
			helpers.EscapeMarkdownV2(translation.Translate("last price")),
			helpers.FormatPriceUS(e.LastPrice, true),
			helpers.FormatMarketCapUS(e.LastMarketCap)))
	}

	if err := b.SendMessage(Message{ChatID: chatID, Text: sb.String()}); err != nil {
		log.Error(err)
	}
}

func (b *Bot) sendTopMonitored(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := b.reports.TopMonitored(ctx, reportLimit)
	if err != nil {
		log.Errorf("top monitored report failed: %v", err)
		b.sendText(chatID, translation.Translate("Could not build the report. Please try again later."))
		return
	}
	if len(rows) == 0 {
		b.sendText(chatID, translation.Translate("Nobody is monitoring anything yet."))
		return
	}

	var sb strings.Builder
	sb.WriteString("*" + helpers.EscapeMarkdownV2(translation.Translate("Most monitored tokens")) + "*\n\n")
	for i, r := range rows {
		sb.WriteString(fmt.Sprintf("%d\\. *%s* \\(%s\\) — %d 👀, MCap %s\n", i+1,
			helpers.EscapeMarkdownV2(r.Symbol), helpers.EscapeMarkdownV2(r.Chain),
			r.Watchers, helpers.FormatMarketCapUS(r.MarketCap)))
	}

	if err := b.SendMessage(Message{ChatID: chatID, Text: sb.String()}); err != nil {
		log.Error(err)
	}
}

func (b *Bot) sendLeaderboard(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	board, err := b.reports.TopLeaderboard(ctx, 5)
	if err != nil {
		log.Errorf("leaderboard report failed: %v", err)
		b.sendText(chatID, translation.Translate("Could not build the report. Please try again later."))
		return
	}
	if len(board.Gainers) == 0 {
		b.sendText(chatID, translation.Translate("Nobody is monitoring anything yet."))
		return
	}

	var sb strings.Builder
	sb.WriteString("*" + helpers.EscapeMarkdownV2(translation.Translate("24h gainers")) + "*\n")
	for i, m := range board.Gainers {
		sb.WriteString(fmt.Sprintf("%d\\. *%s*: %s\n", i+1,
			helpers.EscapeMarkdownV2(m.Symbol), helpers.FormatPctUS(m.Change24h, true)))
	}
	sb.WriteString("\n*" + helpers.EscapeMarkdownV2(translation.Translate("24h losers")) + "*\n")
	for i, m := range board.Losers {
		sb.WriteString(fmt.Sprintf("%d\\. *%s*: %s\n", i+1,
			helpers.EscapeMarkdownV2(m.Symbol), helpers.FormatPctUS(m.Change24h, true)))
	}

	if err := b.SendMessage(Message{ChatID: chatID, Text: sb.String()}); err != nil {
		log.Error(err)
	}
}

// sendText sends a plain message with MarkdownV2 escaping applied.
func (b *Bot) sendText(chatID int64, text string) {
	if err := b.SendMessage(Message{ChatID: chatID, Text: helpers.EscapeMarkdownV2(text)}); err != nil {
		log.Error(err)
	}
}
