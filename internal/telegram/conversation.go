package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"tokenwatch-telegram-bot/internal/database"
	"tokenwatch-telegram-bot/internal/resolver"
	"tokenwatch-telegram-bot/internal/types"
	"tokenwatch-telegram-bot/lib/helpers"
	"tokenwatch-telegram-bot/lib/translation"
)

const (
	maxAdMessageLen = 160
	maxAdDays       = 30
	maxAdViews      = 10000
)

type convState int

const (
	stateEnterAddress convState = iota
	stateSelectChain
	stateSelectType
	stateEnterValue
	stateConfirmUnmonitor
	stateBroadcast
	stateClearWatchlist
	stateAdMessage
	stateAdDuration
	stateAdViews
	stateDeleteAd
	stateConfirmDeleteAd
)

type pendingEntry struct {
	address string
	chain   string
	kind    types.ConditionKind
}

type pendingAd struct {
	message      string
	durationDays int
}

// conversation is the per-chat state of a multi-step flow. One at a time per
// chat; starting a new flow or any command drops the old one.
type conversation struct {
	state convState
	entry pendingEntry
	ad    pendingAd

	pendingIndex int
	pendingRule  types.WatchEntry
	pendingAdID  int64
}

func (b *Bot) conversation(chatID int64) *conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) setConversation(chatID int64, c *conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[chatID] = c
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}

func resolveContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// handleConversationMessage advances the active flow with the user's text.
func (b *Bot) handleConversationMessage(chatID int64, conv *conversation, text string) string {
	switch conv.state {
	case stateEnterAddress:
		return b.stepAddress(chatID, conv, text)
	case stateEnterValue:
		return b.stepValue(chatID, conv, text)
	case stateBroadcast:
		return b.stepBroadcast(chatID, text)
	case stateClearWatchlist:
		return b.stepClearWatchlist(chatID, text)
	case stateAdMessage:
		return b.stepAdMessage(chatID, conv, text)
	case stateAdDuration:
		return b.stepAdDuration(chatID, conv, text)
	case stateAdViews:
		return b.stepAdViews(chatID, conv, text)
	case stateDeleteAd:
		return b.stepDeleteAd(chatID, conv, text)
	}
	return ""
}

func (b *Bot) stepAddress(chatID int64, conv *conversation, text string) string {
	if text == "" {
		return helpers.EscapeMarkdownV2(translation.Translate("Send me the token contract address."))
	}

	conv.entry.address = text
	conv.state = stateSelectChain

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, chain := range resolver.Chains {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(chain, prefixChain+chain))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	msg := tgbotapi.NewMessage(chatID, helpers.EscapeMarkdownV2(translation.Translate("Which chain is the token on?")))
	msg.ParseMode = "MarkdownV2"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.Bot.Send(msg); err != nil {
		log.Error("failed to send chain keyboard: ", err)
	}
	return ""
}

func (b *Bot) stepValue(chatID int64, conv *conversation, text string) string {
	value, err := strconv.ParseFloat(strings.TrimSuffix(text, "%"), 64)
	if err != nil || value <= 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("Please send a positive number."))
	}

	ctx, cancel := resolveContext()
	defer cancel()
	q, err := b.quotes.Resolve(ctx, conv.entry.chain, conv.entry.address)
	if err != nil {
		b.clearConversation(chatID)
		log.Warnf("monitor setup resolution failed for %s:%s: %v", conv.entry.chain, conv.entry.address, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Could not fetch the token right now. Please try again later."))
	}

	entry, err := types.NewWatchEntry(conv.entry.address, conv.entry.chain, conv.entry.kind, value, q.Symbol, q.Price, q.MarketCap)
	if err != nil {
		b.clearConversation(chatID)
		log.Errorf("failed to build watch entry: %v", err)
		return helpers.EscapeMarkdownV2(translation.Translate("Something went wrong. Please start over from /menu."))
	}

	if err := b.store.Add(chatID, entry); err != nil {
		b.clearConversation(chatID)
		log.Errorf("failed to store watch entry for %d: %v", chatID, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Could not update your watchlist. Please try again later."))
	}
	b.clearConversation(chatID)

	return fmt.Sprintf(
		helpers.EscapeMarkdownV2(translation.Translate("Monitoring %s at $%s."))+"\n%s",
		helpers.EscapeMarkdownV2(entry.Symbol),
		helpers.FormatPriceUS(entry.InitialPrice, true),
		formatCondition(entry),
	)
}

func (b *Bot) stepBroadcast(chatID int64, text string) string {
	b.clearConversation(chatID)
	if text == "" {
		return helpers.EscapeMarkdownV2(translation.Translate("Broadcast cancelled: empty message."))
	}

	ids, err := database.AllUserIDs()
	if err != nil {
		log.Errorf("broadcast failed to list users: %v", err)
		return helpers.EscapeMarkdownV2(translation.Translate("Could not load the user list."))
	}

	sent := 0
	for _, id := range ids {
		if err := b.SendMessage(Message{ChatID: id, Text: helpers.EscapeMarkdownV2(text)}); err != nil {
			log.Warnf("broadcast to %d failed: %v", id, err)
			continue
		}
		sent++
	}
	log.Infof("broadcast delivered to %d/%d users", sent, len(ids))
	return helpers.EscapeMarkdownV2(fmt.Sprintf(translation.Translate("Broadcast sent to %d users."), sent))
}

func (b *Bot) stepClearWatchlist(chatID int64, text string) string {
	b.clearConversation(chatID)

	userID, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return helpers.EscapeMarkdownV2(translation.Translate("That is not a user ID."))
	}
	exists, err := database.UserExists(userID)
	if err != nil {
		log.Errorf("failed to check user %d: %v", userID, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Could not load the user list."))
	}
	if !exists {
		return helpers.EscapeMarkdownV2(translation.Translate("No such user."))
	}
	if err := b.store.Clear(userID); err != nil {
		log.Errorf("failed to clear watchlist for %d: %v", userID, err)
		return helpers.EscapeMarkdownV2(translation.Translate("Could not clear the watchlist."))
	}
	return helpers.EscapeMarkdownV2(fmt.Sprintf(translation.Translate("Watchlist of user %d cleared."), userID))
}

func (b *Bot) stepAdMessage(chatID int64, conv *conversation, text string) string {
	if text == "" || len(text) > maxAdMessageLen {
		return helpers.EscapeMarkdownV2(fmt.Sprintf(
			translation.Translate("Ad text must be 1 to %d characters."), maxAdMessageLen))
	}
	conv.ad.message = text
	conv.state = stateAdDuration
	return helpers.EscapeMarkdownV2(fmt.Sprintf(
		translation.Translate("For how many days should it run? (1 to %d)"), maxAdDays))
}

func (b *Bot) stepAdDuration(chatID int64, conv *conversation, text string) string {
	days, err := strconv.Atoi(text)
	if err != nil || days < 1 || days > maxAdDays {
		return helpers.EscapeMarkdownV2(fmt.Sprintf(
			translation.Translate("Please send a number between 1 and %d."), maxAdDays))
	}
	conv.ad.durationDays = days
	conv.state = stateAdViews
	return helpers.EscapeMarkdownV2(fmt.Sprintf(
		translation.Translate("How many views at most? (1 to %d)"), maxAdViews))
}

func (b *Bot) stepAdViews(chatID int64, conv *conversation, text string) string {
	views, err := strconv.Atoi(text)
	if err != nil || views < 1 || views > maxAdViews {
		return helpers.EscapeMarkdownV2(fmt.Sprintf(
			translation.Translate("Please send a number between 1 and %d."), maxAdViews))
	}
	b.clearConversation(chatID)

	id, err := b.ads.Post(conv.ad.message, conv.ad.durationDays, views)
	if err != nil {
		log.Errorf("failed to post ad: %v", err)
		return helpers.EscapeMarkdownV2(translation.Translate("Could not save the ad."))
	}
	return helpers.EscapeMarkdownV2(fmt.Sprintf(translation.Translate("Ad %d posted."), id))
}

func (b *Bot) stepDeleteAd(chatID int64, conv *conversation, text string) string {
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return helpers.EscapeMarkdownV2(translation.Translate("That is not an ad ID."))
	}
	conv.pendingAdID = id
	conv.state = stateConfirmDeleteAd

	msg := tgbotapi.NewMessage(chatID, helpers.EscapeMarkdownV2(
		fmt.Sprintf(translation.Translate("Delete ad %d?"), id)))
	msg.ParseMode = "MarkdownV2"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("Yes"), prefixConfirmDelete+"yes"),
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("No"), prefixConfirmDelete+"no"),
		),
	)
	if _, err := b.Bot.Send(msg); err != nil {
		log.Error("failed to send delete confirmation: ", err)
	}
	return ""
}
