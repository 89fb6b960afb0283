package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"tokenwatch-telegram-bot/internal/trigger"
	"tokenwatch-telegram-bot/internal/types"
	"tokenwatch-telegram-bot/lib/helpers"
	"tokenwatch-telegram-bot/lib/translation"
)

// firedStashLimit caps how many fired entries are kept per user for the
// re-add button.
const firedStashLimit = 10

// SendAlert delivers a fired alert with a re-add button. The fired entry is
// stashed in memory; the button references it by index because callback
// data is capped at 64 bytes.
func (b *Bot) SendAlert(userID int64, alert trigger.Alert) error {
	index := b.stashFired(userID, alert.Entry)

	msg := tgbotapi.NewMessage(userID, formatAlert(alert))
	msg.ParseMode = "MarkdownV2"
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				translation.Translate("🔁 Monitor again"),
				fmt.Sprintf("%s%d", prefixReadd, index),
			),
		),
	)
	_, err := b.Bot.Send(msg)
	return err
}

// SendAd delivers a promo message after an alert. Plain text: ad copy is
// operator-written and not trusted as Markdown.
func (b *Bot) SendAd(userID int64, message string) error {
	msg := tgbotapi.NewMessage(userID, message)
	msg.DisableWebPagePreview = true
	_, err := b.Bot.Send(msg)
	return err
}

// NotifyOperator fans a plain-text notice out to every configured admin.
func (b *Bot) NotifyOperator(text string) {
	for _, id := range b.Config.AdminIDs {
		msg := tgbotapi.NewMessage(id, text)
		if _, err := b.Bot.Send(msg); err != nil {
			log.Warnf("failed to notify admin %d: %v", id, err)
		}
	}
}

func (b *Bot) stashFired(userID int64, e types.WatchEntry) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	stash := append(b.fired[userID], e)
	if len(stash) > firedStashLimit {
		stash = stash[len(stash)-firedStashLimit:]
	}
	b.fired[userID] = stash
	return len(stash) - 1
}

func formatAlert(a trigger.Alert) string {
	symbol := helpers.EscapeMarkdownV2(a.Entry.Symbol)
	price := helpers.FormatPriceUS(a.Price, true)

	switch a.Reason {
	case trigger.ReasonPrice:
		return fmt.Sprintf(
			"🚨 *%s* "+helpers.EscapeMarkdownV2(translation.Translate("crossed your target of $%s and is now at $%s")),
			symbol, helpers.FormatPriceUS(a.Entry.Value, true), price)
	case trigger.ReasonPctIncrease:
		return fmt.Sprintf(
			"📈 *%s* "+helpers.EscapeMarkdownV2(translation.Translate("is up %s from your starting price and is now at $%s")),
			symbol, helpers.FormatPctUS(a.Pct, true), price)
	case trigger.ReasonPctDecrease:
		return fmt.Sprintf(
			"📉 *%s* "+helpers.EscapeMarkdownV2(translation.Translate("is down %s from your starting price and is now at $%s")),
			symbol, helpers.FormatPctUS(a.Pct, true), price)
	case trigger.ReasonMarketCap:
		return fmt.Sprintf(
			"🚀 *%s* "+helpers.EscapeMarkdownV2(translation.Translate("reached a market cap of %s")),
			symbol, helpers.FormatMarketCapUS(a.MarketCap))
	}
	return fmt.Sprintf("🚨 *%s* "+helpers.EscapeMarkdownV2(translation.Translate("fired an alert at $%s")), symbol, price)
}
