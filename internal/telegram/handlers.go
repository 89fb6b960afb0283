package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"tokenwatch-telegram-bot/internal/resolver"
	"tokenwatch-telegram-bot/internal/types"
	"tokenwatch-telegram-bot/lib/helpers"
	"tokenwatch-telegram-bot/lib/translation"
)

// Callback data for the inline menus. Values are stable: they may sit in
// messages sent long before an upgrade.
const (
	cbMonitor        = "monitor"
	cbUnmonitor      = "unmonitor"
	cbWatchlist      = "watchlist"
	cbChart          = "chart"
	cbTopMonitored   = "top_monitored"
	cbLeaderboard    = "leaderboard"
	cbBroadcast      = "broadcast"
	cbClearWatchlist = "clear_watchlist"
	cbPostAd         = "post_ad"
	cbListAds        = "list_ads"
	cbDeleteAd       = "delete_ad"
	cbBackToMenu     = "back_to_menu"

	prefixChain            = "chain:"
	prefixType             = "type:"
	prefixUnmonitor        = "unmonitor:"
	prefixConfirmUnmonitor = "confirm_unmonitor:"
	prefixConfirmDelete    = "confirm_delete:"
	prefixReadd            = "readd:"
)

func (b *Bot) HandleCallbackQuery(q *tgbotapi.CallbackQuery) {
	if q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID
	data := q.Data
	log.Debugf("callback %q from chat %d", data, chatID)

	// Acknowledge immediately so the client stops its spinner.
	if _, err := b.Bot.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		log.Debug("callback ack failed: ", err)
	}

	switch {
	case data == cbBackToMenu:
		b.clearConversation(chatID)
		b.sendMenu(chatID)

	case data == cbMonitor:
		b.setConversation(chatID, &conversation{state: stateEnterAddress})
		b.sendText(chatID, translation.Translate("Send me the token contract address."))

	case data == cbUnmonitor:
		b.sendUnmonitorList(chatID)

	case data == cbWatchlist:
		b.sendWatchlist(chatID)

	case data == cbChart:
		b.sendText(chatID, translation.Translate("Use /chart <chain> <address> to get a price chart."))

	case data == cbTopMonitored:
		b.sendTopMonitored(chatID)

	case data == cbLeaderboard:
		b.sendLeaderboard(chatID)

	case data == cbBroadcast:
		if !b.isAdmin(chatID) {
			return
		}
		b.setConversation(chatID, &conversation{state: stateBroadcast})
		b.sendText(chatID, translation.Translate("Send the message to broadcast to all users."))

	case data == cbClearWatchlist:
		if !b.isAdmin(chatID) {
			return
		}
		b.setConversation(chatID, &conversation{state: stateClearWatchlist})
		b.sendText(chatID, translation.Translate("Send the user ID whose watchlist should be cleared."))

	case data == cbPostAd:
		if !b.isAdmin(chatID) {
			return
		}
		b.setConversation(chatID, &conversation{state: stateAdMessage})
		b.sendText(chatID, translation.Translate("Send the ad text (160 characters max)."))

	case data == cbListAds:
		if !b.isAdmin(chatID) {
			return
		}
		b.sendAdList(chatID)

	case data == cbDeleteAd:
		if !b.isAdmin(chatID) {
			return
		}
		b.setConversation(chatID, &conversation{state: stateDeleteAd})
		b.sendText(chatID, translation.Translate("Send the ID of the ad to delete."))

	case strings.HasPrefix(data, prefixChain):
		b.handleChainChosen(chatID, strings.TrimPrefix(data, prefixChain))

	case strings.HasPrefix(data, prefixType):
		b.handleTypeChosen(chatID, strings.TrimPrefix(data, prefixType))

	case strings.HasPrefix(data, prefixUnmonitor):
		b.handleUnmonitorChosen(chatID, strings.TrimPrefix(data, prefixUnmonitor))

	case strings.HasPrefix(data, prefixConfirmUnmonitor):
		b.handleUnmonitorConfirmed(chatID, strings.TrimPrefix(data, prefixConfirmUnmonitor) == "yes")

	case strings.HasPrefix(data, prefixConfirmDelete):
		b.handleDeleteAdConfirmed(chatID, strings.TrimPrefix(data, prefixConfirmDelete) == "yes")

	case strings.HasPrefix(data, prefixReadd):
		b.handleReadd(chatID, strings.TrimPrefix(data, prefixReadd))

	default:
		b.sendText(chatID, translation.Translate("Unknown action. Please use /menu."))
	}
}

func (b *Bot) handleChainChosen(chatID int64, chain string) {
	conv := b.conversation(chatID)
	if conv == nil || conv.state != stateSelectChain {
		b.sendText(chatID, translation.Translate("That choice has expired. Please start over from /menu."))
		return
	}
	if !resolver.KnownChain(chain) {
		b.sendText(chatID, translation.Translate("Unsupported chain."))
		return
	}
	if !resolver.ValidAddress(chain, conv.entry.address) {
		b.clearConversation(chatID)
		b.sendText(chatID, translation.Translate("That address does not look valid for the selected chain. Please start over from /menu."))
		return
	}

	conv.entry.chain = chain
	conv.state = stateSelectType
	b.sendTypeKeyboard(chatID)
}

func (b *Bot) sendTypeKeyboard(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, helpers.EscapeMarkdownV2(translation.Translate("What should trigger the alert?")))
	msg.ParseMode = "MarkdownV2"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("Target price"), prefixType+string(types.KindPrice)),
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("Market cap"), prefixType+string(types.KindMarketCap)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("% increase"), prefixType+string(types.KindPctIncrease)),
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("% decrease"), prefixType+string(types.KindPctDecrease)),
		),
	)
	if _, err := b.Bot.Send(msg); err != nil {
		log.Error("failed to send type keyboard: ", err)
	}
}

func (b *Bot) handleTypeChosen(chatID int64, kind string) {
	conv := b.conversation(chatID)
	if conv == nil || conv.state != stateSelectType {
		b.sendText(chatID, translation.Translate("That choice has expired. Please start over from /menu."))
		return
	}
	k := types.ConditionKind(kind)
	if !k.Valid() {
		b.sendText(chatID, translation.Translate("Unknown action. Please use /menu."))
		return
	}

	conv.entry.kind = k
	conv.state = stateEnterValue
	switch k {
	case types.KindPrice:
		b.sendText(chatID, translation.Translate("Send the target price in USD."))
	case types.KindMarketCap:
		b.sendText(chatID, translation.Translate("Send the target market cap in USD."))
	default:
		b.sendText(chatID, translation.Translate("Send the percent threshold (for example 15)."))
	}
}

func (b *Bot) sendUnmonitorList(chatID int64) {
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

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, e := range entries {
		label := fmt.Sprintf("%s (%s) %s", e.Symbol, e.Chain, conditionButtonLabel(e))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", prefixUnmonitor, i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(translation.Translate("« Back"), cbBackToMenu),
	))

	msg := tgbotapi.NewMessage(chatID, helpers.EscapeMarkdownV2(translation.Translate("Which token should I stop monitoring?")))
	msg.ParseMode = "MarkdownV2"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.Bot.Send(msg); err != nil {
		log.Error("failed to send unmonitor list: ", err)
	}
}

func (b *Bot) handleUnmonitorChosen(chatID int64, arg string) {
	index, err := strconv.Atoi(arg)
	if err != nil {
		b.sendText(chatID, translation.Translate("Unknown action. Please use /menu."))
		return
	}

	entries, err := b.store.Get(chatID)
	if err != nil || index < 0 || index >= len(entries) {
		b.sendText(chatID, translation.Translate("That entry no longer exists."))
		return
	}
	e := entries[index]

	b.setConversation(chatID, &conversation{state: stateConfirmUnmonitor, pendingIndex: index, pendingRule: e})

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		helpers.EscapeMarkdownV2(translation.Translate("Stop monitoring %s on %s?")),
		helpers.EscapeMarkdownV2(e.Symbol), helpers.EscapeMarkdownV2(e.Chain)))
	msg.ParseMode = "MarkdownV2"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("Yes"), prefixConfirmUnmonitor+"yes"),
			tgbotapi.NewInlineKeyboardButtonData(translation.Translate("No"), prefixConfirmUnmonitor+"no"),
		),
	)
	if _, err := b.Bot.Send(msg); err != nil {
		log.Error("failed to send unmonitor confirmation: ", err)
	}
}

func (b *Bot) handleUnmonitorConfirmed(chatID int64, yes bool) {
	conv := b.conversation(chatID)
	b.clearConversation(chatID)
	if conv == nil || conv.state != stateConfirmUnmonitor {
		b.sendText(chatID, translation.Translate("That choice has expired. Please start over from /menu."))
		return
	}
	if !yes {
		b.sendText(chatID, translation.Translate("Kept it."))
		return
	}

	// Verify the index still points at the confirmed rule; the list may
	// have shifted while the confirmation sat unanswered.
	entries, err := b.store.Get(chatID)
	if err != nil || conv.pendingIndex >= len(entries) || !entries[conv.pendingIndex].SameRule(conv.pendingRule) {
		b.sendText(chatID, translation.Translate("That entry no longer exists."))
		return
	}

	removed, err := b.store.RemoveAt(chatID, conv.pendingIndex)
	if err != nil {
		log.Errorf("failed to remove entry for %d: %v", chatID, err)
		b.sendText(chatID, translation.Translate("Could not update your watchlist. Please try again later."))
		return
	}
	b.sendText(chatID, fmt.Sprintf(translation.Translate("No longer monitoring %s."), removed.Symbol))
}

func (b *Bot) sendAdList(chatID int64) {
	all, err := b.ads.List()
	if err != nil {
		log.Errorf("failed to list ads: %v", err)
		b.sendText(chatID, translation.Translate("Could not load ads."))
		return
	}
	if len(all) == 0 {
		b.sendText(chatID, translation.Translate("No ads posted."))
		return
	}

	var sb strings.Builder
	for _, a := range all {
		status := translation.Translate("inactive")
		if a.Active {
			status = translation.Translate("active")
		}
		sb.WriteString(fmt.Sprintf("#%d [%s] %d/%d views, expires %s\n%s\n\n",
			a.ID, status, a.CurrentViews, a.MaxViews,
			a.ExpiresAt().Format("2006-01-02"), a.Message))
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) handleDeleteAdConfirmed(chatID int64, yes bool) {
	conv := b.conversation(chatID)
	b.clearConversation(chatID)
	if conv == nil || conv.state != stateConfirmDeleteAd {
		b.sendText(chatID, translation.Translate("That choice has expired. Please start over from /menu."))
		return
	}
	if !yes {
		b.sendText(chatID, translation.Translate("Kept it."))
		return
	}
	if err := b.ads.Delete(conv.pendingAdID); err != nil {
		log.Errorf("failed to delete ad %d: %v", conv.pendingAdID, err)
		b.sendText(chatID, translation.Translate("Could not delete the ad."))
		return
	}
	b.sendText(chatID, fmt.Sprintf(translation.Translate("Ad %d deleted."), conv.pendingAdID))
}

// handleReadd restores a fired entry from the per-user stash. The new entry
// is re-anchored at the current price so percentage rules restart cleanly.
func (b *Bot) handleReadd(chatID int64, arg string) {
	index, err := strconv.Atoi(arg)
	if err != nil {
		b.sendText(chatID, translation.Translate("Unknown action. Please use /menu."))
		return
	}

	b.mu.Lock()
	stash := b.fired[chatID]
	if index < 0 || index >= len(stash) {
		b.mu.Unlock()
		b.sendText(chatID, translation.Translate("That alert is too old to restore. Please add the token again from /menu."))
		return
	}
	old := stash[index]
	b.mu.Unlock()

	ctx, cancel := resolveContext()
	defer cancel()
	q, err := b.quotes.Resolve(ctx, old.Chain, old.Address)
	if err != nil {
		log.Errorf("re-add resolution failed for %s:%s: %v", old.Chain, old.Address, err)
		b.sendText(chatID, translation.Translate("Could not fetch the token right now. Please try again later."))
		return
	}

	entry, err := types.NewWatchEntry(old.Address, old.Chain, old.Kind, old.Value, old.Symbol, q.Price, q.MarketCap)
	if err != nil {
		log.Errorf("re-add failed for %s:%s: %v", old.Chain, old.Address, err)
		b.sendText(chatID, translation.Translate("Could not restore that alert."))
		return
	}
	if err := b.store.Add(chatID, entry); err != nil {
		log.Errorf("failed to store re-added entry for %d: %v", chatID, err)
		b.sendText(chatID, translation.Translate("Could not update your watchlist. Please try again later."))
		return
	}
	b.sendText(chatID, fmt.Sprintf(translation.Translate("Monitoring %s again."), entry.Symbol))
}
