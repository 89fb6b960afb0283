package telegram

import (
	"fmt"

	"tokenwatch-telegram-bot/internal/types"
	"tokenwatch-telegram-bot/lib/helpers"
	"tokenwatch-telegram-bot/lib/translation"
)

// formatCondition renders an entry's rule as a MarkdownV2 line.
func formatCondition(e types.WatchEntry) string {
	switch e.Kind {
	case types.KindPrice:
		return fmt.Sprintf(helpers.EscapeMarkdownV2(translation.Translate("alert at $%s")),
			helpers.FormatPriceUS(e.Value, true))
	case types.KindPctIncrease:
		return fmt.Sprintf(helpers.EscapeMarkdownV2(translation.Translate("alert at +%s%% from $%s")),
			helpers.FormatPriceUS(e.Value, true), helpers.FormatPriceUS(e.InitialPrice, true))
	case types.KindPctDecrease:
		return fmt.Sprintf(helpers.EscapeMarkdownV2(translation.Translate("alert at -%s%% from $%s")),
			helpers.FormatPriceUS(e.Value, true), helpers.FormatPriceUS(e.InitialPrice, true))
	case types.KindMarketCap:
		return fmt.Sprintf(helpers.EscapeMarkdownV2(translation.Translate("alert at market cap %s")),
			helpers.FormatMarketCapUS(e.Value))
	}
	return ""
}

// conditionButtonLabel is the short plain-text form used on inline buttons,
// where Markdown is not interpreted.
func conditionButtonLabel(e types.WatchEntry) string {
	switch e.Kind {
	case types.KindPrice:
		return "@ $" + helpers.FormatPriceUS(e.Value, false)
	case types.KindPctIncrease:
		return fmt.Sprintf("+%g%%", e.Value)
	case types.KindPctDecrease:
		return fmt.Sprintf("-%g%%", e.Value)
	case types.KindMarketCap:
		return "MCap $" + helpers.FormatPriceUS(e.Value, false)
	}
	return ""
}
