// Package chart renders the rolling price history of a token into a PNG for
// delivery as a Telegram photo.
package chart

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"tokenwatch-telegram-bot/internal/resolver"
)

// ErrNotEnoughHistory is returned while a token has fewer than two
// observations, which is too few for a line.
var ErrNotEnoughHistory = errors.New("chart: not enough history to render")

var (
	backgroundColor = drawing.Color{R: 55, G: 55, B: 55, A: 255}
	textColor       = drawing.Color{R: 200, G: 200, B: 200, A: 255}
	lineColor       = drawing.Color{R: 0, G: 122, B: 255, A: 255}
	fillColor       = drawing.Color{R: 0, G: 122, B: 255, A: 25}
	gridColor       = drawing.Color{R: 100, G: 100, B: 100, A: 128}
)

// Render draws the observed prices as a time series and returns the encoded
// PNG. Points are expected in chronological order, the way the history
// stores them.
func Render(symbol string, points []resolver.PricePoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, ErrNotEnoughHistory
	}

	xs := make([]time.Time, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.At
		ys[i] = p.Price
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s price (last %dh)", symbol, int(resolver.HistoryWindow.Hours())),
		Width:  1200,
		Height: 500,
		TitleStyle: chart.Style{
			FontColor: textColor,
			FontSize:  14,
		},
		Background: chart.Style{
			FillColor: backgroundColor,
			Padding:   chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: chart.Style{
			FillColor: backgroundColor,
		},
		XAxis: chart.XAxis{
			Style:          chart.Style{FontColor: textColor, FontSize: 12},
			ValueFormatter: chart.TimeValueFormatterWithFormat("15:04"),
			GridMajorStyle: chart.Style{StrokeColor: gridColor, StrokeWidth: 1},
		},
		YAxis: chart.YAxis{
			Style:          chart.Style{FontColor: textColor, FontSize: 12},
			ValueFormatter: priceFormatter,
			GridMajorStyle: chart.Style{StrokeColor: gridColor, StrokeWidth: 1},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    symbol,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: lineColor,
					StrokeWidth: 2,
					FillColor:   fillColor,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, errors.Wrap(err, "failed to render price chart")
	}
	return buf.Bytes(), nil
}

// priceFormatter adapts the tick precision to the magnitude so micro-cap
// prices stay readable.
func priceFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	switch {
	case f >= 1000:
		return fmt.Sprintf("$%.0f", f)
	case f >= 1:
		return fmt.Sprintf("$%.2f", f)
	case f >= 0.01:
		return fmt.Sprintf("$%.4f", f)
	default:
		return fmt.Sprintf("$%.8f", f)
	}
}
