// Package format renders metric values for display: compact currency and
// counts, percentages, grouped numbers, trend arrows and the date/time
// layouts users pick in their settings.
package format

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const currencyPrefix = "EGP "

var printer = message.NewPrinter(language.English)

// Currency abbreviates amounts of a thousand or more (6K, 731.2M, 2.20B)
// and prefixes "EGP " when withPrefix is set.
func Currency(amount float64, withPrefix bool) string {
	prefix := ""
	if withPrefix {
		prefix = currencyPrefix
	}
	switch {
	case amount >= 1e9:
		return prefix + fixed(amount/1e9, 2) + "B"
	case amount >= 1e6:
		return prefix + fixed(amount/1e6, 1) + "M"
	case amount >= 1e3:
		return prefix + fixed(amount/1e3, 0) + "K"
	}
	return prefix + Simple(amount)
}

// Number abbreviates large counts: 4960000 -> "5.0M".
func Number(n float64) string {
	switch {
	case n >= 1e9:
		return fixed(n/1e9, 1) + "B"
	case n >= 1e6:
		return fixed(n/1e6, 1) + "M"
	case n >= 1e3:
		return fixed(n/1e3, 0) + "K"
	}
	return Simple(n)
}

// Percentage formats v with the given number of decimals and a % sign.
func Percentage(v float64, decimals int) string {
	if decimals < 0 {
		decimals = 1
	}
	return fixed(v, decimals) + "%"
}

// Simple groups thousands and keeps up to three decimals: 4960000 ->
// "4,960,000", 6.36 -> "6.36".
func Simple(n float64) string {
	return printer.Sprint(number.Decimal(n, number.MaxFractionDigits(3)))
}

// Signed formats a percentage change with an explicit sign: "+12.5%".
func Signed(v float64, decimals int) string {
	s := Percentage(v, decimals)
	if v > 0 {
		return "+" + s
	}
	return s
}

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// TrendOf classifies a change value.
func TrendOf(delta float64) Trend {
	switch {
	case delta > 0:
		return TrendUp
	case delta < 0:
		return TrendDown
	}
	return TrendStable
}

// Arrow returns the glyph shown next to a metric.
func (t Trend) Arrow() string {
	switch t {
	case TrendUp:
		return "↑"
	case TrendDown:
		return "↓"
	}
	return "→"
}

// Duration renders d coarsely: "2d 3h", "4h 10m", "5m 7s", "9s".
func Duration(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}

func fixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
