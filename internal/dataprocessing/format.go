package dataprocessing

import (
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCount renders a count with thousands separators: 1234567 -> "1,234,567".
func FormatCount(n int64) string {
	return printer.Sprintf("%d", n)
}

// Percent returns part/whole*100, or 0 when whole is not positive.
func Percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// RoundPercent rounds to one decimal place. It parses the same text the
// captions print, so a metric's number and caption always agree at halves.
func RoundPercent(p float64) float64 {
	r, err := strconv.ParseFloat(oneDecimal(p), 64)
	if err != nil {
		return 0
	}
	return r
}

// PercentCaption renders "<p>% of <base>", or "0%" when the base is empty.
func PercentCaption(part, whole int64, base string) string {
	if whole <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%s%% of %s", oneDecimal(Percent(part, whole)), base)
}

func oneDecimal(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64)
}

// roundHalfEven rounds sums and means to whole enrollees.
func roundHalfEven(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.RoundToEven(v))
}
