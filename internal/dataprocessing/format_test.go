package dataprocessing

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCount(tt.in))
	}
}

func TestPercentCaption(t *testing.T) {
	assert.Equal(t, "0%", PercentCaption(5, 0, "Nationwide"))
	assert.Equal(t, "33.3% of Total", PercentCaption(1, 3, "Total"))
	assert.Equal(t, "100.0% of Nationwide", PercentCaption(7, 7, "Nationwide"))
	assert.Equal(t, 0.0, Percent(3, 0))
	assert.Equal(t, 66.7, RoundPercent(Percent(2, 3)))
}

func TestRoundPercentMatchesCaption(t *testing.T) {
	tests := []struct {
		part, whole int64
		want        float64
	}{
		{part: 49, whole: 400, want: 12.2},
		{part: 1, whole: 8, want: 12.5},
		{part: 3, whole: 16, want: 18.8},
		{part: 1, whole: 40, want: 2.5},
		{part: 1, whole: 3, want: 33.3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.part, tt.whole), func(t *testing.T) {
			got := RoundPercent(Percent(tt.part, tt.whole))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, fmt.Sprintf("%.1f%% of Total", got), PercentCaption(tt.part, tt.whole, "Total"))
		})
	}
}

func TestRoundHalfEven(t *testing.T) {
	assert.Equal(t, int64(2), roundHalfEven(2.5))
	assert.Equal(t, int64(4), roundHalfEven(3.5))
	assert.Equal(t, int64(3), roundHalfEven(2.51))
	assert.Equal(t, int64(0), roundHalfEven(math.NaN()))
}
