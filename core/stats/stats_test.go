package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name        string
		part, whole int
		want        *float64
	}{
		{name: "no denominator", part: 0, whole: 0},
		{name: "negative denominator", part: 1, whole: -1},
		{name: "none", part: 0, whole: 4, want: f(0)},
		{name: "half", part: 2, whole: 4, want: f(50)},
		{name: "thirds round to 2 decimals", part: 1, whole: 3, want: f(33.33)},
		{name: "two thirds round up", part: 2, whole: 3, want: f(66.67)},
		{name: "all", part: 7, whole: 7, want: f(100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percentage(tt.part, tt.whole))
		})
	}
}

func TestCounts_Total(t *testing.T) {
	assert.Equal(t, 10, Counts{Present: 1, Absent: 2, Late: 3, Excused: 4}.Total())
}

func f(v float64) *float64 { return &v }
