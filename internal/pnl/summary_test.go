package pnl

import (
	"testing"

	"botPerformance/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		trades []domain.ClosedTrade
		want   domain.Summary
	}{
		{
			name:   "empty list",
			trades: nil,
			want:   domain.Summary{TotalPnL: "0.00", AveragePnL: "0.00"},
		},
		{
			name:   "single trade",
			trades: []domain.ClosedTrade{{ClosedPnL: dec("10")}},
			want:   domain.Summary{TotalPnL: "10.00", AveragePnL: "10.00"},
		},
		{
			name: "mixed wins and losses",
			trades: []domain.ClosedTrade{
				{ClosedPnL: dec("12.345")},
				{ClosedPnL: dec("-2.3")},
				{ClosedPnL: dec("0.5")},
			},
			want: domain.Summary{TotalPnL: "10.55", AveragePnL: "3.52"},
		},
		{
			name: "unparseable pnl counts as a trade with zero pnl",
			trades: []domain.ClosedTrade{
				{ClosedPnL: dec("9")},
				{ClosedPnL: dec("NaN")},
			},
			want: domain.Summary{TotalPnL: "9.00", AveragePnL: "4.50"},
		},
		{
			name: "net loss",
			trades: []domain.ClosedTrade{
				{ClosedPnL: dec("-4")},
				{ClosedPnL: dec("-1")},
			},
			want: domain.Summary{TotalPnL: "-5.00", AveragePnL: "-2.50"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.trades))
		})
	}
}
