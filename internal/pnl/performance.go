package pnl

import (
	"math"
	"sort"
	"time"

	"botPerformance/internal/domain"

	"github.com/montanaflynn/stats"
)

// Analyze derives secondary statistics from a bot's attributed trades and its
// daily series. Inputs are not modified.
func Analyze(trades []domain.ClosedTrade, daily []domain.DailyMetric) domain.Insights {
	insights := domain.Insights{
		EquityCurve: make([]domain.EquityPoint, 0, len(daily)),
	}

	for _, trade := range trades {
		insights.TotalTrades++
		if trade.ClosedPnL.Valid && trade.ClosedPnL.Decimal.IsPositive() {
			insights.WinningTrades++
		} else {
			insights.LosingTrades++
		}
	}
	if insights.TotalTrades > 0 {
		insights.WinRate = round(float64(insights.WinningTrades)/float64(insights.TotalTrades), 4)
	}

	if len(daily) == 0 {
		return insights
	}

	days := make([]domain.DailyMetric, len(daily))
	copy(days, daily)
	sort.Slice(days, func(i, j int) bool {
		return days[i].Bucket < days[j].Bucket
	})

	// The curve starts at zero equity, so an opening loss is already a drawdown.
	var cumulative, peak float64
	pnls := make([]float64, 0, len(days))
	for i, day := range days {
		pnls = append(pnls, day.PnL)
		if i == 0 || day.PnL > insights.BestDayPnL {
			insights.BestDay, insights.BestDayPnL = day.Bucket, day.PnL
		}
		if i == 0 || day.PnL < insights.WorstDayPnL {
			insights.WorstDay, insights.WorstDayPnL = day.Bucket, day.PnL
		}

		cumulative += day.PnL
		if cumulative > peak {
			peak = cumulative
		}
		drawdown := peak - cumulative
		if drawdown > insights.MaxDrawdown {
			insights.MaxDrawdown = drawdown
		}
		insights.EquityCurve = append(insights.EquityCurve, domain.EquityPoint{
			Bucket:     day.Bucket,
			Cumulative: round(cumulative, 8),
			Drawdown:   round(drawdown, 8),
		})
	}
	insights.MaxDrawdown = round(insights.MaxDrawdown, 8)

	if median, err := stats.Median(pnls); err == nil {
		insights.DailyPnLMedian = round(median, 8)
	}
	if len(pnls) >= 2 {
		if stdev, err := stats.StandardDeviationSample(pnls); err == nil && !math.IsNaN(stdev) {
			insights.DailyPnLStdDev = round(stdev, 8)
		}
	}
	return insights
}

// BuildSnapshot runs the whole pipeline for one bot: attribution, daily
// aggregation, summary and insights.
func BuildSnapshot(bot domain.Bot, trades []domain.ClosedTrade, ledger []domain.LedgerEntry, at time.Time) domain.Snapshot {
	attributed := Attribute(bot, trades)
	daily := AggregateDaily(bot, trades, ledger)
	return domain.Snapshot{
		Bot:        bot,
		Daily:      daily,
		Summary:    Summarize(attributed),
		Insights:   Analyze(attributed, daily),
		TradeCount: len(attributed),
		ComputedAt: at,
	}
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
