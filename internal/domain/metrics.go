package domain

import "time"

// DailyMetric is one reporting-day row of a bot's performance.
type DailyMetric struct {
	Bucket string  `json:"bucket"` // YYYY-MM-DD in the reporting timezone
	Date   string  `json:"date"`   // DD-MM display label
	PnL    float64 `json:"pnl"`
	ROI    float64 `json:"roi"`
	ROE    float64 `json:"roe"`
}

// Summary holds the scalar PnL figures shown next to a bot, formatted to 2 decimals.
type Summary struct {
	TotalPnL   string `json:"totalPnl"`
	AveragePnL string `json:"averagePnl"`
}

// EquityPoint is one point of the cumulative daily PnL curve.
type EquityPoint struct {
	Bucket     string  `json:"bucket"`
	Cumulative float64 `json:"cumulative"`
	Drawdown   float64 `json:"drawdown"`
}

// Insights are the secondary statistics derived from a bot's trades and daily series.
type Insights struct {
	TotalTrades    int           `json:"totalTrades"`
	WinningTrades  int           `json:"winningTrades"`
	LosingTrades   int           `json:"losingTrades"`
	WinRate        float64       `json:"winRate"`
	BestDay        string        `json:"bestDay,omitempty"`
	BestDayPnL     float64       `json:"bestDayPnl"`
	WorstDay       string        `json:"worstDay,omitempty"`
	WorstDayPnL    float64       `json:"worstDayPnl"`
	MaxDrawdown    float64       `json:"maxDrawdown"` // Quote currency, measured on the cumulative daily PnL
	DailyPnLStdDev float64       `json:"dailyPnlStdDev"`
	DailyPnLMedian float64       `json:"dailyPnlMedian"`
	EquityCurve    []EquityPoint `json:"equityCurve"`
}

// Snapshot is everything computed for one bot in one poll cycle.
type Snapshot struct {
	Bot        Bot           `json:"bot"`
	Daily      []DailyMetric `json:"daily"`
	Summary    Summary       `json:"summary"`
	Insights   Insights      `json:"insights"`
	TradeCount int           `json:"tradeCount"`
	ComputedAt time.Time     `json:"computedAt"`
	CycleID    string        `json:"cycleId,omitempty"`
}
