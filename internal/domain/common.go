package domain

import "strings"

// Side represents the direction of the order that closed a position.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// ParseSide normalizes exchange spellings ("BUY", "buy", "Buy") to a Side.
// Unknown values are returned unchanged.
func ParseSide(s string) Side {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy
	case "sell":
		return SideSell
	default:
		return Side(s)
	}
}

// BotStatus is the lifecycle label reported by the backend for a bot.
type BotStatus string

const (
	BotIdle     BotStatus = "Idle"
	BotRunning  BotStatus = "Running"
	BotStopping BotStatus = "Stopping"
	BotStopped  BotStatus = "Stopped"
	BotError    BotStatus = "Error"
)

// ParseBotStatus maps a backend status string onto the known lifecycle labels.
func ParseBotStatus(s string) BotStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle", "":
		return BotIdle
	case "running":
		return BotRunning
	case "stopping":
		return BotStopping
	case "stopped":
		return BotStopped
	case "error":
		return BotError
	default:
		return BotStatus(s)
	}
}
