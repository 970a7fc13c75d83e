// Package pnl attributes closed trades and ledger entries to a bot and turns
// them into day-bucketed PnL, ROI and ROE figures. Every function is a pure
// computation over its arguments.
package pnl

import (
	"strings"
	"time"
)

// ReportingOffset is the fixed UTC offset (UTC+7) that defines a reporting day.
const ReportingOffset = 7 * time.Hour

const bucketLayout = "2006-01-02"

// DayBucket identifies one reporting day.
type DayBucket struct {
	Key   string    // YYYY-MM-DD of the reporting day
	Start time.Time // UTC instant at which the reporting day begins
}

// BucketOf returns the reporting day containing t. The instant is shifted by
// the offset, its UTC calendar day is read, and that day's midnight is shifted
// back, so the result does not depend on the process's local timezone.
func BucketOf(t time.Time) DayBucket {
	shifted := t.UTC().Add(ReportingOffset)
	y, m, d := shifted.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	start := midnight.Add(-ReportingOffset)
	return DayBucket{
		Key:   start.Add(ReportingOffset).Format(bucketLayout),
		Start: start,
	}
}

// DisplayLabel converts a YYYY-MM-DD bucket key into its DD-MM label.
// Keys that are not in that form are returned unchanged.
func DisplayLabel(key string) string {
	parts := strings.Split(key, "-")
	if len(parts) != 3 {
		return key
	}
	return parts[2] + "-" + parts[1]
}
