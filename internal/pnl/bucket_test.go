package pnl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketOf(t *testing.T) {
	tests := []struct {
		name      string
		at        time.Time
		wantKey   string
		wantStart string
	}{
		{
			name:      "last second of the reporting day",
			at:        mustTime("2025-01-01T16:59:59Z"),
			wantKey:   "2025-01-01",
			wantStart: "2024-12-31T17:00:00Z",
		},
		{
			name:      "first second of the next reporting day",
			at:        mustTime("2025-01-01T17:00:00Z"),
			wantKey:   "2025-01-02",
			wantStart: "2025-01-01T17:00:00Z",
		},
		{
			name:      "utc midnight is 07:00 local",
			at:        mustTime("2025-01-02T00:00:00Z"),
			wantKey:   "2025-01-02",
			wantStart: "2025-01-01T17:00:00Z",
		},
		{
			name:      "year rollover",
			at:        mustTime("2024-12-31T18:30:00Z"),
			wantKey:   "2025-01-01",
			wantStart: "2024-12-31T17:00:00Z",
		},
		{
			name:      "caller timezone is ignored",
			at:        mustTime("2025-01-01T17:00:00Z").In(time.FixedZone("EST", -5*3600)),
			wantKey:   "2025-01-02",
			wantStart: "2025-01-01T17:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BucketOf(tt.at)
			assert.Equal(t, tt.wantKey, got.Key)
			assert.Equal(t, mustTime(tt.wantStart), got.Start)
		})
	}
}

func TestDisplayLabel(t *testing.T) {
	assert.Equal(t, "02-01", DisplayLabel("2025-01-02"))
	assert.Equal(t, "31-12", DisplayLabel("2024-12-31"))
	assert.Equal(t, "garbage", DisplayLabel("garbage"))
}
