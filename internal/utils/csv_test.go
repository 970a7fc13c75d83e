package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"botPerformance/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDailyMetricsCSV(t *testing.T) {
	metrics := []domain.DailyMetric{
		{Bucket: "2025-01-02", Date: "02-01", PnL: 10, ROI: 1, ROE: 10},
		{Bucket: "2025-01-03", Date: "03-01", PnL: -2.5, ROI: -0.3333, ROE: 0.95},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDailyMetricsCSV(&buf, metrics))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "bucket,date,pnl,roi,roe", lines[0])
	assert.Equal(t, "2025-01-02,02-01,10,1,10", lines[1])
	assert.Equal(t, "2025-01-03,03-01,-2.5,-0.3333,0.95", lines[2])
}

func TestWriteDailyMetricsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "bot-1.csv")

	require.NoError(t, WriteDailyMetricsToFile(nil, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bucket,date,pnl,roi,roe", strings.TrimSpace(string(data)))
}
