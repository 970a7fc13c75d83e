package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"botPerformance/internal/domain"

	"github.com/gocarina/gocsv"
)

type dailyMetricRow struct {
	Bucket string  `csv:"bucket"`
	Date   string  `csv:"date"`
	PnL    float64 `csv:"pnl"`
	ROI    float64 `csv:"roi"`
	ROE    float64 `csv:"roe"`
}

// WriteDailyMetricsCSV writes metrics as CSV with a header row.
func WriteDailyMetricsCSV(w io.Writer, metrics []domain.DailyMetric) error {
	rows := make([]*dailyMetricRow, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, &dailyMetricRow{Bucket: m.Bucket, Date: m.Date, PnL: m.PnL, ROI: m.ROI, ROE: m.ROE})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write daily metrics csv: %w", err)
	}
	return nil
}

// WriteDailyMetricsToFile writes metrics to filename, creating parent directories.
func WriteDailyMetricsToFile(metrics []domain.DailyMetric, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteDailyMetricsCSV(file, metrics)
}
