package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/i474232898/air-quality-collector/internal/weather"
)

// SampleRows caps how many merged rows go into the workbook's sample sheet.
const SampleRows = 5000

// MergedHeader names the columns of an exported merged row.
var MergedHeader = []string{"city", "timestamp", "temperature", "humidity", "wind_speed", "aqi", "pm2_5", "pm10", "co", "no", "no2", "o3", "so2"}

var statsHeader = []any{"city", "variable", "count", "mean", "median", "mode", "std", "min", "max"}

// WriteWorkbook writes an xlsx workbook with a "stats" sheet and a "sample"
// sheet holding the first SampleRows merged rows.
func WriteWorkbook(w io.Writer, stats []weather.Stat, rows []weather.HourlyRow) error {
	return writeWorkbook(w, stats, rows, SampleRows)
}

func writeWorkbook(w io.Writer, stats []weather.Stat, rows []weather.HourlyRow, limit int) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "stats"); err != nil {
		return err
	}
	if err := setRow(f, "stats", 1, statsHeader); err != nil {
		return err
	}
	for i, s := range stats {
		var std any
		if s.Std != nil {
			std = *s.Std
		}
		rec := []any{s.City, s.Variable, s.Count, s.Mean, s.Median, s.Mode, std, s.Min, s.Max}
		if err := setRow(f, "stats", i+2, rec); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet("sample"); err != nil {
		return err
	}
	header := make([]any, len(MergedHeader))
	for i, h := range MergedHeader {
		header[i] = h
	}
	if err := setRow(f, "sample", 1, header); err != nil {
		return err
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	for i, r := range rows {
		rec := []any{r.City, r.Hour.Format("2006-01-02 15:04:05")}
		for _, v := range MergedHeader[2:] {
			if x, ok := r.Value(v); ok {
				rec = append(rec, x)
			} else {
				rec = append(rec, nil)
			}
		}
		if err := setRow(f, "sample", i+2, rec); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
