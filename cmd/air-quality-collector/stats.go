package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/air-quality-collector/internal/common"
	"github.com/i474232898/air-quality-collector/internal/config"
	"github.com/i474232898/air-quality-collector/internal/logging"
	"github.com/i474232898/air-quality-collector/internal/report"
	"github.com/i474232898/air-quality-collector/internal/store"
	"github.com/i474232898/air-quality-collector/internal/weather"
)

func newStatsCmd() *cobra.Command {
	var (
		days      int
		cities    string
		csvPath   string
		mergedCSV string
		xlsxPath  string
		outDir    string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print descriptive statistics of stored readings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadReadOnly()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := logging.New(os.Stderr, cfg, appName)

			names := common.SplitList(cities)
			if len(names) == 0 {
				for _, c := range cfg.Cities {
					names = append(names, c.Name)
				}
			}

			db, err := store.Open(store.Options{Driver: cfg.DBDriver, DSN: cfg.DatabaseURL, MaxIdleConns: 1})
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			svc := weather.NewStatsService(store.NewSQLStore(db, log), nil)
			rep, err := svc.Describe(ctx, names, days)
			if err != nil {
				return err
			}
			log.Info("statistics computed", "days", days, "cities", names, "merged_rows", len(rep.Merged), "stats", len(rep.Stats))

			if err := writeStatsTable(cmd.OutOrStdout(), rep.Stats); err != nil {
				return err
			}
			if csvPath != "" {
				if err := writeFile(csvPath, func(w io.Writer) error { return writeStatsCSV(w, rep.Stats) }); err != nil {
					return err
				}
				log.Info("saved statistics", "path", csvPath)
			}
			if mergedCSV != "" {
				if err := writeFile(mergedCSV, func(w io.Writer) error { return writeMergedCSV(w, rep.Merged) }); err != nil {
					return err
				}
				log.Info("saved merged rows", "path", mergedCSV)
			}
			if xlsxPath != "" {
				if err := writeFile(xlsxPath, func(w io.Writer) error { return report.WriteWorkbook(w, rep.Stats, rep.Merged) }); err != nil {
					return err
				}
				log.Info("saved workbook", "path", xlsxPath)
			}
			if outDir != "" {
				paths, err := report.RenderCharts(outDir, rep.Merged)
				if err != nil {
					return err
				}
				log.Info("saved charts", "dir", outDir, "charts", len(paths))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days-back", 45, "number of most recent days to include")
	cmd.Flags().StringVar(&cities, "cities", "", "comma-separated city names (default: all configured cities)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "also write the statistics to this CSV file")
	cmd.Flags().StringVar(&mergedCSV, "merged-csv", "", "also write the hourly merged rows to this CSV file")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the statistics and a sample of merged rows to this Excel workbook")
	cmd.Flags().StringVar(&outDir, "outdir", "", "render charts as PNG files into this directory")
	return cmd
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func fmtStd(s *float64) string {
	if s == nil {
		return ""
	}
	return fmtFloat(*s)
}

var statsHeader = []string{"city", "variable", "count", "mean", "median", "mode", "std", "min", "max"}

func statRecord(s weather.Stat) []string {
	return []string{
		s.City, s.Variable, strconv.Itoa(s.Count),
		fmtFloat(s.Mean), fmtFloat(s.Median), fmtFloat(s.Mode), fmtStd(s.Std),
		fmtFloat(s.Min), fmtFloat(s.Max),
	}
}

func writeStatsTable(w io.Writer, stats []weather.Stat) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(fields []string) {
		for i, f := range fields {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, f)
		}
		fmt.Fprintln(tw)
	}
	row(statsHeader)
	for _, s := range stats {
		row(statRecord(s))
	}
	return tw.Flush()
}

func writeStatsCSV(w io.Writer, stats []weather.Stat) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(statsHeader); err != nil {
		return err
	}
	for _, s := range stats {
		if err := cw.Write(statRecord(s)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeMergedCSV(w io.Writer, rows []weather.HourlyRow) error {
	cw := csv.NewWriter(w)
	header := report.MergedHeader
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := make([]string, len(header))
		rec[0] = r.City
		rec[1] = r.Hour.Format("2006-01-02 15:04:05")
		if wr := r.Weather; wr != nil {
			rec[2], rec[3], rec[4] = fmtFloat(wr.TemperatureC), fmtFloat(wr.HumidityPct), fmtFloat(wr.WindSpeedMS)
		}
		if a := r.Air; a != nil {
			rec[5] = strconv.Itoa(a.AQI)
			for i, v := range []float64{a.PM25, a.PM10, a.CO, a.NO, a.NO2, a.O3, a.SO2} {
				rec[6+i] = fmtFloat(v)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
