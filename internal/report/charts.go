package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/i474232898/air-quality-collector/internal/weather"
)

const histBins = 30

var (
	lineVariables = []string{"temperature", "aqi"}
	boxVariables  = []string{"aqi", "temperature", "humidity"}
	histVariables = []string{"aqi", "temperature"}
)

// RenderCharts writes PNG charts of the merged rows into dir, creating it if
// needed, and returns the paths written. Charts without data are skipped.
func RenderCharts(dir string, rows []weather.HourlyRow) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}

	var written []string
	save := func(p *plot.Plot, w, h vg.Length, name string) error {
		path := filepath.Join(dir, name)
		if err := p.Save(w, h, path); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	for _, v := range lineVariables {
		p, err := linePlot(rows, v)
		if err != nil {
			return written, err
		}
		if p != nil {
			if err := save(p, 10*vg.Inch, 4*vg.Inch, "line_"+v+".png"); err != nil {
				return written, err
			}
		}
	}
	for _, v := range boxVariables {
		p, err := boxPlot(rows, v)
		if err != nil {
			return written, err
		}
		if p != nil {
			if err := save(p, 6*vg.Inch, 4*vg.Inch, "box_"+v+"_by_city.png"); err != nil {
				return written, err
			}
		}
	}
	for _, v := range histVariables {
		p, err := histPlot(rows, v)
		if err != nil {
			return written, err
		}
		if p != nil {
			if err := save(p, 8*vg.Inch, 4*vg.Inch, "hist_"+v+"_with_stats.png"); err != nil {
				return written, err
			}
		}
	}
	if len(rows) > 0 {
		if err := save(heatmapPlot(rows), 6*vg.Inch, 5*vg.Inch, "heatmap_corr.png"); err != nil {
			return written, err
		}
	}
	return written, nil
}

// citySeries groups the values of one variable by city, in order of first
// appearance.
type citySeries struct {
	city string
	pts  plotter.XYs
}

func seriesByCity(rows []weather.HourlyRow, variable string) []citySeries {
	var out []citySeries
	idx := make(map[string]int)
	for _, r := range rows {
		v, ok := r.Value(variable)
		if !ok {
			continue
		}
		i, seen := idx[r.City]
		if !seen {
			i = len(out)
			idx[r.City] = i
			out = append(out, citySeries{city: r.City})
		}
		out[i].pts = append(out[i].pts, plotter.XY{X: float64(r.Hour.Unix()), Y: v})
	}
	return out
}

func yValues(pts plotter.XYs) plotter.Values {
	vs := make(plotter.Values, len(pts))
	for i, p := range pts {
		vs[i] = p.Y
	}
	return vs
}

func linePlot(rows []weather.HourlyRow, variable string) (*plot.Plot, error) {
	series := seriesByCity(rows, variable)
	if len(series) == 0 {
		return nil, nil
	}

	p := plot.New()
	p.Title.Text = variable + " over time"
	p.X.Label.Text = "Time"
	p.Y.Label.Text = variable
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02 15h"}
	p.X.Tick.Label.Rotation = math.Pi / 9
	p.Add(plotter.NewGrid())

	for i, s := range series {
		l, err := plotter.NewLine(s.pts)
		if err != nil {
			return nil, err
		}
		l.Color = plotutil.Color(i)
		p.Add(l)
		p.Legend.Add(s.city, l)
	}
	return p, nil
}

func boxPlot(rows []weather.HourlyRow, variable string) (*plot.Plot, error) {
	series := seriesByCity(rows, variable)
	if len(series) == 0 {
		return nil, nil
	}

	p := plot.New()
	p.Title.Text = "Distribution of " + variable + " by city"
	p.Y.Label.Text = variable

	names := make([]string, len(series))
	for i, s := range series {
		b, err := plotter.NewBoxPlot(vg.Points(40), float64(i), yValues(s.pts))
		if err != nil {
			return nil, err
		}
		p.Add(b)
		names[i] = s.city
	}
	p.NominalX(names...)
	return p, nil
}

// histPlot overlays one histogram per city and marks each city's mean with a
// dashed line and its median with a dotted one.
func histPlot(rows []weather.HourlyRow, variable string) (*plot.Plot, error) {
	series := seriesByCity(rows, variable)
	if len(series) == 0 {
		return nil, nil
	}

	p := plot.New()
	p.Title.Text = "Histogram of " + variable + " (mean --, median ..)"
	p.X.Label.Text = variable
	p.Y.Label.Text = "Frequency"

	type marker struct {
		x     float64
		color color.Color
		dash  []vg.Length
	}
	var markers []marker
	top := 0.0

	for i, s := range series {
		vs := yValues(s.pts)
		h, err := plotter.NewHist(vs, histBins)
		if err != nil {
			return nil, err
		}
		c := color.NRGBAModel.Convert(plotutil.Color(i)).(color.NRGBA)
		c.A = 128
		h.FillColor = c
		p.Add(h)
		p.Legend.Add(s.city, h)

		for _, b := range h.Bins {
			top = math.Max(top, b.Weight)
		}
		markers = append(markers,
			marker{x: stat.Mean(vs, nil), color: plotutil.Color(i), dash: []vg.Length{vg.Points(6), vg.Points(3)}},
			marker{x: median(vs), color: plotutil.Color(i), dash: []vg.Length{vg.Points(1), vg.Points(3)}},
		)
	}

	for _, m := range markers {
		l, err := plotter.NewLine(plotter.XYs{{X: m.x, Y: 0}, {X: m.x, Y: top}})
		if err != nil {
			return nil, err
		}
		l.Color = m.color
		l.Dashes = m.dash
		p.Add(l)
	}
	return p, nil
}

func median(vs []float64) float64 {
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// corrGrid adapts a correlation matrix to plotter.GridXYZ. Row 0 is drawn at
// the top, matching the column order on the x axis.
type corrGrid [][]float64

func (g corrGrid) Dims() (c, r int)   { return len(g), len(g) }
func (g corrGrid) Z(c, r int) float64 { return g[len(g)-1-r][c] }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

func heatmapPlot(rows []weather.HourlyRow) *plot.Plot {
	m := weather.Correlations(rows)

	p := plot.New()
	p.Title.Text = "Correlation heatmap"

	hm := plotter.NewHeatMap(corrGrid(m), palette.Heat(21, 1))
	// Fixed range so a matrix of NaNs and ones still maps to the palette.
	hm.Min, hm.Max = -1, 1
	hm.NaN = color.Gray{Y: 220}
	p.Add(hm)

	labels := weather.Variables
	p.NominalX(labels...)
	reversed := make([]string, len(labels))
	for i, l := range labels {
		reversed[len(labels)-1-i] = l
	}
	p.NominalY(reversed...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	return p
}
