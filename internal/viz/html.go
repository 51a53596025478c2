package viz

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/mat"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// NewHeatMapChart builds an echarts heatmap of beliefs. Row 0 is at the top.
func NewHeatMapChart(beliefs mat.Matrix, title, subtitle string) *charts.HeatMap {
	rows, cols := beliefs.Dims()

	xs := make([]string, cols)
	for j := range xs {
		xs[j] = strconv.Itoa(j)
	}
	ys := make([]string, rows)
	for i := range ys {
		ys[i] = strconv.Itoa(rows - 1 - i)
	}

	data := make([]opts.HeatMapData, 0, rows*cols)
	peak := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := beliefs.At(i, j)
			if v > peak {
				peak = v
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, rows - 1 - i, v}})
		}
	}
	if peak == 0 {
		peak = 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "column", Data: xs}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "row", Data: ys}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(peak),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(xs).AddSeries("belief", data)
	return hm
}

// RenderHeatMapHTML writes a standalone HTML page with the heatmap.
func RenderHeatMapHTML(w io.Writer, beliefs mat.Matrix, title, subtitle string) error {
	if err := NewHeatMapChart(beliefs, title, subtitle).Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
