package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/dvsim/internal/dvs"
)

const (
	onHex  = "#2ea043"
	offHex = "#cf222e"
)

// WriteChart renders ev as a standalone HTML page with a scatter of ON and
// OFF events over the sensor plane and a stacked bar chart of events per
// time bin. bins <= 0 selects DefaultBins.
func WriteChart(w io.Writer, ev *dvs.Events, width, height, bins int) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	page := components.NewPage()
	page.SetPageTitle("DVS events")
	page.AddCharts(planeChart(ev, width, height), binChart(ev, bins))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func planeChart(ev *dvs.Events, width, height int) *charts.Scatter {
	on := make([]opts.ScatterData, 0, ev.Len())
	off := make([]opts.ScatterData, 0, ev.Len())
	for i := 0; i < ev.Len(); i++ {
		pt := opts.ScatterData{Value: []interface{}{ev.XPositions[i], ev.YPositions[i], ev.Timestamps[i]}}
		if ev.Polarities[i] {
			on = append(on, pt)
		} else {
			off = append(off, pt)
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "DVS events", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Sensor plane", Subtitle: fmt.Sprintf("%dx%d events=%d", width, height, ev.Len())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: 0, Max: width, Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: 0, Max: height, Name: "y", NameLocation: "middle", NameGap: 30, Inverse: opts.Bool(true)}),
	)
	scatter.AddSeries("ON", on,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: onHex}),
	)
	scatter.AddSeries("OFF", off,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: offHex}),
	)
	return scatter
}

func binChart(ev *dvs.Events, bins int) *charts.Bar {
	origin, edges, on, off := TimeBins(ev, bins)

	labels := make([]string, len(on))
	onData := make([]opts.BarData, len(on))
	offData := make([]opts.BarData, len(off))
	for i := range on {
		labels[i] = strconv.FormatUint(origin+uint64(edges[i]), 10)
		onData[i] = opts.BarData{Value: on[i]}
		offData[i] = opts.BarData{Value: off[i]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Events over time", Subtitle: "bin start (µs)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).
		AddSeries("ON", onData,
			charts.WithBarChartOpts(opts.BarChart{Stack: "events"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: onHex}),
		).
		AddSeries("OFF", offData,
			charts.WithBarChartOpts(opts.BarChart{Stack: "events"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: offHex}),
		)
	return bar
}
