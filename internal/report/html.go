package report

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ferrous-data/condition.report/internal/aggregate"
	"github.com/ferrous-data/condition.report/internal/units"
)

// maxChartPoints caps the speed trace series so long windows stay
// renderable in a browser.
const maxChartPoints = 2000

// topChannelCount bounds the channel bar chart.
const topChannelCount = 20

// RenderHTML writes an HTML page with the car's speed trace and its
// largest channel maxima.
func RenderHTML(path, unit, car string, sum *aggregate.Summary) error {
	page := components.NewPage()
	page.AddCharts(speedLine(unit, car, sum), channelBar(unit, car, sum))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("render chart page: %w", err)
	}

	return nil
}

func speedLine(unit, car string, sum *aggregate.Summary) *charts.Line {
	trace := downsample(sum.Trace, maxChartPoints)

	x := make([]string, 0, len(trace))
	y := make([]opts.LineData, 0, len(trace))
	for _, pt := range trace {
		x = append(x, pt.T.Format(units.TimeLayout))
		y = append(y, opts.LineData{Value: pt.V})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s car %s speed", unit, car),
			Subtitle: fmt.Sprintf("%d of %d frames shown", len(trace), len(sum.Trace)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).AddSeries("speed", y)

	return line
}

func channelBar(unit, car string, sum *aggregate.Summary) *charts.Bar {
	type labeled struct {
		label string
		value float64
	}

	var numeric []labeled
	for i, v := range sum.Values {
		if v.IsEvent() {
			continue
		}
		numeric = append(numeric, labeled{label: sum.Labels[i], value: v.Number})
	}
	sort.Slice(numeric, func(a, b int) bool {
		if numeric[a].value != numeric[b].value {
			return numeric[a].value > numeric[b].value
		}
		return numeric[a].label < numeric[b].label
	})
	if len(numeric) > topChannelCount {
		numeric = numeric[:topChannelCount]
	}

	x := make([]string, 0, len(numeric))
	y := make([]opts.BarData, 0, len(numeric))
	for _, ch := range numeric {
		x = append(x, ch.label)
		y = append(y, opts.BarData{Value: ch.value})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s car %s top channels", unit, car)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Rotate: 45}}),
	)
	bar.SetXAxis(x).
		AddSeries("max", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	return bar
}

// downsample keeps every strideth point so the series stays under max.
func downsample(trace []aggregate.SpeedPoint, max int) []aggregate.SpeedPoint {
	if len(trace) <= max {
		return trace
	}
	stride := int(math.Ceil(float64(len(trace)) / float64(max)))
	out := make([]aggregate.SpeedPoint, 0, len(trace)/stride+1)
	for i := 0; i < len(trace); i += stride {
		out = append(out, trace[i])
	}
	return out
}
