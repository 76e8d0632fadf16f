package api

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// chartChannelCount bounds how many channels the run chart shows.
const chartChannelCount = 30

// runChart renders a bar chart of a stored run's largest channel values.
// Route: /runs/{id}/chart
func (s *Server) runChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/runs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "chart" {
		s.writeJSONError(w, http.StatusNotFound, "Unknown resource")
		return
	}
	runID := parts[0]

	rec, err := s.db.GetRun(runID)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve run: %v", err))
		return
	}

	values, err := s.db.RunValues(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve values: %v", err))
		return
	}

	// Numeric slots only, largest first.
	numeric := values[:0:0]
	for _, v := range values {
		if v.Time == "" {
			numeric = append(numeric, v)
		}
	}
	sort.Slice(numeric, func(a, b int) bool {
		if numeric[a].Number != numeric[b].Number {
			return numeric[a].Number > numeric[b].Number
		}
		return numeric[a].Label < numeric[b].Label
	})
	if len(numeric) > chartChannelCount {
		numeric = numeric[:chartChannelCount]
	}

	x := make([]string, 0, len(numeric))
	y := make([]opts.BarData, 0, len(numeric))
	for _, v := range numeric {
		x = append(x, v.Label)
		y = append(y, opts.BarData{Value: v.Number})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s car %s", rec.Unit, rec.Car),
			Subtitle: fmt.Sprintf("run %s, %d frames, %d scan errors", rec.RunID, rec.FrameCount, rec.ErrorCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Rotate: 45}}),
	)
	bar.SetXAxis(x).AddSeries("max", y)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
