// Package report collects per-stage wall-clock timings of a pipeline run
// and renders them, with the run summary, as a standalone HTML chart.
package report

import (
	"fmt"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// StageTime is one timed pipeline stage.
type StageTime struct {
	Name     string
	Duration time.Duration
}

// Timer accumulates stage timings in execution order.
type Timer struct {
	stages []StageTime
}

// NewTimer returns an empty timer.
func NewTimer() *Timer { return &Timer{} }

// Stage starts timing a stage and returns the function that stops it.
func (t *Timer) Stage(name string) func() {
	start := time.Now()
	return func() {
		t.stages = append(t.stages, StageTime{Name: name, Duration: time.Since(start)})
	}
}

// Record appends an externally measured stage.
func (t *Timer) Record(name string, d time.Duration) {
	t.stages = append(t.stages, StageTime{Name: name, Duration: d})
}

// Stages returns the recorded stages in order.
func (t *Timer) Stages() []StageTime { return t.stages }

// Total returns the summed stage durations.
func (t *Timer) Total() time.Duration {
	var sum time.Duration
	for _, s := range t.stages {
		sum += s.Duration
	}
	return sum
}

// Summary carries the run facts shown under the chart title.
type Summary struct {
	Sector string
	Roads  int
	Seeds  int
	Unused int
}

// WriteHTML renders the stage timings as a bar chart HTML file.
func WriteHTML(path string, stages []StageTime, sum Summary) error {
	names := make([]string, len(stages))
	data := make([]opts.BarData, len(stages))
	for i, s := range stages {
		names[i] = s.Name
		data[i] = opts.BarData{Value: s.Duration.Seconds()}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "AMREL run",
			Width:     "900px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "AMREL stage timings",
			Subtitle: fmt.Sprintf("sector=%s roads=%d seeds=%d unused=%d",
				sum.Sector, sum.Roads, sum.Seeds, sum.Unused),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "seconds"}),
	)
	bar.SetXAxis(names).AddSeries("duration", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := bar.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}
