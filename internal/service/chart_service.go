package service

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/jengzang/roadsurvey-backend-go/internal/models"
	"github.com/jengzang/roadsurvey-backend-go/internal/stats"
)

// RenderLaneChart writes an HTML page with the per-lane share of segments within
// thresholds and the mean roughness of each lane
func (s *LaneService) RenderLaneChart(w io.Writer) error {
	snap := s.session.Snapshot()

	x := make([]string, 0, models.LaneCount)
	within := make([]opts.BarData, 0, models.LaneCount)
	roughness := make([]opts.BarData, 0, models.LaneCount)
	for i, st := range snap.LaneStats {
		x = append(x, st.Prefix)
		within = append(within, opts.BarData{
			Value: st.PercentageWithinThreshold,
			Name:  fmt.Sprintf("%d/%d", st.SegmentsWithinThreshold, st.TotalSegments),
		})
		mean := stats.Summarize(stats.MetricValues(snap.Polylines[i], func(m models.MetricSet) *float64 {
			return m.RoughnessBI
		})).Mean
		roughness = append(roughness, opts.BarData{Value: mean})
	}

	subtitle := fmt.Sprintf("feed=%s session=%s messages=%d",
		snap.Session.Feed, snap.Session.ID, snap.Session.TotalSegmentsReceived)

	quality := charts.NewBar()
	quality.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Lane quality", Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Segments within thresholds", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%", Min: 0, Max: 100}),
	)
	quality.SetXAxis(x).
		AddSeries("within thresholds", within,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	rough := charts.NewBar()
	rough.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean roughness", Subtitle: time.Now().UTC().Format(time.RFC3339)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mm/km"}),
	)
	rough.SetXAxis(x).AddSeries("roughness", roughness)

	page := components.NewPage()
	page.AddCharts(quality, rough)
	return page.Render(w)
}
