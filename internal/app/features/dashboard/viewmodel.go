// internal/app/features/dashboard/viewmodel.go
package dashboard

import (
	"strconv"

	"github.com/dexit/dexdash/internal/app/system/charts"
	"github.com/dexit/dexdash/internal/app/system/dashload"
	"github.com/dexit/dexdash/internal/app/system/labelclean"
	"github.com/dexit/dexdash/internal/app/system/viewdata"
)

// Chart frames in SVG user units. Templates scale them to the card width.
var (
	geographyFrame = charts.Frame{Width: 600, Height: 256, Left: 110, Right: 40, Top: 10, Bottom: 24}
	monthlyFrame   = charts.Frame{Width: 600, Height: 256, Left: 40, Right: 20, Top: 10, Bottom: 24}
	scoresFrame    = charts.Frame{Width: 1000, Height: 400, Left: 50, Right: 40, Top: 24, Bottom: 30}
)

const geographyBarSize = 25

type kpi struct {
	Label  string
	Value  string
	Failed bool
}

// panels is everything below the page header.
type panels struct {
	Greeting string
	Initials string
	KPIs     []kpi

	Geography       charts.BarChart
	GeographyFailed bool
	Monthly         charts.LineChart
	MonthlyFailed   bool
	Scores          charts.BarChart
	ScoresFailed    bool
}

type dashboardData struct {
	viewdata.BaseVM
	Loading bool
	Panels  *panels // nil while Loading
}

// buildPanels turns a settled snapshot into template data. Failed reads
// render as zero values, the same as an empty response.
func buildPanels(snap *dashload.Snapshot, name string) *panels {
	s := snap.Summary
	summaryFailed := snap.Failed(dashload.ResourceSummary)

	p := &panels{
		Greeting: name,
		Initials: viewdata.Initials(name),
		KPIs: []kpi{
			{Label: "Total Applicants", Value: strconv.FormatInt(s.Registered, 10), Failed: summaryFailed},
			{Label: "Enrolled Students", Value: strconv.FormatInt(s.Enrolled, 10), Failed: summaryFailed},
			{Label: "Average Score", Value: charts.FormatValue(s.Avg), Failed: summaryFailed},
			{Label: "Active Programs", Value: strconv.FormatInt(s.Subjects, 10), Failed: summaryFailed},
		},
		GeographyFailed: snap.Failed(dashload.ResourceStateWise),
		MonthlyFailed:   snap.Failed(dashload.ResourceMonthWise),
		ScoresFailed:    snap.Failed(dashload.ResourceScoreRanges),
	}

	states := make([]charts.Datum, 0, len(snap.StateWise))
	for _, st := range snap.StateWise {
		states = append(states, charts.Datum{Label: labelclean.Clean(st.State, "Unknown"), Value: float64(st.Total)})
	}
	p.Geography = charts.HorizontalBars(states, geographyFrame, geographyBarSize)

	months := make([]charts.Datum, 0, len(snap.MonthWise))
	for _, m := range snap.MonthWise {
		months = append(months, charts.Datum{Label: labelclean.Clean(m.Month, "?"), Value: float64(m.Count)})
	}
	p.Monthly = charts.Line(months, monthlyFrame)

	ranges := make([]charts.Datum, 0, len(snap.ScoreRanges))
	for _, sr := range snap.ScoreRanges {
		ranges = append(ranges, charts.Datum{Label: labelclean.Clean(sr.Range, "?"), Value: float64(sr.Students)})
	}
	p.Scores = charts.Columns(ranges, scoresFrame)

	return p
}
