// Package charts computes SVG geometry for the dashboard's three chart
// widgets. It does no drawing itself: templates range over the returned
// shapes and emit <rect>, <path> and <text> elements.
//
// All coordinates are in SVG user units with the origin at the top-left
// corner of the viewBox described by Frame.
package charts

import (
	"math"
	"strconv"
	"strings"
)

// Datum is one labelled value of a series.
type Datum struct {
	Label string
	Value float64
}

// Frame is the viewBox size and the margins around the plot area.
type Frame struct {
	Width, Height            float64
	Left, Right, Top, Bottom float64
}

// PlotW is the width of the plot area.
func (f Frame) PlotW() float64 { return math.Max(0, f.Width-f.Left-f.Right) }

// PlotH is the height of the plot area.
func (f Frame) PlotH() float64 { return math.Max(0, f.Height-f.Top-f.Bottom) }

// PlotRight is the x coordinate of the plot area's right edge.
func (f Frame) PlotRight() float64 { return f.Left + f.PlotW() }

// PlotBottom is the y coordinate of the plot area's bottom edge.
func (f Frame) PlotBottom() float64 { return f.Top + f.PlotH() }

// ViewBox renders the SVG viewBox attribute value.
func (f Frame) ViewBox() string {
	return "0 0 " + num(f.Width) + " " + num(f.Height)
}

// Tick is one axis tick; Pos is along the axis the tick belongs to.
type Tick struct {
	Value float64
	Pos   float64
	Label string
}

// Bar is a rectangle plus where its category label and value label go.
type Bar struct {
	Label     string
	Value     float64
	ValueText string

	X, Y, W, H     float64
	LabelX, LabelY float64
	ValueX, ValueY float64
}

// BarChart is the geometry for both bar layouts.
type BarChart struct {
	Frame
	Bars  []Bar
	Ticks []Tick
	Max   float64 // top of the value axis domain
	Empty bool
}

// LinePoint is one vertex of a line series.
type LinePoint struct {
	Label     string
	Value     float64
	ValueText string
	X, Y      float64
}

// LineChart is the geometry for a single-series line chart.
type LineChart struct {
	Frame
	Points []LinePoint
	Path   string
	Ticks  []Tick // value axis (y)
	Max    float64
	Empty  bool
}

/*─────────────────────────────────────────────────────────────────────────────*
| Layouts                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// HorizontalBars lays out one bar per datum, top to bottom, growing right.
// The value domain is [0, max+1] rounded up to a tick boundary, so the
// longest bar never touches the edge. barSize caps the bar thickness.
func HorizontalBars(data []Datum, f Frame, barSize float64) BarChart {
	out := BarChart{Frame: f, Empty: len(data) == 0}

	ticks, top := niceTicks(maxValue(data)+1, 5, true)
	out.Max = top
	for _, v := range ticks {
		out.Ticks = append(out.Ticks, Tick{
			Value: v,
			Pos:   round2(f.Left + scale(v, top, f.PlotW())),
			Label: FormatValue(v),
		})
	}
	if out.Empty {
		return out
	}

	band := f.PlotH() / float64(len(data))
	h := math.Min(barSize, band*0.8)
	for i, d := range data {
		y := f.Top + float64(i)*band + (band-h)/2
		w := scale(d.Value, top, f.PlotW())
		mid := y + h/2
		out.Bars = append(out.Bars, Bar{
			Label:     d.Label,
			Value:     d.Value,
			ValueText: FormatValue(d.Value),
			X:         round2(f.Left),
			Y:         round2(y),
			W:         round2(w),
			H:         round2(h),
			LabelX:    round2(f.Left - 8),
			LabelY:    round2(mid),
			ValueX:    round2(f.Left + w + 6),
			ValueY:    round2(mid),
		})
	}
	return out
}

// Columns lays out one vertical bar per datum, left to right, with value
// labels above each bar. Ticks run up the y axis and double as grid lines.
func Columns(data []Datum, f Frame) BarChart {
	out := BarChart{Frame: f, Empty: len(data) == 0}

	ticks, top := niceTicks(maxValue(data), 5, true)
	out.Max = top
	for _, v := range ticks {
		out.Ticks = append(out.Ticks, Tick{
			Value: v,
			Pos:   round2(f.PlotBottom() - scale(v, top, f.PlotH())),
			Label: FormatValue(v),
		})
	}
	if out.Empty {
		return out
	}

	band := f.PlotW() / float64(len(data))
	w := band * 0.7
	for i, d := range data {
		x := f.Left + float64(i)*band + (band-w)/2
		h := scale(d.Value, top, f.PlotH())
		y := f.PlotBottom() - h
		mid := x + w/2
		out.Bars = append(out.Bars, Bar{
			Label:     d.Label,
			Value:     d.Value,
			ValueText: FormatValue(d.Value),
			X:         round2(x),
			Y:         round2(y),
			W:         round2(w),
			H:         round2(h),
			LabelX:    round2(mid),
			LabelY:    round2(f.PlotBottom() + 16),
			ValueX:    round2(mid),
			ValueY:    round2(y - 6),
		})
	}
	return out
}

// Line places one point per datum, evenly spaced, and joins them with
// straight segments. The y axis uses integer ticks only.
func Line(data []Datum, f Frame) LineChart {
	out := LineChart{Frame: f, Empty: len(data) == 0}

	ticks, top := niceTicks(maxValue(data), 5, true)
	out.Max = top
	for _, v := range ticks {
		out.Ticks = append(out.Ticks, Tick{
			Value: v,
			Pos:   round2(f.PlotBottom() - scale(v, top, f.PlotH())),
			Label: FormatValue(v),
		})
	}
	if out.Empty {
		return out
	}

	step := 0.0
	if len(data) > 1 {
		step = f.PlotW() / float64(len(data)-1)
	}

	var b strings.Builder
	for i, d := range data {
		x := f.Left + float64(i)*step
		if len(data) == 1 {
			x = f.Left + f.PlotW()/2
		}
		y := f.PlotBottom() - scale(d.Value, top, f.PlotH())
		p := LinePoint{
			Label:     d.Label,
			Value:     d.Value,
			ValueText: FormatValue(d.Value),
			X:         round2(x),
			Y:         round2(y),
		}
		out.Points = append(out.Points, p)

		if i == 0 {
			b.WriteString("M")
		} else {
			b.WriteString(" L")
		}
		b.WriteString(num(p.X))
		b.WriteString(" ")
		b.WriteString(num(p.Y))
	}
	out.Path = b.String()
	return out
}

/*─────────────────────────────────────────────────────────────────────────────*
| helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// niceTicks returns evenly spaced tick values from 0 up to a rounded top
// that is >= max, using steps of 1, 2 or 5 times a power of ten.
func niceTicks(max float64, count int, integer bool) ([]float64, float64) {
	if max <= 0 || math.IsNaN(max) || math.IsInf(max, 0) {
		max = 1
	}
	if count < 1 {
		count = 1
	}

	raw := max / float64(count)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	var step float64
	switch norm := raw / mag; {
	case norm <= 1:
		step = mag
	case norm <= 2:
		step = 2 * mag
	case norm <= 5:
		step = 5 * mag
	default:
		step = 10 * mag
	}
	if integer && step < 1 {
		step = 1
	}

	top := math.Ceil(max/step) * step
	var ticks []float64
	for v := 0.0; v <= top+step/2; v += step {
		ticks = append(ticks, round2(v))
	}
	return ticks, top
}

func maxValue(data []Datum) float64 {
	m := 0.0
	for _, d := range data {
		if d.Value > m {
			m = d.Value
		}
	}
	return m
}

// scale maps v in [0, top] onto [0, length]; negatives clamp to 0.
func scale(v, top, length float64) float64 {
	if top <= 0 || v <= 0 {
		return 0
	}
	if v > top {
		v = top
	}
	return v / top * length
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatValue prints whole numbers without decimals and others with one.
func FormatValue(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
