package measurement

import (
	"math"
	"time"
)

// outlierSigmas is the distance from the mean, in standard deviations, beyond
// which a value is an outlier.
const outlierSigmas = 2

// Window is an inclusive time range. A nil bound leaves that side open.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// NewWindow builds a Window with both bounds converted to UTC.
func NewWindow(start, end *time.Time) Window {
	return Window{Start: utcPtr(start), End: utcPtr(end)}
}

// Empty reports whether the window can contain no instant (start after end).
// Such a window yields no measurements; it is not an error and the bounds are
// never swapped.
func (w Window) Empty() bool {
	return w.Start != nil && w.End != nil && w.Start.After(*w.End)
}

// Contains reports whether t lies in the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// Filter returns the measurements inside the window, preserving order.
func (w Window) Filter(ms []Measurement) []Measurement {
	out := make([]Measurement, 0, len(ms))
	if w.Empty() {
		return out
	}
	for _, m := range ms {
		if w.Contains(m.CreatedAt) {
			out = append(out, m)
		}
	}
	return out
}

// ComputeStats returns mean, population variance and the mean ± 2σ
// thresholds of values. An empty input gives all zeros.
func ComputeStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	// Welford's running mean stays within the range of the inputs, where a
	// plain sum overflows on large values.
	var mean, m2 float64
	for i, v := range values {
		delta := v - mean
		mean += delta / float64(i+1)
		m2 += delta * (v - mean)
	}
	variance := m2 / float64(len(values))
	stddev := math.Sqrt(variance)

	return Stats{
		Mean:           mean,
		Variance:       variance,
		UpperThreshold: mean + outlierSigmas*stddev,
		LowerThreshold: mean - outlierSigmas*stddev,
	}
}

// IsOutlier reports whether v lies strictly outside the thresholds.
func (s Stats) IsOutlier(v float64) bool {
	return v > s.UpperThreshold || v < s.LowerThreshold
}

// Analyze filters ms to w, computes statistics over what remains and flags
// every remaining measurement against them. The returned stats carry the
// window bounds.
func Analyze(ms []Measurement, w Window) (Stats, []Measurement) {
	filtered := w.Filter(ms)

	values := make([]float64, len(filtered))
	for i, m := range filtered {
		values[i] = m.Value
	}

	stats := ComputeStats(values)
	stats.StartDate = utcPtr(w.Start)
	stats.EndDate = utcPtr(w.End)

	for i := range filtered {
		outlier := stats.IsOutlier(filtered[i].Value)
		filtered[i].CreatedAt = filtered[i].CreatedAt.UTC()
		filtered[i].IsOutlier = &outlier
	}
	return stats, filtered
}

// Outliers returns the flagged measurements of an analysed set.
func Outliers(ms []Measurement) []Measurement {
	out := make([]Measurement, 0)
	for _, m := range ms {
		if m.IsOutlier != nil && *m.IsOutlier {
			out = append(out, m)
		}
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
