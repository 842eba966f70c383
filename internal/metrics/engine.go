// Package metrics computes calibration and reliability statistics over
// resolved forecasts. All functions here are pure: the service layer fetches
// rows from the store and hands them in.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/forecastlab/forecastd/internal/domain"
)

// Row is a resolved forecast flattened to the fields the aggregates need.
type Row struct {
	Probability float64
	Outcome     domain.Outcome
	Brier       *float64
	Topic       string
	Tags        []string
	ResolvedAt  time.Time
	Horizon     time.Time
}

// Slice granularities.
const (
	SliceDay   = "day"
	SliceWeek  = "week"
	SliceMonth = "month"
)

// Date fields a time slice can key on.
const (
	DateFieldResolved = "resolved"
	DateFieldHorizon  = "horizon"
)

// Params tunes a computation run. Zero values take documented defaults.
type Params struct {
	// Bins is the calibration bucket count, clamped to [2,50], default 10.
	Bins int
	// MinPerBin drops calibration buckets with fewer rows, default 1.
	MinPerBin int
	// GroupTopics adds a per-topic reliability table.
	GroupTopics bool
	// Slice enables time-sliced reliability: SliceDay, SliceWeek or SliceMonth.
	Slice string
	// DateField selects the timestamp slices key on, default DateFieldResolved.
	DateField string
	// MinPerSlice drops time buckets with fewer rows, default 3.
	MinPerSlice int
}

func (p Params) normalized() Params {
	if p.Bins < 2 {
		if p.Bins == 0 {
			p.Bins = 10
		} else {
			p.Bins = 2
		}
	}
	if p.Bins > 50 {
		p.Bins = 50
	}
	if p.MinPerBin < 1 {
		p.MinPerBin = 1
	}
	if p.MinPerSlice < 1 {
		p.MinPerSlice = 3
	}
	if p.DateField == "" {
		p.DateField = DateFieldResolved
	}
	return p
}

// Overall summarizes the full resolved set.
type Overall struct {
	Count    int     `json:"count"`
	MeanProb float64 `json:"meanProb"`
	BaseRate float64 `json:"baseRate"`
	AvgBrier float64 `json:"avgBrier"`
}

// CalibrationBin is one equal-width probability bucket.
type CalibrationBin struct {
	Bin     int     `json:"bin"`
	N       int     `json:"n"`
	AvgP    float64 `json:"avgP"`
	FreqYes float64 `json:"freqYes"`
}

// Reliability aggregates rows sharing a key (a methodology tag or a topic).
type Reliability struct {
	Key      string  `json:"key"`
	Count    int     `json:"count"`
	AvgProb  float64 `json:"avgProb"`
	FreqYes  float64 `json:"freqYes"`
	AvgBrier float64 `json:"avgBrier"`
}

// TimeSlice aggregates rows sharing a date bucket.
type TimeSlice struct {
	Key     string  `json:"key"`
	N       int     `json:"n"`
	AvgProb float64 `json:"avgProb"`
	FreqYes float64 `json:"freqYes"`
}

// Report is the full metrics object. Topics and Slices are nil unless the
// corresponding Params options were set.
type Report struct {
	Overall     Overall          `json:"overall"`
	Calibration []CalibrationBin `json:"calibration"`
	Tags        []Reliability    `json:"tags"`
	Topics      []Reliability    `json:"topics,omitempty"`
	Slices      []TimeSlice      `json:"timeslices,omitempty"`
}

// Compute aggregates rows into a Report. Rows whose outcome is not a definite
// yes/no are excluded from every aggregate; if nothing usable remains the
// computation fails closed with domain.ErrNoData.
func Compute(rows []Row, params Params) (Report, error) {
	params = params.normalized()

	usable := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Outcome != domain.OutcomeYes && r.Outcome != domain.OutcomeNo {
			continue
		}
		r.Probability = domain.Clamp01(r.Probability)
		if r.Brier == nil {
			r.Brier = domain.ComputeBrier(r.Probability, r.Outcome)
		}
		usable = append(usable, r)
	}
	if len(usable) == 0 {
		return Report{}, domain.ErrNoData
	}

	report := Report{
		Overall:     computeOverall(usable),
		Calibration: computeCalibration(usable, params.Bins, params.MinPerBin),
		Tags:        computeReliability(usable, func(r Row) []string { return r.Tags }),
	}
	if params.GroupTopics {
		report.Topics = computeReliability(usable, func(r Row) []string {
			if r.Topic == "" {
				return nil
			}
			return []string{r.Topic}
		})
	}
	if params.Slice != "" {
		slices, err := computeSlices(usable, params)
		if err != nil {
			return Report{}, err
		}
		report.Slices = slices
	}
	return report, nil
}

func yesValue(o domain.Outcome) float64 {
	if o == domain.OutcomeYes {
		return 1
	}
	return 0
}

func computeOverall(rows []Row) Overall {
	var sumP, sumY, sumB float64
	for _, r := range rows {
		sumP += r.Probability
		sumY += yesValue(r.Outcome)
		sumB += *r.Brier
	}
	n := float64(len(rows))
	return Overall{
		Count:    len(rows),
		MeanProb: sumP / n,
		BaseRate: sumY / n,
		AvgBrier: sumB / n,
	}
}

func computeCalibration(rows []Row, bins, minPerBin int) []CalibrationBin {
	type acc struct {
		n    int
		sumP float64
		sumY float64
	}
	buckets := make([]acc, bins)
	for _, r := range rows {
		// p=1.0 lands in the last bucket rather than overflowing.
		idx := int(math.Floor(r.Probability * float64(bins)))
		if idx >= bins {
			idx = bins - 1
		}
		buckets[idx].n++
		buckets[idx].sumP += r.Probability
		buckets[idx].sumY += yesValue(r.Outcome)
	}

	out := make([]CalibrationBin, 0, bins)
	for i, b := range buckets {
		if b.n < minPerBin {
			continue
		}
		out = append(out, CalibrationBin{
			Bin:     i,
			N:       b.n,
			AvgP:    b.sumP / float64(b.n),
			FreqYes: b.sumY / float64(b.n),
		})
	}
	return out
}

// computeReliability aggregates rows per key and sorts ascending by average
// Brier score, so the best-calibrated keys come first.
func computeReliability(rows []Row, keysOf func(Row) []string) []Reliability {
	type acc struct {
		n    int
		sumP float64
		sumY float64
		sumB float64
	}
	groups := make(map[string]*acc)
	for _, r := range rows {
		for _, key := range keysOf(r) {
			if key == "" {
				continue
			}
			g, ok := groups[key]
			if !ok {
				g = &acc{}
				groups[key] = g
			}
			g.n++
			g.sumP += r.Probability
			g.sumY += yesValue(r.Outcome)
			g.sumB += *r.Brier
		}
	}

	out := make([]Reliability, 0, len(groups))
	for key, g := range groups {
		n := float64(g.n)
		out = append(out, Reliability{
			Key:      key,
			Count:    g.n,
			AvgProb:  g.sumP / n,
			FreqYes:  g.sumY / n,
			AvgBrier: g.sumB / n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgBrier != out[j].AvgBrier {
			return out[i].AvgBrier < out[j].AvgBrier
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func computeSlices(rows []Row, params Params) ([]TimeSlice, error) {
	type acc struct {
		n    int
		sumP float64
		sumY float64
	}
	groups := make(map[string]*acc)
	for _, r := range rows {
		ts := r.ResolvedAt
		if params.DateField == DateFieldHorizon {
			ts = r.Horizon
		}
		if ts.IsZero() {
			continue
		}
		key, err := sliceKey(ts, params.Slice)
		if err != nil {
			return nil, err
		}
		g, ok := groups[key]
		if !ok {
			g = &acc{}
			groups[key] = g
		}
		g.n++
		g.sumP += r.Probability
		g.sumY += yesValue(r.Outcome)
	}

	out := make([]TimeSlice, 0, len(groups))
	for key, g := range groups {
		if g.n < params.MinPerSlice {
			continue
		}
		out = append(out, TimeSlice{
			Key:     key,
			N:       g.n,
			AvgProb: g.sumP / float64(g.n),
			FreqYes: g.sumY / float64(g.n),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// sliceKey buckets a timestamp. Weeks use ISO-8601 numbering, so a late
// December date can belong to week 1 of the following year and vice versa.
func sliceKey(ts time.Time, slice string) (string, error) {
	switch slice {
	case SliceDay:
		return ts.Format("2006-01-02"), nil
	case SliceMonth:
		return ts.Format("2006-01"), nil
	case SliceWeek:
		year, week := ts.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	default:
		return "", fmt.Errorf("metrics: unknown slice granularity %q", slice)
	}
}
