package metrics

// Chart is the calibration curve transposed into parallel arrays, the shape
// charting frontends consume directly. All four slices have equal length and
// share ordering with Report.Calibration.
type Chart struct {
	Bins    []int     `json:"bins"`
	N       []int     `json:"n"`
	AvgP    []float64 `json:"avgP"`
	FreqYes []float64 `json:"freqYes"`
}

// ToChart transposes a Report's calibration buckets. Pure function.
func ToChart(r Report) Chart {
	c := Chart{
		Bins:    make([]int, 0, len(r.Calibration)),
		N:       make([]int, 0, len(r.Calibration)),
		AvgP:    make([]float64, 0, len(r.Calibration)),
		FreqYes: make([]float64, 0, len(r.Calibration)),
	}
	for _, b := range r.Calibration {
		c.Bins = append(c.Bins, b.Bin)
		c.N = append(c.N, b.N)
		c.AvgP = append(c.AvgP, b.AvgP)
		c.FreqYes = append(c.FreqYes, b.FreqYes)
	}
	return c
}
