package metrics

import (
	"encoding/csv"
	"strconv"
	"strings"
)

// ToCSV renders a Report as flat sectioned CSV rows. Each row starts with a
// section discriminator so the file stays a single table:
//
//	section,key,n,avg_prob,freq_yes,avg_brier
func ToCSV(r Report) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	rows := [][]string{
		{"section", "key", "n", "avg_prob", "freq_yes", "avg_brier"},
		{"overall", "", itoa(r.Overall.Count), ftoa(r.Overall.MeanProb), ftoa(r.Overall.BaseRate), ftoa(r.Overall.AvgBrier)},
	}
	for _, b := range r.Calibration {
		rows = append(rows, []string{"calibration", itoa(b.Bin), itoa(b.N), ftoa(b.AvgP), ftoa(b.FreqYes), ""})
	}
	for _, t := range r.Tags {
		rows = append(rows, []string{"tag", t.Key, itoa(t.Count), ftoa(t.AvgProb), ftoa(t.FreqYes), ftoa(t.AvgBrier)})
	}
	for _, t := range r.Topics {
		rows = append(rows, []string{"topic", t.Key, itoa(t.Count), ftoa(t.AvgProb), ftoa(t.FreqYes), ftoa(t.AvgBrier)})
	}
	for _, s := range r.Slices {
		rows = append(rows, []string{"timeslice", s.Key, itoa(s.N), ftoa(s.AvgProb), ftoa(s.FreqYes), ""})
	}

	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	w.Flush()
	return sb.String(), w.Error()
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
