package yield

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Degradation is a compound annual output loss.
type Degradation struct {
	Rate  float64 `mapstructure:"rate"`
	Years int     `mapstructure:"years"`
}

func DefaultDegradation() Degradation {
	return Degradation{Rate: 0.005, Years: 25}
}

// Project returns Years values; year i is the first-year total scaled by
// (1-Rate)^i.
func (d Degradation) Project(monthly []MonthlyValue) []float64 {
	if d.Years <= 0 {
		return nil
	}
	first := floats.Sum(monthValues(monthly))

	out := make([]float64, d.Years)
	for i := range out {
		out[i] = first * math.Pow(1-d.Rate, float64(i))
	}
	return out
}

func monthValues(monthly []MonthlyValue) []float64 {
	values := make([]float64, len(monthly))
	for i, m := range monthly {
		values[i] = m.Value
	}
	return values
}
