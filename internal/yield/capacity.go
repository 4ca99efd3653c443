package yield

import (
	"pvyield/internal/pvwatts"

	"gonum.org/v1/gonum/floats"
)

// NormalizeCapacity converts a nameplate capacity into the capacity the
// engine must simulate so that its class efficiency reproduces the real
// module's output.
func NormalizeCapacity(nominalKW, adjustmentFactor float64) float64 {
	return nominalKW * adjustmentFactor
}

// BackCorrect undoes the capacity normalization on the engine outputs. Only
// AC and DC energy scale with capacity; irradiance, weather, solar
// radiation and capacity factor are returned unchanged. The input is not
// modified.
func BackCorrect(out pvwatts.Outputs, adjustmentFactor float64) pvwatts.Outputs {
	scale := 1 / adjustmentFactor

	corrected := out
	corrected.ACAnnual = out.ACAnnual * scale
	corrected.ACMonthly = scaled(out.ACMonthly, scale)
	corrected.DCMonthly = scaled(out.DCMonthly, scale)
	corrected.AC = scaled(out.AC, scale)
	corrected.DC = scaled(out.DC, scale)
	return corrected
}

func scaled(values []float64, scale float64) []float64 {
	if values == nil {
		return nil
	}
	dst := make([]float64, len(values))
	floats.ScaleTo(dst, scale, values)
	return dst
}
