package yield

import (
	"math"
)

// baseDailyIrradiation is an average mid-latitude curve in kWh/m²/day,
// January first.
var baseDailyIrradiation = [12]float64{2.8, 3.5, 4.5, 5.5, 6.2, 6.5, 6.3, 5.8, 5.0, 4.0, 3.0, 2.5}

// EstimateIrradiation is the offline fallback used when the engine is not
// reachable. It is a rough approximation and does not know the site's
// climate. Azimuth is 0-360 from north; the result is monthly kWh/m².
func EstimateIrradiation(latitude, tiltDegrees, azimuthDegrees float64) []MonthlyValue {
	absLat := math.Abs(latitude)
	latitudeFactor := 1 - absLat/90*0.5
	tiltFactor := 1 + (1-math.Abs(tiltDegrees-absLat)/90)*0.2

	optimal := OptimalAzimuth(latitude)
	azimuthFactor := 1 - angularDistance(azimuthDegrees, optimal)/180*0.3

	monthly := make([]MonthlyValue, 12)
	for i, daily := range baseDailyIrradiation {
		adjusted := daily * latitudeFactor * tiltFactor * azimuthFactor
		monthly[i] = MonthlyValue{Month: MonthLabels[i], Value: adjusted * daysInMonth[i]}
	}
	return monthly
}

// angularDistance is the shortest distance between two compass bearings,
// 0-180.
func angularDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

var arrayTypeFactors = map[int]float64{
	ArrayTypeFixedOpenRack:       1.0,
	ArrayTypeFixedRoofMount:      0.95,
	ArrayTypeOneAxis:             1.2,
	ArrayTypeOneAxisBacktracking: 1.2,
	ArrayTypeTwoAxis:             1.3,
}

// ArrayTypeFactor scales analytic energy for mounting and tracking.
func ArrayTypeFactor(arrayType int) float64 {
	if f, ok := arrayTypeFactors[arrayType]; ok {
		return f
	}
	return 1.0
}

// AnalyticEnergy converts monthly plane-of-array irradiation into monthly
// AC energy in kWh without the engine.
func AnalyticEnergy(irradiation []MonthlyValue, capacityKW float64, losses LossParameters, inverterEfficiency float64) []MonthlyValue {
	pr := losses.PerformanceRatio
	if pr <= 0 {
		pr = DefaultLossParameters().PerformanceRatio
	}
	factor := capacityKW * pr * inverterEfficiency * ArrayTypeFactor(losses.ArrayTypeCode) * (1 - losses.SystemLossesPercent/100)

	energy := make([]MonthlyValue, len(irradiation))
	for i, m := range irradiation {
		energy[i] = MonthlyValue{Month: m.Month, Value: m.Value * factor}
	}
	return energy
}
