package yield

import (
	"pvyield/internal/pvwatts"

	"gonum.org/v1/gonum/floats"
)

const daysPerSeriesMonth = 30

func monthlySeries(values []float64) []MonthlyValue {
	out := make([]MonthlyValue, len(values))
	for i, v := range values {
		out[i] = MonthlyValue{Month: MonthLabels[i%12], Value: v}
	}
	return out
}

func dailyEnvelope(monthly []float64) (hi, lo float64) {
	if len(monthly) == 0 {
		return 0, 0
	}
	return floats.Max(monthly) / daysPerSeriesMonth, floats.Min(monthly) / daysPerSeriesMonth
}

func hourlyEnvelope(hourly []float64) (hi, lo *float64) {
	if len(hourly) == 0 {
		return nil, nil
	}
	maxValue, minValue := floats.Max(hourly), floats.Min(hourly)
	return &maxValue, &minValue
}

func energySeries(out pvwatts.Outputs) EnergySeries {
	series := EnergySeries{
		Monthly:   monthlySeries(out.ACMonthly),
		MonthlyDC: monthlySeries(out.DCMonthly),
		HourlyAC:  out.AC,
		HourlyDC:  out.DC,
	}
	series.Metrics.MaxDaily, series.Metrics.MinDaily = dailyEnvelope(out.ACMonthly)
	series.Metrics.TotalYearly = out.ACAnnual
	series.Metrics.MaxHourly, series.Metrics.MinHourly = hourlyEnvelope(out.AC)
	return series
}

func irradiationSeries(out pvwatts.Outputs) IrradiationSeries {
	series := IrradiationSeries{
		Monthly: monthlySeries(out.POAMonthly),
	}
	series.Metrics.MaxDaily, series.Metrics.MinDaily = dailyEnvelope(out.POAMonthly)
	series.Metrics.TotalYearly = floats.Sum(out.POAMonthly)
	series.Metrics.MaxHourly, series.Metrics.MinHourly = hourlyEnvelope(out.POA)
	if out.HasHourly() {
		series.Hourly = &WeatherChannels{
			POA:   out.POA,
			DN:    out.DN,
			DF:    out.DF,
			GH:    out.GH,
			Tamb:  out.Tamb,
			Tcell: out.Tcell,
			Wspd:  out.Wspd,
		}
	}
	return series
}

// summarizePerformance derives ratios from corrected energy series.
// capacityKW is the nominal capacity.
func summarizePerformance(acMonthly, dcMonthly, poaMonthly, hourlyAC []float64, capacityKW, capacityFactor float64) Performance {
	perf := Performance{
		MonthlyPR:      make([]MonthlyValue, len(acMonthly)),
		AnnualDCKWh:    floats.Sum(dcMonthly),
		AnnualPOA:      floats.Sum(poaMonthly),
		CapacityFactor: capacityFactor,
	}

	var prSum float64
	for i, ac := range acMonthly {
		var pr float64
		if i < len(poaMonthly) && poaMonthly[i] > 0 && capacityKW > 0 {
			pr = ac / (poaMonthly[i] * capacityKW) * 100
		}
		perf.MonthlyPR[i] = MonthlyValue{Month: MonthLabels[i%12], Value: pr}
		prSum += pr
	}
	if len(acMonthly) > 0 {
		perf.AveragePR = prSum / float64(len(acMonthly))
	}
	if capacityKW > 0 {
		perf.SpecificYield = floats.Sum(acMonthly) / capacityKW
	}
	perf.HourOfDayKWh = hourOfDayProfile(hourlyAC)
	return perf
}

// hourOfDayProfile averages a full year of hourly AC (Wh) into 24 mean
// values in kWh. Anything other than 8760 values yields nil.
func hourOfDayProfile(hourlyAC []float64) []float64 {
	if len(hourlyAC) != pvwatts.HoursPerYear {
		return nil
	}
	profile := make([]float64, 24)
	for i, wh := range hourlyAC {
		profile[i%24] += wh
	}
	floats.Scale(1.0/365/1000, profile)
	return profile
}
