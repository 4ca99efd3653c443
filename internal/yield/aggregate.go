package yield

import (
	"math"

	"pvyield/internal/pvwatts"

	"gonum.org/v1/gonum/floats"
)

// assemble combines corrected array runs into one result. Energy is summed,
// irradiance and weather are weighted by array capacity, and extremes keep
// the most extreme array. A single run passes through unchanged.
func (c *Calculator) assemble(loc SiteLocation, losses LossParameters, inverter *InverterSpec, runs []*arrayRun) *CalculationResult {
	var totalKW float64
	for _, run := range runs {
		totalKW += run.array.CapacityKW
	}
	weights := make([]float64, len(runs))
	for i, run := range runs {
		weights[i] = run.array.CapacityKW / totalKW
	}

	acMonthly := make([]float64, len(MonthLabels))
	dcMonthly := make([]float64, len(MonthLabels))
	poaMonthly := make([]float64, len(MonthLabels))
	var acAnnual, capacityFactor, adjustment float64

	energies := make([]EnergySeries, len(runs))
	irradiations := make([]IrradiationSeries, len(runs))
	for i, run := range runs {
		floats.Add(acMonthly, run.outputs.ACMonthly)
		floats.Add(dcMonthly, run.outputs.DCMonthly)
		floats.AddScaled(poaMonthly, weights[i], run.outputs.POAMonthly)
		acAnnual += run.outputs.ACAnnual
		capacityFactor += weights[i] * run.outputs.CapacityFactor
		adjustment += weights[i] * run.match.AdjustmentFactor

		energies[i] = energySeries(run.outputs)
		irradiations[i] = irradiationSeries(run.outputs)
	}

	hourlyAC := sumChannel(runs, func(o *pvwatts.Outputs) []float64 { return o.AC })
	hourlyDC := sumChannel(runs, func(o *pvwatts.Outputs) []float64 { return o.DC })

	energy := EnergySeries{
		Monthly:   monthlySeries(acMonthly),
		MonthlyDC: monthlySeries(dcMonthly),
		HourlyAC:  hourlyAC,
		HourlyDC:  hourlyDC,
		Metrics:   combineMetrics(energies, func(s EnergySeries) SeriesMetrics { return s.Metrics }),
	}
	energy.Metrics.TotalYearly = acAnnual

	irradiation := IrradiationSeries{
		Monthly: monthlySeries(poaMonthly),
		Metrics: combineMetrics(irradiations, func(s IrradiationSeries) SeriesMetrics { return s.Metrics }),
	}
	if hourlyAC != nil {
		irradiation.Hourly = &WeatherChannels{
			POA:   weightedChannel(runs, weights, func(o *pvwatts.Outputs) []float64 { return o.POA }),
			DN:    weightedChannel(runs, weights, func(o *pvwatts.Outputs) []float64 { return o.DN }),
			DF:    weightedChannel(runs, weights, func(o *pvwatts.Outputs) []float64 { return o.DF }),
			GH:    weightedChannel(runs, weights, func(o *pvwatts.Outputs) []float64 { return o.GH }),
			Tamb:  weightedChannel(runs, weights, func(o *pvwatts.Outputs) []float64 { return o.Tamb }),
			Tcell: weightedChannel(runs, weights, func(o *pvwatts.Outputs) []float64 { return o.Tcell }),
			Wspd:  weightedChannel(runs, weights, func(o *pvwatts.Outputs) []float64 { return o.Wspd }),
		}
	}

	first := runs[0]
	summary := SystemSummary{
		ModuleClass:      first.match,
		AdjustmentFactor: adjustment,
		CapacityFactor:   capacityFactor,
		ArrayTypeCode:    first.arrayType,
		LossesPercent:    losses.SystemLossesPercent,
		EngineVersion:    first.response.Version,
		Arrays:           make([]ArrayResult, len(runs)),
	}
	summary.ModuleClass.AdjustmentFactor = adjustment
	summary.InverterEfficiency = first.details.InverterEfficiency
	summary.EffectiveDCACRatio = first.details.EffectiveDCACRatio
	if inverter != nil {
		summary.InverterConfiguration = &InverterConfiguration{
			Model:     inverter.Model,
			Quantity:  inverter.Quantity,
			DCACRatio: first.details.EffectiveDCACRatio,
		}
	}

	for i, run := range runs {
		summary.TotalModules += run.details.TotalModules
		summary.TotalAreaM2 += run.details.TotalAreaM2
		summary.CalculatedCapacityKW += run.details.CalculatedCapacityKW
		summary.NumberOfInverters += run.details.NumberOfInverters
		summary.AdjustedCapacityKW += run.adjustedKW
		if run.arrayType != summary.ArrayTypeCode {
			summary.ArrayTypeCode = ArrayTypeFixedOpenRack
		}

		summary.Arrays[i] = ArrayResult{
			Name:             run.array.Name,
			CapacityKW:       run.array.CapacityKW,
			TiltDegrees:      run.array.TiltDegrees,
			AzimuthDegrees:   run.array.AzimuthDegrees,
			ArrayTypeCode:    run.arrayType,
			InverterQuantity: run.details.NumberOfInverters,
			AnnualEnergyKWh:  run.outputs.ACAnnual,
			CapacityFactor:   run.outputs.CapacityFactor,
			Station:          stationLabel(run.response.StationInfo),
		}
	}

	return &CalculationResult{
		ID:               newResultID(),
		Mode:             ModeEngine,
		Irradiation:      irradiation,
		Energy:           energy,
		YearlyProduction: c.opts.Degradation.Project(energy.Monthly),
		System:           summary,
		Location:         locationEcho(loc, first.response.StationInfo),
		Timezone:         loc.Timezone,
		Performance:      summarizePerformance(acMonthly, dcMonthly, poaMonthly, hourlyAC, totalKW, capacityFactor),
	}
}

// combineMetrics keeps the largest maximum and the smallest minimum over
// all arrays and sums the yearly totals. Hourly extremes are only kept when
// every array has them.
func combineMetrics[S any](series []S, metricsOf func(S) SeriesMetrics) SeriesMetrics {
	combined := SeriesMetrics{
		MaxDaily: math.Inf(-1),
		MinDaily: math.Inf(1),
	}
	hourly := true
	maxHourly, minHourly := math.Inf(-1), math.Inf(1)

	for _, s := range series {
		m := metricsOf(s)
		combined.MaxDaily = math.Max(combined.MaxDaily, m.MaxDaily)
		combined.MinDaily = math.Min(combined.MinDaily, m.MinDaily)
		combined.TotalYearly += m.TotalYearly
		if m.MaxHourly == nil || m.MinHourly == nil {
			hourly = false
			continue
		}
		maxHourly = math.Max(maxHourly, *m.MaxHourly)
		minHourly = math.Min(minHourly, *m.MinHourly)
	}

	if hourly && len(series) > 0 {
		combined.MaxHourly, combined.MinHourly = &maxHourly, &minHourly
	}
	return combined
}

// hourlyLength is the channel length shared by every run, or 0 when a run
// lacks the channel or the lengths differ.
func hourlyLength(runs []*arrayRun, channel func(*pvwatts.Outputs) []float64) int {
	n := len(channel(&runs[0].outputs))
	if n == 0 {
		return 0
	}
	for _, run := range runs[1:] {
		if len(channel(&run.outputs)) != n {
			return 0
		}
	}
	return n
}

func sumChannel(runs []*arrayRun, channel func(*pvwatts.Outputs) []float64) []float64 {
	n := hourlyLength(runs, channel)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for _, run := range runs {
		floats.Add(out, channel(&run.outputs))
	}
	return out
}

func weightedChannel(runs []*arrayRun, weights []float64, channel func(*pvwatts.Outputs) []float64) []float64 {
	n := hourlyLength(runs, channel)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i, run := range runs {
		floats.AddScaled(out, weights[i], channel(&run.outputs))
	}
	return out
}

func stationLabel(station pvwatts.StationInfo) string {
	if station.Location != "" {
		return station.Location
	}
	return station.City
}

func locationEcho(loc SiteLocation, station pvwatts.StationInfo) LocationEcho {
	return LocationEcho{
		Latitude:         loc.Latitude,
		Longitude:        loc.Longitude,
		City:             station.City,
		State:            station.State,
		Country:          loc.Country,
		StationLatitude:  station.Latitude,
		StationLongitude: station.Longitude,
		Elevation:        station.Elevation,
		TimezoneOffset:   station.TimezoneOffset,
	}
}
