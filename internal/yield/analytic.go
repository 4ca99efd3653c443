package yield

import (
	"pvyield/internal/pvwatts"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Estimate computes an engine-free approximation for a single array from
// the built-in irradiation curve. It never contacts the engine.
func (c *Calculator) Estimate(in SystemInput) (*CalculationResult, error) {
	result, err := c.estimate(in)
	c.observe(kindAnalytic, result, err)
	return result, err
}

func (c *Calculator) estimate(in SystemInput) (*CalculationResult, error) {
	if err := validateSite(in.Location, []ArrayDescriptor{in.Array}, in.Module, in.Inverter, in.Losses); err != nil {
		return nil, err
	}

	match := c.matcher.Match(in.Module.Efficiency)
	details, err := SizeSystem(in.Array.CapacityKW, in.Module, in.Inverter)
	if err != nil {
		return nil, err
	}

	losses := in.Losses
	losses.ArrayTypeCode = c.arrayType(in.Array, in.Losses)

	irradiation := EstimateIrradiation(in.Location.Latitude, in.Array.TiltDegrees, in.Array.AzimuthDegrees)
	energy := AnalyticEnergy(irradiation, in.Array.CapacityKW, losses, details.InverterEfficiency)

	poa := monthValues(irradiation)
	ac := monthValues(energy)
	dc := make([]float64, len(ac))
	floats.ScaleTo(dc, 1/details.InverterEfficiency, ac)

	annual := floats.Sum(ac)
	capacityFactor := annual / (in.Array.CapacityKW * pvwatts.HoursPerYear) * 100

	energySeries := EnergySeries{
		Monthly:   energy,
		MonthlyDC: monthlySeries(dc),
	}
	energySeries.Metrics.MaxDaily, energySeries.Metrics.MinDaily = calendarDailyEnvelope(ac)
	energySeries.Metrics.TotalYearly = annual

	irradiationSeries := IrradiationSeries{Monthly: irradiation}
	irradiationSeries.Metrics.MaxDaily, irradiationSeries.Metrics.MinDaily = calendarDailyEnvelope(poa)
	irradiationSeries.Metrics.TotalYearly = floats.Sum(poa)

	summary := SystemSummary{
		SystemDetails:      details,
		ModuleClass:        match,
		AdjustmentFactor:   match.AdjustmentFactor,
		AdjustedCapacityKW: NormalizeCapacity(in.Array.CapacityKW, match.AdjustmentFactor),
		CapacityFactor:     capacityFactor,
		ArrayTypeCode:      losses.ArrayTypeCode,
		LossesPercent:      losses.SystemLossesPercent,
		Arrays: []ArrayResult{{
			Name:             in.Array.Name,
			CapacityKW:       in.Array.CapacityKW,
			TiltDegrees:      in.Array.TiltDegrees,
			AzimuthDegrees:   in.Array.AzimuthDegrees,
			ArrayTypeCode:    losses.ArrayTypeCode,
			InverterQuantity: details.NumberOfInverters,
			AnnualEnergyKWh:  annual,
			CapacityFactor:   capacityFactor,
		}},
	}

	result := &CalculationResult{
		ID:               newResultID(),
		Mode:             ModeAnalytic,
		Irradiation:      irradiationSeries,
		Energy:           energySeries,
		YearlyProduction: c.opts.Degradation.Project(energy),
		System:           summary,
		Location: LocationEcho{
			Latitude:  in.Location.Latitude,
			Longitude: in.Location.Longitude,
			Country:   in.Location.Country,
		},
		Timezone:    in.Location.Timezone,
		Performance: summarizePerformance(ac, dc, poa, nil, in.Array.CapacityKW, capacityFactor),
	}

	c.logger.Info("Analytic yield estimate completed",
		zap.String("id", result.ID),
		zap.Float64("capacity_kw", in.Array.CapacityKW),
		zap.Float64("annual_energy_kwh", annual),
	)
	return result, nil
}

// calendarDailyEnvelope divides each month by its actual day count.
func calendarDailyEnvelope(monthly []float64) (hi, lo float64) {
	daily := make([]float64, len(monthly))
	for i, v := range monthly {
		daily[i] = v / daysInMonth[i%12]
	}
	if len(daily) == 0 {
		return 0, 0
	}
	return floats.Max(daily), floats.Min(daily)
}
