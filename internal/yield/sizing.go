package yield

import (
	"math"
)

const (
	defaultInverterEfficiency = 0.96
	defaultDCACRatio          = 1.2
)

// SizeSystem derives the physical module count and area for a nominal
// capacity. It must be given the nominal capacity, never the adjusted one.
func SizeSystem(nominalKW float64, module ModuleSpec, inverter *InverterSpec) (SystemDetails, error) {
	if !(module.WattPeak > 0) || math.IsInf(module.WattPeak, 0) {
		return SystemDetails{}, &InvalidModuleSpecError{Field: "watt_peak", Value: module.WattPeak, Reason: "must be positive"}
	}

	totalModules := int(math.Ceil(nominalKW * 1000 / module.WattPeak))
	details := SystemDetails{
		TotalModules:         totalModules,
		TotalAreaM2:          float64(totalModules) * module.AreaM2,
		CalculatedCapacityKW: nominalKW,
		InverterEfficiency:   defaultInverterEfficiency,
		EffectiveDCACRatio:   defaultDCACRatio,
	}

	if inverter != nil {
		if inverter.EfficiencyFraction > 0 {
			details.InverterEfficiency = inverter.EfficiencyFraction
		}
		if inverter.DCACRatio > 0 {
			details.EffectiveDCACRatio = inverter.DCACRatio
		}
		details.NumberOfInverters = inverter.Quantity
		details.InverterConfiguration = &InverterConfiguration{
			Model:     inverter.Model,
			Quantity:  inverter.Quantity,
			DCACRatio: details.EffectiveDCACRatio,
		}
	}

	return details, nil
}

// AllocateInverters gives an array its share of the site's inverters,
// rounded up.
func AllocateInverters(arrayKW, totalKW float64, quantity int) int {
	if totalKW <= 0 || quantity <= 0 {
		return 0
	}
	return int(math.Ceil(arrayKW / totalKW * float64(quantity)))
}
