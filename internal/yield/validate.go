package yield

import (
	"math"
	"slices"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validateLocation(loc SiteLocation) error {
	var fields []string
	if !finite(loc.Latitude) || loc.Latitude < -90 || loc.Latitude > 90 {
		fields = append(fields, "latitude")
	}
	if !finite(loc.Longitude) || loc.Longitude < -180 || loc.Longitude > 180 {
		fields = append(fields, "longitude")
	}
	if len(fields) > 0 {
		return &MissingParameterError{Group: GroupLocation, Fields: fields}
	}
	return nil
}

func validateArray(array ArrayDescriptor) []string {
	var fields []string
	if !finite(array.CapacityKW) || array.CapacityKW <= 0 {
		fields = append(fields, "capacity")
	}
	if !finite(array.TiltDegrees) || array.TiltDegrees < 0 || array.TiltDegrees > 90 {
		fields = append(fields, "tilt")
	}
	if !finite(array.AzimuthDegrees) || array.AzimuthDegrees < 0 || array.AzimuthDegrees > 360 {
		fields = append(fields, "azimuth")
	}
	return fields
}

func validateLosses(losses LossParameters) []string {
	var fields []string
	if !finite(losses.SystemLossesPercent) || losses.SystemLossesPercent < -5 || losses.SystemLossesPercent > 99 {
		fields = append(fields, "losses")
	}
	if losses.ArrayTypeCode < ArrayTypeFixedOpenRack || losses.ArrayTypeCode > ArrayTypeTwoAxis {
		fields = append(fields, "array_type")
	}
	if !finite(losses.PerformanceRatio) || losses.PerformanceRatio <= 0 || losses.PerformanceRatio > 1 {
		fields = append(fields, "performance_ratio")
	}
	return fields
}

// validateModule reports zero values as missing and non-physical values as
// an InvalidModuleSpecError.
func validateModule(module ModuleSpec) error {
	var missing []string
	if module.Efficiency == 0 {
		missing = append(missing, "module_efficiency")
	}
	if module.WattPeak == 0 {
		missing = append(missing, "module_watt_peak")
	}
	if module.AreaM2 == 0 {
		missing = append(missing, "module_area")
	}
	if len(missing) > 0 {
		return &MissingParameterError{Group: GroupPVSystem, Fields: missing}
	}

	checks := []struct {
		field string
		value float64
	}{
		{"efficiency", module.Efficiency},
		{"watt_peak", module.WattPeak},
		{"area_m2", module.AreaM2},
		{"bifaciality", module.Bifaciality},
	}
	for _, check := range checks {
		if !finite(check.value) {
			return &InvalidModuleSpecError{Field: check.field, Value: check.value, Reason: "must be a finite number"}
		}
		if check.value < 0 {
			return &InvalidModuleSpecError{Field: check.field, Value: check.value, Reason: "must not be negative"}
		}
	}
	if pct := module.EfficiencyPercent(); pct > 100 {
		return &InvalidModuleSpecError{Field: "efficiency", Value: module.Efficiency, Reason: "exceeds 100%"}
	}
	if module.Bifaciality > 1 {
		return &InvalidModuleSpecError{Field: "bifaciality", Value: module.Bifaciality, Reason: "must be at most 1"}
	}
	if module.Albedo != nil && (!finite(*module.Albedo) || *module.Albedo < 0 || *module.Albedo > 1) {
		return &InvalidModuleSpecError{Field: "albedo", Value: *module.Albedo, Reason: "must be within 0..1"}
	}
	if module.GroundCoverageRatio != nil && (!finite(*module.GroundCoverageRatio) || *module.GroundCoverageRatio <= 0) {
		return &InvalidModuleSpecError{Field: "gcr", Value: *module.GroundCoverageRatio, Reason: "must be positive"}
	}
	return nil
}

func validateInverter(inverter *InverterSpec) []string {
	if inverter == nil {
		return nil
	}
	var fields []string
	if inverter.Quantity < 0 {
		fields = append(fields, "inverter_quantity")
	}
	if !finite(inverter.DCACRatio) || inverter.DCACRatio < 0 {
		fields = append(fields, "dc_ac_ratio")
	}
	if !finite(inverter.EfficiencyFraction) || inverter.EfficiencyFraction < 0 || inverter.EfficiencyFraction > 1 {
		fields = append(fields, "inverter_efficiency")
	}
	return fields
}

// validateSite checks everything shared by the arrays of a site plus the
// arrays themselves.
func validateSite(loc SiteLocation, arrays []ArrayDescriptor, module ModuleSpec, inverter *InverterSpec, losses LossParameters) error {
	if err := validateLocation(loc); err != nil {
		return err
	}

	var fields []string
	for _, array := range arrays {
		fields = appendUnique(fields, validateArray(array)...)
	}
	fields = appendUnique(fields, validateLosses(losses)...)
	fields = appendUnique(fields, validateInverter(inverter)...)
	if len(fields) > 0 {
		return &MissingParameterError{Group: GroupPVSystem, Fields: fields}
	}

	return validateModule(module)
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
