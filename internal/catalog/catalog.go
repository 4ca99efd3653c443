// Package catalog resolves loosely typed component catalog records into the
// module and inverter specs the yield calculator works with.
package catalog

import (
	"pvyield/internal/yield"
)

// Dimensions are in millimetres.
type Dimensions struct {
	Height *float64 `json:"height,omitempty" mapstructure:"height"`
	Width  *float64 `json:"width,omitempty" mapstructure:"width"`
}

// PanelRecord is a PV module as stored by catalog services. Every numeric
// field is optional; several names exist for the same quantity.
type PanelRecord struct {
	ID           string `json:"id,omitempty" mapstructure:"id"`
	Manufacturer string `json:"manufacturer,omitempty" mapstructure:"manufacturer"`
	Model        string `json:"model,omitempty" mapstructure:"model"`

	PowerRating  *float64 `json:"power_rating,omitempty" mapstructure:"power_rating"`
	Power        *float64 `json:"power,omitempty" mapstructure:"power"`
	NominalPower *float64 `json:"nominal_power,omitempty" mapstructure:"nominal_power"`

	EfficiencyPercent *float64 `json:"efficiency_percent,omitempty" mapstructure:"efficiency_percent"`
	Efficiency        *float64 `json:"efficiency,omitempty" mapstructure:"efficiency"`

	AreaM2     *float64    `json:"area_m2,omitempty" mapstructure:"area_m2"`
	Length     *float64    `json:"length,omitempty" mapstructure:"length"`
	Width      *float64    `json:"width,omitempty" mapstructure:"width"`
	Dimensions *Dimensions `json:"dimensions,omitempty" mapstructure:"dimensions"`

	Bifaciality *float64 `json:"bifaciality,omitempty" mapstructure:"bifaciality"`
}

// WattPeak resolves power_rating, then power, then nominal_power.
func (p PanelRecord) WattPeak() (float64, bool) {
	return first(p.PowerRating, p.Power, p.NominalPower)
}

// EfficiencyValue resolves efficiency_percent, then efficiency.
func (p PanelRecord) EfficiencyValue() (float64, bool) {
	return first(p.EfficiencyPercent, p.Efficiency)
}

// Area resolves area_m2, then length×width, then the dimensions block.
func (p PanelRecord) Area() (float64, bool) {
	if v, ok := first(p.AreaM2); ok {
		return v, true
	}
	if l, lok := first(p.Length); lok {
		if w, wok := first(p.Width); wok {
			return l * w / 1e6, true
		}
	}
	if p.Dimensions != nil {
		h, hok := first(p.Dimensions.Height)
		w, wok := first(p.Dimensions.Width)
		if hok && wok {
			return h * w / 1e6, true
		}
	}
	return 0, false
}

// ModuleSpec builds a yield.ModuleSpec, reporting every field that could not
// be resolved.
func (p PanelRecord) ModuleSpec() (yield.ModuleSpec, error) {
	var missing []string

	wp, ok := p.WattPeak()
	if !ok {
		missing = append(missing, "module_watt_peak")
	}
	eff, ok := p.EfficiencyValue()
	if !ok {
		missing = append(missing, "module_efficiency")
	}
	area, ok := p.Area()
	if !ok {
		missing = append(missing, "module_area")
	}
	if len(missing) > 0 {
		return yield.ModuleSpec{}, &yield.MissingParameterError{Group: yield.GroupPVSystem, Fields: missing}
	}

	spec := yield.ModuleSpec{
		Efficiency: eff,
		AreaM2:     area,
		WattPeak:   wp,
	}
	if p.Bifaciality != nil {
		spec.Bifaciality = *p.Bifaciality
	}
	return spec, nil
}

// InverterRecord is an inverter as stored by catalog services.
type InverterRecord struct {
	ID           string `json:"id,omitempty" mapstructure:"id"`
	Manufacturer string `json:"manufacturer,omitempty" mapstructure:"manufacturer"`
	Model        string `json:"model,omitempty" mapstructure:"model"`

	Power       *float64 `json:"power,omitempty" mapstructure:"power"`
	PowerRating *float64 `json:"power_rating,omitempty" mapstructure:"power_rating"`

	Efficiency    *float64 `json:"efficiency,omitempty" mapstructure:"efficiency"`
	MaxEfficiency *float64 `json:"max_efficiency,omitempty" mapstructure:"max_efficiency"`
}

// RatedPower resolves power, then power_rating.
func (r InverterRecord) RatedPower() (float64, bool) {
	return first(r.Power, r.PowerRating)
}

// EfficiencyFraction resolves efficiency, then max_efficiency. Values above 1
// are percentages.
func (r InverterRecord) EfficiencyFraction() (float64, bool) {
	v, ok := first(r.Efficiency, r.MaxEfficiency)
	if !ok {
		return 0, false
	}
	if v > 1 {
		v /= 100
	}
	return v, true
}

func (r InverterRecord) InverterSpec(quantity int, dcACRatio float64) (yield.InverterSpec, error) {
	if quantity <= 0 {
		return yield.InverterSpec{}, &yield.MissingParameterError{Group: yield.GroupPVSystem, Fields: []string{"inverter_quantity"}}
	}

	spec := yield.InverterSpec{
		Model:     r.displayName(),
		Quantity:  quantity,
		DCACRatio: dcACRatio,
	}
	if power, ok := r.RatedPower(); ok {
		spec.RatedPowerW = power
	}
	if eff, ok := r.EfficiencyFraction(); ok {
		spec.EfficiencyFraction = eff
	}
	return spec, nil
}

func (r InverterRecord) displayName() string {
	switch {
	case r.Manufacturer != "" && r.Model != "":
		return r.Manufacturer + " " + r.Model
	case r.Model != "":
		return r.Model
	}
	return r.Manufacturer
}

// first returns the first set, positive value.
func first(values ...*float64) (float64, bool) {
	for _, v := range values {
		if v != nil && *v > 0 {
			return *v, true
		}
	}
	return 0, false
}
