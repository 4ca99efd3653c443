package api

import (
	"pvyield/internal/catalog"
	"pvyield/internal/yield"
)

// Request bodies double as the project file format, hence the mapstructure
// tags next to the json ones.

type LocationRequest struct {
	Latitude  *float64 `json:"latitude" mapstructure:"latitude"`
	Longitude *float64 `json:"longitude" mapstructure:"longitude"`
	Timezone  string   `json:"timezone,omitempty" mapstructure:"timezone"`
	Country   string   `json:"country,omitempty" mapstructure:"country"`
}

// ArrayRequest describes one sub-array. Tilt and azimuth default to the
// optimum for the site latitude.
type ArrayRequest struct {
	Name          string   `json:"name,omitempty" mapstructure:"name"`
	CapacityKW    float64  `json:"capacity_kw" mapstructure:"capacity_kw"`
	Tilt          *float64 `json:"tilt,omitempty" mapstructure:"tilt"`
	Azimuth       *float64 `json:"azimuth,omitempty" mapstructure:"azimuth"`
	StructureType string   `json:"structure_type,omitempty" mapstructure:"structure_type"`
	AreaM2        float64  `json:"area_m2,omitempty" mapstructure:"area_m2"`
	ModuleCount   int      `json:"module_count,omitempty" mapstructure:"module_count"`
}

type ModuleRequest struct {
	catalog.PanelRecord `mapstructure:",squash"`
	Albedo              *float64 `json:"albedo,omitempty" mapstructure:"albedo"`
	GCR                 *float64 `json:"gcr,omitempty" mapstructure:"gcr"`
}

type InverterRequest struct {
	catalog.InverterRecord `mapstructure:",squash"`
	Quantity               int     `json:"quantity" mapstructure:"quantity"`
	DCACRatio              float64 `json:"dc_ac_ratio" mapstructure:"dc_ac_ratio"`
}

// LossesRequest overrides the configured loss defaults. Shading, when set
// and Losses is not, picks the matching loss preset.
type LossesRequest struct {
	Losses           *float64 `json:"losses,omitempty" mapstructure:"losses"`
	Shading          string   `json:"shading,omitempty" mapstructure:"shading"`
	ArrayType        *int     `json:"array_type,omitempty" mapstructure:"array_type"`
	PerformanceRatio *float64 `json:"performance_ratio,omitempty" mapstructure:"performance_ratio"`
}

type SimulationRequest struct {
	Location LocationRequest  `json:"location" mapstructure:"location"`
	Array    ArrayRequest     `json:"array" mapstructure:"array"`
	Module   ModuleRequest    `json:"module" mapstructure:"module"`
	Inverter *InverterRequest `json:"inverter,omitempty" mapstructure:"inverter"`
	Losses   *LossesRequest   `json:"losses,omitempty" mapstructure:"losses"`
}

type SiteRequest struct {
	Name     string           `json:"name,omitempty" mapstructure:"name"`
	Location LocationRequest  `json:"location" mapstructure:"location"`
	Arrays   []ArrayRequest   `json:"arrays" mapstructure:"arrays"`
	Module   ModuleRequest    `json:"module" mapstructure:"module"`
	Inverter *InverterRequest `json:"inverter,omitempty" mapstructure:"inverter"`
	Losses   *LossesRequest   `json:"losses,omitempty" mapstructure:"losses"`
}

func (l LocationRequest) location() (yield.SiteLocation, error) {
	var missing []string
	if l.Latitude == nil {
		missing = append(missing, "latitude")
	}
	if l.Longitude == nil {
		missing = append(missing, "longitude")
	}
	if len(missing) > 0 {
		return yield.SiteLocation{}, &yield.MissingParameterError{Group: yield.GroupLocation, Fields: missing}
	}
	return yield.SiteLocation{
		Latitude:  *l.Latitude,
		Longitude: *l.Longitude,
		Timezone:  l.Timezone,
		Country:   l.Country,
	}, nil
}

func (a ArrayRequest) descriptor(latitude float64) yield.ArrayDescriptor {
	tilt := yield.OptimalTilt(latitude)
	if a.Tilt != nil {
		tilt = *a.Tilt
	}
	azimuth := yield.OptimalAzimuth(latitude)
	if a.Azimuth != nil {
		azimuth = *a.Azimuth
	}
	return yield.ArrayDescriptor{
		Name:           a.Name,
		TiltDegrees:    tilt,
		AzimuthDegrees: azimuth,
		StructureType:  a.StructureType,
		AreaM2:         a.AreaM2,
		ModuleCount:    a.ModuleCount,
		CapacityKW:     a.CapacityKW,
	}
}

func (m ModuleRequest) spec() (yield.ModuleSpec, error) {
	spec, err := m.PanelRecord.ModuleSpec()
	if err != nil {
		return yield.ModuleSpec{}, err
	}
	spec.Albedo = m.Albedo
	spec.GroundCoverageRatio = m.GCR
	return spec, nil
}

func (i *InverterRequest) spec() (*yield.InverterSpec, error) {
	if i == nil {
		return nil, nil
	}
	spec, err := i.InverterRecord.InverterSpec(i.Quantity, i.DCACRatio)
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

func (l *LossesRequest) apply(defaults yield.LossParameters) yield.LossParameters {
	if l == nil {
		return defaults
	}
	losses := defaults
	if l.Shading != "" {
		if pct, ok := yield.LossesForShading(l.Shading); ok {
			losses.SystemLossesPercent = pct
		}
	}
	if l.Losses != nil {
		losses.SystemLossesPercent = *l.Losses
	}
	if l.ArrayType != nil {
		losses.ArrayTypeCode = *l.ArrayType
	}
	if l.PerformanceRatio != nil {
		losses.PerformanceRatio = *l.PerformanceRatio
	}
	return losses
}

// Input resolves the request against the configured loss defaults.
func (r SimulationRequest) Input(defaults yield.LossParameters) (yield.SystemInput, error) {
	site, err := SiteRequest{
		Location: r.Location,
		Arrays:   []ArrayRequest{r.Array},
		Module:   r.Module,
		Inverter: r.Inverter,
		Losses:   r.Losses,
	}.Input(defaults)
	if err != nil {
		return yield.SystemInput{}, err
	}
	return yield.SystemInput{
		Location: site.Location,
		Array:    site.Arrays[0],
		Module:   site.Module,
		Inverter: site.Inverter,
		Losses:   site.Losses,
	}, nil
}

func (r SiteRequest) Input(defaults yield.LossParameters) (yield.SiteInput, error) {
	loc, err := r.Location.location()
	if err != nil {
		return yield.SiteInput{}, err
	}
	module, err := r.Module.spec()
	if err != nil {
		return yield.SiteInput{}, err
	}
	inverter, err := r.Inverter.spec()
	if err != nil {
		return yield.SiteInput{}, err
	}

	arrays := make([]yield.ArrayDescriptor, len(r.Arrays))
	for i, a := range r.Arrays {
		arrays[i] = a.descriptor(loc.Latitude)
	}

	return yield.SiteInput{
		Location: loc,
		Arrays:   arrays,
		Module:   module,
		Inverter: inverter,
		Losses:   r.Losses.apply(defaults),
	}, nil
}
