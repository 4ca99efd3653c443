package yield

import "math"

// MonthLabels orders every monthly series, January first.
var MonthLabels = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

var daysInMonth = [12]float64{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

type SiteLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// ArrayDescriptor is one physically distinct sub-array of a site.
// Azimuth is clockwise from north, 0-360.
type ArrayDescriptor struct {
	Name           string  `json:"name,omitempty"`
	TiltDegrees    float64 `json:"tilt"`
	AzimuthDegrees float64 `json:"azimuth"`
	StructureType  string  `json:"structure_type,omitempty"`
	AreaM2         float64 `json:"area_m2,omitempty"`
	ModuleCount    int     `json:"module_count,omitempty"`
	CapacityKW     float64 `json:"capacity_kw"`
}

// SouthReferencedAzimuth returns the azimuth with south at 0, east negative
// and west positive (-180..180).
func (a ArrayDescriptor) SouthReferencedAzimuth() float64 {
	az := math.Mod(a.AzimuthDegrees, 360)
	if az < 0 {
		az += 360
	}
	return az - 180
}

type ModuleSpec struct {
	// Efficiency is a fraction when below 1, a percentage otherwise.
	Efficiency          float64  `json:"efficiency"`
	AreaM2              float64  `json:"area_m2"`
	WattPeak            float64  `json:"watt_peak"`
	Bifaciality         float64  `json:"bifaciality,omitempty"`
	Albedo              *float64 `json:"albedo,omitempty"`
	GroundCoverageRatio *float64 `json:"gcr,omitempty"`
}

// EfficiencyPercent normalizes Efficiency to a percentage.
func (m ModuleSpec) EfficiencyPercent() float64 {
	return NormalizeEfficiency(m.Efficiency)
}

type InverterSpec struct {
	Model       string  `json:"model"`
	Quantity    int     `json:"quantity"`
	DCACRatio   float64 `json:"dc_ac_ratio"`
	RatedPowerW float64 `json:"rated_power_w,omitempty"`
	// EfficiencyFraction of zero means the 0.96 default.
	EfficiencyFraction float64 `json:"efficiency,omitempty"`
}

const (
	ArrayTypeFixedOpenRack = iota
	ArrayTypeFixedRoofMount
	ArrayTypeOneAxis
	ArrayTypeOneAxisBacktracking
	ArrayTypeTwoAxis
)

type LossParameters struct {
	SystemLossesPercent float64 `json:"losses"`
	ArrayTypeCode       int     `json:"array_type"`
	PerformanceRatio    float64 `json:"performance_ratio"`
}

func DefaultLossParameters() LossParameters {
	return LossParameters{
		SystemLossesPercent: 14.08,
		ArrayTypeCode:       ArrayTypeFixedRoofMount,
		PerformanceRatio:    0.8,
	}
}

type ModuleClassMatch struct {
	ClassID                int     `json:"class_id"`
	ClassName              string  `json:"class_name"`
	ClassEfficiencyPercent float64 `json:"class_efficiency_percent"`
	EfficiencyPercent      float64 `json:"efficiency_percent"`
	AdjustmentFactor       float64 `json:"adjustment_factor"`
}

type MonthlyValue struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

// SeriesMetrics summarizes a series. Daily figures are monthly totals over a
// flat 30-day month; they approximate, the engine has no daily granularity.
type SeriesMetrics struct {
	MaxDaily    float64  `json:"max_daily"`
	MinDaily    float64  `json:"min_daily"`
	TotalYearly float64  `json:"total_yearly"`
	MaxHourly   *float64 `json:"max_hourly,omitempty"`
	MinHourly   *float64 `json:"min_hourly,omitempty"`
}

// EnergySeries is AC energy in kWh per month. Hourly AC/DC, when present,
// are in Wh as reported by the engine.
type EnergySeries struct {
	Monthly   []MonthlyValue `json:"monthly"`
	MonthlyDC []MonthlyValue `json:"monthly_dc"`
	HourlyAC  []float64      `json:"hourly_ac,omitempty"`
	HourlyDC  []float64      `json:"hourly_dc,omitempty"`
	Metrics   SeriesMetrics  `json:"metrics"`
}

// IrradiationSeries is plane-of-array irradiation in kWh/m² per month.
type IrradiationSeries struct {
	Monthly []MonthlyValue   `json:"monthly"`
	Hourly  *WeatherChannels `json:"hourly,omitempty"`
	Metrics SeriesMetrics    `json:"metrics"`
}

// WeatherChannels are the hourly environmental channels: irradiances in
// W/m², temperatures in °C, wind speed in m/s.
type WeatherChannels struct {
	POA   []float64 `json:"poa,omitempty"`
	DN    []float64 `json:"dn,omitempty"`
	DF    []float64 `json:"df,omitempty"`
	GH    []float64 `json:"gh,omitempty"`
	Tamb  []float64 `json:"tamb,omitempty"`
	Tcell []float64 `json:"tcell,omitempty"`
	Wspd  []float64 `json:"wspd,omitempty"`
}

type InverterConfiguration struct {
	Model     string  `json:"inverter_model"`
	Quantity  int     `json:"quantity"`
	DCACRatio float64 `json:"dc_ac_ratio"`
}

type SystemDetails struct {
	TotalModules          int                    `json:"total_modules"`
	TotalAreaM2           float64                `json:"total_area"`
	CalculatedCapacityKW  float64                `json:"calculated_capacity"`
	InverterEfficiency    float64                `json:"inverter_efficiency"`
	EffectiveDCACRatio    float64                `json:"effective_dc_ac_ratio"`
	NumberOfInverters     int                    `json:"number_of_inverters"`
	InverterConfiguration *InverterConfiguration `json:"inverter_configuration,omitempty"`
}

// ArrayResult is the per-array breakdown carried in a SystemSummary.
type ArrayResult struct {
	Name             string  `json:"name,omitempty"`
	CapacityKW       float64 `json:"capacity_kw"`
	TiltDegrees      float64 `json:"tilt"`
	AzimuthDegrees   float64 `json:"azimuth"`
	ArrayTypeCode    int     `json:"array_type"`
	InverterQuantity int     `json:"inverter_quantity"`
	AnnualEnergyKWh  float64 `json:"annual_energy_kwh"`
	CapacityFactor   float64 `json:"capacity_factor"`
	Station          string  `json:"station,omitempty"`
}

type SystemSummary struct {
	SystemDetails
	ModuleClass        ModuleClassMatch `json:"module_class"`
	AdjustmentFactor   float64          `json:"adjustment_factor"`
	AdjustedCapacityKW float64          `json:"adjusted_capacity"`
	CapacityFactor     float64          `json:"capacity_factor"`
	ArrayTypeCode      int              `json:"array_type"`
	LossesPercent      float64          `json:"losses"`
	EngineVersion      string           `json:"engine_version,omitempty"`
	Arrays             []ArrayResult    `json:"arrays"`
}

type LocationEcho struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	City             string  `json:"city,omitempty"`
	State            string  `json:"state,omitempty"`
	Country          string  `json:"country,omitempty"`
	StationLatitude  float64 `json:"station_lat,omitempty"`
	StationLongitude float64 `json:"station_lon,omitempty"`
	Elevation        float64 `json:"elevation,omitempty"`
	TimezoneOffset   float64 `json:"tz_offset,omitempty"`
}

// Performance is derived from the corrected series and nominal capacity.
type Performance struct {
	MonthlyPR      []MonthlyValue `json:"monthly_pr"`
	AveragePR      float64        `json:"average_pr"`
	SpecificYield  float64        `json:"specific_yield"`
	AnnualDCKWh    float64        `json:"annual_dc_kwh"`
	AnnualPOA      float64        `json:"annual_poa"`
	CapacityFactor float64        `json:"capacity_factor"`
	HourOfDayKWh   []float64      `json:"hour_of_day_kwh,omitempty"`
}

const (
	ModeEngine   = "engine"
	ModeAnalytic = "analytic"
)

// CalculationResult is handed to report and UI collaborators. It is built
// once per calculation and not modified afterwards.
type CalculationResult struct {
	ID               string            `json:"id"`
	Mode             string            `json:"mode"`
	Irradiation      IrradiationSeries `json:"irradiation"`
	Energy           EnergySeries      `json:"energy"`
	YearlyProduction []float64         `json:"yearlyProduction"`
	System           SystemSummary     `json:"system"`
	Location         LocationEcho      `json:"location"`
	Timezone         string            `json:"timezone,omitempty"`
	Performance      Performance       `json:"performance"`
}
