package pvwatts

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	MonthsPerYear = 12
	HoursPerYear  = 8760

	TimeframeHourly  = "hourly"
	TimeframeMonthly = "monthly"

	minGCR = 0.01
	maxGCR = 0.99
)

// Request is one PVWatts v8 simulation call. Azimuth is in the engine's
// 0-360 convention (clockwise from north).
type Request struct {
	SystemCapacity     float64  `json:"system_capacity"`
	ModuleType         int      `json:"module_type"`
	Losses             float64  `json:"losses"`
	ArrayType          int      `json:"array_type"`
	Tilt               float64  `json:"tilt"`
	Azimuth            float64  `json:"azimuth"`
	Latitude           float64  `json:"lat"`
	Longitude          float64  `json:"lon"`
	Timeframe          string   `json:"timeframe"`
	DCACRatio          float64  `json:"dc_ac_ratio,omitempty"`
	InverterEfficiency float64  `json:"inv_eff,omitempty"`
	Bifaciality        float64  `json:"bifaciality,omitempty"`
	Albedo             *float64 `json:"albedo,omitempty"`
	GCR                *float64 `json:"gcr,omitempty"`
	Dataset            string   `json:"dataset,omitempty"`
	Radius             *int     `json:"radius,omitempty"`
}

// Values encodes the request as query parameters. The api key is added by
// the client so the encoded form can double as a cache key.
func (r Request) Values() url.Values {
	query := url.Values{}
	query.Set("system_capacity", formatFloat(r.SystemCapacity))
	query.Set("module_type", strconv.Itoa(r.ModuleType))
	query.Set("losses", formatFloat(r.Losses))
	query.Set("array_type", strconv.Itoa(r.ArrayType))
	query.Set("tilt", formatFloat(r.Tilt))
	query.Set("azimuth", formatFloat(r.Azimuth))
	query.Set("lat", formatFloat(r.Latitude))
	query.Set("lon", formatFloat(r.Longitude))

	timeframe := strings.TrimSpace(r.Timeframe)
	if timeframe == "" {
		timeframe = TimeframeMonthly
	}
	query.Set("timeframe", timeframe)

	if r.DCACRatio > 0 {
		query.Set("dc_ac_ratio", formatFloat(r.DCACRatio))
	}
	if r.InverterEfficiency > 0 {
		query.Set("inv_eff", formatFloat(r.InverterEfficiency))
	}
	if r.Bifaciality > 0 {
		query.Set("bifaciality", formatFloat(r.Bifaciality))
	}
	if r.Albedo != nil {
		query.Set("albedo", formatFloat(*r.Albedo))
	}
	if r.GCR != nil {
		query.Set("gcr", formatFloat(ClampGCR(*r.GCR)))
	}
	if r.Dataset != "" {
		query.Set("dataset", r.Dataset)
	}
	if r.Radius != nil {
		query.Set("radius", strconv.Itoa(*r.Radius))
	}
	return query
}

// EngineAzimuth converts a south-referenced azimuth (-180..180, 0 = south)
// to the engine convention, wrapped into [0, 360).
func EngineAzimuth(southReferenced float64) float64 {
	az := math.Mod(southReferenced+180, 360)
	if az < 0 {
		az += 360
	}
	return az
}

// ClampGCR keeps a ground-coverage ratio inside the range the engine accepts.
func ClampGCR(gcr float64) float64 {
	return math.Min(maxGCR, math.Max(minGCR, gcr))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type Response struct {
	Inputs      map[string]any `json:"inputs,omitempty"`
	Errors      []string       `json:"errors"`
	Warnings    []string       `json:"warnings"`
	Version     string         `json:"version"`
	StationInfo StationInfo    `json:"station_info"`
	Outputs     Outputs        `json:"outputs"`
}

type StationInfo struct {
	City              string  `json:"city"`
	State             string  `json:"state"`
	Latitude          float64 `json:"lat"`
	Longitude         float64 `json:"lon"`
	Elevation         float64 `json:"elev"`
	TimezoneOffset    float64 `json:"tz"`
	Location          string  `json:"location"`
	SolarResourceFile string  `json:"solar_resource_file"`
}

// Outputs holds the simulation series. Monthly arrays always carry 12
// values; the hourly channels are only filled for the hourly timeframe.
type Outputs struct {
	ACAnnual       float64   `json:"ac_annual"`
	ACMonthly      []float64 `json:"ac_monthly"`
	DCMonthly      []float64 `json:"dc_monthly"`
	POAMonthly     []float64 `json:"poa_monthly"`
	SolradMonthly  []float64 `json:"solrad_monthly"`
	SolradAnnual   float64   `json:"solrad_annual"`
	CapacityFactor float64   `json:"capacity_factor"`

	AC    []float64 `json:"ac,omitempty"`
	DC    []float64 `json:"dc,omitempty"`
	POA   []float64 `json:"poa,omitempty"`
	DN    []float64 `json:"dn,omitempty"`
	DF    []float64 `json:"df,omitempty"`
	GH    []float64 `json:"gh,omitempty"`
	Tamb  []float64 `json:"tamb,omitempty"`
	Tcell []float64 `json:"tcell,omitempty"`
	Wspd  []float64 `json:"wspd,omitempty"`
}

// HasHourly reports whether hourly AC output is present.
func (o *Outputs) HasHourly() bool {
	return len(o.AC) > 0
}

func (o *Outputs) validate() error {
	monthly := map[string][]float64{
		"ac_monthly":  o.ACMonthly,
		"dc_monthly":  o.DCMonthly,
		"poa_monthly": o.POAMonthly,
	}
	for name, values := range monthly {
		if len(values) != MonthsPerYear {
			return &EngineError{Kind: KindDecode, Message: fmt.Sprintf("%s has %d values, want %d", name, len(values), MonthsPerYear)}
		}
	}
	if len(o.SolradMonthly) != 0 && len(o.SolradMonthly) != MonthsPerYear {
		return &EngineError{Kind: KindDecode, Message: fmt.Sprintf("solrad_monthly has %d values, want %d", len(o.SolradMonthly), MonthsPerYear)}
	}

	hourly := map[string][]float64{
		"ac": o.AC, "dc": o.DC, "poa": o.POA, "dn": o.DN, "df": o.DF,
		"gh": o.GH, "tamb": o.Tamb, "tcell": o.Tcell, "wspd": o.Wspd,
	}
	for name, values := range hourly {
		if len(values) != 0 && len(values) != HoursPerYear {
			return &EngineError{Kind: KindDecode, Message: fmt.Sprintf("%s has %d values, want %d", name, len(values), HoursPerYear)}
		}
	}
	return nil
}
