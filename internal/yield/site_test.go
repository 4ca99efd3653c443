package yield

import (
	"context"
	"testing"

	"pvyield/internal/pvwatts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func siteInput() SiteInput {
	return SiteInput{
		Location: SiteLocation{Latitude: 18.52, Longitude: 73.85, Timezone: "Asia/Kolkata"},
		Arrays: []ArrayDescriptor{
			{Name: "south", TiltDegrees: 20, AzimuthDegrees: 180, CapacityKW: 60},
			{Name: "west", TiltDegrees: 10, AzimuthDegrees: 270, CapacityKW: 90},
			{Name: "planned", TiltDegrees: 15, AzimuthDegrees: 90, CapacityKW: 0},
		},
		Module:   testModule(),
		Inverter: &InverterSpec{Model: "SG50CX", Quantity: 3, DCACRatio: 1.2},
		Losses:   DefaultLossParameters(),
	}
}

func TestCalculateSite_CombinesArrays(t *testing.T) {
	engine := proportionalEngine()
	calc := newTestCalculator(t, engine, DefaultOptions())

	result, err := calc.CalculateSite(context.Background(), siteInput())
	require.NoError(t, err)

	require.Len(t, engine.requests, 2, "zero-capacity array is skipped")

	west := engine.requestByTilt(t, 10)
	assert.Equal(t, 270.0, west.Azimuth)
	assert.InDelta(t, 90*21.5/20.5, west.SystemCapacity, 1e-9)
	assert.Equal(t, 1.2, west.DCACRatio)
	assert.InDelta(t, 96, west.InverterEfficiency, 1e-9)

	// energy sums over arrays month by month
	assert.InDelta(t, 180000, result.Energy.Metrics.TotalYearly, 1e-6)
	require.Len(t, result.Energy.Monthly, 12)
	for i, m := range result.Energy.Monthly {
		assert.Equal(t, MonthLabels[i], m.Month)
		assert.InDelta(t, 150*(100+float64(i)-5.5), m.Value, 1e-6, m.Month)
		assert.InDelta(t, 150*(105+float64(i)-5.5), result.Energy.MonthlyDC[i].Value, 1e-6, m.Month)
	}
	assert.InDelta(t, 14175, result.Energy.Monthly[0].Value, 1e-6)

	// irradiation is capacity weighted: 0.4*(120-2.5) + 0.6*(110-2.5)
	assert.Equal(t, "Apr", result.Irradiation.Monthly[3].Month)
	assert.InDelta(t, 111.5, result.Irradiation.Monthly[3].Value, 1e-9)
	assert.InDelta(t, 12*120+12*110, result.Irradiation.Metrics.TotalYearly, 1e-9)
	assert.InDelta(t, 125.5/30, result.Irradiation.Metrics.MaxDaily, 1e-9)
	assert.InDelta(t, 104.5/30, result.Irradiation.Metrics.MinDaily, 1e-9)

	// daily extremes keep the most extreme array: west December, south January
	assert.InDelta(t, 90*105.5/30, result.Energy.Metrics.MaxDaily, 1e-6)
	assert.InDelta(t, 60*94.5/30, result.Energy.Metrics.MinDaily, 1e-6)

	system := result.System
	assert.Equal(t, 150.0, system.CalculatedCapacityKW)
	assert.Equal(t, 375, system.TotalModules)
	assert.InDelta(t, 375*1.95, system.TotalAreaM2, 1e-9)
	assert.Equal(t, 4, system.NumberOfInverters, "ceil(0.4*3) + ceil(0.6*3)")
	assert.Equal(t, ArrayTypeFixedRoofMount, system.ArrayTypeCode)
	assert.InDelta(t, 0.4*12+0.6*11, system.CapacityFactor, 1e-9)
	assert.InDelta(t, 21.5/20.5, system.AdjustmentFactor, 1e-12)
	require.NotNil(t, system.InverterConfiguration)
	assert.Equal(t, 3, system.InverterConfiguration.Quantity)

	require.Len(t, system.Arrays, 2)
	assert.Equal(t, "south", system.Arrays[0].Name)
	assert.Equal(t, 2, system.Arrays[0].InverterQuantity)
	assert.InDelta(t, 72000, system.Arrays[0].AnnualEnergyKWh, 1e-6)
	assert.Equal(t, "TMY-43063", system.Arrays[1].Station)

	require.Len(t, result.YearlyProduction, 25)
	assert.InDelta(t, 180000, result.YearlyProduction[0], 1e-6)
	assert.Equal(t, "Pune", result.Location.City)
	assert.Equal(t, 18.52, result.Location.Latitude)
	assert.Nil(t, result.Irradiation.Hourly)
	assert.Nil(t, result.Performance.HourOfDayKWh)
}

func TestCalculateSite_MixedArrayTypesFallBackToOpenRack(t *testing.T) {
	calc := newTestCalculator(t, proportionalEngine(), DefaultOptions())

	in := siteInput()
	in.Arrays[1].StructureType = "tracker"
	result, err := calc.CalculateSite(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, ArrayTypeFixedOpenRack, result.System.ArrayTypeCode)
	assert.Equal(t, ArrayTypeOneAxis, result.System.Arrays[1].ArrayTypeCode)
}

func TestCalculateSite_NoValidSystems(t *testing.T) {
	engine := proportionalEngine()
	calc := newTestCalculator(t, engine, DefaultOptions())

	in := siteInput()
	for i := range in.Arrays {
		in.Arrays[i].CapacityKW = 0
	}
	in.Arrays[1].CapacityKW = -5

	result, err := calc.CalculateSite(context.Background(), in)
	assert.Nil(t, result)

	var noValid *NoValidSystemsError
	require.ErrorAs(t, err, &noValid)
	assert.Equal(t, 3, noValid.Submitted)
	assert.Empty(t, engine.requests)
}

func TestCalculateSite_OneFailingArrayFailsSite(t *testing.T) {
	base := proportionalEngine()
	engine := &fakeEngine{respond: func(req pvwatts.Request) (*pvwatts.Response, error) {
		if req.Tilt == 10 {
			return nil, &pvwatts.EngineError{Kind: pvwatts.KindEngine, Message: "azimuth out of range"}
		}
		return base.respond(req)
	}}
	calc := newTestCalculator(t, engine, DefaultOptions())

	result, err := calc.CalculateSite(context.Background(), siteInput())
	assert.Nil(t, result)

	var engineErr *pvwatts.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, pvwatts.KindEngine, engineErr.Kind)
	assert.Contains(t, err.Error(), "array 2 (west)")
}

func TestCalculateSite_HourlyChannels(t *testing.T) {
	opts := DefaultOptions()
	opts.Timeframe = pvwatts.TimeframeHourly
	engine := proportionalEngine()
	calc := newTestCalculator(t, engine, opts)
	calc.SetConcurrency(1)

	result, err := calc.CalculateSite(context.Background(), siteInput())
	require.NoError(t, err)

	assert.Equal(t, pvwatts.TimeframeHourly, engine.requests[0].Timeframe)

	require.Len(t, result.Energy.HourlyAC, pvwatts.HoursPerYear)
	assert.InDelta(t, 150, result.Energy.HourlyAC[12], 1e-9, "hourly energy sums")
	assert.InDelta(t, 157.5, result.Energy.HourlyDC[12], 1e-9)

	require.NotNil(t, result.Irradiation.Hourly)
	assert.InDelta(t, 500, result.Irradiation.Hourly.POA[100], 1e-9)
	assert.InDelta(t, 0.4*30+0.6*20, result.Irradiation.Hourly.Tamb[100], 1e-9, "weather is capacity weighted")
	assert.Nil(t, result.Irradiation.Hourly.DN, "channels absent from every array stay absent")

	require.NotNil(t, result.Energy.Metrics.MaxHourly)
	assert.InDelta(t, 90, *result.Energy.Metrics.MaxHourly, 1e-9)
	assert.InDelta(t, 60, *result.Energy.Metrics.MinHourly, 1e-9)

	require.Len(t, result.Performance.HourOfDayKWh, 24)
	assert.InDelta(t, 150.0*365/365/1000, result.Performance.HourOfDayKWh[0], 1e-9)
}

func TestCalculateSite_HourlyDroppedWhenArraysDisagree(t *testing.T) {
	opts := DefaultOptions()
	opts.Timeframe = pvwatts.TimeframeHourly
	base := proportionalEngine()
	engine := &fakeEngine{respond: func(req pvwatts.Request) (*pvwatts.Response, error) {
		resp, err := base.respond(req)
		if req.Tilt == 10 {
			resp.Outputs.AC, resp.Outputs.DC, resp.Outputs.POA, resp.Outputs.Tamb = nil, nil, nil, nil
		}
		return resp, err
	}}
	calc := newTestCalculator(t, engine, opts)

	result, err := calc.CalculateSite(context.Background(), siteInput())
	require.NoError(t, err)

	assert.Nil(t, result.Energy.HourlyAC)
	assert.Nil(t, result.Irradiation.Hourly)
	assert.Nil(t, result.Energy.Metrics.MaxHourly)
	assert.Nil(t, result.Performance.HourOfDayKWh)
	assert.InDelta(t, 180000, result.Energy.Metrics.TotalYearly, 1e-6)
}

func TestCalculateSite_SingleArrayMatchesCalculate(t *testing.T) {
	calc := newTestCalculator(t, proportionalEngine(), DefaultOptions())

	in := siteInput()
	in.Arrays = in.Arrays[:1]
	in.Inverter = nil
	site, err := calc.CalculateSite(context.Background(), in)
	require.NoError(t, err)

	single, err := calc.Calculate(context.Background(), SystemInput{
		Location: in.Location,
		Array:    in.Arrays[0],
		Module:   in.Module,
		Losses:   in.Losses,
	})
	require.NoError(t, err)

	assert.Equal(t, single.Energy, site.Energy)
	assert.Equal(t, single.Irradiation, site.Irradiation)
	assert.Equal(t, single.YearlyProduction, site.YearlyProduction)
	assert.Equal(t, single.System, site.System)
	assert.NotEqual(t, single.ID, site.ID)
}

func TestCalculateSite_ThreeArraysSumMonthlyEnergy(t *testing.T) {
	calc := newTestCalculator(t, proportionalEngine(), DefaultOptions())

	in := siteInput()
	in.Arrays = []ArrayDescriptor{
		{Name: "east", TiltDegrees: 15, AzimuthDegrees: 90, CapacityKW: 10},
		{Name: "south", TiltDegrees: 25, AzimuthDegrees: 180, CapacityKW: 20},
		{Name: "west", TiltDegrees: 35, AzimuthDegrees: 270, CapacityKW: 30},
	}
	result, err := calc.CalculateSite(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, result.Energy.Monthly, 12)
	for i, m := range result.Energy.Monthly {
		offset := float64(i) - 5.5
		want := 10*(100+offset) + 20*(100+offset) + 30*(100+offset)
		assert.Equal(t, MonthLabels[i], m.Month)
		assert.InDelta(t, want, m.Value, 1e-6, m.Month)
	}
	assert.InDelta(t, 5670, result.Energy.Monthly[0].Value, 1e-6)
	assert.InDelta(t, 6330, result.Energy.Monthly[11].Value, 1e-6)
	assert.InDelta(t, 72000, result.Energy.Metrics.TotalYearly, 1e-6)
	assert.Len(t, result.System.Arrays, 3)

	// POA weighted 1/6, 2/6, 3/6 over tilts 15, 25, 35
	weighted := (10*115.0 + 20*125.0 + 30*135.0) / 60
	assert.Equal(t, "Jan", result.Irradiation.Monthly[0].Month)
	assert.InDelta(t, weighted-5.5, result.Irradiation.Monthly[0].Value, 1e-9)
	assert.Equal(t, "Dec", result.Irradiation.Monthly[11].Month)
	assert.InDelta(t, weighted+5.5, result.Irradiation.Monthly[11].Value, 1e-9)
}
