package main

import (
	"os"
	"path/filepath"
	"testing"

	"pvyield/internal/yield"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProject_ExampleFile(t *testing.T) {
	project, err := loadProject(filepath.Join("..", "..", "project.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Warehouse rooftop", project.Name)

	in, err := project.Input(yield.DefaultLossParameters())
	require.NoError(t, err)

	assert.Equal(t, 39.74, in.Location.Latitude)
	require.Len(t, in.Arrays, 2)
	assert.Equal(t, "west roof", in.Arrays[1].Name)
	assert.Equal(t, 270.0, in.Arrays[1].AzimuthDegrees)
	assert.Equal(t, "ballasted", in.Arrays[0].StructureType)

	assert.Equal(t, 400.0, in.Module.WattPeak)
	assert.Equal(t, 21.5, in.Module.Efficiency)
	assert.Equal(t, 1.95, in.Module.AreaM2)

	require.NotNil(t, in.Inverter)
	assert.Equal(t, "Sungrow SG50CX", in.Inverter.Model)
	assert.Equal(t, 2, in.Inverter.Quantity)
	assert.InDelta(t, 0.985, in.Inverter.EfficiencyFraction, 1e-12)
	assert.Equal(t, 14.5, in.Losses.SystemLossesPercent)
}

func TestLoadProject_DefaultsOrientation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.json")
	body := `{
  "location": {"latitude": -23.5, "longitude": -46.6},
  "arrays": [{"capacity_kw": 5}],
  "module": {"power": 550, "efficiency": 0.213, "dimensions": {"height": 2278, "width": 1134}}
}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	project, err := loadProject(path)
	require.NoError(t, err)
	in, err := project.Input(yield.DefaultLossParameters())
	require.NoError(t, err)

	assert.InDelta(t, 21.5, in.Arrays[0].TiltDegrees, 1e-9)
	assert.Equal(t, 0.0, in.Arrays[0].AzimuthDegrees)
	assert.InDelta(t, 2.278*1.134, in.Module.AreaM2, 1e-9)
	assert.Nil(t, in.Inverter)
}

func TestLoadProject_MissingFile(t *testing.T) {
	_, err := loadProject(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
