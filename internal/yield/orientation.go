package yield

import (
	"math"
	"strings"
)

// DefaultStructureArrayTypes maps mounting structures to engine array types.
func DefaultStructureArrayTypes() map[string]int {
	return map[string]int{
		"ballasted":           ArrayTypeFixedRoofMount,
		"fixed_tilt":          ArrayTypeFixedOpenRack,
		"ground_mount_tables": ArrayTypeFixedOpenRack,
		"carport":             ArrayTypeFixedOpenRack,
		"tracker":             ArrayTypeOneAxis,
	}
}

// ArrayTypeForStructure looks a structure up in table. Unknown structures are
// open rack.
func ArrayTypeForStructure(table map[string]int, structure string) int {
	key := strings.ToLower(strings.TrimSpace(structure))
	if code, ok := table[key]; ok {
		return code
	}
	return ArrayTypeFixedOpenRack
}

// OptimalTilt follows the latitude up to 25° and caps there.
func OptimalTilt(latitude float64) float64 {
	absLat := math.Abs(latitude)
	if absLat <= 25 {
		return math.Max(0, absLat-2)
	}
	return 25
}

// OptimalAzimuth faces the equator: south in the northern hemisphere.
func OptimalAzimuth(latitude float64) float64 {
	if latitude >= 0 {
		return 180
	}
	return 0
}

const (
	ShadingPartial   = "partial"
	ShadingShadeFree = "shade_free"
)

// LossesForShading returns the system losses percentage for a shading
// condition, or false when the condition is unknown.
func LossesForShading(condition string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(condition)) {
	case ShadingPartial:
		return 14.5, true
	case ShadingShadeFree:
		return 12.0, true
	}
	return 0, false
}

var compassPoints = [8]string{"North", "Northeast", "East", "Southeast", "South", "Southwest", "West", "Northwest"}

// AzimuthDirection names the 8-point compass sector of a bearing.
func AzimuthDirection(azimuth float64) string {
	az := math.Mod(azimuth, 360)
	if az < 0 {
		az += 360
	}
	idx := int(math.Floor((az+22.5)/45)) % 8
	return compassPoints[idx]
}
