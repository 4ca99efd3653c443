package yield

import (
	"fmt"
	"math"
)

// ModuleClass is one of the engine's built-in module types. ID is the code
// the engine expects as module_type.
type ModuleClass struct {
	ID                int     `mapstructure:"id" json:"id"`
	Name              string  `mapstructure:"name" json:"name"`
	EfficiencyPercent float64 `mapstructure:"efficiency" json:"efficiency_percent"`
}

func DefaultModuleClasses() []ModuleClass {
	return []ModuleClass{
		{ID: 0, Name: "Standard", EfficiencyPercent: 16.0},
		{ID: 1, Name: "Premium", EfficiencyPercent: 20.5},
		{ID: 2, Name: "Thin Film", EfficiencyPercent: 10.0},
	}
}

// Matcher picks the module class nearest to a real module's efficiency.
type Matcher struct {
	classes []ModuleClass
}

func NewMatcher(classes []ModuleClass) (*Matcher, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("module class table is empty")
	}
	for _, class := range classes {
		if !(class.EfficiencyPercent > 0) || math.IsInf(class.EfficiencyPercent, 0) {
			return nil, fmt.Errorf("module class %q: efficiency must be positive, got %v", class.Name, class.EfficiencyPercent)
		}
	}
	return &Matcher{classes: append([]ModuleClass(nil), classes...)}, nil
}

func (m *Matcher) Classes() []ModuleClass {
	return append([]ModuleClass(nil), m.classes...)
}

// Match returns the class with the smallest absolute efficiency difference.
// Ties keep the class declared first.
func (m *Matcher) Match(efficiency float64) ModuleClassMatch {
	pct := NormalizeEfficiency(efficiency)

	best := m.classes[0]
	bestDiff := math.Abs(pct - best.EfficiencyPercent)
	for _, class := range m.classes[1:] {
		if diff := math.Abs(pct - class.EfficiencyPercent); diff < bestDiff {
			best, bestDiff = class, diff
		}
	}

	return ModuleClassMatch{
		ClassID:                best.ID,
		ClassName:              best.Name,
		ClassEfficiencyPercent: best.EfficiencyPercent,
		EfficiencyPercent:      pct,
		AdjustmentFactor:       pct / best.EfficiencyPercent,
	}
}

var defaultMatcher = &Matcher{classes: DefaultModuleClasses()}

// MatchModuleClass matches against the default class table.
func MatchModuleClass(efficiency float64) ModuleClassMatch {
	return defaultMatcher.Match(efficiency)
}

// NormalizeEfficiency treats values below 1 as fractions.
func NormalizeEfficiency(efficiency float64) float64 {
	if efficiency < 1 {
		return efficiency * 100
	}
	return efficiency
}
