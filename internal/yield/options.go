package yield

import (
	"fmt"

	"pvyield/internal/pvwatts"
)

// Options carries the tables and engine settings a Calculator works with.
type Options struct {
	ModuleClasses       []ModuleClass
	StructureArrayTypes map[string]int
	Degradation         Degradation
	Timeframe           string
	Dataset             string
	Radius              *int
}

func DefaultOptions() Options {
	return Options{
		ModuleClasses:       DefaultModuleClasses(),
		StructureArrayTypes: DefaultStructureArrayTypes(),
		Degradation:         DefaultDegradation(),
		Timeframe:           pvwatts.TimeframeMonthly,
	}
}

func (o Options) validate() error {
	if o.Degradation.Rate < 0 || o.Degradation.Rate >= 1 {
		return fmt.Errorf("degradation rate must be in [0,1), got %v", o.Degradation.Rate)
	}
	if o.Degradation.Years <= 0 {
		return fmt.Errorf("degradation years must be positive, got %d", o.Degradation.Years)
	}
	switch o.Timeframe {
	case "", pvwatts.TimeframeMonthly, pvwatts.TimeframeHourly:
	default:
		return fmt.Errorf("unknown timeframe %q", o.Timeframe)
	}
	return nil
}
