package yield

import (
	"context"
	"errors"
	"fmt"

	"pvyield/internal/metrics"
	"pvyield/internal/pvwatts"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	kindSingle   = "single"
	kindSite     = "site"
	kindAnalytic = "analytic"
)

// ErrNoEngine is returned by engine-backed calculations on a Calculator
// built without an engine.
var ErrNoEngine = errors.New("no simulation engine configured")

// Engine runs one simulation of one array.
type Engine interface {
	Simulate(ctx context.Context, req pvwatts.Request) (*pvwatts.Response, error)
}

// SystemInput describes a single-array system.
type SystemInput struct {
	Location SiteLocation
	Array    ArrayDescriptor
	Module   ModuleSpec
	Inverter *InverterSpec
	Losses   LossParameters
}

// SiteInput describes a site of several arrays sharing one module, one
// inverter model and one set of losses.
type SiteInput struct {
	Location SiteLocation
	Arrays   []ArrayDescriptor
	Module   ModuleSpec
	Inverter *InverterSpec
	Losses   LossParameters
}

// Calculator orchestrates yield calculations against an Engine. It holds no
// per-request state and is safe for concurrent use.
type Calculator struct {
	engine      Engine
	matcher     *Matcher
	opts        Options
	concurrency int
	logger      *zap.Logger
}

func NewCalculator(engine Engine, opts Options, logger *zap.Logger) (*Calculator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ModuleClasses == nil {
		opts.ModuleClasses = DefaultModuleClasses()
	}
	if opts.StructureArrayTypes == nil {
		opts.StructureArrayTypes = DefaultStructureArrayTypes()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	matcher, err := NewMatcher(opts.ModuleClasses)
	if err != nil {
		return nil, err
	}

	return &Calculator{
		engine:  engine,
		matcher: matcher,
		opts:    opts,
		logger:  logger,
	}, nil
}

// SetConcurrency bounds the simulations a site calculation runs at once.
// Zero or less means unbounded.
func (c *Calculator) SetConcurrency(n int) {
	c.concurrency = n
}

func (c *Calculator) Matcher() *Matcher {
	return c.matcher
}

// Calculate simulates one array and returns its corrected result.
func (c *Calculator) Calculate(ctx context.Context, in SystemInput) (*CalculationResult, error) {
	result, err := c.calculate(ctx, in)
	c.observe(kindSingle, result, err)
	return result, err
}

func (c *Calculator) calculate(ctx context.Context, in SystemInput) (*CalculationResult, error) {
	if err := validateSite(in.Location, []ArrayDescriptor{in.Array}, in.Module, in.Inverter, in.Losses); err != nil {
		return nil, err
	}
	if c.engine == nil {
		return nil, ErrNoEngine
	}

	run, err := c.simulateArray(ctx, in.Location, in.Array, in.Module, in.Inverter, in.Losses)
	if err != nil {
		return nil, err
	}

	result := c.assemble(in.Location, in.Losses, in.Inverter, []*arrayRun{run})
	c.logger.Info("Yield calculation completed",
		zap.String("id", result.ID),
		zap.Float64("capacity_kw", in.Array.CapacityKW),
		zap.String("module_class", run.match.ClassName),
		zap.Float64("annual_energy_kwh", result.Energy.Metrics.TotalYearly),
	)
	return result, nil
}

// CalculateSite simulates every array with a positive capacity in parallel
// and combines them. Any failing array fails the whole site.
func (c *Calculator) CalculateSite(ctx context.Context, in SiteInput) (*CalculationResult, error) {
	result, err := c.calculateSite(ctx, in)
	c.observe(kindSite, result, err)
	return result, err
}

func (c *Calculator) calculateSite(ctx context.Context, in SiteInput) (*CalculationResult, error) {
	arrays := make([]ArrayDescriptor, 0, len(in.Arrays))
	for i, array := range in.Arrays {
		if !(array.CapacityKW > 0) {
			c.logger.Debug("Skipping array without capacity",
				zap.Int("index", i),
				zap.String("name", array.Name),
				zap.Float64("capacity_kw", array.CapacityKW),
			)
			continue
		}
		arrays = append(arrays, array)
	}
	if len(arrays) == 0 {
		return nil, &NoValidSystemsError{Submitted: len(in.Arrays)}
	}

	if err := validateSite(in.Location, arrays, in.Module, in.Inverter, in.Losses); err != nil {
		return nil, err
	}
	if c.engine == nil {
		return nil, ErrNoEngine
	}

	var totalKW float64
	for _, array := range arrays {
		totalKW += array.CapacityKW
	}
	metrics.ArraysPerSite.Observe(float64(len(arrays)))

	runs := make([]*arrayRun, len(arrays))
	g, gctx := errgroup.WithContext(ctx)
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i, array := range arrays {
		inverter := allocatedInverter(in.Inverter, array.CapacityKW, totalKW)
		g.Go(func() error {
			run, err := c.simulateArray(gctx, in.Location, array, in.Module, inverter, in.Losses)
			if err != nil {
				return fmt.Errorf("array %s: %w", arrayLabel(i, array), err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := c.assemble(in.Location, in.Losses, in.Inverter, runs)
	c.logger.Info("Site yield calculation completed",
		zap.String("id", result.ID),
		zap.Int("arrays", len(runs)),
		zap.Int("skipped", len(in.Arrays)-len(arrays)),
		zap.Float64("capacity_kw", totalKW),
		zap.Float64("annual_energy_kwh", result.Energy.Metrics.TotalYearly),
	)
	return result, nil
}

// arrayRun is one simulated array with its outputs already back-corrected
// to the nominal capacity.
type arrayRun struct {
	array      ArrayDescriptor
	arrayType  int
	match      ModuleClassMatch
	adjustedKW float64
	details    SystemDetails
	response   *pvwatts.Response
	outputs    pvwatts.Outputs
}

func (c *Calculator) simulateArray(ctx context.Context, loc SiteLocation, array ArrayDescriptor, module ModuleSpec, inverter *InverterSpec, losses LossParameters) (*arrayRun, error) {
	match := c.matcher.Match(module.Efficiency)
	if !(match.AdjustmentFactor > 0) || !finite(match.AdjustmentFactor) {
		return nil, &InvalidModuleSpecError{Field: "efficiency", Value: module.Efficiency, Reason: "no usable adjustment factor"}
	}

	details, err := SizeSystem(array.CapacityKW, module, inverter)
	if err != nil {
		return nil, err
	}

	run := &arrayRun{
		array:      array,
		arrayType:  c.arrayType(array, losses),
		match:      match,
		adjustedKW: NormalizeCapacity(array.CapacityKW, match.AdjustmentFactor),
		details:    details,
	}

	req := pvwatts.Request{
		SystemCapacity: run.adjustedKW,
		ModuleType:     match.ClassID,
		Losses:         losses.SystemLossesPercent,
		ArrayType:      run.arrayType,
		Tilt:           array.TiltDegrees,
		Azimuth:        pvwatts.EngineAzimuth(array.SouthReferencedAzimuth()),
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		Timeframe:      c.opts.Timeframe,
		Bifaciality:    module.Bifaciality,
		Albedo:         module.Albedo,
		GCR:            module.GroundCoverageRatio,
		Dataset:        c.opts.Dataset,
		Radius:         c.opts.Radius,
	}
	if inverter != nil {
		req.DCACRatio = details.EffectiveDCACRatio
		req.InverterEfficiency = details.InverterEfficiency * 100
	}

	resp, err := c.engine.Simulate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := checkOutputs(resp.Outputs); err != nil {
		return nil, err
	}

	run.response = resp
	run.outputs = BackCorrect(resp.Outputs, match.AdjustmentFactor)
	return run, nil
}

func (c *Calculator) arrayType(array ArrayDescriptor, losses LossParameters) int {
	if array.StructureType != "" {
		return ArrayTypeForStructure(c.opts.StructureArrayTypes, array.StructureType)
	}
	return losses.ArrayTypeCode
}

func checkOutputs(out pvwatts.Outputs) error {
	for name, values := range map[string][]float64{
		"ac_monthly":  out.ACMonthly,
		"dc_monthly":  out.DCMonthly,
		"poa_monthly": out.POAMonthly,
	} {
		if len(values) != len(MonthLabels) {
			return &pvwatts.EngineError{Kind: pvwatts.KindDecode, Message: fmt.Sprintf("%s has %d values", name, len(values))}
		}
	}
	return nil
}

// allocatedInverter gives an array its share of the site's inverters.
func allocatedInverter(site *InverterSpec, arrayKW, totalKW float64) *InverterSpec {
	if site == nil {
		return nil
	}
	inverter := *site
	inverter.Quantity = AllocateInverters(arrayKW, totalKW, site.Quantity)
	return &inverter
}

func arrayLabel(index int, array ArrayDescriptor) string {
	if array.Name != "" {
		return fmt.Sprintf("%d (%s)", index+1, array.Name)
	}
	return fmt.Sprintf("%d", index+1)
}

func (c *Calculator) observe(kind string, result *CalculationResult, err error) {
	if err != nil {
		metrics.Calculations.WithLabelValues(kind, metrics.OutcomeError).Inc()
		c.logger.Warn("Yield calculation failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	metrics.Calculations.WithLabelValues(kind, metrics.OutcomeSuccess).Inc()
	metrics.AnnualEnergy.Observe(result.Energy.Metrics.TotalYearly)
}

func newResultID() string {
	return uuid.NewString()
}
