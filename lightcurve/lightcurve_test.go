package lightcurve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timzifer/superbol/blackbody"
	"github.com/timzifer/superbol/bolcorr"
	"github.com/timzifer/superbol/luminosity"
	"github.com/timzifer/superbol/photometry"
	"github.com/timzifer/superbol/planck"
	"github.com/timzifer/superbol/sed"
)

const (
	trueTemperature = 6000.0
	trueRadius      = 1e15 // cm
	distanceMpc     = 10.0
)

func distance(t *testing.T) luminosity.Distance {
	t.Helper()
	d, err := luminosity.DistanceFromMpc(distanceMpc, 0)
	require.NoError(t, err)
	return d
}

func band(t *testing.T, name string) photometry.Band {
	t.Helper()
	b, err := photometry.DefaultBands().Lookup(name)
	require.NoError(t, err)
	return b
}

// blackbodyMagnitude is the magnitude of a 6000 K, 1e15 cm photosphere at
// 10 Mpc in the named band.
func blackbodyMagnitude(t *testing.T, name string) photometry.ObservedMagnitude {
	t.Helper()
	b := band(t, name)
	theta := trueRadius / (distanceMpc * luminosity.CmPerMpc)
	flux := math.Pi * theta * theta * planck.Function(b.EffectiveWavelength, trueTemperature)
	return photometry.ObservedMagnitude{
		Band:        b,
		Magnitude:   -2.5 * math.Log10(flux/b.FluxConversionFactor),
		Uncertainty: 0.01,
	}
}

func blackbodySet(t *testing.T, times ...float64) *photometry.Set {
	t.Helper()
	var observations []photometry.ObservedMagnitude
	for _, tm := range times {
		for _, name := range []string{"B", "V", "R", "I"} {
			m := blackbodyMagnitude(t, name)
			m.Time = tm
			observations = append(observations, m)
		}
	}
	set, err := photometry.NewSet(observations...)
	require.NoError(t, err)
	return set
}

func expectedLuminosity() float64 {
	return 4 * math.Pi * trueRadius * trueRadius * planck.StefanBoltzmann * math.Pow(trueTemperature, 4)
}

func TestBlackbodyLightcurve(t *testing.T) {
	calc, err := NewCalculator(WithDistance(distance(t)))
	require.NoError(t, err)
	require.Equal(t, StrategyBlackbody, calc.Strategy())

	lc, err := calc.CalculateLightcurve(context.Background(), blackbodySet(t, 3, 1, 2))
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, lc.Times())
	require.Empty(t, lc.Skipped)
	for _, p := range lc.Points {
		require.InEpsilon(t, expectedLuminosity(), p.Luminosity.Value, 1e-4)
		require.InEpsilon(t, trueTemperature, p.Detail.Temperature, 1e-4)
		require.Equal(t, 4, p.Detail.Points)
		require.Equal(t, StrategyBlackbody, p.Strategy)
	}
}

func TestQuasiBolometricBelowBlackbody(t *testing.T) {
	calc, err := NewCalculator(WithDistance(distance(t)), WithStrategy(StrategyQuasiBolometric))
	require.NoError(t, err)
	lc, err := calc.CalculateLightcurve(context.Background(), blackbodySet(t, 1))
	require.NoError(t, err)
	require.Len(t, lc.Points, 1)
	require.Less(t, lc.Points[0].Luminosity.Value, expectedLuminosity())

	calc, err = NewCalculator(WithDistance(distance(t)), WithStrategy(StrategyAugmented))
	require.NoError(t, err)
	lc, err = calc.CalculateLightcurve(context.Background(), blackbodySet(t, 1))
	require.NoError(t, err)
	require.Len(t, lc.Points, 1)
	require.InEpsilon(t, expectedLuminosity(), lc.Points[0].Luminosity.Value, 0.02)
	require.Greater(t, lc.Points[0].Detail.IR.Value, 0.0)
}

func TestInsufficientEpochIsSkipped(t *testing.T) {
	set := blackbodySet(t, 1, 2)
	k := blackbodyMagnitude(t, "K")
	k.Time = 10
	require.NoError(t, set.Add(k))

	calc, err := NewCalculator(WithDistance(distance(t)))
	require.NoError(t, err)
	lc, err := calc.CalculateLightcurve(context.Background(), set)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2}, lc.Times())
	require.Len(t, lc.Skipped, 1)
	require.Equal(t, 10.0, lc.Skipped[0].Time)
	require.ErrorIs(t, lc.Skipped[0].Err, sed.ErrInsufficientFluxes)
	require.NotEmpty(t, lc.Skipped[0].Reason())
}

func TestBinningDropsOnlyTheUncombinableBand(t *testing.T) {
	var observations []photometry.ObservedMagnitude
	for _, tm := range []float64{1, 2, 3} {
		for _, name := range []string{"B", "V", "R"} {
			m := blackbodyMagnitude(t, name)
			m.Time = tm
			observations = append(observations, m)
		}
	}
	repeat := blackbodyMagnitude(t, "V")
	repeat.Time = 3.1
	repeat.Uncertainty = 0
	observations = append(observations, repeat)
	set, err := photometry.NewSet(observations...)
	require.NoError(t, err)

	collector := &recordingCollector{}
	calc, err := NewCalculator(
		WithDistance(distance(t)),
		WithStrategy(StrategyQuasiBolometric),
		WithBinning(0.3),
		WithTelemetry(collector),
	)
	require.NoError(t, err)
	lc, err := calc.CalculateLightcurve(context.Background(), set)
	require.NoError(t, err)

	require.Len(t, lc.Points, 3)
	require.InDelta(t, 3.025, lc.Points[2].Time, 1e-9)
	require.Equal(t, 2, lc.Points[2].Detail.Points)
	require.Len(t, lc.Skipped, 1)
	require.InDelta(t, 3.025, lc.Skipped[0].Time, 1e-9)
	require.ErrorIs(t, lc.Skipped[0].Err, photometry.ErrNoUncertainty)
	require.Equal(t, 1, collector.epochs["quasi-bolometric/skip"])
	require.Equal(t, 3, collector.epochs["quasi-bolometric/ok"])
}

func TestExtinctionCoversNearInfrared(t *testing.T) {
	set := blackbodySet(t, 1, 2, 3)
	for _, tm := range []float64{1, 2, 3} {
		j := blackbodyMagnitude(t, "J")
		j.Time = tm
		require.NoError(t, set.Add(j))
	}
	calc, err := NewCalculator(WithDistance(distance(t)), WithExtinction(photometry.NewCCM89Table(0.1)))
	require.NoError(t, err)
	lc, err := calc.CalculateLightcurve(context.Background(), set)
	require.NoError(t, err)
	require.Len(t, lc.Points, 3)
	require.Equal(t, 5, lc.Points[0].Detail.Points)
	// Dereddening brightens every band, so the fitted luminosity rises.
	require.Greater(t, lc.Points[0].Luminosity.Value, expectedLuminosity())
}

func TestInterpolatedEpochUsesBracketingObservations(t *testing.T) {
	set := blackbodySet(t, 1, 3)
	v := blackbodyMagnitude(t, "V")
	v.Time = 2
	require.NoError(t, set.Add(v))

	calc, err := NewCalculator(WithDistance(distance(t)))
	require.NoError(t, err)
	lc, err := calc.CalculateLightcurve(context.Background(), set)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, lc.Times())
	require.InEpsilon(t, expectedLuminosity(), lc.Points[1].Luminosity.Value, 1e-4)
}

func TestUnknownBandIsFatal(t *testing.T) {
	set := blackbodySet(t, 1)
	require.NoError(t, set.Add(photometry.ObservedMagnitude{
		Band:        photometry.Band{Name: "Q", EffectiveWavelength: 5000, FluxConversionFactor: 1e-9},
		Time:        1,
		Magnitude:   15,
		Uncertainty: 0.1,
	}))
	calc, err := NewCalculator(WithDistance(distance(t)))
	require.NoError(t, err)
	_, err = calc.CalculateLightcurve(context.Background(), set)
	require.ErrorIs(t, err, photometry.ErrNoBandFound)
}

func TestFitFailureHandling(t *testing.T) {
	fitter := blackbody.Fitter{SeedTemperature: 20000, MaxIterations: 1}
	collector := &recordingCollector{}

	calc, err := NewCalculator(WithDistance(distance(t)), WithFitter(fitter), WithTelemetry(collector))
	require.NoError(t, err)
	lc, err := calc.CalculateLightcurve(context.Background(), blackbodySet(t, 1))
	require.NoError(t, err)
	require.Empty(t, lc.Points)
	require.Len(t, lc.Skipped, 1)
	require.ErrorIs(t, lc.Skipped[0].Err, blackbody.ErrFitFailed)
	require.Equal(t, 1, collector.fitFailures)
	require.Equal(t, 1, collector.epochs["blackbody/skip"])

	calc, err = NewCalculator(WithDistance(distance(t)), WithFitter(fitter), WithFailOnFitError(true))
	require.NoError(t, err)
	_, err = calc.CalculateLightcurve(context.Background(), blackbodySet(t, 1))
	require.ErrorIs(t, err, blackbody.ErrFitFailed)
}

func TestBCLightcurve(t *testing.T) {
	mags := map[string]float64{"B": 17.53, "V": 16.217, "I": 15.462}
	var observations []photometry.ObservedMagnitude
	for _, tm := range []float64{100, 101} {
		for name, value := range mags {
			observations = append(observations, photometry.ObservedMagnitude{Band: band(t, name), Time: tm, Magnitude: value, Uncertainty: 0.02})
		}
	}
	set, err := photometry.NewSet(observations...)
	require.NoError(t, err)

	calc, err := NewCalculator(WithDistance(distance(t)), WithExplosion(90, 1))
	require.NoError(t, err)
	lc, err := calc.CalculateBCLightcurve(context.Background(), set)
	require.NoError(t, err)
	require.Equal(t, StrategyBC, lc.Strategy)
	require.Len(t, lc.Points, 2)
	require.InEpsilon(t, (7.520e-12+8.053e-12)/2, lc.Points[0].Flux.Value, 1e-3)
	require.Equal(t, 2, lc.Points[0].Detail.Pairs)
	require.Equal(t, 10.0, lc.Points[0].Phase)
	require.Equal(t, 11.0, lc.Points[1].Phase)

	_, err = NewCalculator(WithDistance(distance(t)), WithStrategy(StrategyBC), WithBCMethod("L14", ""))
	require.ErrorIs(t, err, bolcorr.ErrInvalidBCMethod)
}

func TestWorkersPreserveOrder(t *testing.T) {
	times := make([]float64, 0, 12)
	for i := 0; i < 12; i++ {
		times = append(times, float64(12-i))
	}
	set := blackbodySet(t, times...)

	serial, err := NewCalculator(WithDistance(distance(t)))
	require.NoError(t, err)
	want, err := serial.CalculateLightcurve(context.Background(), set)
	require.NoError(t, err)

	parallel, err := NewCalculator(WithDistance(distance(t)), WithWorkers(4))
	require.NoError(t, err)
	got, err := parallel.CalculateLightcurve(context.Background(), set)
	require.NoError(t, err)
	require.Equal(t, want.Times(), got.Times())
	require.Equal(t, want.Luminosities(), got.Luminosities())
}

func TestCancelledContext(t *testing.T) {
	calc, err := NewCalculator(WithDistance(distance(t)), WithWorkers(2))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = calc.CalculateLightcurve(ctx, blackbodySet(t, 1, 2, 3))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewCalculatorValidates(t *testing.T) {
	_, err := NewCalculator()
	require.Error(t, err)

	_, err = NewCalculator(WithDistance(distance(t)), WithStrategy("simpson"))
	require.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = NewCalculator(WithDistance(distance(t)), WithWorkers(-1))
	require.Error(t, err)
}

func TestSEDLimits(t *testing.T) {
	calc, err := NewCalculator(WithDistance(distance(t)), WithSEDLimits(5, 0, 0))
	require.NoError(t, err)
	lc, err := calc.CalculateLightcurve(context.Background(), blackbodySet(t, 1))
	require.NoError(t, err)
	require.Empty(t, lc.Points)
	require.ErrorIs(t, lc.Skipped[0].Err, sed.ErrInsufficientFluxes)

	calc, err = NewCalculator(WithDistance(distance(t)), WithSEDLimits(0, 1000, 0))
	require.NoError(t, err)
	lc, err = calc.CalculateLightcurve(context.Background(), blackbodySet(t, 1))
	require.NoError(t, err)
	require.ErrorIs(t, lc.Skipped[0].Err, sed.ErrSEDGapTooLarge)

	calc, err = NewCalculator(WithDistance(distance(t)), WithExcludedBands("B", "V", "R"))
	require.NoError(t, err)
	lc, err = calc.CalculateLightcurve(context.Background(), blackbodySet(t, 1))
	require.NoError(t, err)
	require.Empty(t, lc.Points)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, Ok},
		{sed.ErrInsufficientFluxes, Skip},
		{fmt.Errorf("wrapped: %w", photometry.ErrMissingMagnitudeOutOfBounds), Skip},
		{photometry.ErrGapTooWide, Skip},
		{bolcorr.ErrInvalidColor, Skip},
		{bolcorr.ErrInsufficientMagnitudes, Skip},
		{blackbody.ErrFitFailed, Skip},
		{bolcorr.ErrInvalidBCMethod, Fatal},
		{fmt.Errorf("%w: %w", photometry.ErrInvalidBand, photometry.ErrNoBandFound), Fatal},
		{photometry.ErrNoExtinction, Fatal},
		{errors.New("disk on fire"), Fatal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.err).Kind, "%v", tc.err)
	}
}

func TestRegistry(t *testing.T) {
	require.Equal(t, []string{"augmented", "bc", "blackbody", "quasi-bolometric", "quasi-bolometric-spline"}, Names())
	require.Panics(t, func() { Register(StrategyBlackbody, newBlackbodyStrategy) })
	require.Panics(t, func() { Register("", newBlackbodyStrategy) })
}

func TestWriteText(t *testing.T) {
	lc := Lightcurve{
		Explosion: &Explosion{Time: 0.5},
		Points: []Point{{
			Time:       1.23456,
			Phase:      0.73456,
			Flux:       luminosity.Flux{Value: 1.5e-12, Uncertainty: 2e-14},
			Luminosity: luminosity.Luminosity{Value: 3.25e42, Uncertainty: 1e40},
			Strategy:   StrategyBlackbody,
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, lc, 2))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "#time phase flux flux_err lum lum_err strategy", lines[0])
	require.Equal(t, "1.23 0.73 1.50e-12 2.00e-14 3.25e+42 1.00e+40 blackbody", lines[1])
}

type recordingCollector struct {
	mu          sync.Mutex
	epochs      map[string]int
	fitFailures int
	iterations  []int
}

func (r *recordingCollector) IncEpoch(strategy, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.epochs == nil {
		r.epochs = make(map[string]int)
	}
	r.epochs[strategy+"/"+outcome]++
}

func (r *recordingCollector) IncFitFailure(string) {
	r.mu.Lock()
	r.fitFailures++
	r.mu.Unlock()
}

func (r *recordingCollector) ObserveFitIterations(n int) {
	r.mu.Lock()
	r.iterations = append(r.iterations, n)
	r.mu.Unlock()
}
