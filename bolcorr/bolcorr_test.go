package bolcorr

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timzifer/superbol/photometry"
)

func mag(t *testing.T, name string, value, unc float64) photometry.ObservedMagnitude {
	t.Helper()
	band, err := photometry.DefaultBands().Lookup(name)
	require.NoError(t, err)
	return photometry.ObservedMagnitude{Band: band, Time: 100, Magnitude: value, Uncertainty: unc}
}

func TestComputePolynomial(t *testing.T) {
	coefficients := []float64{1, 2, 3, 4}
	require.Equal(t, 49.0, ComputePolynomial(coefficients, 2))
	require.Equal(t, 62.0, ComputePolynomialDerivative(coefficients, 2))
	require.Equal(t, 2.0, ComputePolynomialDerivative(coefficients, 0))
	require.Equal(t, 38.0, ComputePolynomialDerivative(coefficients, -2))
	require.Zero(t, ComputePolynomialDerivative([]float64{5}, 3))
}

func TestDefaultEngineMethods(t *testing.T) {
	engine := DefaultEngine()
	require.Equal(t, []string{"BH09", "H01"}, engine.Names())

	h01, err := engine.Method("H01")
	require.NoError(t, err)
	require.Equal(t, -10.88802466, h01.ZeroPoint)
	require.Equal(t, []string{"B-V", "V-I"}, h01.Colors())

	lo, hi, err := h01.Range("B", "V")
	require.NoError(t, err)
	require.Equal(t, -0.2, lo)
	require.Equal(t, 1.6, hi)

	rms, err := h01.RMS("V", "I")
	require.NoError(t, err)
	require.Equal(t, 0.109, rms)

	_, err = h01.Relation("B", "I")
	require.ErrorIs(t, err, ErrInvalidFilterCombination)

	_, err = engine.Method("L14")
	require.ErrorIs(t, err, ErrInvalidBCMethod)
}

func TestBH09Correction(t *testing.T) {
	method, err := DefaultEngine().Method("BH09")
	require.NoError(t, err)

	bc, err := ComputeBolometricCorrection(method, mag(t, "B", 18.793, 0.02), mag(t, "V", 18.078, 0.02))
	require.NoError(t, err)
	require.InDelta(t, -0.017034, bc.Value, 1e-6)
	require.Greater(t, bc.Uncertainty, 0.113)
}

func TestH01Fluxes(t *testing.T) {
	method, err := DefaultEngine().Method("H01")
	require.NoError(t, err)
	b, v, i := mag(t, "B", 17.53, 0.02), mag(t, "V", 16.217, 0.02), mag(t, "I", 15.462, 0.02)

	bc, err := ComputeBolometricCorrection(method, b, v)
	require.NoError(t, err)
	bv := ConvertMbolToFbol(ApplyBolometricCorrection(bc, v), method.ZeroPoint)
	require.InEpsilon(t, 7.520e-12, bv.Value, 1e-3)

	// rms dominates: sqrt(0.113^2 + (P'(c) * 0.02*sqrt2)^2)
	slope := ComputePolynomialDerivative([]float64{0.199215, 1.654947, -6.576745, 18.46060, -25.27718, 15.98919, -3.783559}, 17.53-16.217)
	require.InDelta(t, math.Hypot(0.113, slope*0.02*math.Sqrt2), bc.Uncertainty, 1e-12)

	mbol := ApplyBolometricCorrection(bc, v)
	require.InDelta(t, math.Hypot(bc.Uncertainty, 0.02), mbol.Uncertainty, 1e-12)
	require.InEpsilon(t, math.Ln10/2.5*bv.Value*mbol.Uncertainty, bv.Uncertainty, 1e-12)

	bc, err = ComputeBolometricCorrection(method, v, i)
	require.NoError(t, err)
	vi := ConvertMbolToFbol(ApplyBolometricCorrection(bc, v), method.ZeroPoint)
	require.InEpsilon(t, 8.053e-12, vi.Value, 1e-3)

	flux, used, err := EpochFlux(method, []photometry.ObservedMagnitude{i, v, b}, "")
	require.NoError(t, err)
	require.Equal(t, 2, used)
	require.InEpsilon(t, (bv.Value+vi.Value)/2, flux.Value, 1e-12)
	require.InEpsilon(t, (bv.Uncertainty+vi.Uncertainty)/2, flux.Uncertainty, 1e-12)
}

func TestColorOutOfRangeNeverClamps(t *testing.T) {
	method, err := DefaultEngine().Method("H01")
	require.NoError(t, err)

	for _, color := range []float64{-0.21, 1.61, 3} {
		_, err := ComputeBolometricCorrection(method, mag(t, "B", 15+color, 0.01), mag(t, "V", 15, 0.01))
		require.ErrorIs(t, err, ErrInvalidColor)
		require.ErrorIs(t, err, photometry.ErrOutOfBounds)
	}

	_, _, err = EpochFlux(method, []photometry.ObservedMagnitude{mag(t, "B", 20, 0.01), mag(t, "V", 15, 0.01)}, "V")
	require.ErrorIs(t, err, ErrInvalidColor)
}

func TestEpochFluxNeedsReferenceAndPair(t *testing.T) {
	method, err := DefaultEngine().Method("H01")
	require.NoError(t, err)

	_, _, err = EpochFlux(method, []photometry.ObservedMagnitude{mag(t, "B", 16, 0.01), mag(t, "I", 15, 0.01)}, "V")
	require.ErrorIs(t, err, ErrInsufficientMagnitudes)

	_, _, err = EpochFlux(method, []photometry.ObservedMagnitude{mag(t, "V", 16, 0.01), mag(t, "R", 15.8, 0.01)}, "V")
	require.ErrorIs(t, err, ErrInsufficientMagnitudes)
}

const expressionTable = `{
	"LIN": {
		"properties": {"ZP": -11.0},
		"g-r": {"range_min": -1, "range_max": 2, "rms": 0.05, "expression": "0.1 + 0.5 * color - 0.2 * color * color"}
	}
}`

func TestExpressionRelations(t *testing.T) {
	engine, err := DefaultEngine().Extend(strings.NewReader(expressionTable))
	require.NoError(t, err)
	require.Equal(t, []string{"BH09", "H01", "LIN"}, engine.Names())

	method, err := engine.Method("LIN")
	require.NoError(t, err)
	rel, err := method.Relation("g", "r")
	require.NoError(t, err)

	value, err := rel.Evaluate(0.5)
	require.NoError(t, err)
	require.InDelta(t, 0.3, value, 1e-12)

	slope, err := rel.Derivative(0.5)
	require.NoError(t, err)
	require.InDelta(t, 0.3, slope, 1e-6)

	bc, err := ComputeBolometricCorrection(method, mag(t, "g", 16.5, 0.03), mag(t, "r", 16.0, 0.04))
	require.NoError(t, err)
	require.InDelta(t, 0.3, bc.Value, 1e-9)
	require.InDelta(t, math.Hypot(0.05, 0.3*0.05), bc.Uncertainty, 1e-6)

	_, err = engine.Extend(strings.NewReader(expressionTable))
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestLoadEngineValidates(t *testing.T) {
	cases := map[string]string{
		"missing zp":    `{"X": {"properties": {}, "B-V": {"range_min": 0, "range_max": 1, "coefficients": [1]}}}`,
		"bad colour":    `{"X": {"properties": {"ZP": 1}, "BV": {"range_min": 0, "range_max": 1, "coefficients": [1]}}}`,
		"no relation":   `{"X": {"properties": {"ZP": 1}, "B-V": {"range_min": 0, "range_max": 1}}}`,
		"inverted":      `{"X": {"properties": {"ZP": 1}, "B-V": {"range_min": 1, "range_max": 0, "coefficients": [1]}}}`,
		"bad syntax":    `{"X": {"properties": {"ZP": 1}, "B-V": {"range_min": 0, "range_max": 1, "expression": "color +"}}}`,
		"no properties": `{"X": {"B-V": {"range_min": 0, "range_max": 1, "coefficients": [1]}}}`,
	}
	for name, table := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadEngine(strings.NewReader(table))
			require.Error(t, err)
		})
	}
}
