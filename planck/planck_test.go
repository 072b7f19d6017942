package planck

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntegralFullRangeIsStefanBoltzmann(t *testing.T) {
	for _, temperature := range []float64{3000, 6000, 15000, 40000} {
		got, err := Integral(temperature, 0, math.Inf(1))
		require.NoError(t, err)
		require.Equal(t, StefanBoltzmann*math.Pow(temperature, 4)/math.Pi, got)

		series, err := Integral(temperature, 0, 1e8)
		require.NoError(t, err)
		require.InEpsilon(t, Total(temperature), series, 1e-6)
	}
}

func TestIntegralMatchesQuadrature(t *testing.T) {
	cases := []struct {
		temperature, min, max float64
	}{
		{6000, 3000, 9000},
		{10000, 1000, 25000},
		{4000, 5000, 5500},
	}
	for _, tc := range cases {
		series, err := Integral(tc.temperature, tc.min, tc.max)
		require.NoError(t, err)
		numeric, err := Quadrature(tc.temperature, tc.min, tc.max, 128)
		require.NoError(t, err)
		require.InEpsilon(t, numeric, series, 1e-6)
	}
}

func TestDIntegralDTMatchesFiniteDifference(t *testing.T) {
	const temperature, step = 6000.0, 0.01
	for _, bounds := range [][2]float64{{0, 3000}, {0, 5450}, {3660, 21900}, {7980, math.Inf(1)}} {
		analytic, err := DIntegralDT(temperature, bounds[0], bounds[1])
		require.NoError(t, err)
		hi, err := Integral(temperature+step, bounds[0], bounds[1])
		require.NoError(t, err)
		lo, err := Integral(temperature-step, bounds[0], bounds[1])
		require.NoError(t, err)
		require.InEpsilon(t, (hi-lo)/(2*step), analytic, 1e-6)
	}
	full, err := DIntegralDT(temperature, 0, math.Inf(1))
	require.NoError(t, err)
	require.Equal(t, DTotalDT(temperature), full)
}

func TestFunctionDerivative(t *testing.T) {
	const step = 0.01
	for _, wl := range []float64{2000, 5450, 20000} {
		fd := (Function(wl, 6000+step) - Function(wl, 6000-step)) / (2 * step)
		require.InEpsilon(t, fd, DFunctionDT(wl, 6000), 1e-6)
	}
}

func TestFunctionPeak(t *testing.T) {
	// Wien's displacement law: lambda_max T = 2.8978e7 A K.
	peak := 2.897771955e7 / 6000
	require.Greater(t, Function(peak, 6000), Function(peak*0.95, 6000))
	require.Greater(t, Function(peak, 6000), Function(peak*1.05, 6000))
}

func TestInvalidArguments(t *testing.T) {
	_, err := Integral(0, 0, 1000)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Integral(6000, 5000, 4000)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = DIntegralDT(-1, 0, 1000)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Quadrature(6000, 0, math.Inf(1), 32)
	require.ErrorIs(t, err, ErrInvalidArgument)
}
