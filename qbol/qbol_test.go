package qbol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timzifer/superbol/blackbody"
	"github.com/timzifer/superbol/planck"
	"github.com/timzifer/superbol/sed"
)

func constantSED(flux, sigma float64, wavelengths ...float64) sed.SED {
	s := sed.SED{Time: 10}
	for _, wl := range wavelengths {
		s.Points = append(s.Points, sed.Point{Wavelength: wl, Flux: flux, Uncertainty: sigma})
	}
	return s
}

func TestConstantFluxIsExact(t *testing.T) {
	got, err := Calculate(constantSED(2e-15, 1e-16, 4000, 5000, 6000, 7000))
	require.NoError(t, err)
	require.InEpsilon(t, 2e-15*3000, got.Value, 1e-14)
	require.InEpsilon(t, math.Sqrt(2*5e-14*5e-14+2*1e-13*1e-13), got.Uncertainty, 1e-12)
}

func TestTrapezoidUncertaintyWeights(t *testing.T) {
	require.InDelta(t, math.Sqrt(3.5), TrapezoidUncertainty([]float64{1, 3, 4}, []float64{1, 1, 1}), 1e-12)
	require.InDelta(t, 0.5, TrapezoidUncertainty([]float64{1, 2}, []float64{0.5, 0.5})*math.Sqrt2, 1e-12)
	require.Zero(t, TrapezoidUncertainty([]float64{1}, []float64{1}))
}

func TestCalculateNeedsTwoPoints(t *testing.T) {
	_, err := Calculate(constantSED(1, 1, 5000))
	require.ErrorIs(t, err, sed.ErrInsufficientFluxes)

	_, err = CalculateSpline(constantSED(1, 1, 5000, 6000))
	require.ErrorIs(t, err, sed.ErrInsufficientFluxes)
}

func TestSplineOfLineMatchesTrapezoid(t *testing.T) {
	s := sed.SED{Points: []sed.Point{
		{Wavelength: 3000, Flux: 1, Uncertainty: 0.1},
		{Wavelength: 4500, Flux: 2.5, Uncertainty: 0.1},
		{Wavelength: 7000, Flux: 5, Uncertainty: 0.1},
	}}
	trap, err := Calculate(s)
	require.NoError(t, err)
	spline, err := CalculateSpline(s)
	require.NoError(t, err)
	require.InEpsilon(t, trap.Value, spline.Value, 1e-9)
	require.InEpsilon(t, 0.1*4000, spline.Uncertainty, 1e-9)
}

func blackbodySED(theta, temperature float64, bands map[string]float64) sed.SED {
	s := sed.SED{Time: 3}
	for _, name := range []string{"U", "B", "V", "R", "I"} {
		wl := bands[name]
		f := math.Pi * theta * theta * planck.Function(wl, temperature)
		s.Points = append(s.Points, sed.Point{Band: name, Wavelength: wl, Flux: f, Uncertainty: 0.02 * f})
	}
	return s
}

func TestAugmentedAddsTails(t *testing.T) {
	wavelengths := map[string]float64{"U": 3660, "B": 4380, "V": 5450, "R": 6410, "I": 7980}
	s := blackbodySED(3e-11, 8000, wavelengths)
	fit, err := blackbody.NewFitter().Fit(s)
	require.NoError(t, err)

	aug, err := Augmented(s, fit, "U")
	require.NoError(t, err)
	require.False(t, aug.LinearUV)
	require.InEpsilon(t, aug.QuasiBolometric.Value+aug.IR.Value+aug.UV.Value, aug.Total.Value, 1e-12)
	require.InEpsilon(t, fit.BolometricFlux().Value, aug.Total.Value, 0.02)

	suppressed := sed.SED{Time: s.Time, Points: append([]sed.Point(nil), s.Points...)}
	suppressed.Points[0].Flux *= 0.5
	aug, err = Augmented(suppressed, fit, "U")
	require.NoError(t, err)
	require.True(t, aug.LinearUV)
	require.InEpsilon(t, 0.5*(3660-2000)*suppressed.Points[0].Flux, aug.UV.Value, 1e-12)

	_, err = Augmented(s, nil, "U")
	require.ErrorIs(t, err, blackbody.ErrFitFailed)
}
