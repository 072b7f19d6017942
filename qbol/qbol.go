// Package qbol integrates observed SEDs directly, without a spectral model.
package qbol

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/interp"

	"github.com/timzifer/superbol/blackbody"
	"github.com/timzifer/superbol/luminosity"
	"github.com/timzifer/superbol/sed"
)

// Calculate integrates the SED with the trapezoidal rule over its observed
// wavelength range.
func Calculate(s sed.SED) (luminosity.Flux, error) {
	if s.Len() < 2 {
		return luminosity.Flux{}, fmt.Errorf("%w: quasi-bolometric flux needs 2 points, have %d", sed.ErrInsufficientFluxes, s.Len())
	}
	wavelengths := s.Wavelengths()
	return luminosity.Flux{
		Value:       integrate.Trapezoidal(wavelengths, s.Values()),
		Uncertainty: TrapezoidUncertainty(wavelengths, s.Uncertainties()),
	}, nil
}

// TrapezoidUncertainty propagates point uncertainties through the
// trapezoidal rule. Interior points carry half the span to their neighbours,
// endpoints half their single adjacent gap.
func TrapezoidUncertainty(wavelengths, uncertainties []float64) float64 {
	n := len(wavelengths)
	if n < 2 {
		return 0
	}
	radicand := 0.0
	for i, sigma := range uncertainties {
		var span float64
		switch i {
		case 0:
			span = wavelengths[1] - wavelengths[0]
		case n - 1:
			span = wavelengths[n-1] - wavelengths[n-2]
		default:
			span = wavelengths[i+1] - wavelengths[i-1]
		}
		term := 0.5 * span * sigma
		radicand += term * term
	}
	return math.Sqrt(radicand)
}

// CalculateSpline integrates a natural cubic spline through the SED. The
// uncertainty is the difference between the integrals of the flux+sigma and
// flux splines.
func CalculateSpline(s sed.SED) (luminosity.Flux, error) {
	if s.Len() < 3 {
		return luminosity.Flux{}, fmt.Errorf("%w: spline integration needs 3 points, have %d", sed.ErrInsufficientFluxes, s.Len())
	}
	wavelengths := s.Wavelengths()
	values := s.Values()
	upper := make([]float64, len(values))
	for i, sigma := range s.Uncertainties() {
		upper[i] = values[i] + sigma
	}
	value, err := splineIntegral(wavelengths, values)
	if err != nil {
		return luminosity.Flux{}, err
	}
	shifted, err := splineIntegral(wavelengths, upper)
	if err != nil {
		return luminosity.Flux{}, err
	}
	return luminosity.Flux{Value: value, Uncertainty: math.Abs(shifted - value)}, nil
}

// splineIntegral integrates each cubic segment with two point Gauss-Legendre
// quadrature, which is exact for cubics.
func splineIntegral(xs, ys []float64) (float64, error) {
	var spline interp.NaturalCubic
	if err := spline.Fit(xs, ys); err != nil {
		return 0, fmt.Errorf("fit spline: %w", err)
	}
	total := 0.0
	for i := 1; i < len(xs); i++ {
		total += quad.Fixed(spline.Predict, xs[i-1], xs[i], 2, nil, 0)
	}
	return total, nil
}

// Augmentation is a quasi-bolometric flux extended with blackbody tails.
type Augmentation struct {
	QuasiBolometric luminosity.Flux
	IR              luminosity.Flux
	UV              luminosity.Flux
	// LinearUV is set when the UV tail was taken as a line to zero at 2000 A
	// because the UV reference band sits below the blackbody.
	LinearUV bool
	Total    luminosity.Flux
}

// Augmented adds the fitted blackbody flux redward of the reddest point and
// a UV tail blueward of the bluest point. When the SED contains uvBand and its
// flux falls below the fitted blackbody, the UV tail is linear instead.
func Augmented(s sed.SED, fit *blackbody.Fit, uvBand string) (Augmentation, error) {
	if fit == nil {
		return Augmentation{}, fmt.Errorf("%w: no blackbody fit", blackbody.ErrFitFailed)
	}
	qbol, err := Calculate(s)
	if err != nil {
		return Augmentation{}, err
	}
	bluest, err := s.Bluest()
	if err != nil {
		return Augmentation{}, err
	}
	reddest, err := s.Reddest()
	if err != nil {
		return Augmentation{}, err
	}
	ir, err := fit.IRCorrection(reddest.Wavelength)
	if err != nil {
		return Augmentation{}, err
	}

	out := Augmentation{QuasiBolometric: qbol, IR: ir}
	if suppressedUV(s, fit, uvBand) {
		out.UV = blackbody.UVCorrectionLinear(bluest.Wavelength, bluest.Flux, bluest.Uncertainty)
		out.LinearUV = true
	} else {
		out.UV, err = fit.UVCorrection(bluest.Wavelength)
		if err != nil {
			return Augmentation{}, err
		}
	}
	out.Total = qbol.Plus(ir).Plus(out.UV)
	return out, nil
}

func suppressedUV(s sed.SED, fit *blackbody.Fit, uvBand string) bool {
	if uvBand == "" {
		return false
	}
	for _, p := range s.Points {
		if p.Band == uvBand {
			return p.Flux < fit.Flux(p.Wavelength)
		}
	}
	return false
}
