// Package planck evaluates the Planck law and its wavelength integrals in cgs
// units. Wavelengths are given in Angstrom.
package planck

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

const (
	h          = 6.62607015e-27 // erg s
	c          = 2.99792458e10  // cm s^-1
	kB         = 1.380649e-16   // erg K^-1
	angstromCm = 1e-8

	// C1 is the first radiation constant 2hc^2 in erg cm^2 s^-1.
	C1 = 2 * h * c * c
	// C2 is the second radiation constant hc/k in cm K.
	C2 = h * c / kB
	// StefanBoltzmann is sigma in erg s^-1 cm^-2 K^-4.
	StefanBoltzmann = 5.670374419e-5

	maxSeriesTerms = 512
)

// ErrInvalidArgument reports a non-positive temperature or an inverted
// wavelength range.
var ErrInvalidArgument = errors.New("invalid planck argument")

// Function is the specific intensity B_lambda in erg s^-1 cm^-2 A^-1 sr^-1.
func Function(wavelength, temperature float64) float64 {
	lambda := wavelength * angstromCm
	return C1 / math.Pow(lambda, 5) / math.Expm1(C2/(lambda*temperature)) * angstromCm
}

// DFunctionDT is the temperature derivative of Function.
func DFunctionDT(wavelength, temperature float64) float64 {
	x := C2 / (wavelength * angstromCm * temperature)
	b := Function(wavelength, temperature)
	if x > 700 {
		return b * x / temperature
	}
	return b * x * math.Exp(x) / math.Expm1(x) / temperature
}

// Total is the integral of B_lambda over all wavelengths, sigma T^4 / pi,
// in erg s^-1 cm^-2 sr^-1.
func Total(temperature float64) float64 {
	return StefanBoltzmann * math.Pow(temperature, 4) / math.Pi
}

// DTotalDT is the temperature derivative of Total.
func DTotalDT(temperature float64) float64 {
	return 4 * StefanBoltzmann * math.Pow(temperature, 3) / math.Pi
}

// Integral integrates B_lambda from minWavelength to maxWavelength. A zero
// lower bound and an infinite upper bound select the closed form.
func Integral(temperature, minWavelength, maxWavelength float64) (float64, error) {
	if err := validate(temperature, minWavelength, maxWavelength); err != nil {
		return 0, err
	}
	return cumulative(maxWavelength, temperature) - cumulative(minWavelength, temperature), nil
}

// DIntegralDT is the temperature derivative of Integral.
func DIntegralDT(temperature, minWavelength, maxWavelength float64) (float64, error) {
	if err := validate(temperature, minWavelength, maxWavelength); err != nil {
		return 0, err
	}
	return dCumulativeDT(maxWavelength, temperature) - dCumulativeDT(minWavelength, temperature), nil
}

// Quadrature integrates B_lambda over a finite range with n-point
// Gauss-Legendre quadrature.
func Quadrature(temperature, minWavelength, maxWavelength float64, n int) (float64, error) {
	if err := validate(temperature, minWavelength, maxWavelength); err != nil {
		return 0, err
	}
	if math.IsInf(maxWavelength, 1) {
		return 0, fmt.Errorf("%w: quadrature needs a finite upper bound", ErrInvalidArgument)
	}
	if n <= 0 {
		n = 64
	}
	f := func(wl float64) float64 {
		if wl <= 0 {
			return 0
		}
		return Function(wl, temperature)
	}
	return quad.Fixed(f, minWavelength, maxWavelength, n, nil, 0), nil
}

func validate(temperature, minWavelength, maxWavelength float64) error {
	switch {
	case !(temperature > 0) || math.IsInf(temperature, 0):
		return fmt.Errorf("%w: temperature %v", ErrInvalidArgument, temperature)
	case minWavelength < 0 || math.IsNaN(minWavelength) || math.IsInf(minWavelength, 0):
		return fmt.Errorf("%w: minimum wavelength %v", ErrInvalidArgument, minWavelength)
	case math.IsNaN(maxWavelength) || minWavelength > maxWavelength:
		return fmt.Errorf("%w: wavelength range [%v, %v]", ErrInvalidArgument, minWavelength, maxWavelength)
	}
	return nil
}

// seriesTerms bounds the series so that e^-nx has decayed well below
// double precision relative to the leading term.
func seriesTerms(x float64) int {
	n := 2 + 20/x
	if n > maxSeriesTerms {
		return maxSeriesTerms
	}
	return int(n)
}

// cumulative integrates B_lambda from zero to wavelength.
func cumulative(wavelength, temperature float64) float64 {
	switch {
	case wavelength <= 0:
		return 0
	case math.IsInf(wavelength, 1):
		return Total(temperature)
	}
	x := C2 / (wavelength * angstromCm * temperature)
	series := 0.0
	for n := 1; n < seriesTerms(x); n++ {
		fn := float64(n)
		series += (x*x*x/fn + 3*x*x/(fn*fn) + 6*x/(fn*fn*fn) + 6/(fn*fn*fn*fn)) * math.Exp(-fn*x)
	}
	return C1 * math.Pow(temperature, 4) / math.Pow(C2, 4) * series
}

func dCumulativeDT(wavelength, temperature float64) float64 {
	switch {
	case wavelength <= 0:
		return 0
	case math.IsInf(wavelength, 1):
		return DTotalDT(temperature)
	}
	lambda := wavelength * angstromCm
	t := temperature
	x := C2 / (lambda * t)
	series := 0.0
	for n := 1; n < seriesTerms(x); n++ {
		fn := float64(n)
		term := C1/(t*math.Pow(lambda, 4)) +
			4*C1/(fn*C2*math.Pow(lambda, 3)) +
			12*C1*t/(fn*fn*C2*C2*lambda*lambda) +
			24*C1*t*t/(fn*fn*fn*math.Pow(C2, 3)*lambda) +
			24*C1*t*t*t/(fn*fn*fn*fn*math.Pow(C2, 4))
		series += term * math.Exp(-fn*x)
	}
	return series
}
