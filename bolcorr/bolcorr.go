// Package bolcorr estimates bolometric fluxes from colour dependent
// bolometric corrections.
package bolcorr

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/timzifer/superbol/luminosity"
	"github.com/timzifer/superbol/photometry"
)

var (
	// ErrInvalidBCMethod reports a method name missing from the engine.
	ErrInvalidBCMethod = errors.New("invalid bolometric correction method")
	// ErrInvalidFilterCombination reports a colour the method has no relation for.
	ErrInvalidFilterCombination = errors.New("invalid filter combination")
	// ErrInvalidColor reports a colour outside the calibrated range of a
	// relation. Relations are never extrapolated.
	ErrInvalidColor = fmt.Errorf("invalid color: %w", photometry.ErrOutOfBounds)
	// ErrInsufficientMagnitudes is returned when an epoch lacks the bands a
	// correction needs.
	ErrInsufficientMagnitudes = errors.New("insufficient magnitudes")
)

// DefaultReferenceBand is the band the correction is applied to.
const DefaultReferenceBand = "V"

// Correction is a bolometric correction in magnitudes.
type Correction struct {
	Value       float64
	Uncertainty float64
}

// BolometricMagnitude is an apparent bolometric magnitude at a time.
type BolometricMagnitude struct {
	Time        float64
	Value       float64
	Uncertainty float64
}

// ComputePolynomial evaluates sum c_i x^i.
func ComputePolynomial(coefficients []float64, x float64) float64 {
	result := 0.0
	for i := len(coefficients) - 1; i >= 0; i-- {
		result = result*x + coefficients[i]
	}
	return result
}

// ComputePolynomialDerivative evaluates sum i c_i x^(i-1).
func ComputePolynomialDerivative(coefficients []float64, x float64) float64 {
	result := 0.0
	for i := len(coefficients) - 1; i >= 1; i-- {
		result = result*x + float64(i)*coefficients[i]
	}
	return result
}

// ComputeBolometricCorrection evaluates the method's relation for the colour
// m1-m2.
func ComputeBolometricCorrection(method *Method, m1, m2 photometry.ObservedMagnitude) (Correction, error) {
	rel, err := method.Relation(m1.Band.Name, m2.Band.Name)
	if err != nil {
		return Correction{}, err
	}
	color := m1.Magnitude - m2.Magnitude
	if !rel.InRange(color) {
		return Correction{}, fmt.Errorf("%w: %s %.3f outside [%v, %v] for %s",
			ErrInvalidColor, rel.Color, color, rel.RangeMin, rel.RangeMax, method.Name)
	}
	value, err := rel.Evaluate(color)
	if err != nil {
		return Correction{}, err
	}
	slope, err := rel.Derivative(color)
	if err != nil {
		return Correction{}, err
	}
	colorErr := math.Hypot(m1.Uncertainty, m2.Uncertainty)
	return Correction{Value: value, Uncertainty: math.Hypot(rel.RMS, slope*colorErr)}, nil
}

// ApplyBolometricCorrection adds the correction to a single band magnitude.
func ApplyBolometricCorrection(bc Correction, m photometry.ObservedMagnitude) BolometricMagnitude {
	return BolometricMagnitude{
		Time:        m.Time,
		Value:       m.Magnitude + bc.Value,
		Uncertainty: math.Hypot(bc.Uncertainty, m.Uncertainty),
	}
}

// ConvertMbolToFbol converts a bolometric magnitude to a flux in
// erg s^-1 cm^-2 using the method zero point.
func ConvertMbolToFbol(mbol BolometricMagnitude, zeroPoint float64) luminosity.Flux {
	flux := math.Pow(10, (-mbol.Value+zeroPoint)/2.5)
	return luminosity.Flux{
		Value:       flux,
		Uncertainty: math.Abs(math.Ln10 / 2.5 * flux * mbol.Uncertainty),
	}
}

// EpochFlux estimates the bolometric flux at one epoch from every band pair
// the method calibrates. Colours are formed blue minus red. Pairs with an
// out of range colour are skipped and the remaining estimates are averaged.
func EpochFlux(method *Method, mags []photometry.ObservedMagnitude, reference string) (luminosity.Flux, int, error) {
	if reference == "" {
		reference = DefaultReferenceBand
	}
	sorted := append([]photometry.ObservedMagnitude(nil), mags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Band.EffectiveWavelength < sorted[j].Band.EffectiveWavelength
	})

	var ref *photometry.ObservedMagnitude
	for i := range sorted {
		if sorted[i].Band.Name == reference {
			ref = &sorted[i]
			break
		}
	}
	if ref == nil {
		return luminosity.Flux{}, 0, fmt.Errorf("%w: reference band %s not observed", ErrInsufficientMagnitudes, reference)
	}

	var values, uncertainties []float64
	var lastColorErr error
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			bc, err := ComputeBolometricCorrection(method, sorted[i], sorted[j])
			switch {
			case errors.Is(err, ErrInvalidFilterCombination):
				continue
			case errors.Is(err, ErrInvalidColor):
				lastColorErr = err
				continue
			case err != nil:
				return luminosity.Flux{}, 0, err
			}
			flux := ConvertMbolToFbol(ApplyBolometricCorrection(bc, *ref), method.ZeroPoint)
			values = append(values, flux.Value)
			uncertainties = append(uncertainties, flux.Uncertainty)
		}
	}
	if len(values) == 0 {
		if lastColorErr != nil {
			return luminosity.Flux{}, 0, lastColorErr
		}
		return luminosity.Flux{}, 0, fmt.Errorf("%w: no colour calibrated by %s", ErrInsufficientMagnitudes, method.Name)
	}
	return luminosity.Flux{Value: stat.Mean(values, nil), Uncertainty: stat.Mean(uncertainties, nil)}, len(values), nil
}
