package photometry

import (
	"fmt"
	"math"
)

// Provenance tags whether a value was measured or derived.
type Provenance uint8

const (
	ProvenanceObserved Provenance = iota
	ProvenanceInterpolated
	// ProvenanceCombined marks a weighted combination of repeated detections.
	ProvenanceCombined
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceObserved:
		return "observed"
	case ProvenanceInterpolated:
		return "interpolated"
	case ProvenanceCombined:
		return "combined"
	default:
		return fmt.Sprintf("provenance(%d)", uint8(p))
	}
}

// ObservedMagnitude is a single brightness measurement in one band.
type ObservedMagnitude struct {
	Band        Band
	Time        float64
	Magnitude   float64
	Uncertainty float64
	Provenance  Provenance
}

// MonochromaticFlux is the flux density of an observation at the band's
// effective wavelength.
type MonochromaticFlux struct {
	Band        string
	Time        float64
	Flux        float64
	Uncertainty float64
	Wavelength  float64
	Provenance  Provenance
}

// ConvertToFlux converts the magnitude into a flux density using the band's
// zero point. The relative flux uncertainty is 0.4 ln(10) times the magnitude
// uncertainty.
func (m ObservedMagnitude) ConvertToFlux() MonochromaticFlux {
	flux := calculateFlux(m.Magnitude, m.Band.FluxConversionFactor)
	return MonochromaticFlux{
		Band:        m.Band.Name,
		Time:        m.Time,
		Flux:        flux,
		Uncertainty: calculateFluxUncertainty(flux, m.Uncertainty),
		Wavelength:  m.Band.EffectiveWavelength,
		Provenance:  m.Provenance,
	}
}

// Convert resolves the magnitude's band against table and converts it to flux.
func Convert(m ObservedMagnitude, table *BandTable) (MonochromaticFlux, error) {
	band, err := table.Lookup(m.Band.Name)
	if err != nil {
		return MonochromaticFlux{}, fmt.Errorf("%w: %w", ErrInvalidBand, err)
	}
	m.Band = band
	return m.ConvertToFlux(), nil
}

func calculateFlux(magnitude, zeroPoint float64) float64 {
	return zeroPoint * math.Pow(10, -0.4*magnitude)
}

func calculateFluxUncertainty(flux, magnitudeUncertainty float64) float64 {
	return math.Abs(flux * 0.4 * math.Ln10 * magnitudeUncertainty)
}

// SampleTime implements Sample.
func (m ObservedMagnitude) SampleTime() float64 { return m.Time }

// SampleValue implements Sample.
func (m ObservedMagnitude) SampleValue() (float64, float64) { return m.Magnitude, m.Uncertainty }

// Derive implements Sample.
func (m ObservedMagnitude) Derive(time, value, uncertainty float64, provenance Provenance) ObservedMagnitude {
	return ObservedMagnitude{Band: m.Band, Time: time, Magnitude: value, Uncertainty: uncertainty, Provenance: provenance}
}

// SampleTime implements Sample.
func (f MonochromaticFlux) SampleTime() float64 { return f.Time }

// SampleValue implements Sample.
func (f MonochromaticFlux) SampleValue() (float64, float64) { return f.Flux, f.Uncertainty }

// Derive implements Sample.
func (f MonochromaticFlux) Derive(time, value, uncertainty float64, provenance Provenance) MonochromaticFlux {
	return MonochromaticFlux{
		Band:        f.Band,
		Time:        time,
		Flux:        value,
		Uncertainty: uncertainty,
		Wavelength:  f.Wavelength,
		Provenance:  provenance,
	}
}
