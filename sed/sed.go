// Package sed assembles per-epoch spectral energy distributions from
// monochromatic fluxes.
package sed

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/timzifer/superbol/photometry"
)

var (
	// ErrInsufficientFluxes is returned when an SED has too few points for the
	// requested reduction.
	ErrInsufficientFluxes = errors.New("insufficient fluxes")
	// ErrMissingFluxOutOfBounds is returned when a flux is requested outside
	// the observed time range of its band.
	ErrMissingFluxOutOfBounds = fmt.Errorf("missing flux: %w", photometry.ErrOutOfBounds)
	// ErrSEDGapTooLarge marks an SED whose widest wavelength gap exceeds the
	// configured limit.
	ErrSEDGapTooLarge = fmt.Errorf("sed gap too large: %w", photometry.ErrOutOfBounds)
)

// Point is one wavelength sample of an SED.
type Point struct {
	Band        string
	Wavelength  float64
	Flux        float64
	Uncertainty float64
	Provenance  photometry.Provenance
}

// SED is the flux distribution at one epoch, ordered by strictly increasing
// wavelength.
type SED struct {
	Time   float64
	Points []Point
}

// Build assembles an SED from the fluxes observed or interpolated at time.
// Fluxes sharing a wavelength are combined with an inverse-variance average.
func Build(time float64, fluxes []photometry.MonochromaticFlux) (SED, error) {
	integrable, err := IntegrableFluxes(fluxes)
	if err != nil {
		return SED{}, err
	}
	if len(integrable) == 0 {
		return SED{}, fmt.Errorf("%w: no fluxes at %v", ErrInsufficientFluxes, time)
	}
	points := make([]Point, len(integrable))
	for i, f := range integrable {
		points[i] = Point{
			Band:        f.Band,
			Wavelength:  f.Wavelength,
			Flux:        f.Flux,
			Uncertainty: f.Uncertainty,
			Provenance:  f.Provenance,
		}
	}
	return SED{Time: time, Points: points}, nil
}

// FromEpoch converts an aligned epoch of magnitudes into an SED.
func FromEpoch(epoch photometry.Epoch) (SED, error) {
	return Build(epoch.Time, epoch.Fluxes())
}

// Len is the number of points.
func (s SED) Len() int { return len(s.Points) }

// Wavelengths returns the point wavelengths in order.
func (s SED) Wavelengths() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Wavelength
	}
	return out
}

// Values returns the point fluxes in wavelength order.
func (s SED) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Flux
	}
	return out
}

// Uncertainties returns the point flux uncertainties in wavelength order.
func (s SED) Uncertainties() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Uncertainty
	}
	return out
}

// Bluest returns the shortest wavelength point.
func (s SED) Bluest() (Point, error) {
	if len(s.Points) == 0 {
		return Point{}, ErrInsufficientFluxes
	}
	return s.Points[0], nil
}

// Reddest returns the longest wavelength point.
func (s SED) Reddest() (Point, error) {
	if len(s.Points) == 0 {
		return Point{}, ErrInsufficientFluxes
	}
	return s.Points[len(s.Points)-1], nil
}

// GapSize reports the wavelength separation of each adjacent pair of points.
func GapSize(s SED) []float64 {
	if len(s.Points) < 2 {
		return nil
	}
	gaps := make([]float64, len(s.Points)-1)
	for i := 1; i < len(s.Points); i++ {
		gaps[i-1] = s.Points[i].Wavelength - s.Points[i-1].Wavelength
	}
	return gaps
}

// MaxGap is the widest adjacent wavelength separation, zero for fewer than
// two points.
func MaxGap(s SED) float64 {
	widest := 0.0
	for _, gap := range GapSize(s) {
		widest = math.Max(widest, gap)
	}
	return widest
}

// Trim keeps only points redder than minWavelength.
func Trim(s SED, minWavelength float64) SED {
	out := SED{Time: s.Time}
	for _, p := range s.Points {
		if p.Wavelength > minWavelength {
			out.Points = append(out.Points, p)
		}
	}
	return out
}

// FluxValues extracts the flux of each sample.
func FluxValues(fluxes []photometry.MonochromaticFlux) []float64 {
	out := make([]float64, len(fluxes))
	for i, f := range fluxes {
		out[i] = f.Flux
	}
	return out
}

// FluxUncertainties extracts the uncertainty of each sample.
func FluxUncertainties(fluxes []photometry.MonochromaticFlux) []float64 {
	out := make([]float64, len(fluxes))
	for i, f := range fluxes {
		out[i] = f.Uncertainty
	}
	return out
}

// CombineFluxes merges fluxes measured at one wavelength.
func CombineFluxes(fluxes []photometry.MonochromaticFlux) (photometry.MonochromaticFlux, error) {
	if len(fluxes) == 0 {
		return photometry.MonochromaticFlux{}, ErrInsufficientFluxes
	}
	return photometry.Combine(fluxes)
}

// IntegrableFluxes returns one flux per distinct wavelength, combining
// duplicates, ordered by wavelength.
func IntegrableFluxes(fluxes []photometry.MonochromaticFlux) ([]photometry.MonochromaticFlux, error) {
	byWavelength := make(map[float64][]photometry.MonochromaticFlux)
	var wavelengths []float64
	for _, f := range fluxes {
		if _, ok := byWavelength[f.Wavelength]; !ok {
			wavelengths = append(wavelengths, f.Wavelength)
		}
		byWavelength[f.Wavelength] = append(byWavelength[f.Wavelength], f)
	}
	sort.Float64s(wavelengths)
	out := make([]photometry.MonochromaticFlux, 0, len(wavelengths))
	for _, wl := range wavelengths {
		combined, err := CombineFluxes(byWavelength[wl])
		if err != nil {
			return nil, fmt.Errorf("combine fluxes at %v A: %w", wl, err)
		}
		out = append(out, combined)
	}
	return out, nil
}

// GroupFluxes groups fluxes whose times map to the same key. A nil key groups
// by calendar day (floor of the time).
func GroupFluxes(fluxes []photometry.MonochromaticFlux, key func(float64) float64) [][]photometry.MonochromaticFlux {
	if key == nil {
		key = math.Floor
	}
	sorted := append([]photometry.MonochromaticFlux(nil), fluxes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	var groups [][]photometry.MonochromaticFlux
	for i, f := range sorted {
		if i == 0 || key(f.Time) != key(sorted[i-1].Time) {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], f)
	}
	return groups
}

// InterpolatedFluxes evaluates a single band's time-ordered flux series at
// each of times.
func InterpolatedFluxes(series []photometry.MonochromaticFlux, times []float64, policy photometry.Policy) ([]photometry.MonochromaticFlux, error) {
	if len(series) == 0 {
		return nil, ErrInsufficientFluxes
	}
	out := make([]photometry.MonochromaticFlux, 0, len(times))
	for _, t := range times {
		f, err := photometry.InterpolateAt(series, t, policy)
		switch {
		case errors.Is(err, photometry.ErrGapTooWide):
			return nil, fmt.Errorf("band %s at %v: %w", series[0].Band, t, err)
		case errors.Is(err, photometry.ErrOutOfBounds):
			return nil, fmt.Errorf("%w: band %s at %v", ErrMissingFluxOutOfBounds, series[0].Band, t)
		case err != nil:
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
