package photometry

import (
	"fmt"
	"math"
	"sort"
)

// Set holds time-ordered observations per band.
type Set struct {
	series map[string][]ObservedMagnitude
}

func newEmptySet() *Set {
	return &Set{series: make(map[string][]ObservedMagnitude)}
}

// NewSet builds a photometry set. Duplicate (band, time) pairs are rejected.
func NewSet(observations ...ObservedMagnitude) (*Set, error) {
	set := newEmptySet()
	for _, obs := range observations {
		if err := set.Add(obs); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Add inserts an observation keeping the band series ordered by time.
func (s *Set) Add(obs ObservedMagnitude) error {
	if err := validateObservation(obs); err != nil {
		return err
	}
	name := obs.Band.Name
	series := s.series[name]
	idx := sort.Search(len(series), func(i int) bool { return series[i].Time >= obs.Time })
	if idx < len(series) && SameEpoch(series[idx].Time, obs.Time) {
		return fmt.Errorf("%w: band %s at %v", ErrDuplicateObservation, name, obs.Time)
	}
	if idx > 0 && SameEpoch(series[idx-1].Time, obs.Time) {
		return fmt.Errorf("%w: band %s at %v", ErrDuplicateObservation, name, obs.Time)
	}
	series = append(series, ObservedMagnitude{})
	copy(series[idx+1:], series[idx:])
	series[idx] = obs
	s.series[name] = series
	return nil
}

func validateObservation(obs ObservedMagnitude) error {
	if obs.Band.Name == "" {
		return ErrNoBandNameGiven
	}
	if math.IsNaN(obs.Time) || math.IsInf(obs.Time, 0) {
		return fmt.Errorf("%w: band %s", ErrNoTimeGiven, obs.Band.Name)
	}
	if math.IsNaN(obs.Magnitude) || math.IsInf(obs.Magnitude, 0) {
		return fmt.Errorf("%w: band %s at %v", ErrNoMagnitude, obs.Band.Name, obs.Time)
	}
	return nil
}

// Bands lists band names ordered by effective wavelength, then name.
func (s *Set) Bands() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		wi, wj := s.wavelength(names[i]), s.wavelength(names[j])
		if wi != wj {
			return wi < wj
		}
		return names[i] < names[j]
	})
	return names
}

func (s *Set) wavelength(band string) float64 {
	series := s.series[band]
	if len(series) == 0 {
		return 0
	}
	return series[0].Band.EffectiveWavelength
}

// Series returns a copy of the observations of one band.
func (s *Set) Series(band string) []ObservedMagnitude {
	if s == nil {
		return nil
	}
	return append([]ObservedMagnitude(nil), s.series[band]...)
}

// All returns every observation ordered by time, then wavelength.
func (s *Set) All() []ObservedMagnitude {
	if s == nil {
		return nil
	}
	out := make([]ObservedMagnitude, 0, s.Len())
	for _, series := range s.series {
		out = append(out, series...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Band.EffectiveWavelength < out[j].Band.EffectiveWavelength
	})
	return out
}

// Len is the number of observations across all bands.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, series := range s.series {
		total += len(series)
	}
	return total
}

// ResolveBands replaces each observation's band with the table entry of the
// same name so that wavelengths and zero points are authoritative.
func (s *Set) ResolveBands(table *BandTable) (*Set, error) {
	out := newEmptySet()
	for name, series := range s.series {
		band, err := table.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBand, err)
		}
		for _, obs := range series {
			obs.Band = band
			if err := out.Add(obs); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
