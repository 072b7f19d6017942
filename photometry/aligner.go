package photometry

import (
	"errors"
	"fmt"
	"sort"
)

// Aligner places every band of a photometry set on a common epoch grid.
type Aligner struct {
	set    *Set
	policy Policy
}

// Epoch groups the magnitudes available at one time, ordered by wavelength.
type Epoch struct {
	Time       float64
	Magnitudes []ObservedMagnitude
}

// Band returns the magnitude for the named band at this epoch.
func (e Epoch) Band(name string) (ObservedMagnitude, bool) {
	for _, m := range e.Magnitudes {
		if m.Band.Name == name {
			return m, true
		}
	}
	return ObservedMagnitude{}, false
}

// Fluxes converts every magnitude at the epoch to a monochromatic flux.
func (e Epoch) Fluxes() []MonochromaticFlux {
	out := make([]MonochromaticFlux, len(e.Magnitudes))
	for i, m := range e.Magnitudes {
		out[i] = m.ConvertToFlux()
	}
	return out
}

// NewAligner creates an aligner over set using the provided policy.
func NewAligner(set *Set, policy Policy) *Aligner {
	if set == nil {
		set = newEmptySet()
	}
	return &Aligner{set: set, policy: policy}
}

// Times is the ordered union of all observed epochs.
func (a *Aligner) Times() []float64 {
	return Times(a.set.All())
}

// ObservedTimes lists the epochs at which band was observed.
func (a *Aligner) ObservedTimes(band string) ([]float64, error) {
	series, err := a.series(band)
	if err != nil {
		return nil, err
	}
	return Times(series), nil
}

// UnobservedTimes lists union epochs at which band was not observed.
func (a *Aligner) UnobservedTimes(band string) ([]float64, error) {
	series, err := a.series(band)
	if err != nil {
		return nil, err
	}
	observed := make(map[string]struct{}, len(series))
	for _, obs := range series {
		observed[EpochKey(obs.Time)] = struct{}{}
	}
	var out []float64
	for _, t := range a.Times() {
		if _, ok := observed[EpochKey(t)]; !ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// PreviousObservedMagnitude returns the last observation of band before t.
func (a *Aligner) PreviousObservedMagnitude(band string, t float64) (ObservedMagnitude, error) {
	series, err := a.series(band)
	if err != nil {
		return ObservedMagnitude{}, err
	}
	prev, err := PreviousObserved(series, t)
	if err != nil {
		return ObservedMagnitude{}, a.wrapBounds(band, t, err)
	}
	return prev, nil
}

// NextObservedMagnitude returns the first observation of band after t.
func (a *Aligner) NextObservedMagnitude(band string, t float64) (ObservedMagnitude, error) {
	series, err := a.series(band)
	if err != nil {
		return ObservedMagnitude{}, err
	}
	next, err := NextObserved(series, t)
	if err != nil {
		return ObservedMagnitude{}, a.wrapBounds(band, t, err)
	}
	return next, nil
}

// MagnitudeAt returns the observed or interpolated magnitude of band at t.
func (a *Aligner) MagnitudeAt(band string, t float64) (ObservedMagnitude, error) {
	series, err := a.series(band)
	if err != nil {
		return ObservedMagnitude{}, err
	}
	if len(series) < 2 && !a.policy.Extrapolate {
		for _, obs := range series {
			if SameEpoch(obs.Time, t) {
				return obs, nil
			}
		}
		return ObservedMagnitude{}, fmt.Errorf("%w: band %s has %d observation(s)", ErrInsufficientObservations, band, len(series))
	}
	mag, err := InterpolateAt(series, t, a.policy)
	if err != nil {
		return ObservedMagnitude{}, a.wrapBounds(band, t, err)
	}
	return mag, nil
}

// InterpolateMissingMagnitudes returns a new set in which each band carries a
// value at every union epoch inside its observed range. Epochs outside a band's
// range stay empty unless extrapolation is enabled.
func (a *Aligner) InterpolateMissingMagnitudes() *Set {
	out := newEmptySet()
	for band, series := range a.set.series {
		out.series[band] = append([]ObservedMagnitude(nil), series...)
	}
	times := a.Times()
	for band := range a.set.series {
		missing := unobservedIn(a.set.series[band], times)
		for _, t := range missing {
			mag, err := a.MagnitudeAt(band, t)
			if err != nil {
				continue
			}
			out.series[band] = append(out.series[band], mag)
		}
		series := out.series[band]
		sort.SliceStable(series, func(i, j int) bool { return series[i].Time < series[j].Time })
	}
	return out
}

// GroupMagnitudes groups every band's observed and interpolated magnitudes by
// epoch.
func (a *Aligner) GroupMagnitudes() []Epoch {
	return GroupByEpoch(a.InterpolateMissingMagnitudes())
}

// GroupByEpoch groups the magnitudes of set by epoch without interpolating.
func GroupByEpoch(set *Set) []Epoch {
	index := make(map[string]int)
	var epochs []Epoch
	for _, obs := range set.All() {
		key := EpochKey(obs.Time)
		pos, ok := index[key]
		if !ok {
			pos = len(epochs)
			index[key] = pos
			epochs = append(epochs, Epoch{Time: obs.Time})
		}
		epochs[pos].Magnitudes = append(epochs[pos].Magnitudes, obs)
	}
	for i := range epochs {
		mags := epochs[i].Magnitudes
		sort.SliceStable(mags, func(x, y int) bool {
			return mags[x].Band.EffectiveWavelength < mags[y].Band.EffectiveWavelength
		})
	}
	sort.SliceStable(epochs, func(i, j int) bool { return epochs[i].Time < epochs[j].Time })
	return epochs
}

func (a *Aligner) series(band string) ([]ObservedMagnitude, error) {
	if band == "" {
		return nil, ErrNoBandNameGiven
	}
	series, ok := a.set.series[band]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBandFound, band)
	}
	return series, nil
}

func (a *Aligner) wrapBounds(band string, t float64, err error) error {
	if errors.Is(err, ErrGapTooWide) {
		return fmt.Errorf("band %s at %v: %w", band, t, err)
	}
	if errors.Is(err, ErrOutOfBounds) {
		return fmt.Errorf("%w: band %s at %v", ErrMissingMagnitudeOutOfBounds, band, t)
	}
	return err
}

func unobservedIn(series []ObservedMagnitude, times []float64) []float64 {
	observed := make(map[string]struct{}, len(series))
	for _, obs := range series {
		observed[EpochKey(obs.Time)] = struct{}{}
	}
	var out []float64
	for _, t := range times {
		if _, ok := observed[EpochKey(t)]; !ok {
			out = append(out, t)
		}
	}
	return out
}
