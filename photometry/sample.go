package photometry

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// epochPrecision is the number of decimal places (in days) that identify an epoch.
const epochPrecision = 6

// Sample is the capability set shared by magnitudes and fluxes so that
// interpolation and combination are implemented once for both.
type Sample[T any] interface {
	SampleTime() float64
	SampleValue() (value, uncertainty float64)
	Derive(time, value, uncertainty float64, provenance Provenance) T
}

// Policy controls how missing values are filled.
type Policy struct {
	// MaxGap is the widest anchor separation (days) that may be bridged.
	// Zero disables the limit.
	MaxGap float64
	// Extrapolate holds the nearest observation constant outside the observed
	// range. It is never enabled by default.
	Extrapolate bool
}

// EpochKey canonicalises a time so that values differing only by floating
// point noise map onto the same epoch.
func EpochKey(t float64) string {
	return decimal.NewFromFloat(t).Round(epochPrecision).String()
}

// SameEpoch reports whether two times identify the same epoch.
func SameEpoch(a, b float64) bool {
	return EpochKey(a) == EpochKey(b)
}

// Times returns the ordered distinct epochs present in samples.
func Times[T Sample[T]](samples []T) []float64 {
	seen := make(map[string]struct{}, len(samples))
	times := make([]float64, 0, len(samples))
	for _, s := range samples {
		t := s.SampleTime()
		key := EpochKey(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		times = append(times, t)
	}
	sort.Float64s(times)
	return times
}

// PreviousObserved returns the last sample strictly before t.
// The series must be ordered by time.
func PreviousObserved[T Sample[T]](series []T, t float64) (T, error) {
	var zero T
	if len(series) == 0 {
		return zero, ErrNoMagnitude
	}
	idx := sort.Search(len(series), func(i int) bool { return series[i].SampleTime() >= t })
	if idx == 0 {
		return zero, fmt.Errorf("%w: no observation before %v", ErrOutOfBounds, t)
	}
	return series[idx-1], nil
}

// NextObserved returns the first sample strictly after t.
// The series must be ordered by time.
func NextObserved[T Sample[T]](series []T, t float64) (T, error) {
	var zero T
	if len(series) == 0 {
		return zero, ErrNoMagnitude
	}
	idx := sort.Search(len(series), func(i int) bool { return series[i].SampleTime() > t })
	if idx == len(series) {
		return zero, fmt.Errorf("%w: no observation after %v", ErrOutOfBounds, t)
	}
	return series[idx], nil
}

// Interpolate linearly interpolates between two anchors. Each anchor's
// uncertainty contributes in proportion to its interpolation weight.
func Interpolate[T Sample[T]](prev, next T, t float64) T {
	t1, t2 := prev.SampleTime(), next.SampleTime()
	v1, s1 := prev.SampleValue()
	v2, s2 := next.SampleValue()
	if t2 == t1 {
		return prev
	}
	w1 := (t2 - t) / (t2 - t1)
	w2 := (t - t1) / (t2 - t1)
	value := w1*v1 + w2*v2
	uncertainty := InterpolatedUncertainty(s1, s2, w1, w2)
	return prev.Derive(t, value, uncertainty, ProvenanceInterpolated)
}

// InterpolatedUncertainty combines bracket uncertainties with their weights.
func InterpolatedUncertainty(s1, s2, w1, w2 float64) float64 {
	return math.Sqrt(w1*w1*s1*s1 + w2*w2*s2*s2)
}

// InterpolateAt returns the sample observed at t, or an interpolated one when t
// falls strictly inside the observed range. Anchors used for interpolation or
// extrapolation must carry a positive uncertainty.
func InterpolateAt[T Sample[T]](series []T, t float64, policy Policy) (T, error) {
	var zero T
	if len(series) == 0 {
		return zero, ErrNoMagnitude
	}
	for _, s := range series {
		if SameEpoch(s.SampleTime(), t) {
			return s, nil
		}
	}
	prev, errPrev := PreviousObserved(series, t)
	next, errNext := NextObserved(series, t)
	switch {
	case errPrev == nil && errNext == nil:
		if policy.MaxGap > 0 && next.SampleTime()-prev.SampleTime() > policy.MaxGap {
			return zero, fmt.Errorf("%w: %v to %v", ErrGapTooWide, prev.SampleTime(), next.SampleTime())
		}
		if err := checkAnchors(prev, next); err != nil {
			return zero, err
		}
		return Interpolate(prev, next, t), nil
	case policy.Extrapolate && errPrev == nil:
		if err := checkAnchors(prev); err != nil {
			return zero, err
		}
		return holdConstant(prev, t), nil
	case policy.Extrapolate && errNext == nil:
		if err := checkAnchors(next); err != nil {
			return zero, err
		}
		return holdConstant(next, t), nil
	case errPrev != nil:
		return zero, errPrev
	default:
		return zero, errNext
	}
}

// checkAnchors rejects anchors without a positive uncertainty. A zero
// uncertainty means the value was never measured, not that it is exact.
func checkAnchors[T Sample[T]](anchors ...T) error {
	for _, a := range anchors {
		if _, s := a.SampleValue(); !(s > 0) {
			return fmt.Errorf("%w: anchor at %v has uncertainty %v", ErrNoUncertainty, a.SampleTime(), s)
		}
	}
	return nil
}

func holdConstant[T Sample[T]](anchor T, t float64) T {
	value, uncertainty := anchor.SampleValue()
	return anchor.Derive(t, value, uncertainty, ProvenanceInterpolated)
}

// Weights converts uncertainties into inverse-variance weights. Zero or
// negative uncertainties are rejected since they would carry infinite weight.
func Weights(uncertainties []float64) ([]float64, error) {
	weights := make([]float64, len(uncertainties))
	for i, s := range uncertainties {
		if !(s > 0) {
			return nil, fmt.Errorf("%w: uncertainty %v at index %d", ErrNoUncertainty, s, i)
		}
		weights[i] = 1 / (s * s)
	}
	return weights, nil
}

// WeightedAverage computes the inverse-variance weighted mean of values.
func WeightedAverage(values, uncertainties []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrInsufficientObservations
	}
	if len(values) != len(uncertainties) {
		return 0, fmt.Errorf("weighted average: %d values but %d uncertainties", len(values), len(uncertainties))
	}
	weights, err := Weights(uncertainties)
	if err != nil {
		return 0, err
	}
	return stat.Mean(values, weights), nil
}

// WeightedAverageUncertainty is the uncertainty of WeightedAverage, 1/sqrt(sum w).
func WeightedAverageUncertainty(uncertainties []float64) (float64, error) {
	if len(uncertainties) == 0 {
		return 0, ErrInsufficientObservations
	}
	weights, err := Weights(uncertainties)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	return 1 / math.Sqrt(sum), nil
}

// Combine merges repeated measurements of one quantity into a single sample
// placed at the first sample's time.
func Combine[T Sample[T]](samples []T) (T, error) {
	var zero T
	switch len(samples) {
	case 0:
		return zero, ErrInsufficientObservations
	case 1:
		return samples[0], nil
	}
	values := make([]float64, len(samples))
	uncertainties := make([]float64, len(samples))
	for i, s := range samples {
		values[i], uncertainties[i] = s.SampleValue()
	}
	value, err := WeightedAverage(values, uncertainties)
	if err != nil {
		return zero, err
	}
	uncertainty, err := WeightedAverageUncertainty(uncertainties)
	if err != nil {
		return zero, err
	}
	return samples[0].Derive(samples[0].SampleTime(), value, uncertainty, ProvenanceCombined), nil
}
