package photometry

import (
	"fmt"
	"sort"
)

// DefaultBinWidth is the gap in days that separates one night from the next.
const DefaultBinWidth = 0.3

// Rejection is a band whose repeats within one night could not be combined.
type Rejection struct {
	Time float64
	Band string
	Err  error
}

// Bin collapses each night of observations onto the night's mean time and
// combines repeated detections of one band within the night. Nights are split
// wherever consecutive observation times differ by more than dt days.
//
// A band whose repeats cannot be combined, for example because one of them
// carries no uncertainty, is dropped from that night and reported as a
// Rejection. The other bands and nights are kept.
func Bin(set *Set, dt float64) (*Set, []Rejection, error) {
	if set == nil {
		return newEmptySet(), nil, nil
	}
	if dt <= 0 {
		dt = DefaultBinWidth
	}
	all := set.All()
	out := newEmptySet()
	var rejected []Rejection
	for start := 0; start < len(all); {
		end := start + 1
		for end < len(all) && all[end].Time-all[end-1].Time <= dt {
			end++
		}
		night, err := combineNight(out, all[start:end])
		if err != nil {
			return nil, nil, err
		}
		rejected = append(rejected, night...)
		start = end
	}
	return out, rejected, nil
}

func combineNight(out *Set, night []ObservedMagnitude) ([]Rejection, error) {
	mean := 0.0
	for _, obs := range night {
		mean += obs.Time
	}
	mean /= float64(len(night))

	byBand := make(map[string][]ObservedMagnitude)
	order := make([]string, 0, len(night))
	for _, obs := range night {
		obs.Time = mean
		if _, ok := byBand[obs.Band.Name]; !ok {
			order = append(order, obs.Band.Name)
		}
		byBand[obs.Band.Name] = append(byBand[obs.Band.Name], obs)
	}
	sort.Strings(order)
	var rejected []Rejection
	for _, band := range order {
		combined, err := Combine(byBand[band])
		if err != nil {
			rejected = append(rejected, Rejection{
				Time: mean,
				Band: band,
				Err:  fmt.Errorf("bin band %s at %v: %w", band, mean, err),
			})
			continue
		}
		if err := out.Add(combined); err != nil {
			return nil, err
		}
	}
	return rejected, nil
}
