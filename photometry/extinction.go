package photometry

import (
	"fmt"
	"strings"
)

// ccm89Ratios are A_lambda/A_V for R_V = 3.1. Johnson-Cousins and 2MASS
// values follow Cardelli, Clayton & Mathis (1989, table 3); SDSS values are
// the CCM curve at the SDSS effective wavelengths (Schlegel et al. 1998,
// table 6). Every band of the embedded table has an entry.
var ccm89Ratios = map[string]float64{
	"U": 1.569,
	"B": 1.337,
	"V": 1.0,
	"R": 0.751,
	"I": 0.479,
	"J": 0.282,
	"H": 0.190,
	"K": 0.114,
	"u": 1.555,
	"g": 1.144,
	"r": 0.830,
	"i": 0.629,
	"z": 0.446,
}

// ExtinctionTable maps band names to extinction coefficients in magnitudes.
type ExtinctionTable struct {
	coefficients map[string]float64
}

// NewExtinctionTable copies coefficients into an immutable table.
func NewExtinctionTable(coefficients map[string]float64) *ExtinctionTable {
	table := &ExtinctionTable{coefficients: make(map[string]float64, len(coefficients))}
	for name, value := range coefficients {
		table.coefficients[strings.TrimSpace(name)] = value
	}
	return table
}

// NewCCM89Table scales the CCM89 ratios by the total visual extinction.
func NewCCM89Table(av float64) *ExtinctionTable {
	coefficients := make(map[string]float64, len(ccm89Ratios))
	for name, ratio := range ccm89Ratios {
		coefficients[name] = ratio * av
	}
	return NewExtinctionTable(coefficients)
}

// ForBand returns the extinction for band, matched on name or alternate name.
func (t *ExtinctionTable) ForBand(band Band) (float64, error) {
	if t != nil {
		if value, ok := t.coefficients[band.Name]; ok {
			return value, nil
		}
		if band.AltName != "" {
			if value, ok := t.coefficients[band.AltName]; ok {
				return value, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: band %s", ErrNoExtinction, band.Name)
}

// ExtinctionByName looks up a coefficient by plain band name.
func (t *ExtinctionTable) ExtinctionByName(name string) (float64, error) {
	return t.ForBand(Band{Name: strings.TrimSpace(name)})
}

// CorrectObservedMagnitude removes extinction from an observed magnitude.
func CorrectObservedMagnitude(m ObservedMagnitude, extinction float64) ObservedMagnitude {
	m.Magnitude -= extinction
	return m
}

// Deredden applies the table to every observation in the set.
func (t *ExtinctionTable) Deredden(set *Set) (*Set, error) {
	if set == nil {
		return nil, nil
	}
	out := newEmptySet()
	for _, band := range set.Bands() {
		for _, obs := range set.series[band] {
			extinction, err := t.ForBand(obs.Band)
			if err != nil {
				return nil, err
			}
			out.series[band] = append(out.series[band], CorrectObservedMagnitude(obs, extinction))
		}
	}
	return out, nil
}
