package photometry

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

//go:embed data/bands.json
var defaultBandData []byte

// Band describes a photometric passband.
type Band struct {
	Name    string `json:"name"`
	AltName string `json:"alt_name,omitempty"`
	// EffectiveWavelength is expressed in Angstrom.
	EffectiveWavelength float64 `json:"effective_wavelength"`
	// FluxConversionFactor is the flux of a zero magnitude source in
	// erg s^-1 cm^-2 A^-1.
	FluxConversionFactor float64 `json:"flux_conversion_factor"`
}

// BandTable is an immutable lookup of bands by name or alternate name.
type BandTable struct {
	bands []Band
	index map[string]int
}

// NewBandTable validates the provided bands and builds a lookup table.
func NewBandTable(bands ...Band) (*BandTable, error) {
	table := &BandTable{
		bands: make([]Band, 0, len(bands)),
		index: make(map[string]int, len(bands)*2),
	}
	for _, band := range bands {
		band.Name = strings.TrimSpace(band.Name)
		band.AltName = strings.TrimSpace(band.AltName)
		if band.Name == "" {
			return nil, ErrNoBandNameGiven
		}
		if band.EffectiveWavelength <= 0 {
			return nil, fmt.Errorf("band %s: effective wavelength must be positive", band.Name)
		}
		if band.FluxConversionFactor <= 0 {
			return nil, fmt.Errorf("band %s: flux conversion factor must be positive", band.Name)
		}
		pos := len(table.bands)
		if err := table.addKey(band.Name, pos); err != nil {
			return nil, err
		}
		if band.AltName != "" && band.AltName != band.Name {
			if err := table.addKey(band.AltName, pos); err != nil {
				return nil, err
			}
		}
		table.bands = append(table.bands, band)
	}
	return table, nil
}

func (t *BandTable) addKey(key string, pos int) error {
	if _, exists := t.index[key]; exists {
		return fmt.Errorf("duplicate band name %q", key)
	}
	t.index[key] = pos
	return nil
}

// LoadBandTable decodes a JSON object mapping band names to their parameters.
func LoadBandTable(r io.Reader) (*BandTable, error) {
	if r == nil {
		return nil, errors.New("band table reader must not be nil")
	}
	var raw map[string]Band
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode band table: %w", err)
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	bands := make([]Band, 0, len(raw))
	for _, name := range names {
		band := raw[name]
		band.Name = name
		bands = append(bands, band)
	}
	return NewBandTable(bands...)
}

var (
	defaultBandsOnce sync.Once
	defaultBands     *BandTable
)

// DefaultBands returns the embedded reference band table.
func DefaultBands() *BandTable {
	defaultBandsOnce.Do(func() {
		table, err := LoadBandTable(strings.NewReader(string(defaultBandData)))
		if err != nil {
			panic(fmt.Sprintf("embedded band table invalid: %v", err))
		}
		defaultBands = table
	})
	return defaultBands
}

// Lookup returns the band registered under name or alternate name.
func (t *BandTable) Lookup(name string) (Band, error) {
	key := strings.TrimSpace(name)
	if key == "" {
		return Band{}, ErrNoBandNameGiven
	}
	if t == nil {
		return Band{}, fmt.Errorf("%w: %s", ErrNoBandFound, key)
	}
	pos, ok := t.index[key]
	if !ok {
		return Band{}, fmt.Errorf("%w: %s", ErrNoBandFound, key)
	}
	return t.bands[pos], nil
}

// Names lists the primary band names ordered by effective wavelength.
func (t *BandTable) Names() []string {
	if t == nil {
		return nil
	}
	sorted := append([]Band(nil), t.bands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveWavelength < sorted[j].EffectiveWavelength
	})
	names := make([]string, len(sorted))
	for i, band := range sorted {
		names[i] = band.Name
	}
	return names
}

// Len reports the number of bands in the table.
func (t *BandTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.bands)
}
