// Package ingest reads photometry catalogues into photometry sets.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/timzifer/superbol/photometry"
)

// ErrObjectNotFound is returned when a catalogue has no entry for the object.
var ErrObjectNotFound = errors.New("object not found")

// ReadOSC decodes the photometry of object from an Open Supernova Catalog
// document. Upper limits are skipped. A missing e_magnitude reads as zero.
func ReadOSC(r io.Reader, object string, bands *photometry.BandTable) (*photometry.Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read osc document: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New("osc document is not valid JSON")
	}
	var entry gjson.Result
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		if key.String() == object {
			entry = value
			return false
		}
		return true
	})
	if !entry.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, object)
	}
	return readEntries(entry.Get("photometry"), bands, ObservationFromOSC)
}

// ObservationFromOSC converts one OSC photometry record.
func ObservationFromOSC(record gjson.Result, bands *photometry.BandTable) (photometry.ObservedMagnitude, error) {
	return observation(record, bands, "e_magnitude")
}

// ReadJSON decodes a plain JSON list of {band, time, magnitude, uncertainty}
// records.
func ReadJSON(r io.Reader, bands *photometry.BandTable) (*photometry.Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read photometry: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New("photometry is not valid JSON")
	}
	return readEntries(gjson.ParseBytes(data), bands, func(record gjson.Result, bands *photometry.BandTable) (photometry.ObservedMagnitude, error) {
		return observation(record, bands, "uncertainty")
	})
}

func readEntries(list gjson.Result, bands *photometry.BandTable, convert func(gjson.Result, *photometry.BandTable) (photometry.ObservedMagnitude, error)) (*photometry.Set, error) {
	if !list.IsArray() {
		return nil, errors.New("photometry must be a JSON array")
	}
	if bands == nil {
		bands = photometry.DefaultBands()
	}
	set, err := photometry.NewSet()
	if err != nil {
		return nil, err
	}
	for i, record := range list.Array() {
		if record.Get("upperlimit").Bool() {
			continue
		}
		obs, err := convert(record, bands)
		if err != nil {
			return nil, fmt.Errorf("photometry[%d]: %w", i, err)
		}
		if err := set.Add(obs); err != nil {
			return nil, fmt.Errorf("photometry[%d]: %w", i, err)
		}
	}
	return set, nil
}

func observation(record gjson.Result, bands *photometry.BandTable, uncertaintyKey string) (photometry.ObservedMagnitude, error) {
	magnitude := record.Get("magnitude")
	if !magnitude.Exists() {
		return photometry.ObservedMagnitude{}, photometry.ErrNoMagnitude
	}
	name := record.Get("band")
	if !name.Exists() || name.String() == "" {
		return photometry.ObservedMagnitude{}, photometry.ErrNoBandNameGiven
	}
	time := record.Get("time")
	if time.IsArray() {
		time = time.Get("0")
	}
	if !time.Exists() {
		return photometry.ObservedMagnitude{}, photometry.ErrNoTimeGiven
	}

	mag, err := number(magnitude)
	if err != nil {
		return photometry.ObservedMagnitude{}, fmt.Errorf("%w: %v", photometry.ErrNoMagnitude, err)
	}
	t, err := number(time)
	if err != nil {
		return photometry.ObservedMagnitude{}, fmt.Errorf("%w: %v", photometry.ErrNoTimeGiven, err)
	}
	uncertainty := 0.0
	if raw := record.Get(uncertaintyKey); raw.Exists() {
		if uncertainty, err = number(raw); err != nil {
			return photometry.ObservedMagnitude{}, fmt.Errorf("%s: %w", uncertaintyKey, err)
		}
	}
	band, err := bands.Lookup(name.String())
	if err != nil {
		return photometry.ObservedMagnitude{}, err
	}
	return photometry.ObservedMagnitude{
		Band:        band,
		Time:        t,
		Magnitude:   mag,
		Uncertainty: uncertainty,
		Provenance:  photometry.ProvenanceObserved,
	}, nil
}

// number accepts both JSON numbers and the quoted numbers OSC uses.
func number(v gjson.Result) (float64, error) {
	switch v.Type {
	case gjson.Number:
		return v.Float(), nil
	case gjson.String:
		return strconv.ParseFloat(v.String(), 64)
	default:
		return 0, fmt.Errorf("expected number, got %s", v.Type)
	}
}
