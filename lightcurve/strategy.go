package lightcurve

import (
	"fmt"
	"sort"
	"sync"

	"github.com/timzifer/superbol/blackbody"
	"github.com/timzifer/superbol/bolcorr"
	"github.com/timzifer/superbol/luminosity"
	"github.com/timzifer/superbol/photometry"
	"github.com/timzifer/superbol/sed"
)

// Strategy reduces the aligned magnitudes of one epoch to a bolometric flux.
//
// Implementations are called concurrently from the epoch worker pool and must
// not mutate shared state.
type Strategy interface {
	Name() string
	Estimate(epoch photometry.Epoch) (Estimate, error)
}

// Factory creates a strategy from the run settings.
type Factory func(settings Settings) (Strategy, error)

// Estimate is the bolometric flux of one epoch plus strategy diagnostics.
type Estimate struct {
	Flux   luminosity.Flux
	Detail Detail
}

// Detail carries the intermediate values a strategy derived. Fields that do
// not apply to a strategy stay zero.
type Detail struct {
	Points                   int
	Temperature              float64
	TemperatureUncertainty   float64
	AngularRadius            float64
	AngularRadiusUncertainty float64
	ChiSquare                float64
	Iterations               int
	QuasiBolometric          luminosity.Flux
	IR                       luminosity.Flux
	UV                       luminosity.Flux
	LinearUV                 bool
	Pairs                    int
}

// Settings are shared by every strategy factory.
type Settings struct {
	// MinPoints raises the minimum SED size above the strategy's own floor.
	MinPoints int
	// MaxSEDGap skips SEDs whose widest wavelength gap exceeds it (Angstrom).
	MaxSEDGap float64
	// MinWavelength drops SED points at or blueward of it (Angstrom).
	MinWavelength float64
	Fitter        blackbody.Fitter
	UVBand        string
	Engine        *bolcorr.Engine
	BCMethod      string
	Reference     string
}

// SED builds the epoch's SED and enforces the size and gap limits.
func (s Settings) SED(epoch photometry.Epoch, floor int) (sed.SED, error) {
	out, err := sed.FromEpoch(epoch)
	if err != nil {
		return sed.SED{}, err
	}
	if s.MinWavelength > 0 {
		out = sed.Trim(out, s.MinWavelength)
	}
	need := max(floor, s.MinPoints)
	if out.Len() < need {
		return sed.SED{}, fmt.Errorf("%w: need %d points, have %d", sed.ErrInsufficientFluxes, need, out.Len())
	}
	if s.MaxSEDGap > 0 {
		if gap := sed.MaxGap(out); gap > s.MaxSEDGap {
			return sed.SED{}, fmt.Errorf("%w: %.0f A exceeds %.0f A", sed.ErrSEDGapTooLarge, gap, s.MaxSEDGap)
		}
	}
	return out, nil
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a strategy factory under name. Registering a name twice
// panics.
func Register(name string, factory Factory) {
	if name == "" {
		panic("strategy name must not be empty")
	}
	if factory == nil {
		panic("strategy factory must not be nil")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("strategy %s already registered", name))
	}
	registry[name] = factory
}

// Lookup instantiates the strategy registered under name.
func Lookup(name string, settings Settings) (Strategy, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	return factory(settings)
}

// Names lists the registered strategies in alphabetical order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
