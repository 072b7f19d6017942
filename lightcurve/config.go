package lightcurve

import (
	"fmt"
	"os"
	"strings"

	"github.com/timzifer/superbol/blackbody"
	"github.com/timzifer/superbol/bolcorr"
	"github.com/timzifer/superbol/config"
	"github.com/timzifer/superbol/luminosity"
	"github.com/timzifer/superbol/photometry"
	"github.com/timzifer/superbol/telemetry"
)

// OptionsFromConfig translates a loaded configuration into calculator
// options, reading any reference tables it names.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	distance, err := luminosity.DistanceFromMpc(cfg.Distance.Mpc, cfg.Distance.Uncertainty)
	if err != nil {
		return nil, fmt.Errorf("distance: %w", err)
	}
	collector, err := NewTelemetryCollector(cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	fitter := blackbody.NewFitter()
	if cfg.Strategy.SeedTemperature > 0 {
		fitter.SeedTemperature = cfg.Strategy.SeedTemperature
	}
	if cfg.Strategy.MaxIterations > 0 {
		fitter.MaxIterations = cfg.Strategy.MaxIterations
	}

	opts := []Option{
		WithDistance(distance),
		WithTelemetry(collector),
		WithWorkers(cfg.WorkerCount()),
		WithStrategy(cfg.Strategy.Name),
		WithPolicy(photometry.Policy{MaxGap: cfg.Photometry.MaxGap, Extrapolate: cfg.Photometry.Extrapolate}),
		WithSEDLimits(cfg.Strategy.MinPoints, cfg.Strategy.MaxSEDGap, cfg.Strategy.MinWavelength),
		WithExcludedBands(cfg.Strategy.ExcludeBands...),
		WithFitter(fitter),
		WithUVBand(cfg.Strategy.UVBand),
		WithFailOnFitError(cfg.Strategy.FailOnFitError),
		WithBCMethod(cfg.BCMethod(), cfg.BC.Reference),
	}
	if cfg.Photometry.Bin {
		opts = append(opts, WithBinning(cfg.BinWidth()))
	}
	if cfg.Explosion != nil {
		opts = append(opts, WithExplosion(cfg.Explosion.Time, cfg.Explosion.Uncertainty))
	}
	if cfg.Extinction.Enabled {
		table := photometry.NewCCM89Table(cfg.Extinction.AV)
		if len(cfg.Extinction.Coefficients) > 0 {
			table = photometry.NewExtinctionTable(cfg.Extinction.Coefficients)
		}
		opts = append(opts, WithExtinction(table))
	}

	bands, err := BandsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithBands(bands))
	engine := bolcorr.DefaultEngine()
	for _, path := range cfg.Tables.BC {
		engine, err = extendEngine(engine, path)
		if err != nil {
			return nil, err
		}
	}
	opts = append(opts, WithBCEngine(engine))
	return opts, nil
}

// BandsFromConfig returns the band table a configuration selects, falling
// back to the embedded one.
func BandsFromConfig(cfg *config.Config) (*photometry.BandTable, error) {
	if cfg == nil || cfg.Tables.Bands == "" {
		return photometry.DefaultBands(), nil
	}
	return loadBandTable(cfg.Tables.Bands)
}

func loadBandTable(path string) (*photometry.BandTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open band table: %w", err)
	}
	defer f.Close()
	table, err := photometry.LoadBandTable(f)
	if err != nil {
		return nil, fmt.Errorf("band table %s: %w", path, err)
	}
	return table, nil
}

func extendEngine(engine *bolcorr.Engine, path string) (*bolcorr.Engine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bc table: %w", err)
	}
	defer f.Close()
	extended, err := engine.Extend(f)
	if err != nil {
		return nil, fmt.Errorf("bc table %s: %w", path, err)
	}
	return extended, nil
}

// NewTelemetryCollector builds the collector selected by the configuration.
func NewTelemetryCollector(cfg config.TelemetryConfig) (telemetry.Collector, error) {
	if !cfg.Enabled {
		return telemetry.Noop(), nil
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "prometheus":
		collector, err := telemetry.NewPrometheusCollector(nil)
		if err != nil {
			return nil, err
		}
		return collector, nil
	default:
		return telemetry.Noop(), fmt.Errorf("unsupported telemetry provider %q", cfg.Provider)
	}
}
