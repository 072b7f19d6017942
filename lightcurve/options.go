package lightcurve

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/timzifer/superbol/blackbody"
	"github.com/timzifer/superbol/bolcorr"
	"github.com/timzifer/superbol/luminosity"
	"github.com/timzifer/superbol/photometry"
	"github.com/timzifer/superbol/telemetry"
)

// Option configures a Calculator.
type Option func(*settings) error

type settings struct {
	logger         zerolog.Logger
	telemetry      telemetry.Collector
	workers        int
	bands          *photometry.BandTable
	extinction     *photometry.ExtinctionTable
	policy         photometry.Policy
	bin            bool
	binWidth       float64
	strategy       string
	strategyOpts   Settings
	excludeBands   []string
	failOnFitError bool
	distance       *luminosity.Distance
	explosion      *Explosion
}

// WithLogger provides a custom logger instance for the calculator.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *settings) error {
		cfg.logger = logger
		return nil
	}
}

// WithTelemetry installs a metrics collector.
func WithTelemetry(collector telemetry.Collector) Option {
	return func(cfg *settings) error {
		if collector == nil {
			collector = telemetry.Noop()
		}
		cfg.telemetry = collector
		return nil
	}
}

// WithWorkers sets how many epochs are evaluated concurrently.
func WithWorkers(workers int) Option {
	return func(cfg *settings) error {
		if workers < 0 {
			return fmt.Errorf("workers must not be negative")
		}
		cfg.workers = workers
		return nil
	}
}

// WithBands replaces the embedded band table.
func WithBands(table *photometry.BandTable) Option {
	return func(cfg *settings) error {
		if table == nil {
			return fmt.Errorf("band table must not be nil")
		}
		cfg.bands = table
		return nil
	}
}

// WithExtinction dereddens every observation before alignment.
func WithExtinction(table *photometry.ExtinctionTable) Option {
	return func(cfg *settings) error {
		cfg.extinction = table
		return nil
	}
}

// WithBCEngine selects the bolometric correction tables.
func WithBCEngine(engine *bolcorr.Engine) Option {
	return func(cfg *settings) error {
		if engine == nil {
			return fmt.Errorf("bc engine must not be nil")
		}
		cfg.strategyOpts.Engine = engine
		return nil
	}
}

// WithBCMethod selects the correction method and the band it is applied to.
func WithBCMethod(method, reference string) Option {
	return func(cfg *settings) error {
		cfg.strategyOpts.BCMethod = strings.TrimSpace(method)
		cfg.strategyOpts.Reference = strings.TrimSpace(reference)
		return nil
	}
}

// WithPolicy sets the gap limit and extrapolation behaviour of the aligner.
func WithPolicy(policy photometry.Policy) Option {
	return func(cfg *settings) error {
		if policy.MaxGap < 0 {
			return fmt.Errorf("max gap must not be negative")
		}
		cfg.policy = policy
		return nil
	}
}

// WithBinning combines observations within each night before alignment.
func WithBinning(width float64) Option {
	return func(cfg *settings) error {
		cfg.bin = true
		cfg.binWidth = width
		return nil
	}
}

// WithStrategy selects the registered strategy used by CalculateLightcurve.
func WithStrategy(name string) Option {
	return func(cfg *settings) error {
		cfg.strategy = strings.TrimSpace(name)
		return nil
	}
}

// WithSEDLimits constrains the SEDs handed to SED based strategies.
func WithSEDLimits(minPoints int, maxGap, minWavelength float64) Option {
	return func(cfg *settings) error {
		if minPoints < 0 || maxGap < 0 || minWavelength < 0 {
			return fmt.Errorf("sed limits must not be negative")
		}
		cfg.strategyOpts.MinPoints = minPoints
		cfg.strategyOpts.MaxSEDGap = maxGap
		cfg.strategyOpts.MinWavelength = minWavelength
		return nil
	}
}

// WithExcludedBands drops bands from every epoch.
func WithExcludedBands(bands ...string) Option {
	return func(cfg *settings) error {
		cfg.excludeBands = append(cfg.excludeBands, bands...)
		return nil
	}
}

// WithFitter configures the blackbody fit.
func WithFitter(fitter blackbody.Fitter) Option {
	return func(cfg *settings) error {
		cfg.strategyOpts.Fitter = fitter
		return nil
	}
}

// WithUVBand names the band whose suppression switches the augmented
// strategy to a linear UV correction.
func WithUVBand(band string) Option {
	return func(cfg *settings) error {
		cfg.strategyOpts.UVBand = strings.TrimSpace(band)
		return nil
	}
}

// WithFailOnFitError aborts the run on the first failed fit.
func WithFailOnFitError(fail bool) Option {
	return func(cfg *settings) error {
		cfg.failOnFitError = fail
		return nil
	}
}

// WithDistance sets the source distance. It is required.
func WithDistance(distance luminosity.Distance) Option {
	return func(cfg *settings) error {
		if !(distance.Value > 0) {
			return fmt.Errorf("distance must be positive")
		}
		cfg.distance = &distance
		return nil
	}
}

// WithExplosion attaches phases relative to the explosion epoch.
func WithExplosion(time, uncertainty float64) Option {
	return func(cfg *settings) error {
		if uncertainty < 0 {
			return fmt.Errorf("explosion uncertainty must not be negative")
		}
		cfg.explosion = &Explosion{Time: time, Uncertainty: uncertainty}
		return nil
	}
}
