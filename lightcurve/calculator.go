// Package lightcurve turns multi-band photometry into bolometric light curves
// using one of the registered strategies.
package lightcurve

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/timzifer/superbol/blackbody"
	"github.com/timzifer/superbol/luminosity"
	"github.com/timzifer/superbol/photometry"
	"github.com/timzifer/superbol/telemetry"
)

// Calculator runs the light curve pipeline. It is safe for concurrent use
// once built.
type Calculator struct {
	logger         zerolog.Logger
	telemetry      telemetry.Collector
	workers        int
	bands          *photometry.BandTable
	extinction     *photometry.ExtinctionTable
	policy         photometry.Policy
	bin            bool
	binWidth       float64
	strategy       Strategy
	strategyOpts   Settings
	exclude        map[string]struct{}
	failOnFitError bool
	distance       luminosity.Distance
	explosion      *Explosion
}

// NewCalculator builds a calculator. A distance is required; the strategy
// defaults to blackbody.
func NewCalculator(opts ...Option) (*Calculator, error) {
	cfg := settings{
		logger:    zerolog.Nop(),
		telemetry: telemetry.Noop(),
		workers:   1,
		strategy:  StrategyBlackbody,
	}
	cfg.strategyOpts.Fitter = blackbody.NewFitter()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.distance == nil {
		return nil, errors.New("distance is required")
	}
	if cfg.bands == nil {
		cfg.bands = photometry.DefaultBands()
	}
	strategy, err := Lookup(cfg.strategy, cfg.strategyOpts)
	if err != nil {
		return nil, err
	}
	exclude := make(map[string]struct{}, len(cfg.excludeBands))
	for _, band := range cfg.excludeBands {
		exclude[band] = struct{}{}
	}
	return &Calculator{
		logger:         cfg.logger.With().Str("component", "lightcurve").Logger(),
		telemetry:      cfg.telemetry,
		workers:        max(cfg.workers, 1),
		bands:          cfg.bands,
		extinction:     cfg.extinction,
		policy:         cfg.policy,
		bin:            cfg.bin,
		binWidth:       cfg.binWidth,
		strategy:       strategy,
		strategyOpts:   cfg.strategyOpts,
		exclude:        exclude,
		failOnFitError: cfg.failOnFitError,
		distance:       *cfg.distance,
		explosion:      cfg.explosion,
	}, nil
}

// Strategy is the name of the configured strategy.
func (c *Calculator) Strategy() string { return c.strategy.Name() }

// CalculateLightcurve evaluates the configured strategy at every aligned
// epoch of set.
func (c *Calculator) CalculateLightcurve(ctx context.Context, set *photometry.Set) (Lightcurve, error) {
	return c.run(ctx, set, c.strategy)
}

// CalculateBCLightcurve evaluates the bolometric correction strategy at every
// aligned epoch of set, regardless of the configured strategy.
func (c *Calculator) CalculateBCLightcurve(ctx context.Context, set *photometry.Set) (Lightcurve, error) {
	strategy := c.strategy
	if strategy.Name() != StrategyBC {
		var err error
		strategy, err = Lookup(StrategyBC, c.strategyOpts)
		if err != nil {
			return Lightcurve{}, err
		}
	}
	return c.run(ctx, set, strategy)
}

type epochResult struct {
	point   Point
	outcome Outcome
	time    float64
}

func (c *Calculator) run(ctx context.Context, set *photometry.Set, strategy Strategy) (Lightcurve, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	lc := Lightcurve{Strategy: strategy.Name(), Distance: c.distance, Explosion: c.explosion}
	epochs, rejected, err := c.prepare(set)
	if err != nil {
		return lc, err
	}
	for _, r := range rejected {
		c.logger.Debug().Str("band", r.Band).Float64("time", r.Time).Err(r.Err).Msg("band dropped while binning")
		c.telemetry.IncEpoch(strategy.Name(), Skip.String())
		lc.Skipped = append(lc.Skipped, Skipped{Time: r.Time, Err: r.Err})
	}
	c.logger.Debug().Str("strategy", strategy.Name()).Int("epochs", len(epochs)).Msg("evaluating light curve")

	results, aborted := runWorkerPool(ctx, c.workers, epochs, func(_ context.Context, epoch photometry.Epoch) epochResult {
		return c.evaluate(strategy, epoch)
	})
	if aborted || ctx.Err() != nil {
		return lc, ctx.Err()
	}

	for _, res := range results {
		switch res.outcome.Kind {
		case Ok:
			lc.Points = append(lc.Points, res.point)
		case Skip:
			lc.Skipped = append(lc.Skipped, Skipped{Time: res.time, Err: res.outcome.Err})
		case Fatal:
			return lc, fmt.Errorf("epoch %v: %w", res.time, res.outcome.Err)
		}
	}
	sort.SliceStable(lc.Points, func(i, j int) bool { return lc.Points[i].Time < lc.Points[j].Time })
	sort.SliceStable(lc.Skipped, func(i, j int) bool { return lc.Skipped[i].Time < lc.Skipped[j].Time })
	c.logger.Info().
		Str("strategy", strategy.Name()).
		Int("points", len(lc.Points)).
		Int("skipped", len(lc.Skipped)).
		Msg("light curve complete")
	return lc, nil
}

// prepare resolves bands, bins, dereddens and aligns the photometry. Bands
// dropped while binning are returned alongside the epochs.
func (c *Calculator) prepare(set *photometry.Set) ([]photometry.Epoch, []photometry.Rejection, error) {
	if set == nil || set.Len() == 0 {
		return nil, nil, nil
	}
	resolved, err := set.ResolveBands(c.bands)
	if err != nil {
		return nil, nil, err
	}
	var rejected []photometry.Rejection
	if c.bin {
		resolved, rejected, err = photometry.Bin(resolved, c.binWidth)
		if err != nil {
			return nil, nil, err
		}
	}
	if c.extinction != nil {
		resolved, err = c.extinction.Deredden(resolved)
		if err != nil {
			return nil, nil, err
		}
	}
	epochs := photometry.NewAligner(resolved, c.policy).GroupMagnitudes()
	if len(c.exclude) == 0 {
		return epochs, rejected, nil
	}
	for i := range epochs {
		kept := epochs[i].Magnitudes[:0:0]
		for _, m := range epochs[i].Magnitudes {
			if _, drop := c.exclude[m.Band.Name]; !drop {
				kept = append(kept, m)
			}
		}
		epochs[i].Magnitudes = kept
	}
	return epochs, rejected, nil
}

func (c *Calculator) evaluate(strategy Strategy, epoch photometry.Epoch) epochResult {
	name := strategy.Name()
	res := epochResult{time: epoch.Time}

	estimate, err := strategy.Estimate(epoch)
	if err == nil {
		var lum luminosity.Luminosity
		lum, err = luminosity.ToLuminosity(estimate.Flux, c.distance)
		if err == nil {
			res.point = Point{
				Time:       epoch.Time,
				Flux:       estimate.Flux,
				Luminosity: lum,
				Strategy:   name,
				Detail:     estimate.Detail,
			}
			if c.explosion != nil {
				res.point.Phase = epoch.Time - c.explosion.Time
			}
			if estimate.Detail.Iterations > 0 {
				c.telemetry.ObserveFitIterations(estimate.Detail.Iterations)
			}
		}
	}

	res.outcome = Classify(err)
	if errors.Is(err, blackbody.ErrFitFailed) {
		c.telemetry.IncFitFailure(name)
		if c.failOnFitError {
			res.outcome.Kind = Fatal
		}
	}
	c.telemetry.IncEpoch(name, res.outcome.Kind.String())
	if res.outcome.Kind == Skip {
		c.logger.Debug().Float64("time", epoch.Time).Err(err).Msg("epoch skipped")
	}
	return res
}
