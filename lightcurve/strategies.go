package lightcurve

import (
	"github.com/timzifer/superbol/blackbody"
	"github.com/timzifer/superbol/bolcorr"
	"github.com/timzifer/superbol/photometry"
	"github.com/timzifer/superbol/qbol"
	"github.com/timzifer/superbol/sed"
)

const (
	StrategyBlackbody       = "blackbody"
	StrategyQuasiBolometric = "quasi-bolometric"
	StrategySpline          = "quasi-bolometric-spline"
	StrategyAugmented       = "augmented"
	StrategyBC              = "bc"
)

func init() {
	Register(StrategyBlackbody, newBlackbodyStrategy)
	Register(StrategyQuasiBolometric, newQuasiBolometricStrategy)
	Register(StrategySpline, newSplineStrategy)
	Register(StrategyAugmented, newAugmentedStrategy)
	Register(StrategyBC, newBCStrategy)
}

type blackbodyStrategy struct {
	settings Settings
}

func newBlackbodyStrategy(settings Settings) (Strategy, error) {
	return &blackbodyStrategy{settings: settings}, nil
}

func (b *blackbodyStrategy) Name() string { return StrategyBlackbody }

func (b *blackbodyStrategy) Estimate(epoch photometry.Epoch) (Estimate, error) {
	s, err := b.settings.SED(epoch, 2)
	if err != nil {
		return Estimate{}, err
	}
	fit, err := b.settings.Fitter.Fit(s)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Flux: fit.BolometricFlux(), Detail: fitDetail(fit)}, nil
}

func fitDetail(fit *blackbody.Fit) Detail {
	return Detail{
		Points:                   fit.SED.Len(),
		Temperature:              fit.Temperature,
		TemperatureUncertainty:   fit.TemperatureUncertainty,
		AngularRadius:            fit.AngularRadius,
		AngularRadiusUncertainty: fit.AngularRadiusUncertainty,
		ChiSquare:                fit.ChiSquare,
		Iterations:               fit.Iterations,
	}
}

type quasiBolometricStrategy struct {
	name      string
	settings  Settings
	floor     int
	integrate func(sed.SED) (Estimate, error)
}

func newQuasiBolometricStrategy(settings Settings) (Strategy, error) {
	return &quasiBolometricStrategy{name: StrategyQuasiBolometric, settings: settings, floor: 2, integrate: trapezoid}, nil
}

func newSplineStrategy(settings Settings) (Strategy, error) {
	return &quasiBolometricStrategy{name: StrategySpline, settings: settings, floor: 3, integrate: spline}, nil
}

func trapezoid(s sed.SED) (Estimate, error) {
	flux, err := qbol.Calculate(s)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Flux: flux, Detail: Detail{Points: s.Len(), QuasiBolometric: flux}}, nil
}

func spline(s sed.SED) (Estimate, error) {
	flux, err := qbol.CalculateSpline(s)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Flux: flux, Detail: Detail{Points: s.Len(), QuasiBolometric: flux}}, nil
}

func (q *quasiBolometricStrategy) Name() string { return q.name }

func (q *quasiBolometricStrategy) Estimate(epoch photometry.Epoch) (Estimate, error) {
	s, err := q.settings.SED(epoch, q.floor)
	if err != nil {
		return Estimate{}, err
	}
	return q.integrate(s)
}

type augmentedStrategy struct {
	settings Settings
}

func newAugmentedStrategy(settings Settings) (Strategy, error) {
	return &augmentedStrategy{settings: settings}, nil
}

func (a *augmentedStrategy) Name() string { return StrategyAugmented }

func (a *augmentedStrategy) Estimate(epoch photometry.Epoch) (Estimate, error) {
	s, err := a.settings.SED(epoch, 2)
	if err != nil {
		return Estimate{}, err
	}
	fit, err := a.settings.Fitter.Fit(s)
	if err != nil {
		return Estimate{}, err
	}
	aug, err := qbol.Augmented(s, fit, a.settings.UVBand)
	if err != nil {
		return Estimate{}, err
	}
	detail := fitDetail(fit)
	detail.QuasiBolometric = aug.QuasiBolometric
	detail.IR = aug.IR
	detail.UV = aug.UV
	detail.LinearUV = aug.LinearUV
	return Estimate{Flux: aug.Total, Detail: detail}, nil
}

type bcStrategy struct {
	method    *bolcorr.Method
	reference string
}

func newBCStrategy(settings Settings) (Strategy, error) {
	engine := settings.Engine
	if engine == nil {
		engine = bolcorr.DefaultEngine()
	}
	name := settings.BCMethod
	if name == "" {
		name = "H01"
	}
	method, err := engine.Method(name)
	if err != nil {
		return nil, err
	}
	reference := settings.Reference
	if reference == "" {
		reference = bolcorr.DefaultReferenceBand
	}
	return &bcStrategy{method: method, reference: reference}, nil
}

func (b *bcStrategy) Name() string { return StrategyBC }

func (b *bcStrategy) Estimate(epoch photometry.Epoch) (Estimate, error) {
	flux, pairs, err := bolcorr.EpochFlux(b.method, epoch.Magnitudes, b.reference)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Flux: flux, Detail: Detail{Points: len(epoch.Magnitudes), Pairs: pairs}}, nil
}
