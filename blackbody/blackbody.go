// Package blackbody fits a Planck spectrum to an SED and integrates the fit.
package blackbody

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/timzifer/superbol/luminosity"
	"github.com/timzifer/superbol/photometry"
	"github.com/timzifer/superbol/planck"
	"github.com/timzifer/superbol/sed"
)

const (
	DefaultSeedTemperature = 5000.0
	DefaultMaxIterations   = 200
	DefaultTolerance       = 1e-10

	// LinearUVCutoff is where the linear UV correction reaches zero flux, in Angstrom.
	LinearUVCutoff = 2000.0

	initialDamping = 1e-3
	maxDamping     = 1e16
)

// ErrFitFailed reports a fit that did not converge or produced a singular
// normal matrix.
var ErrFitFailed = errors.New("blackbody fit failed")

// Fitter configures the nonlinear least squares fit.
type Fitter struct {
	SeedTemperature float64
	MaxIterations   int
	Tolerance       float64
}

// NewFitter returns a fitter with the default seed and convergence settings.
func NewFitter() Fitter {
	return Fitter{
		SeedTemperature: DefaultSeedTemperature,
		MaxIterations:   DefaultMaxIterations,
		Tolerance:       DefaultTolerance,
	}
}

// Fit is an immutable blackbody fit result.
type Fit struct {
	Temperature              float64
	TemperatureUncertainty   float64
	AngularRadius            float64
	AngularRadiusUncertainty float64
	// Covariance is ordered (temperature, angular radius).
	Covariance [2][2]float64
	ChiSquare  float64
	Iterations int
	SED        sed.SED
}

// Flux evaluates the fitted model pi theta^2 B_lambda at wavelength.
func (f *Fit) Flux(wavelength float64) float64 {
	return model(wavelength, f.Temperature, f.AngularRadius)
}

// BolometricFlux integrates the fit over all wavelengths with the
// Stefan-Boltzmann law. The uncertainty includes the temperature and angular
// radius covariance.
func (f *Fit) BolometricFlux() luminosity.Flux {
	t, theta := f.Temperature, f.AngularRadius
	value := planck.StefanBoltzmann * theta * theta * math.Pow(t, 4)
	dT := 4 * planck.StefanBoltzmann * theta * theta * math.Pow(t, 3)
	dTheta := 2 * planck.StefanBoltzmann * theta * math.Pow(t, 4)
	return luminosity.Flux{Value: value, Uncertainty: f.propagate(dT, dTheta)}
}

// IntegratedFlux integrates the fit between two wavelengths.
func (f *Fit) IntegratedFlux(minWavelength, maxWavelength float64) (luminosity.Flux, error) {
	integral, err := planck.Integral(f.Temperature, minWavelength, maxWavelength)
	if err != nil {
		return luminosity.Flux{}, err
	}
	dIntegral, err := planck.DIntegralDT(f.Temperature, minWavelength, maxWavelength)
	if err != nil {
		return luminosity.Flux{}, err
	}
	theta := f.AngularRadius
	value := math.Pi * theta * theta * integral
	dT := math.Pi * theta * theta * dIntegral
	dTheta := 2 * math.Pi * theta * integral
	return luminosity.Flux{Value: value, Uncertainty: f.propagate(dT, dTheta)}, nil
}

// IRCorrection is the fitted flux redward of the longest observed wavelength.
func (f *Fit) IRCorrection(maxWavelength float64) (luminosity.Flux, error) {
	return f.IntegratedFlux(maxWavelength, math.Inf(1))
}

// UVCorrection is the fitted flux blueward of the shortest observed wavelength.
func (f *Fit) UVCorrection(minWavelength float64) (luminosity.Flux, error) {
	return f.IntegratedFlux(0, minWavelength)
}

// UVCorrectionLinear integrates a straight line from zero flux at 2000 A up
// to the shortest observed point, approximating UV line blanketing.
func UVCorrectionLinear(minWavelength, flux, uncertainty float64) luminosity.Flux {
	width := minWavelength - LinearUVCutoff
	if width <= 0 {
		return luminosity.Flux{}
	}
	return luminosity.Flux{Value: 0.5 * width * flux, Uncertainty: 0.5 * width * uncertainty}
}

func (f *Fit) propagate(dT, dTheta float64) float64 {
	c := f.Covariance
	variance := dT*dT*c[0][0] + dTheta*dTheta*c[1][1] + 2*dT*dTheta*c[0][1]
	return math.Sqrt(math.Max(variance, 0))
}

func model(wavelength, temperature, theta float64) float64 {
	return math.Pi * theta * theta * planck.Function(wavelength, temperature)
}

// Fit fits temperature and angular radius to the SED, weighting each point by
// its inverse variance.
func (ft Fitter) Fit(s sed.SED) (*Fit, error) {
	if s.Len() < 2 {
		return nil, fmt.Errorf("%w: blackbody fit needs 2 points, have %d", sed.ErrInsufficientFluxes, s.Len())
	}
	for _, p := range s.Points {
		if !(p.Uncertainty > 0) {
			return nil, fmt.Errorf("%w: %s at %v A", photometry.ErrNoUncertainty, p.Band, p.Wavelength)
		}
	}
	ft = ft.withDefaults()

	p, err := newProblem(s, ft.SeedTemperature)
	if err != nil {
		return nil, err
	}
	params := []float64{1, 1}
	chi2 := p.chiSquare(params)
	damping := initialDamping
	converged := false
	iterations := 0
	for iterations < ft.MaxIterations && !converged {
		iterations++
		jtj, jtr := p.normal(params)
		step, err := solveDamped(jtj, jtr, damping)
		if err != nil {
			damping *= 10
			if damping > maxDamping {
				break
			}
			continue
		}
		trial := []float64{params[0] + step[0], math.Abs(params[1] + step[1])}
		if !(trial[0] > 0) {
			damping *= 10
			continue
		}
		trialChi2 := p.chiSquare(trial)
		if trialChi2 <= chi2 {
			params, chi2 = trial, trialChi2
			damping = math.Max(damping/10, 1e-12)
			converged = math.Abs(step[0]) <= ft.Tolerance*params[0] &&
				math.Abs(step[1]) <= ft.Tolerance*params[1]
			continue
		}
		damping *= 10
		if damping > maxDamping {
			converged = true
		}
	}
	if !converged {
		return nil, fmt.Errorf("%w: no convergence after %d iterations", ErrFitFailed, iterations)
	}

	cov, err := p.covariance(params)
	if err != nil {
		return nil, err
	}
	fit := &Fit{
		Temperature:   params[0] * p.scale[0],
		AngularRadius: params[1] * p.scale[1],
		Covariance:    cov,
		ChiSquare:     chi2,
		Iterations:    iterations,
		SED:           s,
	}
	fit.TemperatureUncertainty = math.Sqrt(cov[0][0])
	fit.AngularRadiusUncertainty = math.Sqrt(cov[1][1])
	if math.IsNaN(fit.Temperature) || math.IsNaN(fit.AngularRadius) {
		return nil, fmt.Errorf("%w: non-finite parameters", ErrFitFailed)
	}
	return fit, nil
}

func (ft Fitter) withDefaults() Fitter {
	if ft.SeedTemperature <= 0 {
		ft.SeedTemperature = DefaultSeedTemperature
	}
	if ft.MaxIterations <= 0 {
		ft.MaxIterations = DefaultMaxIterations
	}
	if ft.Tolerance <= 0 {
		ft.Tolerance = DefaultTolerance
	}
	return ft
}

// problem holds the weighted data and the parameter scales. Parameters are
// expressed relative to the seed so both are of order one.
type problem struct {
	wavelengths []float64
	fluxes      []float64
	sigmas      []float64
	scale       [2]float64
}

func newProblem(s sed.SED, seedTemperature float64) (*problem, error) {
	p := &problem{
		wavelengths: s.Wavelengths(),
		fluxes:      s.Values(),
		sigmas:      s.Uncertainties(),
	}
	// Weighted linear solution for theta^2 at the seed temperature.
	num, den := 0.0, 0.0
	for i, wl := range p.wavelengths {
		b := math.Pi * planck.Function(wl, seedTemperature)
		w := 1 / (p.sigmas[i] * p.sigmas[i])
		num += w * p.fluxes[i] * b
		den += w * b * b
	}
	if !(den > 0) || !(num > 0) {
		return nil, fmt.Errorf("%w: cannot seed angular radius", ErrFitFailed)
	}
	p.scale = [2]float64{seedTemperature, math.Sqrt(num / den)}
	return p, nil
}

func (p *problem) physical(params []float64) (float64, float64) {
	return params[0] * p.scale[0], params[1] * p.scale[1]
}

func (p *problem) chiSquare(params []float64) float64 {
	t, theta := p.physical(params)
	sum := 0.0
	for i, wl := range p.wavelengths {
		r := (p.fluxes[i] - model(wl, t, theta)) / p.sigmas[i]
		sum += r * r
	}
	return sum
}

// normal builds J^T W J and J^T W r in scaled parameters.
func (p *problem) normal(params []float64) (*mat.SymDense, *mat.VecDense) {
	t, theta := p.physical(params)
	n := len(p.wavelengths)
	jac := mat.NewDense(n, 2, nil)
	res := mat.NewVecDense(n, nil)
	for i, wl := range p.wavelengths {
		b := planck.Function(wl, t)
		jac.Set(i, 0, math.Pi*theta*theta*planck.DFunctionDT(wl, t)*p.scale[0]/p.sigmas[i])
		jac.Set(i, 1, 2*math.Pi*theta*b*p.scale[1]/p.sigmas[i])
		res.SetVec(i, (p.fluxes[i]-model(wl, t, theta))/p.sigmas[i])
	}
	jtj := mat.NewSymDense(2, nil)
	jtj.SymOuterK(1, jac.T())
	jtr := mat.NewVecDense(2, nil)
	jtr.MulVec(jac.T(), res)
	return jtj, jtr
}

func solveDamped(jtj *mat.SymDense, jtr *mat.VecDense, damping float64) ([]float64, error) {
	a := mat.NewDense(2, 2, nil)
	a.Copy(jtj)
	for i := 0; i < 2; i++ {
		a.Set(i, i, a.At(i, i)*(1+damping))
	}
	var step mat.VecDense
	if err := step.SolveVec(a, jtr); err != nil {
		return nil, err
	}
	return []float64{step.AtVec(0), step.AtVec(1)}, nil
}

func (p *problem) covariance(params []float64) ([2][2]float64, error) {
	jtj, _ := p.normal(params)
	var chol mat.Cholesky
	if ok := chol.Factorize(jtj); !ok {
		return [2][2]float64{}, fmt.Errorf("%w: normal matrix not positive definite", ErrFitFailed)
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return [2][2]float64{}, fmt.Errorf("%w: singular normal matrix: %v", ErrFitFailed, err)
	}
	var cov [2][2]float64
	for i := 0; i < 2; i++ {
		for j := i; j < 2; j++ {
			cov[i][j] = inv.At(i, j) * (p.scale[i] * p.scale[j])
			cov[j][i] = cov[i][j]
		}
	}
	return cov, nil
}
