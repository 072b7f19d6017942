// Package luminosity holds bolometric quantities and converts fluxes to
// luminosities.
package luminosity

import (
	"errors"
	"fmt"
	"math"
)

// CmPerMpc converts megaparsec to centimetre.
const CmPerMpc = 3.08567758e24

// ErrNegativeQuantity rejects negative fluxes, distances and uncertainties.
var ErrNegativeQuantity = errors.New("negative quantity")

// Flux is a bolometric flux in erg s^-1 cm^-2.
type Flux struct {
	Value       float64
	Uncertainty float64
}

// Luminosity is a bolometric luminosity in erg s^-1.
type Luminosity struct {
	Value       float64
	Uncertainty float64
}

// Distance is a source distance in cm.
type Distance struct {
	Value       float64
	Uncertainty float64
}

// NewFlux validates a flux value and uncertainty.
func NewFlux(value, uncertainty float64) (Flux, error) {
	if err := checkQuantity("flux", value, uncertainty); err != nil {
		return Flux{}, err
	}
	return Flux{Value: value, Uncertainty: uncertainty}, nil
}

// NewDistance validates a distance in cm.
func NewDistance(value, uncertainty float64) (Distance, error) {
	if err := checkQuantity("distance", value, uncertainty); err != nil {
		return Distance{}, err
	}
	if value == 0 {
		return Distance{}, fmt.Errorf("distance must be positive")
	}
	return Distance{Value: value, Uncertainty: uncertainty}, nil
}

// DistanceFromMpc converts a distance in Mpc to cm.
func DistanceFromMpc(mpc, uncertainty float64) (Distance, error) {
	return NewDistance(mpc*CmPerMpc, uncertainty*CmPerMpc)
}

// Plus adds two independent fluxes, combining uncertainties in quadrature.
func (f Flux) Plus(other Flux) Flux {
	return Flux{
		Value:       f.Value + other.Value,
		Uncertainty: math.Hypot(f.Uncertainty, other.Uncertainty),
	}
}

// ToLuminosity computes L = 4 pi D^2 F with first order propagation of both
// flux and distance uncertainty.
func ToLuminosity(f Flux, d Distance) (Luminosity, error) {
	if err := checkQuantity("flux", f.Value, f.Uncertainty); err != nil {
		return Luminosity{}, err
	}
	if err := checkQuantity("distance", d.Value, d.Uncertainty); err != nil {
		return Luminosity{}, err
	}
	value := 4 * math.Pi * d.Value * d.Value * f.Value
	fluxTerm := 4 * math.Pi * d.Value * d.Value * f.Uncertainty
	distanceTerm := 8 * math.Pi * d.Value * f.Value * d.Uncertainty
	return Luminosity{
		Value:       value,
		Uncertainty: math.Hypot(fluxTerm, distanceTerm),
	}, nil
}

func checkQuantity(name string, value, uncertainty float64) error {
	switch {
	case math.IsNaN(value) || math.IsInf(value, 0):
		return fmt.Errorf("%s %v is not finite", name, value)
	case value < 0:
		return fmt.Errorf("%w: %s %v", ErrNegativeQuantity, name, value)
	case uncertainty < 0 || math.IsNaN(uncertainty):
		return fmt.Errorf("%w: %s uncertainty %v", ErrNegativeQuantity, name, uncertainty)
	}
	return nil
}
