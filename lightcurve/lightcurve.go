package lightcurve

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/timzifer/superbol/luminosity"
)

// Explosion is the epoch phases are measured from.
type Explosion struct {
	Time        float64
	Uncertainty float64
}

// Point is one epoch of a bolometric light curve.
type Point struct {
	Time float64
	// Phase is Time minus the explosion epoch, zero without one.
	Phase      float64
	Flux       luminosity.Flux
	Luminosity luminosity.Luminosity
	Strategy   string
	Detail     Detail
}

// Skipped records an epoch without a valid estimate, or a band dropped from
// an epoch while binning.
type Skipped struct {
	Time float64
	Err  error
}

// Reason is the error text for the skipped epoch.
func (s Skipped) Reason() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Lightcurve is a time-ordered bolometric light curve.
type Lightcurve struct {
	Strategy  string
	Distance  luminosity.Distance
	Explosion *Explosion
	Points    []Point
	Skipped   []Skipped
}

// Len is the number of valid epochs.
func (l Lightcurve) Len() int { return len(l.Points) }

// Times lists the epochs of the valid points.
func (l Lightcurve) Times() []float64 {
	out := make([]float64, len(l.Points))
	for i, p := range l.Points {
		out[i] = p.Time
	}
	return out
}

// Luminosities lists the luminosity values of the valid points.
func (l Lightcurve) Luminosities() []float64 {
	out := make([]float64, len(l.Points))
	for i, p := range l.Points {
		out[i] = p.Luminosity.Value
	}
	return out
}

// WriteText renders the light curve as a whitespace separated table. Times
// are fixed point with decimals places, fluxes and luminosities scientific.
func WriteText(w io.Writer, lc Lightcurve, decimals int) error {
	if decimals < 0 {
		decimals = 0
	}
	columns := []string{"#time"}
	if lc.Explosion != nil {
		columns = append(columns, "phase")
	}
	columns = append(columns, "flux", "flux_err", "lum", "lum_err", "strategy")
	if _, err := fmt.Fprintln(w, strings.Join(columns, " ")); err != nil {
		return err
	}
	for _, p := range lc.Points {
		row := []string{fixed(p.Time, decimals)}
		if lc.Explosion != nil {
			row = append(row, fixed(p.Phase, decimals))
		}
		row = append(row,
			scientific(p.Flux.Value, decimals),
			scientific(p.Flux.Uncertainty, decimals),
			scientific(p.Luminosity.Value, decimals),
			scientific(p.Luminosity.Uncertainty, decimals),
			p.Strategy,
		)
		if _, err := fmt.Fprintln(w, strings.Join(row, " ")); err != nil {
			return err
		}
	}
	return nil
}

func fixed(v float64, decimals int) string {
	return decimal.NewFromFloat(v).StringFixed(int32(decimals))
}

func scientific(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'e', decimals, 64)
}
