package lightcurve

import (
	"errors"

	"github.com/timzifer/superbol/blackbody"
	"github.com/timzifer/superbol/bolcorr"
	"github.com/timzifer/superbol/photometry"
	"github.com/timzifer/superbol/sed"
)

// ErrUnknownStrategy is returned when no strategy is registered under a name.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Kind tags the result of one epoch.
type Kind int

const (
	Ok Kind = iota
	Skip
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Skip:
		return "skip"
	default:
		return "fatal"
	}
}

// Outcome is the tagged result of evaluating one epoch.
type Outcome struct {
	Kind Kind
	Err  error
}

var fatalErrors = []error{
	bolcorr.ErrInvalidBCMethod,
	bolcorr.ErrInvalidFilterCombination,
	photometry.ErrNoBandFound,
	photometry.ErrInvalidBand,
	photometry.ErrNoExtinction,
	ErrUnknownStrategy,
}

var skipErrors = []error{
	sed.ErrInsufficientFluxes,
	photometry.ErrNoUncertainty,
	photometry.ErrNoMagnitude,
	photometry.ErrNoTimeGiven,
	photometry.ErrNoBandNameGiven,
	photometry.ErrInsufficientObservations,
	bolcorr.ErrInsufficientMagnitudes,
	photometry.ErrOutOfBounds,
}

// Classify maps an epoch error onto Ok, Skip or Fatal. Missing or out of range
// data skips the epoch; unknown references abort the run. Fit failures skip.
func Classify(err error) Outcome {
	if err == nil {
		return Outcome{Kind: Ok}
	}
	for _, target := range fatalErrors {
		if errors.Is(err, target) {
			return Outcome{Kind: Fatal, Err: err}
		}
	}
	if errors.Is(err, blackbody.ErrFitFailed) {
		return Outcome{Kind: Skip, Err: err}
	}
	for _, target := range skipErrors {
		if errors.Is(err, target) {
			return Outcome{Kind: Skip, Err: err}
		}
	}
	return Outcome{Kind: Fatal, Err: err}
}
