package photometry

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBandFound reports a band name missing from the band table.
	ErrNoBandFound = errors.New("no band found")
	// ErrInvalidBand is returned by conversions that reference an unknown band.
	ErrInvalidBand = errors.New("invalid band")
	// ErrNoExtinction reports a band without a tabulated extinction coefficient.
	ErrNoExtinction = errors.New("no extinction coefficient")

	// ErrNoMagnitude reports an observation or series without a magnitude.
	ErrNoMagnitude = errors.New("no magnitude")
	// ErrNoUncertainty reports a zero or negative uncertainty where a
	// measured one is required.
	ErrNoUncertainty = errors.New("no uncertainty")
	// ErrNoTimeGiven reports an observation without a usable time.
	ErrNoTimeGiven = errors.New("no time given")
	// ErrNoBandNameGiven reports an observation without a band name.
	ErrNoBandNameGiven = errors.New("no band name given")

	// ErrInsufficientObservations is returned when a band has too few
	// observations to interpolate from.
	ErrInsufficientObservations = errors.New("insufficient observations")
	// ErrDuplicateObservation reports two inputs for the same band and epoch.
	ErrDuplicateObservation = errors.New("duplicate observation")

	// ErrOutOfBounds is the parent of every "requested outside the observed
	// range" condition.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrMissingMagnitudeOutOfBounds is returned when a magnitude is requested
	// outside the band's observed time range.
	ErrMissingMagnitudeOutOfBounds = fmt.Errorf("missing magnitude: %w", ErrOutOfBounds)
	// ErrGapTooWide is returned when the bracketing observations are further
	// apart than the configured maximum gap.
	ErrGapTooWide = fmt.Errorf("interpolation gap too wide: %w", ErrOutOfBounds)
)
