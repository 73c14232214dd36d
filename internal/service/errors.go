package service

import "errors"

var (
	// ErrUnknownLifecycleDay means a timestamp falls outside every day of
	// the race it was attributed to.
	ErrUnknownLifecycleDay = errors.New("timestamp maps to no race day")

	// ErrInvariantViolation covers illegal lifecycle transitions: closing
	// days out of order, rewriting a boundary, or re-opening a completed race.
	ErrInvariantViolation = errors.New("race lifecycle invariant violated")

	ErrRaceNotCompleted = errors.New("race is not completed")
)
