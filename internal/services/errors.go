package services

import "errors"

// Data service errors
var (
	ErrNoResult          = errors.New("session produced no result artifact")
	ErrNoPeriodsFound    = errors.New("no periods found")
	ErrSourceUnreachable = errors.New("document source unreachable")
)
