package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup by id matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a compare-and-swap update lost a race.
	ErrVersionConflict = errors.New("version conflict")
)
