package models

import "errors"

var (
	// ErrNotFound is returned when a record or revision does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDenied is the only error a rejected restore request ever sees.
	ErrDenied = errors.New("request denied")
	// ErrStorage wraps failures reported by the host storage.
	ErrStorage = errors.New("storage failure")
)
