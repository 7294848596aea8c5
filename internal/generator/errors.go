package generator

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is matched by every MissingDataError.
	ErrNoData = errors.New("no generated data")
	// ErrBusy is returned when Generate is re-entered before the previous pass finished.
	ErrBusy = errors.New("generation already in progress")
)

// MissingDataError reports a command that needs a generated grid when none exists.
type MissingDataError struct {
	Op string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrNoData)
}

// Is lets errors.Is(err, ErrNoData) match.
func (e *MissingDataError) Is(target error) bool {
	return target == ErrNoData
}
