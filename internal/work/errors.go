package work

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInterval matches every InvalidIntervalError.
var ErrInvalidInterval = errors.New("leaving is before arrival")

// InvalidIntervalError reports a record whose leaving timestamp precedes its arrival.
type InvalidIntervalError struct {
	Arrival time.Time
	Leaving time.Time
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval: leaving %s is before arrival %s",
		e.Leaving.Format(time.RFC3339), e.Arrival.Format(time.RFC3339))
}

func (e *InvalidIntervalError) Unwrap() error {
	return ErrInvalidInterval
}
