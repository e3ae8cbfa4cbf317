package civiltime

import (
	"errors"
	"fmt"
)

// ErrUnresolvable marks a stored record whose date, times or zone cannot be
// turned into an instant range. Callers skip such records.
var ErrUnresolvable = errors.New("civiltime: interval cannot be resolved")

// ParseError reports text that is not a recognised date, time or zone.
type ParseError struct {
	Kind  string
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Kind, e.Input)
}
