package descriptor

import (
	"errors"
	"fmt"
)

// ErrNilModule is returned when encoding a nil module or one without a payload.
var ErrNilModule = errors.New("nil module")

// DecodeError reports a target module file that could not be read or parsed.
// The engine collects it and skips the target; it is never fatal to a run.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode module %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
