package patcher

import (
	"fmt"
	"runtime/debug"

	"github.com/stitchworks/stitch/pkg/descriptor"
)

// apply runs the registration's transform against m. Panics are converted
// into PatchError values carrying the recovery stack, so one faulty patcher
// cannot take down the run.
func (r Registration) apply(m *descriptor.Module) (perr *PatchError) {
	defer func() {
		if rec := recover(); rec != nil {
			perr = &PatchError{
				Target:   r.Target,
				Patcher:  r.Name,
				Err:      fmt.Errorf("panic: %v", rec),
				Stack:    debug.Stack(),
				Panicked: true,
			}
		}
	}()

	if err := r.patcher.Patch(m); err != nil {
		return &PatchError{
			Target:  r.Target,
			Patcher: r.Name,
			Err:     err,
		}
	}

	return nil
}
