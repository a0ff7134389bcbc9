package patcher

import (
	"errors"
	"fmt"
)

// ErrNoExports indicates a plugin object does not expose the Patchers
// constructor. Such a file is not a patcher plugin and is skipped quietly.
var ErrNoExports = errors.New("plugin exports no patchers")

// LoadError describes why a plugin file could not be loaded. The scanner
// logs it and moves on to the next file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load plugin %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// PatchError captures a single failed transform. Panicked transforms carry
// the stack captured at recovery time.
type PatchError struct {
	Target   string
	Patcher  string
	Err      error
	Stack    []byte
	Panicked bool
}

func (e *PatchError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("patcher %s panicked on %s: %v", e.Patcher, e.Target, e.Err)
	}
	return fmt.Sprintf("patcher %s failed on %s: %v", e.Patcher, e.Target, e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}
