package patcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitchworks/stitch/pkg/descriptor"
)

// Engine applies routed patchers to the descriptor modules in a directory.
type Engine struct {
	codec     descriptor.Codec
	log       *logrus.Logger
	debugDump bool
}

// NewEngine creates an engine that decodes targets with codec.
func NewEngine(codec descriptor.Codec, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}

	return &Engine{
		codec: codec,
		log:   log,
	}
}

// SetDebugDump toggles writing each patched module back to disk next to its
// source file, as <name>_patched.<ext>, for offline inspection.
func (e *Engine) SetDebugDump(enabled bool) {
	e.debugDump = enabled
}

// Patch decodes every routed target under dir, applies its transforms in
// registration order, and returns the patched modules alongside the errors
// collected on the way. One broken target or transform does not stop the
// run: targets missing from dir are skipped with a warning, decode failures
// drop the target, and failed transforms leave the remaining transforms of
// the same target running.
func (e *Engine) Patch(ctx context.Context, table *RoutingTable, dir string) ([]*descriptor.Module, []error) {
	runID := uuid.New().String()
	log := e.log.WithField("run_id", runID)

	targets := table.Targets()
	log.Infof("Patch run started: %d targets under %s", len(targets), dir)

	var (
		modules []*descriptor.Module
		errs    []error
	)

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			log.Warnf("Patch run aborted: %v", err)
			return modules, errs
		}

		path := filepath.Join(dir, target)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				log.Warnf("Target module %s not found under %s, skipping %d transforms",
					target, dir, len(table.TransformsFor(target)))
				continue
			}
			errs = append(errs, fmt.Errorf("stat target %s: %w", path, err))
			continue
		}

		m, err := e.codec.Decode(path)
		if err != nil {
			log.Errorf("Failed to decode target %s: %v", target, err)
			errs = append(errs, err)
			continue
		}

		applied, failed := 0, 0
		for _, reg := range table.TransformsFor(target) {
			perr := reg.apply(m)
			if perr != nil {
				failed++
				if perr.Panicked {
					log.WithField("target", target).Errorf("Patcher %s panicked: %v\n%s", perr.Patcher, perr.Err, perr.Stack)
				} else {
					log.WithField("target", target).Errorf("Patcher %s failed: %v", perr.Patcher, perr.Err)
				}
				errs = append(errs, perr)
				continue
			}
			applied++
		}

		if e.debugDump {
			e.dumpPatched(log, path, m)
		}

		if log.Logger.IsLevelEnabled(logrus.TraceLevel) {
			log.Tracef("Patched module %s:\n%s", target, spew.Sdump(m.Files))
		}

		log.Infof("Patched %s: %d transforms applied, %d failed", target, applied, failed)
		modules = append(modules, m)
	}

	log.Infof("Patch run complete: %d modules patched, %d errors", len(modules), len(errs))

	return modules, errs
}

// dumpPatched writes the patched module next to its source for inspection.
// Dump failures are logged, not collected: the dump is diagnostics, not part
// of the run.
func (e *Engine) dumpPatched(log *logrus.Entry, path string, m *descriptor.Module) {
	data, err := e.codec.Encode(m)
	if err != nil {
		log.Warnf("Failed to encode patched dump for %s: %v", path, err)
		return
	}

	out := descriptor.PatchedPath(path)
	if err := os.WriteFile(out, data, 0644); err != nil {
		log.Warnf("Failed to write patched dump %s: %v", out, err)
		return
	}

	log.Debugf("Wrote patched dump %s", out)
}
