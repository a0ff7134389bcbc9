package patcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scanner discovers and loads patcher plugins from a filesystem directory.
type Scanner struct {
	opener Opener
	mu     sync.RWMutex
	log    *logrus.Logger
}

// NewScanner creates a scanner backed by the default object opener.
func NewScanner(log *logrus.Logger) *Scanner {
	if log == nil {
		log = logrus.New()
	}

	return &Scanner{
		opener: NewObjOpener(),
		log:    log,
	}
}

// SetOpener replaces the plugin opener. Tests use this to feed the scanner
// plugins without compiling object files.
func (s *Scanner) SetOpener(opener Opener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opener = opener
}

// Scan walks dir for plugin files and builds a routing table from the
// patchers they export. Directory entries come back in name order, so the
// table's registration order is reproducible across scans.
//
// A plugin file that fails to load is logged and skipped; exported values
// that do not satisfy Patcher are ignored. Only the directory read itself
// can fail the scan.
func (s *Scanner) Scan(ctx context.Context, dir string) (*RoutingTable, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin directory %s: %w", dir, err)
	}

	table := NewRoutingTable()
	for _, entry := range entries {
		if entry.IsDir() || !isPluginFile(entry.Name()) {
			continue
		}

		if err := ctx.Err(); err != nil {
			_ = table.Close()
			return nil, err
		}

		path := filepath.Join(dir, entry.Name())
		if err := s.loadPlugin(path, table); err != nil {
			s.log.Warnf("Failed to load patcher plugin %s: %v", path, err)
			continue
		}
	}

	return table, nil
}

// loadPlugin loads one plugin file and registers its patchers into table.
func (s *Scanner) loadPlugin(path string, table *RoutingTable) error {
	manifest, err := LoadManifestFor(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}

	if validationErrors := ValidateManifest(manifest); len(validationErrors) > 0 {
		return &LoadError{Path: path, Err: fmt.Errorf("manifest validation failed: %v", validationErrors)}
	}

	if !IsCompatibleAPIVersion(manifest.APIVersion, APIVersion) {
		return &LoadError{Path: path, Err: fmt.Errorf("incompatible API version: plugin targets %s, host is %s",
			manifest.APIVersion, APIVersion)}
	}

	s.mu.RLock()
	opener := s.opener
	s.mu.RUnlock()

	mod, err := opener.Open(path, manifest.Package)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}

	info := PluginInfo{
		Path:     path,
		Manifest: manifest,
		LoadedAt: time.Now(),
	}

	exports, err := mod.Exports()
	if err != nil {
		if uerr := mod.Unload(); uerr != nil {
			s.log.Warnf("Failed to unload plugin %s: %v", path, uerr)
		}
		if errors.Is(err, ErrNoExports) {
			// Not a patcher plugin. Record it and move on quietly.
			s.log.Debugf("Plugin %s exposes no %s constructor, skipping", path, ExportSymbol)
			table.attach(info, nil)
			return nil
		}
		return &LoadError{Path: path, Err: err}
	}

	registered := 0
	for i, export := range exports {
		p, ok := export.(Patcher)
		if !ok {
			// The export list may carry values meant for other hosts.
			info.Skipped++
			s.log.Debugf("Plugin %s export %d does not implement Patcher, skipping", path, i)
			continue
		}

		name := manifest.Name
		if named, ok := export.(Named); ok && named.Name() != "" {
			name = named.Name()
		}

		targets := p.TargetModules()
		if len(targets) == 0 {
			// A patcher with no targets is a valid no-op.
			s.log.Debugf("Patcher %s from %s declares no target modules", name, path)
			info.Patchers++
			continue
		}

		for _, target := range targets {
			if target == "" {
				s.log.Debugf("Patcher %s from %s declares an empty target name, skipping", name, path)
				continue
			}

			table.add(Registration{
				Target:     target,
				Name:       name,
				PluginFile: path,
				Index:      i,
				patcher:    p,
			})
			registered++
		}
		info.Patchers++
	}

	if registered == 0 {
		// Nothing routed from this plugin; release its code now.
		if err := mod.Unload(); err != nil {
			s.log.Warnf("Failed to unload idle plugin %s: %v", path, err)
		}
		table.attach(info, nil)
	} else {
		table.attach(info, mod)
	}

	s.log.Infof("Loaded patcher plugin %s: %d patchers, %d registrations", manifest.Name, info.Patchers, registered)

	return nil
}

// isPluginFile reports whether name carries a patcher plugin suffix.
func isPluginFile(name string) bool {
	return strings.HasSuffix(name, ObjectSuffix) || strings.HasSuffix(name, ArchiveSuffix)
}
