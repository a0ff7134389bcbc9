package patcher

import (
	"errors"
	"sync"
)

// RoutingTable maps target module names to the patchers registered for them.
//
// A table is built by Scanner.Scan and holds registration order fixed: targets
// iterate in first-registration order, and the transforms for a target run in
// the order they were registered. Lookups are safe for concurrent use; nothing
// is added after the scan returns. Close unloads the plugin code backing the
// registrations, after which the table must not be used.
type RoutingTable struct {
	mu      sync.RWMutex
	targets []string
	routes  map[string][]Registration
	plugins []PluginInfo
	modules []LoadedModule
}

// NewRoutingTable creates an empty routing table.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{
		routes: make(map[string][]Registration),
	}
}

// add appends a registration, preserving insertion order for both the target
// list and the target's transform chain.
func (t *RoutingTable) add(reg Registration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.routes[reg.Target]; !exists {
		t.targets = append(t.targets, reg.Target)
	}
	t.routes[reg.Target] = append(t.routes[reg.Target], reg)
}

// attach records a loaded plugin file. mod may be nil when the plugin
// contributed no registrations and was unloaded during the scan.
func (t *RoutingTable) attach(info PluginInfo, mod LoadedModule) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.plugins = append(t.plugins, info)
	if mod != nil {
		t.modules = append(t.modules, mod)
	}
}

// Targets returns the target module names in registration order.
func (t *RoutingTable) Targets() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, len(t.targets))
	copy(out, t.targets)
	return out
}

// TransformsFor returns the registrations for a target in registration order.
// The slice is a copy; an unknown target yields an empty slice.
func (t *RoutingTable) TransformsFor(target string) []Registration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	regs := t.routes[target]
	out := make([]Registration, len(regs))
	copy(out, regs)
	return out
}

// Plugins returns information about every plugin file the scan loaded,
// including plugins that registered nothing.
func (t *RoutingTable) Plugins() []PluginInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]PluginInfo, len(t.plugins))
	copy(out, t.plugins)
	return out
}

// Empty reports whether no patchers are registered.
func (t *RoutingTable) Empty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.routes) == 0
}

// Registrations returns the total number of target registrations.
func (t *RoutingTable) Registrations() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := 0
	for _, regs := range t.routes {
		total += len(regs)
	}
	return total
}

// Close unloads every plugin module backing the table. Safe to call more
// than once.
func (t *RoutingTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for _, mod := range t.modules {
		if err := mod.Unload(); err != nil {
			errs = append(errs, err)
		}
	}
	t.modules = nil

	return errors.Join(errs...)
}
