package patcher

import (
	"time"

	"github.com/stitchworks/stitch/pkg/descriptor"
)

const (
	// APIVersion is the patcher plugin API version this host implements.
	// Plugins declaring a different major version are refused.
	APIVersion = "1.0.0"

	// ExportSymbol is the constructor a plugin must export to contribute
	// patchers: func Patchers() []any.
	ExportSymbol = "Patchers"

	// DefaultPackage is the package path assumed for plugin objects whose
	// manifest does not pin one.
	DefaultPackage = "main"

	// ObjectSuffix and ArchiveSuffix mark the plugin files a Scanner picks up.
	ObjectSuffix  = ".patcher.o"
	ArchiveSuffix = ".patcher.a"

	// ManifestSuffix is the sidecar manifest suffix, sharing the plugin
	// file's base name: inventory.patcher.o -> inventory.patcher.yaml.
	ManifestSuffix = ".patcher.yaml"
)

// Patcher is the contract a plugin-exported value must satisfy to be routed.
// Values missing either method are skipped at load time.
type Patcher interface {
	// TargetModules returns the file names of the descriptor modules this
	// patcher rewrites, relative to the module directory. An empty list is
	// a valid no-op.
	TargetModules() []string

	// Patch mutates the module in place. Returning an error marks this
	// transform failed without stopping the run.
	Patch(m *descriptor.Module) error
}

// Named is an optional facet a Patcher may implement to override the display
// name taken from its plugin manifest.
type Named interface {
	Name() string
}

// Manifest describes a patcher plugin's sidecar metadata. Every field is
// optional; absent fields fall back to defaults derived from the plugin file.
type Manifest struct {
	Name        string `yaml:"name"`        // Display name
	Package     string `yaml:"package"`     // Go package path of the compiled object
	Version     string `yaml:"version"`     // Plugin semver
	APIVersion  string `yaml:"api_version"` // Patcher API version the plugin targets
	Author      string `yaml:"author"`      // Author name
	Description string `yaml:"description"` // Short description
}

// Registration binds one patcher to one target module name. Registrations
// are value types handed out by the routing table; the patcher itself stays
// unexported so callers go through apply.
type Registration struct {
	Target     string // target module file name
	Name       string // patcher display name
	PluginFile string // plugin file the patcher came from
	Index      int    // position within the plugin's export list

	patcher Patcher
}

// PluginInfo records a plugin file the scanner loaded.
type PluginInfo struct {
	Path     string    `json:"path"`
	Manifest *Manifest `json:"manifest"`
	LoadedAt time.Time `json:"loaded_at"`
	Patchers int       `json:"patchers"` // exported values accepted as patchers
	Skipped  int       `json:"skipped"`  // exported values that did not satisfy the contract
}

// ValidationError represents a manifest validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// LoadedModule is a plugin object linked into the running process.
type LoadedModule interface {
	// Exports returns the values the plugin's Patchers constructor yields.
	// ErrNoExports means the plugin does not expose the constructor at all.
	Exports() ([]any, error)

	// Unload releases the module's code and data segments. The module must
	// not be used afterwards.
	Unload() error
}

// Opener loads compiled plugin objects. The default implementation links the
// object into the running process; tests substitute their own via
// Scanner.SetOpener.
type Opener interface {
	Open(path, pkgPath string) (LoadedModule, error)
}
