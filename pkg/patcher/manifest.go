package patcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// ManifestPathFor returns the sidecar manifest path for a plugin file:
// inventory.patcher.o -> inventory.patcher.yaml.
func ManifestPathFor(pluginPath string) string {
	base := strings.TrimSuffix(pluginPath, ObjectSuffix)
	base = strings.TrimSuffix(base, ArchiveSuffix)
	return base + ManifestSuffix
}

// LoadManifest loads and parses a plugin manifest from a file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &manifest, nil
}

// LoadManifestFor loads the sidecar manifest for a plugin file. A missing
// sidecar is not an error: the plugin runs with defaults. Absent fields in a
// present sidecar fall back to the same defaults.
func LoadManifestFor(pluginPath string) (*Manifest, error) {
	manifest, err := LoadManifest(ManifestPathFor(pluginPath))
	if errors.Is(err, os.ErrNotExist) {
		manifest = &Manifest{}
	} else if err != nil {
		return nil, err
	}

	if manifest.Name == "" {
		manifest.Name = PluginBaseName(pluginPath)
	}
	if manifest.Package == "" {
		manifest.Package = DefaultPackage
	}
	if manifest.APIVersion == "" {
		manifest.APIVersion = APIVersion
	}

	return manifest, nil
}

// SaveManifest saves a plugin manifest to a file.
func SaveManifest(manifest *Manifest, path string) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// PluginBaseName returns the plugin's name stem: /x/inventory.patcher.o ->
// inventory.
func PluginBaseName(pluginPath string) string {
	base := filepath.Base(pluginPath)
	base = strings.TrimSuffix(base, ObjectSuffix)
	base = strings.TrimSuffix(base, ArchiveSuffix)
	return base
}

// ValidateManifest performs basic validation on a plugin manifest. All
// fields are optional, so only formats are checked.
func ValidateManifest(manifest *Manifest) []ValidationError {
	var errors []ValidationError

	if manifest.Version != "" && !isValidSemver(manifest.Version) {
		errors = append(errors, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("Invalid semver format: %s", manifest.Version),
		})
	}

	if manifest.APIVersion != "" && !isValidSemver(manifest.APIVersion) {
		errors = append(errors, ValidationError{
			Field:   "api_version",
			Message: fmt.Sprintf("Invalid semver format: %s", manifest.APIVersion),
		})
	}

	return errors
}

// isValidSemver checks if a version string follows semantic versioning
func isValidSemver(version string) bool {
	return semverRegex.MatchString(version)
}

// IsCompatibleAPIVersion checks if a plugin's API version is compatible with
// the host. Only the major version has to match.
func IsCompatibleAPIVersion(pluginAPIVersion, hostAPIVersion string) bool {
	pluginMajor := extractMajorVersion(pluginAPIVersion)
	hostMajor := extractMajorVersion(hostAPIVersion)

	return pluginMajor == hostMajor
}

func extractMajorVersion(version string) string {
	matches := semverRegex.FindStringSubmatch(version)
	if len(matches) > 1 {
		return matches[1]
	}
	return "0"
}
