package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/stitchworks/stitch/pkg/descriptor"
	"github.com/stitchworks/stitch/pkg/patcher"
)

// memOpener feeds canned exports to the scanner so the full pipeline runs
// without compiled plugin objects.
type memOpener struct {
	exports  map[string][]any
	opened   []string
	unloaded []string
}

func (o *memOpener) Open(path, pkgPath string) (patcher.LoadedModule, error) {
	base := filepath.Base(path)
	exports, ok := o.exports[base]
	if !ok {
		return nil, fmt.Errorf("no fixture for %s", base)
	}
	o.opened = append(o.opened, base)
	return &memModule{opener: o, base: base, exports: exports}, nil
}

type memModule struct {
	opener  *memOpener
	base    string
	exports []any
}

func (m *memModule) Exports() ([]any, error) { return m.exports, nil }

func (m *memModule) Unload() error {
	m.opener.unloaded = append(m.opener.unloaded, m.base)
	return nil
}

// suffixPatcher appends a suffix to every file package and records its calls
// so tests can assert application order across targets.
type suffixPatcher struct {
	name    string
	targets []string
	suffix  string
	calls   *[]string
}

func (p *suffixPatcher) Name() string            { return p.name }
func (p *suffixPatcher) TargetModules() []string { return p.targets }

func (p *suffixPatcher) Patch(m *descriptor.Module) error {
	*p.calls = append(*p.calls, p.name+":"+m.Name)
	for _, f := range m.Files.GetFile() {
		f.Package = proto.String(f.GetPackage() + p.suffix)
	}
	return nil
}

type failingPatcher struct {
	targets []string
}

func (p *failingPatcher) TargetModules() []string        { return p.targets }
func (p *failingPatcher) Patch(*descriptor.Module) error { return errors.New("refused") }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeModuleFile(t *testing.T, dir, name, pkg string) {
	t.Helper()

	source := fmt.Sprintf("syntax = \"proto3\";\n\npackage %s;\n\nmessage Record {\n  string id = 1;\n}\n", pkg)
	fds, err := descriptor.CompileSources(context.Background(), map[string]string{"record.proto": source})
	require.NoError(t, err)

	data, err := proto.Marshal(fds)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
}

func touchPluginFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("obj"), 0644))
}

// TestPatchPipeline tests the scan-route-patch flow end to end: two plugins
// over one directory of module files, with a missing target and a corrupt
// target in the mix.
func TestPatchPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dir := t.TempDir()
	ctx := context.Background()

	writeModuleFile(t, dir, "orders.binpb", "orders.v1")
	writeModuleFile(t, dir, "inventory.binpb", "inventory.v1")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.binpb"), []byte("not a descriptor set"), 0644))

	var calls []string
	opener := &memOpener{exports: map[string][]any{
		"alpha.patcher.o": {
			&suffixPatcher{name: "alpha-stamp", targets: []string{"orders.binpb", "ghost.binpb"}, suffix: ".alpha", calls: &calls},
			&failingPatcher{targets: []string{"corrupt.binpb"}},
		},
		"beta.patcher.o": {
			&suffixPatcher{name: "beta-stamp", targets: []string{"orders.binpb", "inventory.binpb"}, suffix: ".beta", calls: &calls},
		},
	}}

	touchPluginFile(t, dir, "alpha.patcher.o")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.patcher.yaml"),
		[]byte("name: alpha\npackage: example.com/patchers/alpha\nversion: 1.2.3\napi_version: 1.0.0\n"), 0644))
	touchPluginFile(t, dir, "beta.patcher.o")

	logger := quietLogger()
	scanner := patcher.NewScanner(logger)
	scanner.SetOpener(opener)

	table, err := scanner.Scan(ctx, dir)
	require.NoError(t, err)

	assert.Len(t, table.Plugins(), 2)
	assert.Equal(t, 5, table.Registrations())
	assert.Equal(t, []string{"orders.binpb", "ghost.binpb", "corrupt.binpb", "inventory.binpb"}, table.Targets())

	// The failing patcher exports no name of its own, so it routes under the
	// manifest name.
	regs := table.TransformsFor("corrupt.binpb")
	require.Len(t, regs, 1)
	assert.Equal(t, "alpha", regs[0].Name)

	engine := patcher.NewEngine(descriptor.NewProtoCodec(), logger)
	engine.SetDebugDump(true)

	modules, errs := engine.Patch(ctx, table, dir)

	// The corrupt target is the only collected failure; the missing
	// ghost.binpb target is skipped with a warning instead.
	require.Len(t, errs, 1)
	var decodeErr *descriptor.DecodeError
	require.ErrorAs(t, errs[0], &decodeErr)

	require.Len(t, modules, 2)
	assert.Equal(t, "orders.binpb", modules[0].Name)
	assert.Equal(t, "inventory.binpb", modules[1].Name)
	assert.Equal(t, "orders.v1.alpha.beta", modules[0].Files.File[0].GetPackage())
	assert.Equal(t, "inventory.v1.beta", modules[1].Files.File[0].GetPackage())

	// Transforms ran in registration order, target by target.
	assert.Equal(t, []string{
		"alpha-stamp:orders.binpb",
		"beta-stamp:orders.binpb",
		"beta-stamp:inventory.binpb",
	}, calls)

	// Debug dumps sit next to the patched sources, and only those.
	dumped, err := descriptor.NewProtoCodec().Decode(filepath.Join(dir, "orders_patched.binpb"))
	require.NoError(t, err)
	assert.Equal(t, "orders.v1.alpha.beta", dumped.Files.File[0].GetPackage())
	assert.FileExists(t, filepath.Join(dir, "inventory_patched.binpb"))
	assert.NoFileExists(t, filepath.Join(dir, "ghost_patched.binpb"))
	assert.NoFileExists(t, filepath.Join(dir, "corrupt_patched.binpb"))

	require.NoError(t, table.Close())
	assert.ElementsMatch(t, []string{"alpha.patcher.o", "beta.patcher.o"}, opener.unloaded)
}

// TestPatchPipeline_PluginIsolation tests that one rejected and one broken
// plugin leave the surviving plugin's run untouched.
func TestPatchPipeline_PluginIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dir := t.TempDir()
	ctx := context.Background()

	writeModuleFile(t, dir, "orders.binpb", "orders.v1")

	var calls []string
	opener := &memOpener{exports: map[string][]any{
		"good.patcher.o": {
			&suffixPatcher{name: "good", targets: []string{"orders.binpb"}, suffix: ".patched", calls: &calls},
		},
	}}

	// ahead declares a future API major; broken has no loadable code behind it.
	touchPluginFile(t, dir, "ahead.patcher.o")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ahead.patcher.yaml"),
		[]byte("name: ahead\npackage: example.com/patchers/ahead\nversion: 1.0.0\napi_version: 2.0.0\n"), 0644))
	touchPluginFile(t, dir, "broken.patcher.o")
	touchPluginFile(t, dir, "good.patcher.o")

	logger := quietLogger()
	scanner := patcher.NewScanner(logger)
	scanner.SetOpener(opener)

	table, err := scanner.Scan(ctx, dir)
	require.NoError(t, err)

	require.Len(t, table.Plugins(), 1)
	assert.Equal(t, filepath.Join(dir, "good.patcher.o"), table.Plugins()[0].Path)
	assert.NotContains(t, opener.opened, "ahead.patcher.o", "incompatible plugins must be rejected before their code is opened")

	engine := patcher.NewEngine(descriptor.NewProtoCodec(), logger)
	modules, errs := engine.Patch(ctx, table, dir)

	assert.Empty(t, errs)
	require.Len(t, modules, 1)
	assert.Equal(t, "orders.v1.patched", modules[0].Files.File[0].GetPackage())

	require.NoError(t, table.Close())
}
