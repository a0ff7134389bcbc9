package patcher

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/pkujhd/goloader"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/stitchworks/stitch/pkg/descriptor"
)

// hostSymbols is the host binary's symbol table, shared by every loaded
// plugin. Registering it walks the whole binary, so it is built once.
var (
	hostSymbols     map[string]uintptr
	hostSymbolsErr  error
	hostSymbolsOnce sync.Once
)

func initHostSymbols() (map[string]uintptr, error) {
	hostSymbolsOnce.Do(func() {
		symbols := make(map[string]uintptr)
		if err := goloader.RegSymbol(symbols); err != nil {
			hostSymbolsErr = fmt.Errorf("register host symbols: %w", err)
			return
		}

		// Types plugins exchange with the host must resolve to the host's
		// runtime type information, not a private copy inside the plugin.
		var p Patcher
		goloader.RegTypes(symbols,
			&p,
			&descriptor.Module{},
			&descriptorpb.FileDescriptorSet{},
			&descriptorpb.FileDescriptorProto{},
			&descriptorpb.DescriptorProto{},
			&descriptorpb.FieldDescriptorProto{},
			&descriptorpb.EnumDescriptorProto{},
			&descriptorpb.EnumValueDescriptorProto{},
			&descriptorpb.ServiceDescriptorProto{},
			&descriptorpb.MethodDescriptorProto{},
		)

		hostSymbols = symbols
	})

	return hostSymbols, hostSymbolsErr
}

// objOpener links compiled plugin objects into the running process.
type objOpener struct{}

// NewObjOpener returns the default Opener. It reads a compiled Go object or
// archive, resolves its relocations against the host binary, and maps its
// code into the process.
func NewObjOpener() Opener {
	return &objOpener{}
}

func (o *objOpener) Open(path, pkgPath string) (LoadedModule, error) {
	symbols, err := initHostSymbols()
	if err != nil {
		return nil, err
	}

	if pkgPath == "" {
		pkgPath = DefaultPackage
	}

	linker, err := goloader.ReadObj(path, pkgPath)
	if err != nil {
		return nil, fmt.Errorf("read object file: %w", err)
	}

	// Surface missing relocations before mapping any code. Loading with
	// unresolved symbols faults at call time, far from the cause.
	if missing := goloader.UnresolvedSymbols(linker, symbols); len(missing) > 0 {
		return nil, fmt.Errorf("unresolved symbols (%d): %v", len(missing), truncateList(missing, 8))
	}

	code, err := goloader.Load(linker, symbols)
	if err != nil {
		return nil, fmt.Errorf("link plugin: %w", err)
	}

	return &objModule{code: code, pkg: pkgPath}, nil
}

// objModule wraps a mapped goloader code module.
type objModule struct {
	mu   sync.Mutex
	code *goloader.CodeModule
	pkg  string
}

// Exports calls the plugin's Patchers constructor and returns its values.
func (m *objModule) Exports() (exports []any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.code == nil {
		return nil, fmt.Errorf("plugin already unloaded")
	}

	symbol := m.pkg + "." + ExportSymbol
	addr, ok := m.code.Syms[symbol]
	if !ok {
		return nil, ErrNoExports
	}

	// The symbol value is the code address; a Go func value is a pointer to
	// a word holding that address, so the address of our local variable
	// doubles as one.
	defer func() {
		if rec := recover(); rec != nil {
			exports = nil
			err = fmt.Errorf("call %s: panic: %v", symbol, rec)
		}
	}()

	container := uintptr(unsafe.Pointer(&addr))
	constructor := *(*func() []any)(unsafe.Pointer(&container))

	return constructor(), nil
}

// Unload releases the module's code and data segments.
func (m *objModule) Unload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.code == nil {
		return nil
	}

	m.code.Unload()
	m.code = nil

	return nil
}

// truncateList caps a symbol list for error messages.
func truncateList(items []string, max int) []string {
	if len(items) <= max {
		return items
	}

	out := make([]string, max+1)
	copy(out, items[:max])
	out[max] = fmt.Sprintf("and %d more", len(items)-max)
	return out
}
