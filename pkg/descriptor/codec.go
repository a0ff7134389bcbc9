package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Codec decodes target module files into their mutable representation and
// encodes patched representations back to bytes.
type Codec interface {
	Decode(path string) (*Module, error)
	Encode(m *Module) ([]byte, error)
}

// ProtoCodec is the production Codec. An empty file decodes to a valid module
// with zero file descriptors.
type ProtoCodec struct{}

// NewProtoCodec creates the production codec.
func NewProtoCodec() *ProtoCodec {
	return &ProtoCodec{}
}

// Decode reads and unmarshals one target module file.
func (c *ProtoCodec) Decode(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(data, set); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return &Module{
		Name:  filepath.Base(path),
		Path:  path,
		Files: set,
	}, nil
}

// Encode marshals the module payload.
func (c *ProtoCodec) Encode(m *Module) ([]byte, error) {
	if m == nil || m.Files == nil {
		return nil, ErrNilModule
	}
	data, err := proto.Marshal(m.Files)
	if err != nil {
		return nil, fmt.Errorf("encode module %s: %w", m.Name, err)
	}
	return data, nil
}

// PatchedPath returns the debug-dump path for a target module path: the same
// directory and extension with "_patched" appended to the base name, e.g.
// "modules/data.binpb" -> "modules/data_patched.binpb".
func PatchedPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+"_patched"+ext)
}

// IsPatchedPath reports whether path names a debug dump produced by
// PatchedPath. Watchers use it to keep the engine's own output from
// triggering another run.
func IsPatchedPath(path string) bool {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.HasSuffix(stem, "_patched")
}
