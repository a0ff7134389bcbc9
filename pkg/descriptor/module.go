package descriptor

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Module is the in-memory representation of one compiled protobuf module: a
// FileDescriptorSet plus the identity of the file it was decoded from.
// Patchers mutate Files in place; the engine hands the same Module to every
// patcher routed to it, in order.
type Module struct {
	// Name is the on-disk file name the module was decoded from, e.g.
	// "inventory.binpb". Target routing is keyed by this name.
	Name string
	// Path is the full path the module was decoded from.
	Path string
	// Files is the mutable descriptor payload.
	Files *descriptorpb.FileDescriptorSet
}

// File returns the file descriptor with the given proto path (e.g.
// "inventory/v1/inventory.proto"), or nil if the module does not contain it.
func (m *Module) File(name string) *descriptorpb.FileDescriptorProto {
	if m == nil {
		return nil
	}
	for _, f := range m.Files.GetFile() {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

// Clone returns a deep copy of the module sharing no state with the original.
func (m *Module) Clone() *Module {
	if m == nil {
		return nil
	}
	c := &Module{Name: m.Name, Path: m.Path}
	if m.Files != nil {
		c.Files = proto.Clone(m.Files).(*descriptorpb.FileDescriptorSet)
	}
	return c
}

func (m *Module) String() string {
	return fmt.Sprintf("%s (%d files)", m.Name, len(m.Files.GetFile()))
}
