// Package descriptor provides the module representation and codec for the patch pipeline.
//
// # Overview
//
// Target modules are binary FileDescriptorSet files (the output of
// protoc --descriptor_set_out or of CompileSources/CompileDir in this package).
// The codec decodes one file into a Module, the mutable in-memory representation
// patchers operate on, and encodes a patched Module back to bytes for debug dumps.
//
// # Key Types
//
// Module: one decoded target module
//
//	m, err := codec.Decode("modules/inventory.binpb")
//	m.File("inventory/v1/inventory.proto").Options = ...
//
// Codec: the decode/encode boundary
//
//	ProtoCodec:  production codec over google.golang.org/protobuf
//	CachedCodec: LRU decoration keyed by path, mtime and size; hits return
//	             deep clones so cached state is never mutated by patchers
//
// # Compilation
//
// CompileSources and CompileDir build descriptor sets from .proto sources with
// bufbuild/protocompile, resolving the well-known imports automatically. They
// back the compile command and the test fixtures.
//
// # Related Packages
//
//   - pkg/patcher: decodes targets through Codec and mutates Modules
package descriptor
