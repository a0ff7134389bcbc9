package descriptor

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
)

// CompileSources compiles in-memory proto sources into a FileDescriptorSet.
// Map keys are proto file names; every named file is compiled, in sorted name
// order. The well-known imports (google/protobuf/*.proto) resolve without
// being supplied.
func CompileSources(ctx context.Context, sources map[string]string) (*descriptorpb.FileDescriptorSet, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no proto sources given")
	}
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(sources),
		}),
	}
	files, err := compiler.Compile(ctx, names...)
	if err != nil {
		return nil, fmt.Errorf("compile proto sources: %w", err)
	}

	set := &descriptorpb.FileDescriptorSet{}
	for _, f := range files {
		set.File = append(set.File, protodesc.ToFileDescriptorProto(f))
	}
	return set, nil
}

// CompileDir compiles every .proto file under dir into one FileDescriptorSet.
// Imports resolve against dir itself plus the well-known imports. File order
// in the set follows the lexical directory walk.
func CompileDir(ctx context.Context, dir string) (*descriptorpb.FileDescriptorSet, error) {
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".proto") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no proto files found in %s", dir)
	}

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			ImportPaths: []string{dir},
		}),
	}
	files, err := compiler.Compile(ctx, names...)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", dir, err)
	}

	set := &descriptorpb.FileDescriptorSet{}
	for _, f := range files {
		set.File = append(set.File, protodesc.ToFileDescriptorProto(f))
	}
	return set, nil
}
