package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/proto"

	"github.com/stitchworks/stitch/pkg/descriptor"
)

func newCompileCommand() *Command {
	cmd := &Command{
		Name:        "compile",
		Description: "Compile .proto sources into a binary descriptor module",
		Flags:       flag.NewFlagSet("compile", flag.ExitOnError),
		Run:         runCompile,
	}

	cmd.Flags.String("dir", ".", "Directory containing .proto sources")
	cmd.Flags.String("out", "module.binpb", "Output path for the descriptor module")

	return cmd
}

func runCompile(args []string) error {
	cmd := newCompileCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	dir := cmd.Flags.Lookup("dir").Value.String()
	out := cmd.Flags.Lookup("out").Value.String()

	fds, err := descriptor.CompileDir(context.Background(), dir)
	if err != nil {
		return fmt.Errorf("compile %s: %w", dir, err)
	}

	data, err := proto.Marshal(fds)
	if err != nil {
		return fmt.Errorf("encode descriptor set: %w", err)
	}

	if parent := filepath.Dir(out); parent != "." {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	fmt.Printf("Compiled %d proto files into %s (%d bytes)\n", len(fds.GetFile()), out, len(data))
	return nil
}
