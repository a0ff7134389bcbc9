package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "stitch",
		Description: "Stitch - a plugin-driven descriptor patching pipeline",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("stitch", flag.ExitOnError),
	}

	root.Subcommands["patch"] = newPatchCommand()
	root.Subcommands["plugins"] = newPluginsCommand()
	root.Subcommands["compile"] = newCompileCommand()
	root.Subcommands["watch"] = newWatchCommand()

	return root
}

// Execute runs the command
func (c *Command) Execute() error {
	args := os.Args[1:]
	if len(args) == 0 {
		return c.usage()
	}

	if isHelpArg(args[0]) {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

func isHelpArg(arg string) bool {
	return strings.EqualFold(arg, "-h") ||
		strings.EqualFold(arg, "--help") ||
		strings.EqualFold(arg, "help")
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Printf("Usage: %s <command> [args]\n\n", c.Name)
	fmt.Printf("Commands:\n")
	for name, cmd := range c.Subcommands {
		fmt.Printf("  %-10s %s\n", name, cmd.Description)
	}
	return nil
}
