package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"nanoc/ast"
	"nanoc/compiler"
)

// astCmd mirrors the teacher's parser.Print/PrintToFile: parse (plus
// variable resolution, so loop labels and uniquified names are visible)
// without running type checking or codegen, and pretty-print the tree.
type astCmd struct{}

func (*astCmd) Name() string     { return "ast" }
func (*astCmd) Synopsis() string { return "Parse a source file and print its AST as JSON" }
func (*astCmd) Usage() string {
	return `ast <file.c>:
  Parse (and resolve) a source file and print its AST as JSON.
`
}
func (*astCmd) SetFlags(f *flag.FlagSet) {}

func (*astCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "ast: no source file given")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ast: failed to read %s: %v\n", args[0], err)
		return subcommands.ExitFailure
	}

	prog, err := compiler.ParseTree(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ast: %v\n", err)
		return subcommands.ExitFailure
	}

	out, err := ast.DumpJSON(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ast: failed to render JSON: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(out)
	return subcommands.ExitSuccess
}
