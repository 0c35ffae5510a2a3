package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"nanoc/compiler"
)

type compileCmd struct {
	output string
}

func (*compileCmd) Name() string     { return "compile" }
func (*compileCmd) Synopsis() string { return "Compile a source file to x86-64 assembly" }
func (*compileCmd) Usage() string {
	return `compile [-o out.s] <file.c>:
  Compile a source file and write the generated assembly text.
`
}

func (c *compileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "output path (default: <file> with its extension replaced by .s)")
}

func (c *compileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "compile: no source file given")
		return subcommands.ExitUsageError
	}
	filename := args[0]

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile: failed to read %s: %v\n", filename, err)
		return subcommands.ExitFailure
	}

	asm, err := compiler.Compile(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile: %v\n", err)
		return subcommands.ExitFailure
	}

	out := c.output
	if out == "" {
		out = outputPath(filename)
	}
	if err := os.WriteFile(out, []byte(asm), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "compile: failed to write %s: %v\n", out, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func outputPath(filename string) string {
	if dot := strings.LastIndex(filename, "."); dot != -1 {
		return filename[:dot] + ".s"
	}
	return filename + ".s"
}
