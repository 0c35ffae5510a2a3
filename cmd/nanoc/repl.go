package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"nanoc/compiler"
)

// replCmd replaces the teacher's bare bufio.Scanner loop with readline's
// history/editing, while keeping the same read-compile-print shape as
// cmd_repl.go. A blank line ends the declaration being entered and
// triggers compilation of the buffered text; "exit" quits.
type replCmd struct{}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive compile-one-declaration REPL" }
func (*replCmd) Usage() string {
	return `repl:
  Enter one top-level declaration at a time (blank line to compile it).
`
}
func (*replCmd) SetFlags(f *flag.FlagSet) {}

func (*replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "nanoc> ",
		HistoryFile: "/tmp/nanoc_history",
	})
	if err != nil {
		fmt.Println("repl: failed to start readline:", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	fmt.Println("nanoc REPL — enter a declaration, blank line to compile it, \"exit\" to quit.")
	runRepl(rl)
	return subcommands.ExitSuccess
}

func runRepl(rl *readline.Instance) {
	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			return
		}
		if strings.TrimSpace(line) == "exit" {
			return
		}
		if strings.TrimSpace(line) == "" {
			compileAndPrint(buf.String())
			buf.Reset()
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
}

func compileAndPrint(source string) {
	if strings.TrimSpace(source) == "" {
		return
	}
	asm, err := compiler.Compile([]byte(source))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Print(asm)
}
