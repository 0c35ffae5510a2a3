// Command nanoc is the compiler's CLI driver: compile a source file to
// assembly, dump its parsed AST, or drive an interactive REPL. Grounded
// on the teacher's main.go/cmd_run.go subcommand registration idiom,
// adapted from its single hard-coded REPL loop to google/subcommands.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&compileCmd{}, "")
	subcommands.Register(&astCmd{}, "")
	subcommands.Register(&replCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
