// Command monkey is the REPL and file-runner driver for the Monkey
// language pipeline in pkg/lexer, pkg/parser, pkg/compiler, and pkg/vm.
// It calls parse -> compile -> run and renders whatever error surfaces,
// and nothing else; all of the interesting behavior lives in the
// pipeline packages themselves.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/kristofer/monkey/internal/errs"
	"github.com/kristofer/monkey/pkg/compiler"
	"github.com/kristofer/monkey/pkg/object"
	"github.com/kristofer/monkey/pkg/parser"
	"github.com/kristofer/monkey/pkg/vm"
)

const prompt = ">> "

var (
	errorColor = color.New(color.FgRed, color.Bold)
	faintColor = color.New(color.Faint)
)

func main() {
	app := &cli.Command{
		Name:  "monkey",
		Usage: "the Monkey language: lexer, parser, bytecode compiler, and VM",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "compile and run a Monkey source file",
				ArgsUsage: "<file>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() == 0 {
						return cli.Exit("monkey run: no file given", 1)
					}
					return runFile(cmd.Args().First())
				},
			},
			{
				Name:  "repl",
				Usage: "start the interactive REPL",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runREPL()
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() > 0 {
				return runFile(cmd.Args().First())
			}
			return runREPL()
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		errorColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runFile reads, parses, compiles, and runs a single source file to
// completion: exit status 0 on a clean run, non-zero on any failure,
// including an IO failure reading the file itself.
func runFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errs.IOError(err)
	}

	program, err := parser.Parse(string(data))
	if err != nil {
		return err
	}

	c := compiler.New()
	if err := c.Compile(program); err != nil {
		return err
	}

	machine := vm.New(c.Bytecode())
	return machine.Run()
}

// runREPL is the line-oriented loop: each non-empty line is parsed,
// compiled, and run. One Compiler persists across turns (so globals and
// constant indices stay stable) with its instruction buffer reset between
// them, and each turn's VM inherits the previous turn's globals. Errors
// are printed and the REPL continues; "exit" terminates with status 0.
func runREPL() error {
	rl, err := readline.New(prompt)
	if err != nil {
		return errs.IOError(err)
	}
	defer rl.Close()

	c := compiler.New()
	globals := make([]object.Object, vm.GlobalsSize)

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return nil
		}
		if err != nil {
			return errs.IOError(err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" {
			return nil
		}
		rl.SaveHistory(line)

		program, perr := parser.Parse(line)
		if perr != nil {
			errorColor.Fprintln(os.Stderr, perr)
			continue
		}

		if cerr := c.Compile(program); cerr != nil {
			// Drop this turn's partial instructions; definitions and
			// constants emitted before the failure stay.
			c.ResetInstructions()
			errorColor.Fprintln(os.Stderr, cerr)
			continue
		}
		bytecode := c.ResetInstructions()

		machine := vm.NewWithGlobals(bytecode, globals)
		if rerr := machine.Run(); rerr != nil {
			errorColor.Fprintln(os.Stderr, rerr)
			faintColor.Fprintf(os.Stderr, "    (run %s)\n", machine.RunID())
			continue
		}

		if top, err := machine.StackTop(); err == nil {
			fmt.Fprintln(os.Stdout, top.Inspect())
		}
	}
}
