package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	"github.com/shepherrrd/schemasync/internal/command"
)

const version = "0.1.0"

func main() {
	os.Exit(Run(os.Args[1:]))
}

// Run executes the CLI with args and returns the exit code.
func Run(args []string) int {
	ui := &cli.ColoredUi{
		ErrorColor: cli.UiColorRed,
		WarnColor:  cli.UiColorYellow,
		Ui: &cli.BasicUi{
			Reader:      bufio.NewReader(os.Stdin),
			Writer:      os.Stdout,
			ErrorWriter: os.Stderr,
		},
	}

	c := &cli.CLI{
		Name:       "schemasync",
		Version:    version,
		Args:       args,
		Commands:   command.Commands(&command.Meta{UI: ui}),
		HelpFunc:   cli.BasicHelpFunc("schemasync"),
		HelpWriter: os.Stderr,
	}
	code, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %s\n", err.Error())
		return 1
	}
	return code
}
