package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/keystone/internal/cli"
)

// Version information (set by build)
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cli.Version = Version
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			// Already reported by the command.
			return exitErr.Code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.ExitCommandError
	}
	return cli.ExitSuccess
}
