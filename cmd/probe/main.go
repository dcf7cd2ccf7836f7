package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/probelabs/probe/internal/version"
)

// Exit codes, §6: 0 success, 1 user error, 2 I/O error, 3 internal error.
const (
	exitSuccess     = 0
	exitUserError   = 1
	exitIOError     = 2
	exitInternalErr = 3
)

func main() {
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	app := &cli.App{
		Name:                   "probe",
		Usage:                  "code search and intelligence for local repositories",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Commands: []*cli.Command{
			searchCommand(),
			extractCommand(),
			daemonCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to the §6 exit-code taxonomy. cli.ExitCoder
// errors (raised deliberately by a command) pass their code through
// unchanged; anything else is treated as an internal error.
func exitCodeFor(err error) int {
	if coder, ok := err.(cli.ExitCoder); ok {
		return coder.ExitCode()
	}
	return exitInternalErr
}
