package main

import (
	"errors"

	"github.com/urfave/cli/v2"

	perrors "github.com/probelabs/probe/internal/errors"
)

// wrapExit classifies err per the §6 taxonomy (QueryError/strict-syntax
// violations → 1, a missing path → 2, everything else → 3) and wraps it
// as a cli.ExitCoder so main's error handler exits with the right code.
func wrapExit(err error) error {
	if err == nil {
		return nil
	}

	var qerr *perrors.QueryError
	if errors.As(err, &qerr) {
		return cli.Exit(err.Error(), exitUserError)
	}

	var ferr *perrors.FileError
	if errors.As(err, &ferr) {
		return cli.Exit(err.Error(), exitIOError)
	}

	return cli.Exit(err.Error(), exitInternalErr)
}
