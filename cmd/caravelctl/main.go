package main

import (
	"fmt"
	"os"

	"github.com/caraveld/caravel"
)

func main() {
	rootCmd := newRoot().Command()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitStatus(err))
	}
}

// Exit codes: 0 when the deployment ends Succeeded or RolledBack, 1
// when it ends Failed (or the request itself fails), 2 for an invalid
// invocation: unknown environment, malformed version, bad flags.
func exitStatus(err error) int {
	switch err.(type) {
	case caravel.Missing, caravel.Invalid, usageError:
		return 2
	}
	return 1
}

type usageError struct {
	error
}

func newUsageError(format string, args ...interface{}) error {
	return usageError{fmt.Errorf(format, args...)}
}
