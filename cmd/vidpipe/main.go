package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		var coded *exitCodeError
		if errors.As(err, &coded) {
			if msg := strings.TrimSpace(coded.Error()); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(coded.code)
		}
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// exitCodeError carries a specific process exit code through cobra. Used by
// run-once so schedulers can tell "store unavailable" from job failure.
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string { return e.msg }
