// Command bp is a CLI client for the bloomplan plan API.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"google.golang.org/grpc/status"

	"github.com/and161185/bloomplan/internal/errs"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(newApp(os.Stdin, os.Stdout, os.Stderr), os.Args[1:]))
}

// run executes one command line and returns the exit code.
func run(a *app, args []string) int {
	defer a.teardown()
	root := newRootCmd(a)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return fail(a.errOut, err)
	}
	return 0
}

// fail prints err and returns the process exit code.
func fail(w io.Writer, err error) int {
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(w, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		return 1
	}
	fmt.Fprintln(w, "error:", err)
	if errors.Is(err, errs.ErrValidation) {
		return 2
	}
	return 1
}
