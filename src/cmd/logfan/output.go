// FILE: logfan/src/cmd/logfan/output.go
package main

import (
	"fmt"
	"io"
	"os"
)

// screen prints the startup banner and command line failures. It is set up
// once in main before any goroutine starts.
type screen struct {
	quiet bool
	out   io.Writer
	err   io.Writer
}

var display = &screen{out: os.Stdout, err: os.Stderr}

// announce prints banner lines; quiet mode drops them.
func (s *screen) announce(format string, args ...any) {
	if !s.quiet {
		fmt.Fprintf(s.out, format, args...)
	}
}

// warn reports a non fatal problem; quiet mode drops it.
func (s *screen) warn(format string, args ...any) {
	if !s.quiet {
		fmt.Fprintf(s.err, format, args...)
	}
}

// fail reports a fatal problem even in quiet mode and exits with code.
func (s *screen) fail(code int, format string, args ...any) {
	fmt.Fprintf(s.err, format, args...)
	os.Exit(code)
}
