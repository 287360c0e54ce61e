package main

import (
	"fmt"
	"io"
	"os"
)

// Console prints one progress line per test. On a terminal the pending
// marker is overwritten in place with the result.
type Console struct {
	w   io.Writer
	tty bool
}

// NewConsole returns a console writing to f.
func NewConsole(f *os.File) *Console {
	return &Console{w: f, tty: isTerminal(f.Fd())}
}

// Begin announces a test.
func (c *Console) Begin(name string) {
	if c.tty {
		fmt.Fprintf(c.w, "[    ] %s", name)
	}
}

// End reports the result of the test announced by Begin.
func (c *Console) End(name string, passed bool) {
	status := "PASS"
	if !passed {
		status = "FAIL"
	}
	if c.tty {
		fmt.Fprint(c.w, "\r")
	}
	fmt.Fprintf(c.w, "[%s] %s\n", status, name)
}

// Summary prints the totals.
func (c *Console) Summary(passes, fails int) {
	fmt.Fprintf(c.w, "%d tests passed, %d failed.\n", passes, fails)
}
