package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// Reporter keeps one log file per test. The log is written to a temporary
// file and renamed to PASS.<name> or FAIL.<name> when the test ends.
type Reporter struct {
	dir     string
	console *Console

	f    *os.File
	name string

	Passes, Fails int
}

// NewReporter returns a reporter writing log files into dir.
func NewReporter(dir string, console *Console) *Reporter {
	return &Reporter{dir: dir, console: console}
}

// safeName replaces everything but ASCII letters and digits with '_'.
func safeName(name string) string {
	b := []byte(name)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

// Active reports whether a test is in progress.
func (r *Reporter) Active() bool { return r.f != nil }

// Begin starts the log of a new test.
func (r *Reporter) Begin(name string) (*os.File, error) {
	f, err := os.CreateTemp(r.dir, ".hyppotest-*.log")
	if err != nil {
		return nil, fmt.Errorf("could not create test log: %w", err)
	}
	r.f, r.name = f, name
	r.console.Begin(name)
	return f, nil
}

// End closes the current test's log and files it under its result.
// history is called to append the full instruction trace of a failed test.
func (r *Reporter) End(failed bool, history func(*os.File)) error {
	f, name := r.f, r.name
	r.f, r.name = nil, ""

	safe := safeName(name)
	pass := filepath.Join(r.dir, "PASS."+safe)
	fail := filepath.Join(r.dir, "FAIL."+safe)
	os.Remove(pass)
	os.Remove(fail)

	dst := pass
	if failed {
		dst = fail
		r.Fails++
		history(f)
		fmt.Fprintf(f, "FAIL: Test failed.\n")
	} else {
		r.Passes++
		fmt.Fprintf(f, "PASS: Test passed.\n")
	}
	r.console.End(name, !failed)

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing test log: %w", err)
	}
	return os.Rename(f.Name(), dst)
}
