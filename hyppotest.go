// hyppotest runs hypervisor test scripts against an emulated 45GS02.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

func main() {
	var cli struct {
		Run runCmd `cmd default:"1" help:"run test scripts"`
	}

	ctx := kong.Parse(&cli,
		kong.Name("hyppotest"),
		kong.Description("Test HYPPO routines on an emulated 45GS02."),
	)
	err := ctx.Run(&kong.Context{})
	ctx.FatalIfErrorf(err)
}

type runCmd struct {
	Scripts    []string `arg:"" type:"existingfile" help:"test scripts to run"`
	LogDMA     bool     `name:"log-dma" help:"report every DMA job"`
	ReportDir  string   `name:"report-dir" default:"." help:"directory for PASS.* and FAIL.* logs"`
	TraceLimit int      `name:"trace-limit" default:"1048576" help:"maximum instructions traced per routine"`
}

func (r *runCmd) Run(ctx *kong.Context) error {
	console := NewConsole(os.Stdout)
	rep := NewReporter(r.ReportDir, console)
	failed := false
	for _, path := range r.Scripts {
		h := NewHarness(os.Stderr)
		h.SetTraceLimit(r.TraceLimit)
		if r.LogDMA {
			h.LogDMA(true)
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		s := NewScript(h, rep, os.Stderr)
		err = s.Run(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if s.Failed() {
			fmt.Fprintf(os.Stderr, "ERROR: %s failed outside of any test\n", path)
			failed = true
		}
	}
	console.Summary(rep.Passes, rep.Fails)
	if failed || rep.Fails > 0 {
		os.Exit(1)
	}
	return nil
}
