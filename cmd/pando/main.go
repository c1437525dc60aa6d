// Command pando is the CLI front end for a content-addressed,
// snapshot-based version control workspace (SPEC_FULL.md §10.7).
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pandonetwork/pando/internal/cli"
	"github.com/pandonetwork/pando/internal/core"
	"github.com/pandonetwork/pando/internal/termcolor"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(rawArgs []string) int {
	gf, wantsVersion, args := parseGlobalFlags(rawArgs)
	if wantsVersion {
		printVersion()
		return 0
	}

	cw := termcolor.NewWriter(os.Stdout, gf.colorMode)
	errw := termcolor.NewWriter(os.Stderr, gf.colorMode)

	app := cli.NewApp("pando", version)
	app.Stderr = os.Stderr

	// ws is declared here and assigned after dispatch determines that the
	// matched command needs it (NeedsWorkspace). Command closures capture
	// the pointer, which is populated before they run.
	var ws *core.Workspace
	registerCommands(app, cw, errw, &ws)

	if len(args) > 0 {
		if cmd := app.Lookup(args[0]); cmd != nil && cmd.NeedsWorkspace {
			opened, err := openWorkspace()
			if err != nil {
				return fail(errw, "%v", err)
			}
			ws = opened
		}
	}

	return app.Run(args, cw)
}

func printVersion() {
	fmt.Printf("pando %s\n", version)
	fmt.Printf("  commit:     %s\n", commit)
	fmt.Printf("  go version: %s\n", runtime.Version())
	fmt.Printf("  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func fail(errw *termcolor.Writer, format string, a ...interface{}) int {
	fmt.Fprintf(errw, "pando: "+format+"\n", a...)
	return 1
}
