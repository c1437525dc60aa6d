package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pandonetwork/pando/internal/termcolor"
)

type globalFlags struct {
	colorMode termcolor.ColorMode
}

// parseGlobalFlags extracts --color, --no-color, and --version from
// anywhere in args, returning the parsed flags and the remaining
// (filtered) arguments.
func parseGlobalFlags(args []string) (globalFlags, bool, []string) {
	gf := globalFlags{colorMode: termcolor.ColorAuto}
	if v, ok := os.LookupEnv("PANDO_COLOR"); ok {
		if mode, err := termcolor.ParseColorMode(v); err == nil {
			gf.colorMode = mode
		}
	}
	var remaining []string
	wantsVersion := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "--no-color":
			gf.colorMode = termcolor.ColorNever
		case arg == "--version":
			wantsVersion = true
		case arg == "--color" && i+1 < len(args):
			mode, err := termcolor.ParseColorMode(args[i+1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "pando: %v\n", err)
				os.Exit(1)
			}
			gf.colorMode = mode
			i++ // skip the value
		default:
			if val, ok := strings.CutPrefix(arg, "--color="); ok {
				mode, err := termcolor.ParseColorMode(val)
				if err != nil {
					fmt.Fprintf(os.Stderr, "pando: %v\n", err)
					os.Exit(1)
				}
				gf.colorMode = mode
				continue
			}
			remaining = append(remaining, arg)
		}
	}

	return gf, wantsVersion, remaining
}
