package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/chazu/replkit/script"
)

var (
	valueColor   = color.New(color.FgGreen)
	typeColor    = color.New(color.FgHiBlack)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	faultColor   = color.New(color.FgMagenta, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

func applyColorMode(mode string) error {
	switch mode {
	case "auto":
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("unknown color mode %q (want auto, on or off)", mode)
	}
	return nil
}

// printResult writes one evaluation outcome.
func printResult(w io.Writer, r *script.Result) {
	for _, d := range r.Diagnostics {
		printDiagnostic(w, d)
	}
	switch r.Outcome() {
	case script.OutcomeFault:
		faultColor.Fprintf(w, "fault: %v\n", r.Fault)
	case script.OutcomeValue:
		if r.Value != nil {
			valueColor.Fprintf(w, "%v", r.Value)
			typeColor.Fprintf(w, " (%T)\n", r.Value)
		}
	}
}

func printDiagnostic(w io.Writer, d script.Diagnostic) {
	c := infoColor
	switch d.Severity {
	case script.SevError:
		c = errorColor
	case script.SevWarning:
		c = warningColor
	}
	c.Fprintln(w, d.String())
}
