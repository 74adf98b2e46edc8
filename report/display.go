package report

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
)

// displayICE prints an internal error banner. ICEs are always shown: they
// indicate a bug, not bad input, so silencing them would hide the bug.
func displayICE(format string, args ...interface{}) {
	pterm.Error.WithWriter(os.Stderr).Println(fmt.Sprintf("internal runtime error: "+format, args...))
}

func displayFatal(format string, args ...interface{}) {
	pterm.Error.WithWriter(os.Stderr).Println(fmt.Sprintf(format, args...))
}

func displayDiagnostic(d *Diagnostic) {
	pterm.Error.WithWriter(os.Stderr).Println(d.Error())
}

func displayWarning(assembly, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	pterm.Warning.Println(fmt.Sprintf("[%s] %s", assembly, msg))
}

func displayInfo(format string, args ...interface{}) {
	pterm.Info.Println(fmt.Sprintf(format, args...))
}

// DisplayVersion prints the runtime's version banner.
func DisplayVersion() {
	pterm.Info.Println("corejit runtime " + Version)
}

// Version is the runtime's release string, stamped by the build.
var Version = "0.1.0-dev"

// PhaseSpinner renders a pterm spinner bound to a named runtime phase
// (assembly load, type fill, JIT).
type PhaseSpinner struct {
	spinner *pterm.SpinnerPrinter
}

// StartPhase begins a new named phase. It is a no-op (returns a spinner
// with no backing printer) below LogLevelVerbose.
func StartPhase(name string) *PhaseSpinner {
	if logLevel() < LogLevelVerbose {
		return &PhaseSpinner{}
	}

	sp, _ := pterm.DefaultSpinner.Start(name)
	return &PhaseSpinner{spinner: sp}
}

// Done stops the phase spinner and marks it successful.
func (ps *PhaseSpinner) Done(msg string) {
	if ps.spinner != nil {
		ps.spinner.Success(msg)
	}
}

// Fail stops the phase spinner and marks it failed.
func (ps *PhaseSpinner) Fail(msg string) {
	if ps.spinner != nil {
		ps.spinner.Fail(msg)
	}
}

// Summary renders the end-of-run table of per-assembly load time and
// per-method JIT counts.
func Summary(rows [][]string) {
	if logLevel() < LogLevelVerbose {
		return
	}

	data := pterm.TableData{{"Assembly", "Types", "Methods JITted", "Load Time"}}
	data = append(data, rows...)

	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
