package report

import "os"

// ReportICE reports an internal runtime error: a violated invariant that
// should never occur given well-formed input. It is always displayed
// regardless of log level and terminates the process.
func ReportICE(format string, args ...interface{}) {
	displayICE(format, args...)
	os.Exit(2)
}

// ReportDiagnostic reports a recoverable Diagnostic at the appropriate
// level: Bad-format/Not-found/Out-of-resources diagnostics are reported as
// errors, Check-failed is escalated straight to ReportICE since by
// definition it should not be recoverable input.
func ReportDiagnostic(d *Diagnostic) {
	if d.Kind == CheckFailed {
		ReportICE("%s", d.Error())
		return
	}

	markErr()

	if logLevel() > LogLevelSilent {
		displayDiagnostic(d)
	}
}

// ReportFatal reports a fatal host error (bad CLI arguments, unreadable
// files) and exits immediately.
func ReportFatal(format string, args ...interface{}) {
	if logLevel() > LogLevelSilent {
		displayFatal(format, args...)
	}

	os.Exit(1)
}

// ReportWarning reports a non-fatal warning, visible at LogLevelWarn and
// above.
func ReportWarning(assembly, format string, args ...interface{}) {
	if logLevel() >= LogLevelWarn {
		displayWarning(assembly, format, args...)
	}
}

// ReportInfo reports an informational message, visible only at
// LogLevelVerbose -- used for the per-phase progress the CLI prints while
// loading assemblies and JITting methods.
func ReportInfo(format string, args ...interface{}) {
	if logLevel() == LogLevelVerbose {
		displayInfo(format, args...)
	}
}
