// Package report is the runtime's diagnostic surface: a process-wide,
// leveled, mutex-guarded reporter used by the loader, verifier, and JIT to
// surface check-failed / not-found / bad-format / out-of-resources
// diagnostics without threading a logger through every call.
package report

import "sync"

// Enumeration of the possible log levels, ordered least to most verbose.
const (
	LogLevelSilent = iota
	LogLevelError
	LogLevelWarn
	LogLevelVerbose
)

// Reporter is the runtime's diagnostic sink. Its methods are safe to call
// from multiple goroutines: the JIT may be compiling several methods of
// several assemblies concurrently.
type Reporter struct {
	m        sync.Mutex
	logLevel int
	isErr    bool
}

// rep is the global reporter instance.
var rep *Reporter

// Init initializes the global reporter at the given log level. Calling it
// more than once resets the error flag but keeps the most recently
// requested log level.
func Init(logLevel int) {
	rep = &Reporter{logLevel: logLevel}
}

func init() {
	// Always have a usable reporter, even if a host forgets to call Init.
	rep = &Reporter{logLevel: LogLevelVerbose}
}

// AnyErrors reports whether any error-level diagnostic has been recorded
// since the last Init.
func AnyErrors() bool {
	rep.m.Lock()
	defer rep.m.Unlock()
	return rep.isErr
}

func markErr() {
	rep.m.Lock()
	rep.isErr = true
	rep.m.Unlock()
}

func logLevel() int {
	rep.m.Lock()
	defer rep.m.Unlock()
	return rep.logLevel
}
