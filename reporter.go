package axe

import (
	"fmt"
	"log"
	"runtime"
)

// Logger defines the logging interface.
type Logger interface {
	Printf(format string, v ...any)
}

// defaultLogger is the default logger implementation.
type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf("[axe] "+format, v...)
}

// Location is the call site attached to a reported issue.
type Location struct {
	// File is the source file of the call site.
	File string
	// Line is the line number of the call site.
	Line int
	// Function is the fully-qualified function name of the call site.
	Function string
}

// String returns the file:line representation of the location.
func (l Location) String() string {
	if l.File == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// callerLocation captures the location skip frames above the caller.
func callerLocation(skip int) Location {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Location{}
	}
	loc := Location{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = fn.Name()
	}
	return loc
}

// IssueReporter is the pluggable diagnostics sink invoked on recoverable
// misuse, e.g. acquiring against an unregistered strategy. Implementations
// must never panic or abort; the engine keeps going after every report.
type IssueReporter interface {
	ReportIssue(message string, loc Location)
}

// NopReporter discards every issue. The default outside debugging.
type NopReporter struct{}

var _ IssueReporter = (*NopReporter)(nil)

// ReportIssue does nothing.
func (NopReporter) ReportIssue(message string, loc Location) {}

// LogReporter writes issues to a Logger.
type LogReporter struct {
	logger Logger
}

var _ IssueReporter = (*LogReporter)(nil)

// NewLogReporter creates a reporter writing to logger. A nil logger falls
// back to the standard library log package.
func NewLogReporter(logger Logger) *LogReporter {
	if logger == nil {
		logger = &defaultLogger{}
	}
	return &LogReporter{logger: logger}
}

// ReportIssue logs the message with its call site.
func (r *LogReporter) ReportIssue(message string, loc Location) {
	r.logger.Printf("issue at %s: %s", loc, message)
}
