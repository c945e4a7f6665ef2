// Package negoexlog provides logging with areas and verbosity control for the
// NEGOEX decoder.
package negoexlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Area identifies different logging areas for filtering.
type Area int

const (
	AreaGeneral Area = iota
	AreaStream
	AreaMessage
	AreaBER
	AreaPKU2U
	AreaKerberos
)

func (a Area) String() string {
	switch a {
	case AreaGeneral:
		return "general"
	case AreaStream:
		return "stream"
	case AreaMessage:
		return "message"
	case AreaBER:
		return "ber"
	case AreaPKU2U:
		return "pku2u"
	case AreaKerberos:
		return "kerberos"
	}
	return fmt.Sprintf("area(%d)", int(a))
}

var areaNames = map[string]Area{
	"general":  AreaGeneral,
	"stream":   AreaStream,
	"message":  AreaMessage,
	"ber":      AreaBER,
	"pku2u":    AreaPKU2U,
	"kerberos": AreaKerberos,
}

// ParseArea returns the area named name, as printed by Area.String.
func ParseArea(name string) (Area, error) {
	a, ok := areaNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown log area %q", name)
	}
	return a, nil
}

// Verbosity levels.
const (
	LevelError = 0
	LevelInfo  = 1
	LevelDebug = 2
	LevelTrace = 3
)

// Logger provides logging with areas and verbosity control. A nil *Logger is
// valid and discards everything, so decoders can log without checking.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	verbosity int           // 0=errors only, 1=info, 2=debug, 3=trace
	areas     map[Area]bool // nil means all areas enabled
}

// New creates a new logger. If output is nil, logging is disabled.
func New(output io.Writer) *Logger {
	return &Logger{
		output:    output,
		verbosity: LevelInfo,
	}
}

// SetVerbosity sets the verbosity level (0-3).
func (l *Logger) SetVerbosity(level int) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.verbosity = level
	l.mu.Unlock()
}

// EnableArea restricts logging to the enabled areas. Until the first call all
// areas are logged.
func (l *Logger) EnableArea(area Area) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.areas == nil {
		l.areas = make(map[Area]bool)
	}
	l.areas[area] = true
}

// Enabled reports whether a message in area at level would be written.
func (l *Logger) Enabled(area Area, level int) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled(area, level)
}

func (l *Logger) enabled(area Area, level int) bool {
	if l.output == nil {
		return false
	}
	if level > l.verbosity {
		return false
	}
	if l.areas != nil && !l.areas[area] {
		return false
	}
	return true
}

func (l *Logger) log(area Area, level int, format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled(area, level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.output, "%s [%s] %s\n", time.Now().Format("2006/01/02 15:04:05"), area, msg)
}

// Errorf logs a message that is shown at every verbosity.
func (l *Logger) Errorf(area Area, format string, args ...any) {
	l.log(area, LevelError, format, args...)
}

// Printf logs a general message at info level.
func (l *Logger) Printf(area Area, format string, args ...any) {
	l.log(area, LevelInfo, format, args...)
}

// Debugf logs a debug message.
func (l *Logger) Debugf(area Area, format string, args ...any) {
	l.log(area, LevelDebug, format, args...)
}

// Tracef logs a trace message (most verbose).
func (l *Logger) Tracef(area Area, format string, args ...any) {
	l.log(area, LevelTrace, format, args...)
}

// Fatalf logs and exits.
func (l *Logger) Fatalf(format string, args ...any) {
	if l != nil && l.output != nil {
		msg := fmt.Sprintf(format, args...)
		l.mu.Lock()
		fmt.Fprintf(l.output, "%s FATAL: %s\n", time.Now().Format("2006/01/02 15:04:05"), msg)
		l.mu.Unlock()
	}
	os.Exit(1)
}
