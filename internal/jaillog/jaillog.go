// Package jaillog extends the standard logger with multiple named writers,
// each at its own level, decorated status lines, and optional syslog
// output under LOG_DAEMON. It is the log(level, msg) contract the core
// consumes; decoration policy (ANSI vs syslog) lives here, at the edge.
package jaillog

import (
	"bufio"
	"fmt"
	golog "log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	loggers = make(map[string]*jailLogger)
	mu      sync.RWMutex
)

type jailLogger struct {
	*golog.Logger
	level Level
	color bool
}

// AddLogger registers a named writer that receives events at level or
// higher. Registering a name that already exists replaces it.
func AddLogger(name string, w interface{ Write([]byte) (int, error) }, level Level, useColor bool) {
	mu.Lock()
	defer mu.Unlock()

	loggers[name] = &jailLogger{
		Logger: golog.New(w, "", golog.LstdFlags),
		level:  level,
		color:  useColor,
	}
}

// DelLogger removes a previously registered logger.
func DelLogger(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(loggers, name)
}

// SetLevel changes the minimum level of a named logger.
func SetLevel(name string, level Level) error {
	mu.Lock()
	defer mu.Unlock()
	l, ok := loggers[name]
	if !ok {
		return fmt.Errorf("no such logger: %s", name)
	}
	l.level = level
	return nil
}

func callerTag() string {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return ""
	}
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	return short + ":" + strconv.Itoa(line)
}

func levelColor(level Level) *color.Color {
	switch level {
	case DEBUG:
		return color.New(color.FgBlue)
	case INFO:
		return color.New(color.FgGreen)
	case WARN:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func emit(level Level, format string, a ...interface{}) {
	mu.Lock()
	if len(loggers) == 0 {
		// No logger configured yet: fall back to stderr so early
		// failures (before any AddLogger call) are never silent.
		AddLoggerUnlocked("stderr", os.Stderr, WARN, isTTY(os.Stderr))
	}
	mu.Unlock()

	mu.RLock()
	defer mu.RUnlock()

	tag := callerTag()
	msg := fmt.Sprintf(format, a...)

	for _, l := range loggers {
		if l.level > level {
			continue
		}
		line := fmt.Sprintf("%s %s: %s", strings.ToUpper(level.String()), tag, msg)
		if l.color {
			line = levelColor(level).Sprint(line)
		}
		l.Print(line)
	}

	if level == FATAL {
		os.Exit(1)
	}
}

// AddLoggerUnlocked is used internally by emit's lazy fallback; exported
// for tests that want to seed a logger without going through AddLogger.
func AddLoggerUnlocked(name string, w interface{ Write([]byte) (int, error) }, level Level, useColor bool) {
	loggers[name] = &jailLogger{
		Logger: golog.New(w, "", golog.LstdFlags),
		level:  level,
		color:  useColor,
	}
}

func Debug(format string, a ...interface{}) { emit(DEBUG, format, a...) }
func Info(format string, a ...interface{})  { emit(INFO, format, a...) }
func Warn(format string, a ...interface{})  { emit(WARN, format, a...) }
func Error(format string, a ...interface{}) { emit(ERROR, format, a...) }
func Fatal(format string, a ...interface{}) { emit(FATAL, format, a...) }

// Status prints a single decorated status line: a check mark on success, an
// exclamation mark on a non-fatal warning, or a cross on failure, when
// stderr is a TTY; otherwise the message is printed plain.
func Status(ok bool, warnOnly bool, format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	if !isTTY(os.Stderr) {
		fmt.Fprintln(os.Stderr, msg)
		return
	}

	var mark string
	var c *color.Color
	switch {
	case ok:
		mark, c = "✔", color.New(color.FgGreen)
	case warnOnly:
		mark, c = "¡", color.New(color.FgYellow)
	default:
		mark, c = "✘", color.New(color.FgRed)
	}
	c.Fprintf(os.Stderr, "[%s] %s\n", mark, msg)
}

func isTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// LogAll streams lines from r into the named logger at level until EOF. It
// runs in its own goroutine and returns immediately; used to capture a
// child's pre-exec diagnostic output over a pipe.
func LogAll(r interface{ Read([]byte) (int, error) }, level Level, name string) {
	go func() {
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if s := strings.TrimSpace(line); s != "" {
				emit(level, "%s: %s", name, s)
			}
			if err != nil {
				return
			}
		}
	}()
}
