package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Types int

const (
	Debug Types = iota
	Info
	Warn
	Error
	Fatal
)

// Logger is a tagged handle onto the process-wide log sink. Handles created
// before InitLogger start writing once the sink is configured.
type Logger struct {
	tag string
}

var (
	mu      sync.RWMutex
	root    = zerolog.Nop()
	logFile *os.File
)

// InitLogger configures the shared sink. In dev mode records go to console
// (the TUI debug view, or stderr when console is nil). When logPath is set
// every record is also appended as JSON to a timestamped file in that directory.
func InitLogger(dev bool, logPath string, console io.Writer) error {
	mu.Lock()
	defer mu.Unlock()

	closeFileLocked()

	var writers []io.Writer
	if dev {
		if console == nil {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
		} else {
			writers = append(writers, newViewWriter(console))
		}
	}

	if logPath != "" {
		timestamp := time.Now().Format("20060102_150405")
		fileName := fmt.Sprintf("cognix_log_%s.log", timestamp)
		filePath := filepath.Join(logPath, fileName)

		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			root = zerolog.Nop()
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = file
		writers = append(writers, file)
	}

	if len(writers) == 0 {
		root = zerolog.Nop()
		return nil
	}

	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}
	root = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	return nil
}

// SetLevel overrides the level chosen by InitLogger. Unknown names are ignored.
func SetLevel(name string) {
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || name == "" {
		return
	}
	mu.Lock()
	root = root.Level(level)
	mu.Unlock()
}

// viewWriter renders records with tview colour tags so the debug console
// keeps its green/yellow/red scheme.
func newViewWriter(view io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        view,
		NoColor:    true,
		TimeFormat: time.TimeOnly,
		PartsOrder: []string{zerolog.LevelFieldName, "tag", zerolog.MessageFieldName},
		FieldsExclude: []string{
			"tag",
			zerolog.TimestampFieldName,
		},
		FormatLevel: func(i interface{}) string {
			switch fmt.Sprint(i) {
			case zerolog.LevelErrorValue, zerolog.LevelFatalValue:
				return "[red]DEBUG"
			case zerolog.LevelWarnValue:
				return "[yellow]DEBUG"
			default:
				return "[green]DEBUG"
			}
		},
		FormatPartValueByName: func(i interface{}, name string) string {
			if name == "tag" {
				return fmt.Sprintf("(%v):", i)
			}
			return fmt.Sprint(i)
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("%v[-]", i)
		},
	}
}

func NewLogger(tag string) *Logger {
	return &Logger{tag: tag}
}

func (l *Logger) log(t Types, v ...interface{}) {
	mu.RLock()
	zl := root
	mu.RUnlock()

	zl.WithLevel(t.level()).Str("tag", l.tag).Msg(fmt.Sprint(v...))
}

func (l *Logger) logf(t Types, format string, v ...interface{}) {
	l.log(t, fmt.Sprintf(format, v...))
}

func (l *Logger) Debug(v ...interface{}) {
	l.log(Debug, v...)
}

func (l *Logger) Info(v ...interface{}) {
	l.log(Info, v...)
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.logf(Info, format, v...)
}

func (l *Logger) Warn(v ...interface{}) {
	l.log(Warn, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.logf(Warn, format, v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.log(Error, v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logf(Error, format, v...)
}

func (l *Logger) Fatal(v ...interface{}) {
	l.log(Fatal, v...)
	Close()
	os.Exit(1)
}

// Close flushes and releases the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeFileLocked()
}

func closeFileLocked() {
	if logFile != nil {
		_ = logFile.Sync()
		_ = logFile.Close()
		logFile = nil
	}
}

func (t Types) level() zerolog.Level {
	switch t {
	case Debug:
		return zerolog.DebugLevel
	case Info:
		return zerolog.InfoLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	case Fatal:
		return zerolog.FatalLevel
	default:
		return zerolog.NoLevel
	}
}

func (t Types) String() string {
	switch t {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Error:
		return "ERROR"
	case Warn:
		return "WARN"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
