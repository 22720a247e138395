package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Config struct {
	Level string
	// Console writes human-readable lines to stderr.
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

const (
	timeFormat      = "2006-01-02T15:04:05.000Z07:00"
	defaultLogFile  = "reporter.log"
	logFilePerm     = 0o644
	logFileOpenFlag = os.O_CREATE | os.O_APPEND | os.O_WRONLY
)

// Sink owns the log file behind a Logger built by New.
type Sink struct {
	mu   sync.Mutex
	file *os.File
}

// New builds a logger from cfg. Console output is used when the file sink is
// off or cannot be opened. Close the Sink on shutdown.
func New(cfg Config) (Logger, *Sink) {
	s := &Sink{}
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter(Stderr()))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultLogFile
		}
		if f, err := os.OpenFile(path, logFileOpenFlag, logFilePerm); err != nil {
			fmt.Fprintf(Stderr(), "logx: open %s: %v\n", path, err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	switch len(writers) {
	case 0:
		return NewConsole(cfg.Level), s
	case 1:
		return build(writers[0], cfg.Level), s
	default:
		return build(zerolog.MultiLevelWriter(writers...), cfg.Level), s
	}
}

func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

var globalsOnce sync.Once

func setGlobals() {
	globalsOnce.Do(func() {
		zerolog.ErrorFieldName = ErrorKey
		zerolog.TimeFieldFormat = timeFormat
	})
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: timeFormat,
		FormatCaller: func(i any) string {
			s, _ := i.(string)
			return s
		},
	}
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return def
	}
}

// Stderr is where console output and sink errors go.
func Stderr() io.Writer { return os.Stderr }
