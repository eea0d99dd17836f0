package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Console formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// DefaultFilePath is used when file logging is enabled without a path.
const DefaultFilePath = "./runtrigger.log"

type Config struct {
	Level string
	// Console enables stderr output; Format picks its encoding.
	Console bool
	Format  string
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// Service owns the log sinks. Loggers it hands out pick up every Apply.
type Service struct {
	mu     sync.Mutex
	stderr io.Writer
	file   *os.File

	root atomic.Pointer[zerolog.Logger]
}

// New builds a Service from cfg and returns it with its root Logger.
func New(cfg Config) (*Service, Logger) {
	return newService(cfg, os.Stderr)
}

func newService(cfg Config, stderr io.Writer) (*Service, Logger) {
	setupGlobals()
	s := &Service{stderr: stderr}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// Apply rebuilds the sinks. The previous log file is closed once the new
// logger is in place.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, s.consoleWriter(cfg.Format))
	}

	var file *os.File
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = DefaultFilePath
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(s.stderr, "logx: open %s: %v\n", path, err)
		} else {
			file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	// no usable sink: fall back to stderr
	if len(writers) == 0 {
		writers = append(writers, s.consoleWriter(cfg.Format))
	}

	zl := build(zerolog.MultiLevelWriter(writers...), parseLevel(cfg.Level))
	s.root.Store(&zl)

	if s.file != nil {
		_ = s.file.Close()
	}
	s.file = file
}

func (s *Service) consoleWriter(format string) io.Writer {
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		return s.stderr
	}
	return newConsoleWriter(s.stderr)
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
