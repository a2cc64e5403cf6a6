// Package logger builds the process zap logger: a console core on stdout and
// a second core writing into one file per day under the log directory.
package logger

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	filePrefix     = "stdout_"
	fileSuffix     = ".log"
	dayLayout      = "2006-01-02"
	logFilePerm    = 0o644
	logDirPerm     = 0o755
	timeLayout     = "2006-01-02 15:04:05.000"
	defaultKeepDay = 7
)

// Options configures New. An empty Dir disables the file core.
type Options struct {
	Dir      string
	KeepDays int
	Debug    bool
}

// Filename returns the daily log file name for now.
func Filename(now time.Time) string {
	return filePrefix + now.Format(dayLayout) + fileSuffix
}

// Writer appends to the file of the current day and prunes files older than
// the retention window whenever the day rolls over.
type Writer struct {
	mu       sync.Mutex
	dir      string
	keepDays int
	now      func() time.Time
	day      string
	file     *os.File
}

// NewWriter creates dir when needed.
func NewWriter(dir string, keepDays int) (*Writer, error) {
	if err := os.MkdirAll(dir, logDirPerm); err != nil {
		return nil, err
	}
	if keepDays <= 0 {
		keepDays = defaultKeepDay
	}
	return &Writer{dir: dir, keepDays: keepDays, now: time.Now}, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if day := now.Format(dayLayout); day != w.day || w.file == nil {
		if err := w.rotate(now); err != nil {
			return 0, err
		}
		w.day = day
	}
	return w.file.Write(p)
}

func (w *Writer) rotate(now time.Time) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	f, err := os.OpenFile(filepath.Join(w.dir, Filename(now)), os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFilePerm)
	if err != nil {
		return err
	}
	w.file = f
	w.prune(now)
	return nil
}

// prune removes daily files older than keepDays. Errors are ignored; a stale
// file is retried on the next rotation.
func (w *Writer) prune(now time.Time) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	cutoff := now.AddDate(0, 0, -w.keepDays).Format(dayLayout)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		day := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if _, err := time.Parse(dayLayout, day); err != nil {
			continue
		}
		if day < cutoff {
			_ = os.Remove(filepath.Join(w.dir, name))
		}
	}
}

func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// New builds the process logger.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Debug {
		level.SetLevel(zap.DebugLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	consoleConfig := encoderConfig
	if opts.Debug {
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.Lock(os.Stdout), level),
	}
	if dir := strings.TrimSpace(opts.Dir); dir != "" {
		writer, err := NewWriter(dir, opts.KeepDays)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	_ = zap.RedirectStdLog(logger)
	return logger, nil
}
