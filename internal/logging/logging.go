// Package logging wires zerolog into the engine: console/JSON/auto
// output selection, an optional rolling+compressed log file, and a
// broadcaster other components (the debug bridge) can subscribe to.
package logging

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const defaultTimeFmt = time.RFC3339

// Config controls Init.
type Config struct {
	// Format is "json", "console", or "auto" (console on a TTY, JSON
	// otherwise). Unrecognized values fall back to os.Stderr directly.
	Format string
	// Level is one of debug/info/warn/error, case-insensitive.
	Level string
	// Component is attached to every log line as "component".
	Component string

	// FilePath, if set, additionally writes to a rolling log file.
	FilePath   string
	MaxSizeMB  int
	MaxAgeDays int
	Compress   bool
}

var (
	mu            sync.RWMutex
	baseWriter    io.Writer = os.Stderr
	baseComponent string
	baseLogger    zerolog.Logger
	broadcaster   *LogBroadcaster

	nowFn        = time.Now
	isTerminalFn = term.IsTerminal

	mkdirAllFn = os.MkdirAll
	openFileFn = os.OpenFile
	openFn     = os.Open
	statFn     = os.Stat
	readDirFn  = os.ReadDir
	renameFn   = os.Rename
	removeFn   = os.Remove
	copyFn     = io.Copy

	gzipNewWriterFn func(io.Writer) *gzip.Writer = gzip.NewWriter
	statFileFn                                   = defaultStatFileFn
	closeFileFn                                  = defaultCloseFileFn
	compressFn                                   = compressAndRemove
)

func defaultStatFileFn(f *os.File) (os.FileInfo, error) { return f.Stat() }
func defaultCloseFileFn(f *os.File) error                { return f.Close() }

// Init (re)configures the package-global logger. Safe for concurrent
// callers; the last call to complete wins.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	zerolog.TimeFieldFormat = defaultTimeFmt
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	baseComponent = cfg.Component

	writer := selectWriter(cfg.Format)
	broadcaster = NewLogBroadcaster(DefaultBufferSize)

	writers := []io.Writer{writer, broadcaster}
	if cfg.FilePath != "" {
		fileWriter, err := newRollingFileWriter(cfg)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.FilePath).Msg("logging: failed to open rolling log file")
		} else if fileWriter != nil {
			writers = append(writers, fileWriter)
		}
	}

	multi := zerolog.MultiLevelWriter(writers...)
	baseWriter = multi
	logCtx := zerolog.New(multi).With().Timestamp()
	if baseComponent != "" {
		logCtx = logCtx.Str("component", baseComponent)
	}
	baseLogger = logCtx.Logger()
	log.Logger = baseLogger
}

// WithRequestID attaches a request id to ctx, generating a fresh ULID-
// free UUID when id is blank or whitespace-only, and returns both.
func WithRequestID(ctx context.Context, id string) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey{}, id), id
}

type requestIDKey struct{}

// RequestIDFromContext returns the request id stashed by WithRequestID, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// Broadcaster returns the current log broadcaster, or nil before the
// first Init call. The debug bridge subscribes to it to relay log
// lines to connected clients.
func Broadcaster() *LogBroadcaster {
	mu.RLock()
	defer mu.RUnlock()
	return broadcaster
}

// IsLevelEnabled reports whether lvl would currently be logged.
func IsLevelEnabled(lvl zerolog.Level) bool {
	return lvl >= zerolog.GlobalLevel()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func selectWriter(format string) io.Writer {
	switch strings.ToLower(format) {
	case "json":
		return os.Stderr
	case "console":
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	case "auto":
		if isTerminal(os.Stderr) {
			return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		}
		return os.Stderr
	default:
		return os.Stderr
	}
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isTerminalFn(int(f.Fd()))
}

// rollingFileWriter is an io.Writer that rotates the underlying file
// once it exceeds maxBytes, optionally gzip-compressing the rotated
// copy in the background.
type rollingFileWriter struct {
	mu          sync.Mutex
	path        string
	file        *os.File
	maxBytes    int64
	maxAgeDays  int
	compress    bool
	currentSize int64
}

func newRollingFileWriter(cfg Config) (io.Writer, error) {
	if cfg.FilePath == "" {
		return nil, nil
	}
	if err := mkdirAllFn(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log directory: %w", err)
	}

	maxBytes := int64(cfg.MaxSizeMB) * 1024 * 1024
	if maxBytes <= 0 {
		maxBytes = 100 * 1024 * 1024
	}

	w := &rollingFileWriter{
		path:       cfg.FilePath,
		maxBytes:   maxBytes,
		maxAgeDays: cfg.MaxAgeDays,
		compress:   cfg.Compress,
	}
	if err := w.openOrCreateLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rollingFileWriter) openOrCreateLocked() error {
	if w.file != nil {
		return nil
	}
	f, err := openFileFn(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logging: open log file: %w", err)
	}
	w.file = f
	if info, err := statFileFn(f); err == nil {
		w.currentSize = info.Size()
	} else {
		w.currentSize = 0
	}
	return nil
}

func (w *rollingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.openOrCreateLocked(); err != nil {
		return 0, err
	}
	if w.currentSize+int64(len(p)) > w.maxBytes {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.currentSize += int64(n)
	return n, err
}

func (w *rollingFileWriter) rotateLocked() error {
	if err := closeFileFn(w.file); err != nil {
		return fmt.Errorf("logging: close log file before rotation: %w", err)
	}
	w.file = nil

	rotated := fmt.Sprintf("%s.%s", w.path, nowFn().Format("20060102T150405"))
	if err := renameFn(w.path, rotated); err != nil {
		// The log file may have already been rotated by another
		// process; reopen the original path and carry on.
		return w.openOrCreateLocked()
	}

	if w.compress {
		go compressFn(rotated)
	}
	if w.maxAgeDays > 0 {
		go pruneOldLogs(w.path, w.maxAgeDays)
	}
	return w.openOrCreateLocked()
}

func (w *rollingFileWriter) closeLocked() error {
	if w.file == nil {
		return nil
	}
	err := closeFileFn(w.file)
	w.file = nil
	return err
}

// pruneOldLogs removes rotated/compressed siblings of path older than
// maxAgeDays, matching the teacher's retention sweep run after every
// rotation rather than on a separate timer.
func pruneOldLogs(path string, maxAgeDays int) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	entries, err := readDirFn(dir)
	if err != nil {
		return
	}

	cutoff := nowFn().AddDate(0, 0, -maxAgeDays)
	for _, entry := range entries {
		name := entry.Name()
		if name == base || !strings.HasPrefix(name, base+".") {
			continue
		}
		full := filepath.Join(dir, name)
		info, err := statFn(full)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = removeFn(full)
		}
	}
}

// compressAndRemove gzips path to path+".gz" and removes the
// uncompressed copy, run in the background after rotation.
func compressAndRemove(path string) {
	src, err := openFn(path)
	if err != nil {
		return
	}
	defer src.Close()

	dst, err := openFileFn(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return
	}
	gz := gzipNewWriterFn(dst)
	_, copyErr := copyFn(gz, src)
	closeGzErr := gz.Close()
	closeDstErr := dst.Close()
	if copyErr != nil || closeGzErr != nil || closeDstErr != nil {
		return
	}
	_ = removeFn(path)
}
