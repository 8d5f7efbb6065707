package logging

// Leveled logging for teachcap, backed by zap.

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar selects the level when no --log-level flag is given.
// Unset means silent.
const LogLevelEnvVar = "TEACHCAP_LOG_LEVEL"

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelSilent:
		return "silent"
	case LogLevelError:
		return "error"
	case LogLevelInfo:
		return "info"
	case LogLevelVerbose:
		return "verbose"
	case LogLevelDebug:
		return "debug"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel maps a flag or env value to a LogLevel. "warn" is accepted as info.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "silent", "off":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "info", "warn":
		return LogLevelInfo, nil
	case "verbose":
		return LogLevelVerbose, nil
	case "debug":
		return LogLevelDebug, nil
	default:
		return LogLevelSilent, fmt.Errorf("unknown log level %q", s)
	}
}

// ResolveLevel prefers the explicit flag value and falls back to LogLevelEnvVar.
func ResolveLevel(flag string) (LogLevel, error) {
	if flag == "" {
		flag = os.Getenv(LogLevelEnvVar)
	}
	return ParseLevel(flag)
}

// Logger provides leveled logging
type Logger struct {
	mu    sync.Mutex
	level LogLevel
	zl    *zap.Logger
	file  *os.File
}

// NewLogger creates a logger writing to stderr and, when logFile is set, to that file.
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	var file *os.File
	if logFile != "" {
		f, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		file = f
		sinks = append(sinks, zapcore.AddSync(f))
	}
	l := newLogger(level, zapcore.NewMultiWriteSyncer(sinks...))
	l.file = file
	return l, nil
}

// NewWriterLogger creates a logger that writes only to w.
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	return newLogger(level, zapcore.AddSync(w))
}

// Nop returns a silent logger.
func Nop() *Logger {
	return &Logger{level: LogLevelSilent, zl: zap.NewNop()}
}

func newLogger(level LogLevel, sink zapcore.WriteSyncer) *Logger {
	if level == LogLevelSilent {
		return &Logger{level: level, zl: zap.NewNop()}
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, zapcore.DebugLevel)
	return &Logger{level: level, zl: zap.New(core)}
}

// Close flushes the logger and closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.zl.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.enabled(LogLevelError) {
		l.zl.Error(fmt.Sprintf(format, v...))
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.enabled(LogLevelInfo) {
		l.zl.Info(fmt.Sprintf(format, v...))
	}
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...interface{}) {
	if l.enabled(LogLevelVerbose) {
		l.zl.Info(fmt.Sprintf(format, v...), zap.Bool("verbose", true))
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.enabled(LogLevelDebug) {
		l.zl.Debug(fmt.Sprintf(format, v...))
	}
}

func (l *Logger) enabled(level LogLevel) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level >= level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogHex logs raw bytes at debug level
func (l *Logger) LogHex(label string, data []byte) {
	if !l.enabled(LogLevelDebug) {
		return
	}
	shown := data
	if len(shown) > 256 {
		shown = shown[:256]
	}
	l.zl.Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hex.EncodeToString(shown)),
		zap.String("ascii", asciiDump(shown)),
	)
}

// LogFrame logs one accepted frame at verbose level
func (l *Logger) LogFrame(index int, offset int, sequence uint16, command uint8, name string, payloadLen int) {
	if !l.enabled(LogLevelVerbose) {
		return
	}
	l.zl.Info("frame",
		zap.Int("index", index),
		zap.Int("offset", offset),
		zap.Uint16("sequence", sequence),
		zap.String("command", fmt.Sprintf("0x%02X", command)),
		zap.String("name", name),
		zap.Int("payload_len", payloadLen),
	)
}

// LogScanStats logs scanner counters for a source
func (l *Logger) LogScanStats(source string, candidates, accepted, truncated, oversized, checksum int) {
	if !l.enabled(LogLevelInfo) {
		return
	}
	l.zl.Info("scan complete",
		zap.String("source", source),
		zap.Int("candidates", candidates),
		zap.Int("accepted", accepted),
		zap.Int("truncated", truncated),
		zap.Int("oversized", oversized),
		zap.Int("checksum_mismatch", checksum),
	)
}

// LogRecovery logs the outcome of one plaintext hypothesis
func (l *Logger) LogRecovery(hypothesis string, status string, fraction float64, keyHex string, reason string) {
	if !l.enabled(LogLevelInfo) {
		return
	}
	fields := []zap.Field{
		zap.String("hypothesis", hypothesis),
		zap.String("status", status),
		zap.Float64("validated_fraction", fraction),
	}
	if keyHex != "" {
		fields = append(fields, zap.String("key", keyHex))
	}
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	l.zl.Info("key recovery", fields...)
}

func asciiDump(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
