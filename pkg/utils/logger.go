package utils

import (
	"io"
	"log"
	"os"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

type Logger struct {
	level  LogLevel
	prefix string
	logger *log.Logger
}

var defaultLogger *Logger

func init() {
	defaultLogger = NewLogger("info")
}

func ParseLevel(levelStr string) LogLevel {
	switch levelStr {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func NewLogger(levelStr string) *Logger {
	return &Logger{
		level:  ParseLevel(levelStr),
		logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// NewLoggerWithWriter используется в тестах для перехвата вывода
func NewLoggerWithWriter(levelStr string, w io.Writer) *Logger {
	return &Logger{
		level:  ParseLevel(levelStr),
		logger: log.New(w, "", log.LstdFlags),
	}
}

// WithPrefix возвращает логгер с префиксом компонента
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{
		level:  l.level,
		prefix: "[" + prefix + "] ",
		logger: l.logger,
	}
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level <= DEBUG {
		l.logger.Printf("[DEBUG] "+l.prefix+format, v...)
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	if l.level <= INFO {
		l.logger.Printf("[INFO] "+l.prefix+format, v...)
	}
}

func (l *Logger) Warn(format string, v ...interface{}) {
	if l.level <= WARN {
		l.logger.Printf("[WARN] "+l.prefix+format, v...)
	}
}

func (l *Logger) Error(format string, v ...interface{}) {
	if l.level <= ERROR {
		l.logger.Printf("[ERROR] "+l.prefix+format, v...)
	}
}

// SetDefault заменяет глобальный логгер (вызывается один раз при старте)
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

func Default() *Logger {
	return defaultLogger
}

// Global logging functions
func LogDebug(format string, v ...interface{}) {
	defaultLogger.Debug(format, v...)
}

func LogInfo(format string, v ...interface{}) {
	defaultLogger.Info(format, v...)
}

func LogWarn(format string, v ...interface{}) {
	defaultLogger.Warn(format, v...)
}

func LogError(format string, v ...interface{}) {
	defaultLogger.Error(format, v...)
}
