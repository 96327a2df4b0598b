package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var defaultLogger = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// GetLogLevelFromString 将字符串转换为日志级别，无法识别时使用warn
func GetLogLevelFromString(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.WarnLevel
	}
	return lvl
}

/**
 * Initialize the process-wide logger
 * @param {string} path - Log file path, "console" or empty logs to stdout only
 * @param {string} level - Log level (debug/info/warn/error)
 * @param {bool} console - Mirror file output to stdout
 * @param {int} maxSize - Rotate the file after this many bytes
 * @description
 * - File output is rotated by lumberjack, old files are compressed
 * - Falls back to stdout when the log directory cannot be created
 */
func InitLogger(path, level string, console bool, maxSize int) {
	var output io.Writer = os.Stdout
	if path != "" && path != "console" {
		if w := setupLogFileOutput(path, maxSize); w != nil {
			output = w
			if console {
				output = io.MultiWriter(os.Stdout, w)
			}
		}
	}
	defaultLogger.SetOutput(output)
	defaultLogger.SetLevel(GetLogLevelFromString(level))
}

// setupLogFileOutput 设置日志文件输出
func setupLogFileOutput(logPath string, maxSize int) io.Writer {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "创建日志目录失败: %v\n", err)
		return nil
	}
	megabytes := maxSize / (1024 * 1024)
	if megabytes <= 0 {
		megabytes = 5
	}
	return &lumberjack.Logger{
		Filename:   filepath.ToSlash(logPath),
		MaxSize:    megabytes,
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
	}
}

// Logger exposes the underlying logrus logger for callers that need fields.
func Logger() *logrus.Logger {
	return defaultLogger
}

// Debug 输出调试日志
func Debug(v ...interface{}) {
	defaultLogger.Debug(v...)
}

// Debugf 输出格式化调试日志
func Debugf(format string, v ...interface{}) {
	defaultLogger.Debugf(format, v...)
}

// Info 输出信息日志
func Info(v ...interface{}) {
	defaultLogger.Info(v...)
}

// Infof 输出格式化信息日志
func Infof(format string, v ...interface{}) {
	defaultLogger.Infof(format, v...)
}

// Warn 输出警告日志
func Warn(v ...interface{}) {
	defaultLogger.Warn(v...)
}

// Warnf 输出格式化警告日志
func Warnf(format string, v ...interface{}) {
	defaultLogger.Warnf(format, v...)
}

// Error 输出错误日志
func Error(v ...interface{}) {
	defaultLogger.Error(v...)
}

// Errorf 输出格式化错误日志
func Errorf(format string, v ...interface{}) {
	defaultLogger.Errorf(format, v...)
}

// Fatal 输出致命错误日志并退出程序
func Fatal(v ...interface{}) {
	defaultLogger.Fatal(v...)
}

// Fatalf 输出格式化致命错误日志并退出程序
func Fatalf(format string, v ...interface{}) {
	defaultLogger.Fatalf(format, v...)
}
