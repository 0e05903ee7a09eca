package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsDirEnv overrides the directory log files are written to
const LogsDirEnv = "SELECTION_LOGS_DIR"

const defaultLogsDir = "logs"

// InitLogger initializes a zap logger with console and file outputs.
// env prefixes the log file name. verbose lowers the console level to Debug;
// the file always records Debug.
func InitLogger(env string, verbose bool) (*zap.Logger, error) {
	logsDir := os.Getenv(LogsDirEnv)
	if logsDir == "" {
		logsDir = defaultLogsDir
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	logFile, err := os.OpenFile(logFilePath(logsDir, env, time.Now()), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	consoleLevel := zapcore.InfoLevel
	if verbose {
		consoleLevel = zapcore.DebugLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder(), zapcore.AddSync(os.Stderr), consoleLevel),
		zapcore.NewCore(fileEncoder(), zapcore.AddSync(logFile), zapcore.DebugLevel),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("env", env))

	return logger, nil
}

// logFilePath names one file per invocation, e.g. logs/selection_prod_2026-03-01_09-00-00.log
func logFilePath(dir, env string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("selection_%s_%s.log", env, now.Format("2006-01-02_15-04-05")))
}

// Human-readable, coloured levels. Results go to stdout so logs use stderr.
func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func fileEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}
