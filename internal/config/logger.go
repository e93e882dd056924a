package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 定义日志接口
type Logger interface {
	Debug(msg string, fields ...zapcore.Field)
	Info(msg string, fields ...zapcore.Field)
	Warn(msg string, fields ...zapcore.Field)
	Error(msg string, fields ...zapcore.Field)
	Fatal(msg string, fields ...zapcore.Field)
	// With 返回附带固定字段的子日志
	With(fields ...zapcore.Field) Logger
	// Sync 刷新缓冲的日志
	Sync() error
}

// ZapLogger 实现Logger接口
type ZapLogger struct {
	logger *zap.Logger
}

// NewLogger 根据日志配置创建Logger
// 配置了日志文件时，日志同时写入标准输出和按大小滚动的文件
func NewLogger(cfg LogConfig) (Logger, error) {
	var config zap.Config
	if cfg.Development {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("解析日志级别失败: %w", err)
		}
		config.Level = level
	}

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}

		var encoder zapcore.Encoder
		if cfg.Development {
			encoder = zapcore.NewConsoleEncoder(config.EncoderConfig)
		} else {
			encoder = zapcore.NewJSONEncoder(config.EncoderConfig)
		}
		fileCore := zapcore.NewCore(encoder, zapcore.AddSync(rotator), config.Level)

		zapLogger = zapLogger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	return &ZapLogger{
		logger: zapLogger,
	}, nil
}

// NewZapLogger 包装已有的zap.Logger
func NewZapLogger(logger *zap.Logger) Logger {
	return &ZapLogger{logger: logger}
}

// NewNopLogger 返回丢弃所有日志的Logger
func NewNopLogger() Logger {
	return &ZapLogger{logger: zap.NewNop()}
}

// Debug 记录Debug级别日志
func (l *ZapLogger) Debug(msg string, fields ...zapcore.Field) {
	l.logger.Debug(msg, fields...)
}

// Info 记录Info级别日志
func (l *ZapLogger) Info(msg string, fields ...zapcore.Field) {
	l.logger.Info(msg, fields...)
}

// Warn 记录Warn级别日志
func (l *ZapLogger) Warn(msg string, fields ...zapcore.Field) {
	l.logger.Warn(msg, fields...)
}

// Error 记录Error级别日志
func (l *ZapLogger) Error(msg string, fields ...zapcore.Field) {
	l.logger.Error(msg, fields...)
}

// Fatal 记录Fatal级别日志
func (l *ZapLogger) Fatal(msg string, fields ...zapcore.Field) {
	l.logger.Fatal(msg, fields...)
}

// With 返回附带固定字段的子日志
func (l *ZapLogger) With(fields ...zapcore.Field) Logger {
	return &ZapLogger{logger: l.logger.With(fields...)}
}

// Sync 刷新缓冲的日志
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
