package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 日志级别大写，时间使用ISO8601格式
func DefaultEncoderConfig() zapcore.EncoderConfig {
	var encoderConfig = zap.NewProductionEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderConfig
}

// 文件日志使用JSON编码，便于事后检索
func DefaultEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(DefaultEncoderConfig())
}

func ConsoleEncoder() zapcore.Encoder {
	cfg := DefaultEncoderConfig()
	cfg.EncodeCaller = nil
	cfg.CallerKey = ""
	return zapcore.NewConsoleEncoder(cfg)
}

/*
无输入，输出zap的默认选项

只有日志级别>=DPanicLevel时才记录堆栈，同时记录调用者的文件名和行号
*/
func DefaultOption() []zap.Option {
	var stackTraceLevel zap.LevelEnablerFunc = func(level zapcore.Level) bool {
		return level >= zapcore.DPanicLevel
	}
	return []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(stackTraceLevel),
	}
}

// 单个日志文件最大20MB，保留3个备份
func DefaultLumberjackLogger() *lumberjack.Logger {
	return &lumberjack.Logger{
		MaxSize:    20,
		MaxBackups: 3,
		LocalTime:  true,
		Compress:   true,
	}
}
