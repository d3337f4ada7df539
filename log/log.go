package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Plugin = zapcore.Core

/*
输入一个日志核心和可选的zap配置，输出一个zap日志实例

默认选项（调用者信息、DPanic以上记录堆栈）在前，调用方传入的选项在后
*/
func NewLogger(plugin zapcore.Core, options ...zap.Option) *zap.Logger {
	return zap.New(plugin, append(DefaultOption(), options...)...)
}

// 使用默认编码器创建日志核心
func NewPlugin(writer zapcore.WriteSyncer, enabler zapcore.LevelEnabler) Plugin {
	return zapcore.NewCore(DefaultEncoder(), writer, enabler)
}

// 终端输出使用可读性更好的console编码器
func NewConsolePlugin(writer zapcore.WriteSyncer, enabler zapcore.LevelEnabler) Plugin {
	return zapcore.NewCore(ConsoleEncoder(), writer, enabler)
}

func NewStdoutPlugin(enabler zapcore.LevelEnabler) Plugin {
	return NewConsolePlugin(zapcore.Lock(zapcore.AddSync(os.Stdout)), enabler)
}

// 抓取结果(CSV)会写到标准输出，所以命令行默认把日志写到标准错误
func NewStderrPlugin(enabler zapcore.LevelEnabler) Plugin {
	return NewConsolePlugin(zapcore.Lock(zapcore.AddSync(os.Stderr)), enabler)
}

// lumberjack没有暴露sync方法，额外返回一个closer，进程退出前需要close以保证日志全部刷到磁盘
func NewFilePlugin(filePath string, enabler zapcore.LevelEnabler) (Plugin, io.Closer) {
	var writer = DefaultLumberjackLogger()
	writer.Filename = filePath
	return NewPlugin(zapcore.AddSync(writer), enabler), writer
}

/*
输入多个日志核心，输出一个组合后的日志核心

同一条日志会分发给每个核心，各核心按自己的级别过滤，例如文件记录DEBUG、终端只显示INFO
*/
func NewTeePlugin(plugins ...Plugin) Plugin {
	return zapcore.NewTee(plugins...)
}

// 解析命令行传入的日志级别，空字符串按INFO处理
func ParseLevel(text string) (zapcore.Level, error) {
	if text == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(text)
}
