// Package logging 构造 zerolog.Logger。
//
// 组件通过值接收 Logger，并用 logger.With().Str("component", "...") 派生子 Logger：
//
//	log := logging.New(logging.Config{Level: "debug", Format: "console"})
//	jobLog := log.With().Str("component", "job").Logger()
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config 日志配置
type Config struct {
	Level  string    `koanf:"level"`  // trace/debug/info/warn/error，默认 info
	Format string    `koanf:"format"` // json/console，默认 json
	Output io.Writer `koanf:"-"`      // 默认 os.Stderr
}

// New 根据配置创建 Logger
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// Nop 返回丢弃所有输出的 Logger，测试与未注入 Logger 的组件使用
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// ParseLevel 解析日志级别，无法识别时为 info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
