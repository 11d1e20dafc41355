// Package logging builds the CLI's zap logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger writing to w at the named level
// (debug, info, warn, error).
func New(w io.Writer, level string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

func ParseLevel(level string) (zapcore.Level, error) {
	norm := strings.ToLower(strings.TrimSpace(level))
	if norm == "" {
		return zapcore.WarnLevel, nil
	}
	lvl, err := zapcore.ParseLevel(norm)
	if err != nil {
		return zapcore.WarnLevel, fmt.Errorf("invalid log level %q", level)
	}
	return lvl, nil
}
