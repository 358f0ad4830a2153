/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package xlog provides module-scoped zap loggers over a single,
// process-wide sink, optionally rotated with lumberjack. Call Init
// once at startup, then LoggerModule(name) from any package that needs
// a logger — mirroring the server package's s.log = xlog.LoggerModule("server").
package xlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Log wraps a zap.Logger with the module name already bound in as a field.
type Log struct {
	*zap.Logger
}

// Panic logs at panic level then panics, matching server.go's
// s.log.Panic("start tcp error", ...) call sites for unrecoverable
// startup failures.
func (l *Log) Panic(msg string, fields ...zap.Field) {
	l.Logger.Panic(msg, fields...)
}

var (
	mu   sync.Mutex
	base *zap.Logger
)

// Options configures the process-wide log sink.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// File, when non-empty, additionally writes to a lumberjack-rotated
	// file at this path. Stdout is always written to.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init configures the process-wide base logger. Safe to call more than
// once; the last call wins. If never called, LoggerModule falls back to
// a sane development default so tests don't need to call Init.
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()
	base = build(opts)
}

func build(opts Options) *zap.Logger {
	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(opts.Level))

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), level),
	}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    nonZero(opts.MaxSizeMB, 100),
			MaxBackups: nonZero(opts.MaxBackups, 7),
			MaxAge:     nonZero(opts.MaxAgeDays, 30),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// LoggerModule returns a *Log scoped to module name.
func LoggerModule(name string) *Log {
	mu.Lock()
	b := base
	mu.Unlock()
	if b == nil {
		b, _ = zap.NewDevelopment()
	}
	return &Log{b.With(zap.String("module", name))}
}
