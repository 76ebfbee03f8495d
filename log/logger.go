// Copyright 2019 The go-ultiledger Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootLogger *zap.SugaredLogger
var config zap.Config

func init() {
	config = zap.NewProductionConfig()
	// Stacktraces only from DPanic so rejected peer messages
	// logged at Error level stay on one line.
	logger, err := config.Build(zap.AddStacktrace(zapcore.DPanicLevel))
	if err != nil {
		panic(err)
	}
	rootLogger = logger.Sugar()
}

// SetLevel changes the level of the root logger and of every
// logger derived from it, the level is one of debug, info, warn
// and error.
func SetLevel(level string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("parse log level %q failed: %v", level, err)
	}
	config.Level.SetLevel(l)
	return nil
}

// Named returns a child logger for a component such as a node,
// the bus or a simulation run.
func Named(name string) *zap.SugaredLogger {
	return rootLogger.Named(name)
}

// Sync flushes the buffered log entries.
func Sync() error {
	return rootLogger.Sync()
}

// Fatal and Fatalf are used by the command line entry points
// where an error ends the process.
func Fatal(args ...interface{}) {
	rootLogger.WithOptions(zap.AddCallerSkip(1)).Fatal(args...)
}

func Fatalf(template string, args ...interface{}) {
	rootLogger.WithOptions(zap.AddCallerSkip(1)).Fatalf(template, args...)
}
