// Copyright 2020 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging sets up the process-wide structured logger shared by
// every railcore service.
package logging

import (
	"context"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config describes how a service's logger should be initialized.
type Config struct {
	// Level is one of debug, info, warning, error. Empty defaults to info.
	Level string
	// File is a path to log to; empty means stderr.
	File string
	// Service names the process in every log line (e.g. "schedulestore").
	Service string
}

// Adjust fills in defaults for zero-valued fields.
func (cfg *Config) Adjust() {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
}

func (cfg *Config) zapLevel() (zapcore.Level, error) {
	name := cfg.Level
	if name == "warning" {
		// zap spells this level "warn".
		name = "warn"
	}
	var lvl zapcore.Level
	if err := lvl.Set(name); err != nil {
		return lvl, errors.Annotatef(err, "invalid log level %q", cfg.Level)
	}
	return lvl, nil
}

// Init adjusts cfg and installs it as the process-wide logger used by
// every call to log.Info/log.Error/log.Fatal in this module.
func Init(cfg *Config) error {
	cfg.Adjust()
	lvl, err := cfg.zapLevel()
	if err != nil {
		return err
	}

	logCfg := &log.Config{
		Level: lvl.String(),
		File:  log.FileLogConfig{Filename: cfg.File},
	}
	logger, props, err := log.InitLogger(logCfg)
	if err != nil {
		return errors.Annotate(err, "failed to initialize logger")
	}
	if cfg.Service != "" {
		logger = logger.With(zap.String("service", cfg.Service))
	}
	log.ReplaceGlobals(logger, props)
	return nil
}

// ZapErrorFilter returns zap.Error(err), except that it returns
// zap.Error(nil) when err's cause matches one of filters. It exists so
// expected shutdown errors (context.Canceled, a rolled-back transaction on
// a client-abandoned request) don't pollute logs at ERROR level.
func ZapErrorFilter(err error, filters ...error) zap.Field {
	cause := errors.Cause(err)
	for _, f := range filters {
		if cause == f {
			return zap.Error(nil)
		}
	}
	return zap.Error(err)
}

// WithDeadlineFilter is a convenience wrapper around ZapErrorFilter for the
// two deadline-ish causes every request handler can hit.
func WithDeadlineFilter(err error) zap.Field {
	return ZapErrorFilter(err, context.Canceled, context.DeadlineExceeded)
}
