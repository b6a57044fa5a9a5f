// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package logging configures the process-wide logger.
//
// Log output never goes to stdout, because stdout carries the credential
// helper protocol. Logging is off unless DOCKER_SECRETSMANAGER_LOG is set.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
)

// These are the environmental variables that determine if we log, and if
// we log whether or not the log should go to a file.
const (
	envLog     = "DOCKER_SECRETSMANAGER_LOG"
	envLogFile = "DOCKER_SECRETSMANAGER_LOG_PATH"
)

var (
	// ValidLevels are the log level names that can be set in
	// DOCKER_SECRETSMANAGER_LOG.
	ValidLevels = []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "OFF"}

	// logger is the global hclog logger
	logger hclog.InterceptLogger

	// logWriter is a global writer for logs, to be used with the std log package
	logWriter io.Writer
)

func init() {
	logger = newHCLogger("")
	logWriter = logger.StandardWriterIntercept(&hclog.StandardLoggerOptions{InferLevels: true})

	// set up the default std library logger to use our output
	log.SetFlags(0)
	log.SetPrefix("")
	log.SetOutput(logWriter)
}

// HCLogger returns the default global hclog logger
func HCLogger() hclog.Logger {
	return logger
}

func newHCLogger(name string) hclog.InterceptLogger {
	logOutput := io.Writer(os.Stderr)
	logLevel, json := globalLogLevel()

	if logPath := os.Getenv(envLogFile); logPath != "" {
		f, err := os.OpenFile(logPath, syscall.O_CREAT|syscall.O_RDWR|syscall.O_APPEND, 0666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		} else {
			logOutput = f
		}
	}

	return hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:              name,
		Level:             logLevel,
		Output:            logOutput,
		IndependentLevels: true,
		JSONFormat:        json,
	})
}

// RegisterSink adds a new log sink which writes all logs at TRACE level.
func RegisterSink(f io.Writer) {
	logger.RegisterSink(hclog.NewSinkAdapter(&hclog.LoggerOptions{
		Level:  hclog.Trace,
		Output: f,
	}))
}

// IsDebugOrHigher returns whether or not the current log level is debug or
// trace.
func IsDebugOrHigher() bool {
	level, _ := globalLogLevel()
	return level == hclog.Debug || level == hclog.Trace
}

func globalLogLevel() (hclog.Level, bool) {
	return parseLogLevel(os.Getenv(envLog))
}

// parseLogLevel returns the level named by the given environment variable
// value and whether output should be JSON. An empty value disables logging,
// and an unrecognized one enables everything.
func parseLogLevel(envLevel string) (hclog.Level, bool) {
	envLevel = strings.ToUpper(strings.TrimSpace(envLevel))
	switch envLevel {
	case "":
		return hclog.Off, false
	case "JSON":
		return hclog.Trace, true
	}

	for _, valid := range ValidLevels {
		if envLevel == valid {
			return hclog.LevelFromString(envLevel), false
		}
	}

	// an invalid level is treated as TRACE, so the user at least gets output
	// and can see what they set
	fmt.Fprintf(os.Stderr, "[WARN] Invalid log level: %q. Defaulting to level: TRACE. Valid levels are: %+v\n",
		envLevel, ValidLevels)
	return hclog.Trace, false
}
