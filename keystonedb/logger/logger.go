//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package logger provides logging functionality.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// LogLevel defines a set of logging levels that are used to control logging
// output.
//
// The logging levels are ordered. The available levels in ascending order are:
//
//	Fine
//	Debug
//	Info
//	Warn
//	Error
//
// Enabling logging at a given level also enables logging at all higher
// levels. In addition there is a level Off that can be used to turn off
// logging.
type LogLevel int

const (
	// Fine represents a level used to log tracing messages.
	Fine LogLevel = 10

	// Debug represents a level used to log debug messages.
	Debug LogLevel = 20

	// Info represents a level used to log informative messages.
	Info LogLevel = 30

	// Warn represents a level used to log warning messages.
	Warn LogLevel = 40

	// Error represents a level used to log error messages.
	Error LogLevel = 50

	// Off turns off logging.
	Off LogLevel = 99
)

// String returns a string representation for the log level.
//
// This implements the fmt.Stringer interface.
func (level LogLevel) String() string {
	switch level {
	case Fine:
		return "Fine"
	case Debug:
		return "Debug"
	case Info:
		return "Info"
	case Warn:
		return "Warn"
	case Error:
		return "Error"
	case Off:
		return "Off"
	default:
		return "N/A"
	}
}

// Logger represents a logging object that is a wrapper for log.Logger,
// adding capabilities to control the desired level of messages to log and
// whether the log entry time is displayed in local time zone or UTC.
//
// All methods are safe to call on a nil Logger, in which case nothing is
// logged.
type Logger struct {
	logger *log.Logger

	// level specifies the desired logging level.
	level LogLevel

	// timezone is the suffix displayed for log entry time.
	// It is an empty string for local time, "UTC " for UTC time.
	timezone string
}

// New creates a logger that writes messages of the specified logging level to
// the specified io.Writer. If useLocalTime is set to false, the log entry
// displays UTC time.
//
// If the specified level is Off or not an available value, New returns nil,
// which represents logging is disabled.
func New(out io.Writer, level LogLevel, useLocalTime bool) *Logger {
	if out == nil {
		return nil
	}

	switch level {
	case Fine, Debug, Info, Warn, Error:
	default:
		return nil
	}

	var tz string
	flag := log.LstdFlags | log.Lmicroseconds
	if !useLocalTime {
		flag |= log.LUTC
		tz = "UTC "
	}

	return &Logger{
		level:    level,
		logger:   log.New(out, "", flag),
		timezone: tz,
	}
}

// Fine writes the specified message to the logger if the desired logging
// level is set to Fine.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Fine(messageFormat string, messageArgs ...interface{}) {
	l.Log(Fine, messageFormat, messageArgs...)
}

// Debug writes the specified message to the logger if the desired logging
// level is set to Debug or lower.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Debug(messageFormat string, messageArgs ...interface{}) {
	l.Log(Debug, messageFormat, messageArgs...)
}

// Info writes the specified message to the logger if the desired logging
// level is set to Info or lower.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Info(messageFormat string, messageArgs ...interface{}) {
	l.Log(Info, messageFormat, messageArgs...)
}

// Warn writes the specified message to the logger if the desired logging
// level is set to Warn or lower.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Warn(messageFormat string, messageArgs ...interface{}) {
	l.Log(Warn, messageFormat, messageArgs...)
}

// Error writes the specified message to the logger regardless of the desired
// logging level, unless logging is disabled.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Error(messageFormat string, messageArgs ...interface{}) {
	l.Log(Error, messageFormat, messageArgs...)
}

// Log writes the specified message to logger if the specified logging level
// is the same as or higher than the logger's desired level.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Log(level LogLevel, messageFormat string, messageArgs ...interface{}) {
	if l == nil || level == Off || l.level > level {
		return
	}

	l.logger.Print(l.timezone+label(level), fmt.Sprintf(messageFormat, messageArgs...))
}

// label returns a label for the specified logging level used to display in
// log entries.
func label(level LogLevel) string {
	switch level {
	case Fine:
		return "[FINE]  "
	case Debug:
		return "[DEBUG] "
	case Info:
		return "[INFO]  "
	case Warn:
		return "[WARN]  "
	case Error:
		return "[ERROR] "
	default:
		return ""
	}
}

// DefaultLogger represents a default logger that writes warning and higher
// priority events to stderr.
var DefaultLogger = New(os.Stderr, Warn, false)
