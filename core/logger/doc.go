// Package logger is a standardized event logging framework for the shell.
//
// Events are written as newline delimited protobuf JSON so they can be
// summarised later with ReadJSONLinesLog and Report.
package logger
