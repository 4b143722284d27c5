// Package logger wraps zerolog behind a small Logger interface.
//
// Components take a Logger in their constructors; the CLI initializes the
// global instance once from config.LoggingConfig and hands out
// Component("name") children. Tests use NewNopLogger or NewTestLogger.
package logger
