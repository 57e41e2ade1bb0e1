// Package logging provides the rotating diagnostic log. Internal detail
// goes here; user-facing text goes through the output package and the
// two are not required to match.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewFileLogger returns a logger writing to a size-rotated file.
func NewFileLogger(path string) *log.Logger {
	_ = os.MkdirAll(filepath.Dir(path), 0755)
	return log.New(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}, "", log.LstdFlags)
}

// NewStderrLogger returns a logger for foreground daemon use.
func NewStderrLogger() *log.Logger {
	return log.New(os.Stderr, "[vaultsync] ", log.LstdFlags)
}

// Nop returns a logger that discards everything.
func Nop() *log.Logger {
	return log.New(io.Discard, "", 0)
}
