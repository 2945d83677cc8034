// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log is a small structured-logging façade shared by the reader
// (clrread) and the graph engine. It is not part of the upstream teacher
// module's retrieved snapshot, but its call shape (Logger, Helper,
// NewFilter/FilterLevel, NewStdLogger) is reconstructed from how the
// teacher's own clrread package calls it (pe.logger.Warnf, log.NewStdLogger,
// log.NewFilter(logger, log.FilterLevel(log.LevelError))).
package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level is a logging severity.
type Level uint8

// Severity levels, ordered from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal structured-logging sink. Implementations must be
// safe for concurrent use.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes "level=X msg=... k=v ..." lines to an io.Writer.
type stdLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdLogger returns a Logger that writes timestamped lines to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{w: w}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.w, "%s level=%s", time.Now().Format(time.RFC3339), level)
	if err != nil {
		return err
	}
	for i := 0; i+1 < len(keyvals); i += 2 {
		if _, err := fmt.Fprintf(l.w, " %v=%v", keyvals[i], keyvals[i+1]); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(l.w)
	return err
}

// filter wraps a Logger and drops records below a minimum level.
type filter struct {
	next Logger
	min  Level
}

// FilterOption configures a filter.
type FilterOption func(*filter)

// FilterLevel sets the minimum level a record must meet to pass the filter.
func FilterLevel(min Level) FilterOption {
	return func(f *filter) { f.min = min }
}

// NewFilter returns a Logger that only forwards records at or above the
// configured minimum level to next.
func NewFilter(next Logger, opts ...FilterOption) Logger {
	f := &filter{next: next, min: LevelInfo}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.min {
		return nil
	}
	return f.next.Log(level, keyvals...)
}

// Helper wraps a Logger with printf-style convenience methods, one per
// severity, matching the calling convention the reader uses throughout
// (pe.logger.Warnf("...", args...)).
type Helper struct {
	logger Logger
}

// NewHelper wraps logger in a Helper.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, args ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, "msg", fmt.Sprintf(format, args...))
}

// Debugf logs at LevelDebug.
func (h *Helper) Debugf(format string, args ...interface{}) { h.log(LevelDebug, format, args...) }

// Debug logs a single message at LevelDebug.
func (h *Helper) Debug(msg string) { h.log(LevelDebug, "%s", msg) }

// Infof logs at LevelInfo.
func (h *Helper) Infof(format string, args ...interface{}) { h.log(LevelInfo, format, args...) }

// Warnf logs at LevelWarn.
func (h *Helper) Warnf(format string, args ...interface{}) { h.log(LevelWarn, format, args...) }

// Warn logs a single message at LevelWarn.
func (h *Helper) Warn(msg string) { h.log(LevelWarn, "%s", msg) }

// Errorf logs at LevelError.
func (h *Helper) Errorf(format string, args ...interface{}) { h.log(LevelError, format, args...) }
