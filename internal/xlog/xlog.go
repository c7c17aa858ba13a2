// Package xlog is the structured-logging shim shared by every manager in
// gobpf. It wraps logrus rather than printing to stdout directly, matching
// the ambient logging style used across the corpus this module was grown
// from (moby/moby's daemon and driver packages log through logrus fields).
package xlog

import "github.com/sirupsen/logrus"

// Logger is the subset of *logrus.Logger (or *logrus.Entry) that gobpf's
// managers depend on. Callers can inject their own via the Logger field of
// MapSpec/ProgSpec or LoadObject's logger argument;
// a nil Logger falls back to logrus.StandardLogger().
type Logger interface {
	WithFields(fields logrus.Fields) *logrus.Entry
}

// Default returns l if non-nil, otherwise the process-wide logrus logger.
func Default(l Logger) Logger {
	if l != nil {
		return l
	}
	return logrus.StandardLogger()
}

// Fields is re-exported so callers outside this package don't need to
// import logrus directly just to build a field set.
type Fields = logrus.Fields
