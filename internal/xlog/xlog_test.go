package xlog

import (
	"testing"

	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"
)

func TestDefaultFallsBackToStandardLogger(t *testing.T) {
	l := Default(nil)
	assert.Assert(t, l != nil)
	entry := l.WithFields(Fields{"k": "v"})
	assert.Equal(t, entry.Data["k"], "v")
}

func TestDefaultPassesThroughCustomLogger(t *testing.T) {
	custom := logrus.New()
	l := Default(custom)
	entry := l.WithFields(Fields{"component": "test"})
	assert.Equal(t, entry.Data["component"], "test")
}
