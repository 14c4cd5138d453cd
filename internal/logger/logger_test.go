package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New("DEBUG").GetLevel())
	assert.Equal(t, logrus.WarnLevel, New(" warning ").GetLevel())
	assert.Equal(t, logrus.ErrorLevel, New("error").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("verbose").GetLevel())

	_, ok := New("info").Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}
