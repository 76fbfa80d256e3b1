package logger_test

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/reservations/internal/logger"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := logger.New(logger.Conf{Level: "chatty"})
	require.Error(t, err)

	l, err := logger.New(logger.Conf{Level: "debug"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer

	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})

	l := logger.Wrap(base).With(map[string]any{"room": "101"})
	l.LogInfo("Room %s is ready", "101")
	l.LogDebugf("hidden")

	assert.Contains(t, buf.String(), `"room":"101"`)
	assert.Contains(t, buf.String(), "Room 101 is ready")
	assert.NotContains(t, buf.String(), "hidden")
}
