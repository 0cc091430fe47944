package wsprbeacon

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	var logger, err = NewLogger(&buf, LogOptions{Level: "warn", Prefix: "wspr"}) //nolint:exhaustruct
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
	assert.Contains(t, buf.String(), "wspr")

	_, err = NewLogger(&buf, LogOptions{Level: "chatty"}) //nolint:exhaustruct
	require.Error(t, err)
}

func TestStatusReporter(t *testing.T) {
	var logger, buf = NewTestLogger(t)
	var s = newStatusReporter(logger, time.Minute)

	for i := range 90 {
		s.report(time.Duration(i)*time.Second, log.InfoLevel, "NO transmission slot.")
	}

	assert.Equal(t, 2, strings.Count(buf.String(), "NO transmission slot."), "once, then again a minute later")

	s.report(120*time.Second, log.InfoLevel, "Start transmission.")
	s.report(121*time.Second, log.InfoLevel, "NO transmission slot.")

	assert.Equal(t, 3, strings.Count(buf.String(), "NO transmission slot."), "a change is always printed")
}

func TestStatusReporterEveryTick(t *testing.T) {
	var logger, buf = NewTestLogger(t)
	var s = newStatusReporter(logger, 0)

	for i := range 5 {
		s.report(time.Duration(i)*time.Second, log.InfoLevel, "Waiting for GPS receiver...")
	}

	assert.Equal(t, 5, strings.Count(buf.String(), "Waiting for GPS receiver..."))
}

func TestStatusReporterForget(t *testing.T) {
	var logger, buf = NewTestLogger(t)
	var s = newStatusReporter(logger, time.Hour)

	s.report(0, log.InfoLevel, "Waiting for GPS receiver...")
	s.report(time.Second, log.InfoLevel, "Waiting for GPS receiver...")
	s.forget()
	s.report(2*time.Second, log.InfoLevel, "Waiting for GPS receiver...")

	assert.Equal(t, 2, strings.Count(buf.String(), "Waiting for GPS receiver..."))
}
