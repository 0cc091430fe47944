package wsprbeacon

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertOutputContains runs command with stdout captured.
func AssertOutputContains(t *testing.T, command func(), expectedOutputContains string) {
	t.Helper()

	var oldStdout = os.Stdout
	defer func() {
		os.Stdout = oldStdout
	}()

	var r, w, _ = os.Pipe()
	os.Stdout = w

	command()

	w.Close() //nolint:gosec

	os.Stdout = oldStdout

	var outputBytes, readErr = io.ReadAll(r)

	require.NoError(t, readErr)

	var outputString = string(outputBytes)

	assert.Contains(t, outputString, expectedOutputContains)
}

// LogBuffer collects log output from several goroutines.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// NewTestLogger logs everything, without colour or timestamps, into the
// returned buffer.
func NewTestLogger(t *testing.T) (*log.Logger, *LogBuffer) {
	t.Helper()

	var buf = new(LogBuffer)
	var logger, err = NewLogger(buf, LogOptions{Level: "debug"}) //nolint:exhaustruct
	require.NoError(t, err)

	return logger, buf
}

// NMEASentence wraps body (without '$' or checksum) into a complete
// sentence with a correct checksum.
func NMEASentence(body string) string {
	var cs byte
	for i := range len(body) {
		cs ^= body[i]
	}

	return fmt.Sprintf("$%s*%02X", body, cs)
}
