package wsprbeacon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEmit(at time.Time) EmitEvent {
	return EmitEvent{
		Time:       at,
		Slot:       SlotIndex(at),
		Callsign:   "K1ABC",
		Locator:    "FN42",
		PowerDbm:   37,
		DialFreqHz: 14097100,
	}
}

func TestTxLogSingleFile(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "tx.csv")

	var l, err = NewTxLog(TxLogOptions{Path: path}) //nolint:exhaustruct
	require.NoError(t, err)
	assert.True(t, l.Enabled())

	require.NoError(t, l.Write(testEmit(testHour)))
	require.NoError(t, l.Write(testEmit(testHour.Add(4*time.Minute))))
	require.NoError(t, l.Close())

	var data, readErr = os.ReadFile(path)
	require.NoError(t, readErr)

	var lines = strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, TxLogHeader, lines[0])
	assert.Equal(t, "1772366400,2026-03-01T12:00:00Z,K1ABC,FN42,37,14097100,0", lines[1])
	assert.True(t, strings.HasSuffix(lines[2], ",2"))
}

func TestTxLogHeaderOnlyOnce(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "tx.csv")

	for range 2 {
		var l, err = NewTxLog(TxLogOptions{Path: path}) //nolint:exhaustruct
		require.NoError(t, err)
		require.NoError(t, l.Write(testEmit(testHour)))
		require.NoError(t, l.Close())
	}

	var data, _ = os.ReadFile(path)
	assert.Equal(t, 1, strings.Count(string(data), TxLogHeader))
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
}

func TestTxLogDaily(t *testing.T) {
	var dir = filepath.Join(t.TempDir(), "logs")

	var l, err = NewTxLog(TxLogOptions{Dir: dir}) //nolint:exhaustruct
	require.NoError(t, err)

	require.NoError(t, l.Write(testEmit(time.Date(2026, time.March, 1, 23, 58, 0, 0, time.UTC))))
	require.NoError(t, l.Write(testEmit(time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, l.Close())

	var entries, readErr = os.ReadDir(dir)
	require.NoError(t, readErr)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"2026-03-01.log", "2026-03-02.log"}, names)
}

func TestTxLogTimestampFormat(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "tx.csv")

	var l, err = NewTxLog(TxLogOptions{Path: path, TimestampFormat: "%d/%m/%Y %H:%M"}) //nolint:exhaustruct
	require.NoError(t, err)
	require.NoError(t, l.Write(testEmit(testHour)))
	require.NoError(t, l.Close())

	var data, _ = os.ReadFile(path)
	assert.Contains(t, string(data), ",01/03/2026 12:00,")
}

func TestTxLogOptionsErrors(t *testing.T) {
	var _, err = NewTxLog(TxLogOptions{Path: "a", Dir: "b"}) //nolint:exhaustruct
	require.ErrorIs(t, err, ErrTxLogTarget)

	var file = filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err = NewTxLog(TxLogOptions{Dir: file}) //nolint:exhaustruct
	require.Error(t, err)
}

func TestTxLogDisabled(t *testing.T) {
	var l, err = NewTxLog(TxLogOptions{}) //nolint:exhaustruct
	require.NoError(t, err)

	assert.False(t, l.Enabled())
	require.NoError(t, l.Write(testEmit(testHour)))
	require.NoError(t, l.Close())

	var nilLog *TxLog
	assert.False(t, nilLog.Enabled())
	require.NoError(t, nilLog.Close())
}
