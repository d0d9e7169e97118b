package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLogger_FormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 4, 5, 6, 7, 891_234_567, time.FixedZone("X", 3600))
	require.Equal(t, "2025-03-04T04:06:07.891Z", formatRFC3339Millis(ts))
}

func TestLogger_NewWithWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, false)
	log.Debug("hidden")
	log.Info("gateway: listing tables", "database", "shop", "like", "")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "gateway: listing tables")
	require.Contains(t, out, "database=shop")
	require.NotContains(t, out, "like=")

	buf.Reset()
	NewWithWriter(&buf, true).Debug("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestLogger_IsTerminal(t *testing.T) {
	t.Parallel()

	require.False(t, isTerminal(&bytes.Buffer{}))

	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)
	defer f.Close()
	require.False(t, isTerminal(f))

	NewWithWriter(f, false).Info("gateway: listing databases")
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	require.NotContains(t, string(data), "\x1b[")
}
