package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDisabledDiscards(t *testing.T) {
	closer, err := Init(Options{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, closer.Close())
	require.False(t, L.Enabled(context.Background(), slog.LevelError))
}

func TestInitWriterRespectsLevel(t *testing.T) {
	t.Cleanup(func() { _, _ = Init(Options{}) })

	var buf bytes.Buffer
	_, err := Init(Options{Enabled: true, Writer: &buf, Level: slog.LevelWarn})
	require.NoError(t, err)

	Info("hidden", "k", 1)
	Warn("shown", "category", "frames")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "shown")
	require.Contains(t, out, "category=frames")
}

func TestInitFileSink(t *testing.T) {
	t.Cleanup(func() { _, _ = Init(Options{}) })

	path := filepath.Join(t.TempDir(), "logs", "memquota.log")
	closer, err := Init(Options{Enabled: true, File: path, JSON: true})
	require.NoError(t, err)

	Error("ledger clamp", "bytes", 64)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"ledger clamp"`)
	require.Contains(t, string(data), `"bytes":64`)
}
