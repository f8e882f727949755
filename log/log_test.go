package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRoot(t *testing.T, l Logger) {
	prev := Root()
	SetDefault(l)
	t.Cleanup(func() { SetDefault(prev) })
}

func TestModuleFiltering(t *testing.T) {
	var buf bytes.Buffer
	withRoot(t, NewLogger(NewTerminalHandlerWithLevel(&buf, LevelTrace, false)))

	Debug(InlineMonitoring, "hidden", "k", 1)
	assert.Empty(t, buf.String())

	EnableModules("inline_mod, scan_mod")
	t.Cleanup(func() {
		DisableModule(InlineMonitoring)
		DisableModule(ScanMonitoring)
	})
	Debug(InlineMonitoring, "shown", "k", 2)
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "module=inline_mod")
	assert.Contains(t, buf.String(), "k=2")
	assert.Contains(t, buf.String(), "DEBUG")

	buf.Reset()
	Info(StorageMonitoring, "always")
	assert.Contains(t, buf.String(), "always")
}

func TestLevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	withRoot(t, NewLogger(NewTerminalHandlerWithLevel(&buf, LevelWarn, false)))
	Info(ScanMonitoring, "quiet")
	assert.Empty(t, buf.String())
	Warn(ScanMonitoring, "loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
	lvl, err = ParseLevel("TRACE")
	require.NoError(t, err)
	assert.Equal(t, LevelTrace, lvl)
	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestDiscardHandler(t *testing.T) {
	l := NewLogger(DiscardHandler())
	assert.False(t, l.Enabled(context.Background(), LevelCrit))
	l.Error(InlineMonitoring, "dropped")
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("disk full")
}

func TestHandlerErrorReported(t *testing.T) {
	var buf bytes.Buffer
	prev := handlerErrors
	handlerErrors = &buf
	t.Cleanup(func() { handlerErrors = prev })

	NewLogger(failingHandler{}).Warn(ScanMonitoring, "cache write failed")
	assert.Equal(t, "log: dropped \"cache write failed\": disk full\n", buf.String())
}
