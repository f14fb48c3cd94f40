package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewTextAndJSON(t *testing.T) {
	var text bytes.Buffer
	New("debug", "text", &text).Debug("dbg", "k", "v")
	assert.Contains(t, text.String(), "level=DEBUG")
	assert.Contains(t, text.String(), "k=v")

	var js bytes.Buffer
	New("info", "json", &js).Info("hello", "n", 1)
	assert.Contains(t, js.String(), `"msg":"hello"`)
	assert.Contains(t, js.String(), `"n":1`)
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", "text", &buf)
	l.InfoContext(context.Background(), "hidden")
	assert.Empty(t, buf.String())
}

func TestAccessWriterSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewAccessWriter(New("info", "text", &buf))

	n, err := w.Write([]byte("GET / 200\nPOST /upload_entorn 201\n"))
	assert.NoError(t, err)
	assert.Equal(t, 34, n)
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("msg=\"http request\"")))
	assert.Contains(t, buf.String(), "POST /upload_entorn 201")
}
