package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TextLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Writer: &buf})
	require.NoError(t, err)
	defer closeFn()

	logger.Debug("hidden")
	logger.Info("shown", "scene", "intro")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "scene=intro")
}

func TestNew_Verbose(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Writer: &buf, Verbose: true})
	require.NoError(t, err)

	logger.Debug("detail")
	assert.Contains(t, buf.String(), "msg=detail")
}

func TestNew_FileFanout(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "session.log")

	logger, closeFn, err := New(Options{Writer: &buf, File: path})
	require.NoError(t, err)

	logger.Debug("tear primed", "progress", 0.4)
	logger.Info("scene changed", "to", "letter")
	require.NoError(t, closeFn())

	assert.NotContains(t, buf.String(), "tear primed", "terminal stays at info")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2, "file receives debug records")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "scene changed", rec["msg"])
	assert.Equal(t, "letter", rec["to"])
}

func TestNew_BadFile(t *testing.T) {
	_, _, err := New(Options{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("nothing") })
}
