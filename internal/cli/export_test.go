package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keepsake/internal/config"
)

func TestExportDefaultIsCanonical(t *testing.T) {
	first, err := execute(t, NewExportCommand(textOpts()))
	require.NoError(t, err)
	second, err := execute(t, NewExportCommand(textOpts()))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var exp config.Experience
	require.NoError(t, json.Unmarshal([]byte(first), &exp))
	assert.Equal(t, config.MustDefault().Title, exp.Title)
	assert.Equal(t, config.MustDefault().Boot.Delay, exp.Boot.Delay)
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "short.cue", validConfig)
	dst := filepath.Join(dir, "out.json")

	out, err := execute(t, NewExportCommand(textOpts()), src, "-o", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Exported")

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title":"Short run"`)
	assert.Contains(t, string(data), `"delay":"500ms"`)
}

func TestExportJSONEnvelope(t *testing.T) {
	out, err := execute(t, NewExportCommand(jsonOpts()))
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   config.Experience `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.Scenes, 9)
}

func TestExportInvalidConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", `experience: { boot: delay: "soon" }`)
	_, err := execute(t, NewExportCommand(textOpts()), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
