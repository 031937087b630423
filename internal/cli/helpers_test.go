package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// harnessScenarios holds scenarios that all pass.
var harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")

const validConfig = `experience: {
	title:  "Short run"
	scenes: ["intro", "likes", "result"]
	boot: delay: "500ms"
	counters: {
		likes: target: 2
		links: target: 1
		media: target: 1
	}
}
`

const failingScenario = `name: early_next
description: "Expects to leave the intro before the boot lock lifts"
steps:
  - do: next
    expect: { ok: true }
`

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func textOpts() *RootOptions {
	return &RootOptions{Format: "text", Store: "memory"}
}

func jsonOpts() *RootOptions {
	return &RootOptions{Format: "json", Store: "memory"}
}
