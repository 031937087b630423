package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "keepsake", cmd.Use)
	assert.Contains(t, cmd.Long, "tear open")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"play", "validate", "export", "test", "trace", "replay", "answers"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
			assert.NotEmpty(t, sub.Short)
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	flags := NewRootCommand().PersistentFlags()

	tests := []struct {
		name, shorthand, def string
	}{
		{"verbose", "v", "false"},
		{"format", "", "text"},
		{"config", "c", ""},
		{"store", "", "sqlite"},
		{"db", "", "keepsake.db"},
		{"redis", "", "localhost:6379"},
		{"redis-prefix", "", "keepsake:"},
		{"log-file", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := flags.Lookup(tt.name)
			require.NotNil(t, f)
			assert.Equal(t, tt.shorthand, f.Shorthand)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	tests := []struct {
		command, flag, def string
	}{
		{"play", "reduced-motion", "false"},
		{"export", "output", ""},
		{"test", "update", "false"},
		{"test", "filter", ""},
		{"trace", "kind", ""},
		{"trace", "action", ""},
		{"replay", "runs", "3"},
		{"answers", "clear", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestPersistentFlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"format", []string{"--format", "xml", "validate"}, "invalid format"},
		{"store", []string{"--store", "mongo", "validate"}, "invalid store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewRootCommand(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestRootValidatesDefault(t *testing.T) {
	out, err := execute(t, NewRootCommand(), "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Config valid")
}
