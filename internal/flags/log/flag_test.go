package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLoggingFlags(t *testing.T) {
	cmd := &cobra.Command{}
	RegisterLoggingFlags(cmd.PersistentFlags())

	assert.NotNil(t, cmd.PersistentFlags().Lookup(FormatFlagName))
	assert.NotNil(t, cmd.PersistentFlags().Lookup(LevelFlagName))
	assert.NotNil(t, cmd.PersistentFlags().Lookup(OutputFlagName))
}

func TestGetBaseLogger(t *testing.T) {
	tests := []struct {
		name   string
		format string
		level  string
		output string
	}{
		{
			name:   "json format with debug level to stdout",
			format: FormatJSON,
			level:  LevelDebug,
			output: OutputStdout,
		},
		{
			name:   "text format with info level to stderr",
			format: FormatText,
			level:  LevelInfo,
			output: OutputStderr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			RegisterLoggingFlags(cmd.Flags())
			require.NoError(t, cmd.Flags().Set(FormatFlagName, tt.format))
			require.NoError(t, cmd.Flags().Set(LevelFlagName, tt.level))
			require.NoError(t, cmd.Flags().Set(OutputFlagName, tt.output))

			logger, err := GetBaseLogger(cmd)
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestGetBaseLoggerWritesJSON(t *testing.T) {
	r := require.New(t)
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	RegisterLoggingFlags(cmd.Flags())
	r.NoError(cmd.Flags().Set(FormatFlagName, FormatJSON))

	logger, err := GetBaseLogger(cmd)
	r.NoError(err)
	logger.Info("hidden")
	logger.Warn("archive removed", slog.String("name", "noop"))

	r.Empty(out.String())
	var entry map[string]any
	r.NoError(json.Unmarshal(errOut.Bytes(), &entry))
	r.Equal("archive removed", entry["msg"])
	r.Equal("noop", entry["name"])
}

func TestLevelFromCommand(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cmd := &cobra.Command{}
			RegisterLoggingFlags(cmd.Flags())
			require.NoError(t, cmd.Flags().Set(LevelFlagName, tt.level))

			level, err := levelFromCommand(cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}

	t.Run("unknown level", func(t *testing.T) {
		cmd := &cobra.Command{}
		RegisterLoggingFlags(cmd.Flags())
		assert.Error(t, cmd.Flags().Set(LevelFlagName, "trace"))
	})
}
