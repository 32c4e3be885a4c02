package enum

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("should panic with empty options", func(t *testing.T) {
		assert.Panics(t, func() {
			New()
		})
	})

	t.Run("should create flag with default value", func(t *testing.T) {
		options := []string{"table", "json", "yaml"}
		flag := New(options...)
		assert.Equal(t, "table", flag.String())
		assert.NoError(t, flag.Set("json"))
		assert.Equal(t, "table", options[0], "setting a value must not modify the options")
	})
}

func TestFlag_Set(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		expectError bool
		expected    string
	}{
		{name: "valid value", value: "yaml", expected: "yaml"},
		{name: "invalid value", value: "xml", expectError: true, expected: "table"},
		{name: "case sensitive", value: "JSON", expectError: true, expected: "table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := New("table", "json", "yaml")
			err := flag.Set(tt.value)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, flag.String())
		})
	}
}

func TestGet(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	VarP(fs, "output", "o", []string{"table", "json", "yaml"}, "output format")
	fs.String("plain", "", "a string flag")

	t.Run("should get default value", func(t *testing.T) {
		value, err := Get(fs, "output")
		assert.NoError(t, err)
		assert.Equal(t, "table", value)
	})

	t.Run("should get parsed value", func(t *testing.T) {
		assert.NoError(t, fs.Parse([]string{"-o", "json"}))
		value, err := Get(fs, "output")
		assert.NoError(t, err)
		assert.Equal(t, "json", value)
	})

	t.Run("should error on non-existent flag", func(t *testing.T) {
		_, err := Get(fs, "non-existent")
		assert.Error(t, err)
	})

	t.Run("should error on flag of other type", func(t *testing.T) {
		_, err := Get(fs, "plain")
		assert.Error(t, err)
	})

	t.Run("usage lists sorted options", func(t *testing.T) {
		assert.Contains(t, fs.Lookup("output").Usage, "[json table yaml]")
	})
}
