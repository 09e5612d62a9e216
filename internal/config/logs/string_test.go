package logs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		config   Config
		expected string
	}{
		{
			name:     "JSON Format Info Level",
			config:   Config{Format: FormatJSON, Level: LevelInfo, Output: "stdout"},
			expected: "Log Config: format=json, level=info, output=stdout",
		},
		{
			name:     "Text Format Debug Level",
			config:   Config{Format: FormatText, Level: LevelDebug, Output: "/var/log/sim.log"},
			expected: "Log Config: format=text, level=debug, output=/var/log/sim.log",
		},
		{
			name:     "Default Empty Config",
			config:   Config{},
			expected: "Log Config: format=, level=, output=stderr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.String())
		})
	}
}

func TestConfig_ToTree(t *testing.T) {
	t.Parallel()

	cfg := Config{Format: FormatJSON, Level: LevelWarn}
	rendered := cfg.ToTree().String()
	assert.Contains(t, rendered, "Logging")
	assert.Contains(t, rendered, "Format: json")
	assert.Contains(t, rendered, "Level: warn")
	assert.Contains(t, rendered, "Output: stderr")
}
