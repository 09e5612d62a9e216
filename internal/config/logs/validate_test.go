package logs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{name: "json info", config: Config{Format: FormatJSON, Level: LevelInfo}},
		{name: "text trace", config: Config{Format: FormatText, Level: LevelTrace}},
		{name: "unspecified", config: Config{}},
		{name: "file output", config: Config{Output: "file:///tmp/sim.log"}},
		{name: "invalid format", config: Config{Format: "custom"}, wantErr: ErrInvalidLogFormat},
		{name: "invalid level", config: Config{Level: "fatal"}, wantErr: ErrInvalidLogLevel},
		{name: "invalid output", config: Config{Output: "syslog://host"}, wantErr: ErrInvalidLogOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	t.Parallel()

	cfg := Config{Format: "xml", Level: "loud"}
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidLogFormat)
	require.ErrorIs(t, err, ErrInvalidLogLevel)
	assert.Contains(t, err.Error(), "xml")
	assert.Contains(t, err.Error(), "loud")
}
