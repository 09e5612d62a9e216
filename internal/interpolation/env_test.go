package interpolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		env         map[string]string
		expected    string
		expectError bool
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "no references", input: "builtin:gain --k 2", expected: "builtin:gain --k 2"},
		{
			name:     "set variable",
			input:    "${SIMKERNEL_TEST_DIR}/plant.wasm",
			env:      map[string]string{"SIMKERNEL_TEST_DIR": "/opt/plugins"},
			expected: "/opt/plugins/plant.wasm",
		},
		{
			name:     "several references",
			input:    "--in ${SIMKERNEL_TEST_IN} --out ${SIMKERNEL_TEST_OUT}",
			env:      map[string]string{"SIMKERNEL_TEST_IN": "u", "SIMKERNEL_TEST_OUT": "y"},
			expected: "--in u --out y",
		},
		{
			name:     "default when unset",
			input:    "--k ${SIMKERNEL_TEST_UNSET_K:1.5}",
			expected: "--k 1.5",
		},
		{
			name:     "set variable wins over default",
			input:    "--k ${SIMKERNEL_TEST_K:1.5}",
			env:      map[string]string{"SIMKERNEL_TEST_K": "3"},
			expected: "--k 3",
		},
		{
			name:     "empty default",
			input:    "a${SIMKERNEL_TEST_UNSET_EMPTY:}b",
			expected: "ab",
		},
		{
			name:        "undefined without default",
			input:       "${SIMKERNEL_TEST_UNDEFINED}/x",
			expected:    "${SIMKERNEL_TEST_UNDEFINED}/x",
			expectError: true,
		},
		{
			name:     "not a reference",
			input:    "$HOME and ${1BAD}",
			expected: "$HOME and ${1BAD}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := ExpandEnvVars(tt.input)
			if tt.expectError {
				require.ErrorIs(t, err, ErrUndefined)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}
