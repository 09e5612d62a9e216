package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlanticdynamic/simkernel/internal/config/loader"
	"github.com/atlanticdynamic/simkernel/internal/config/logs"
	"github.com/atlanticdynamic/simkernel/internal/interpolation"
	"github.com/atlanticdynamic/simkernel/internal/sim/simulator"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

const tomlDoc = `
version = "v1"
logs = ["x"]

[simulation]
mode = "offline"
step = 0.1
duration = 1.0
depth = 12

[logging]
format = "txt"
level = "warning"

[[variables]]
name = "x"
type = "double"
unit = "m"
init = 0.0

[[variables]]
name = "count"
type = "uint"
init = 2.0

[[modules]]
file = "builtin:integrator"
arguments = "--state x"

[[modules]]
file = "plugins/counter.wasm"
active = false
`

const yamlDoc = `
version: v1
logs: [x]
simulation:
  mode: offline
  step: 0.1
  duration: 1.0
  depth: 12
logging:
  format: txt
  level: warning
variables:
  - name: x
    type: double
    unit: m
    init: 0
  - name: count
    type: uint
    init: 2
modules:
  - file: builtin:integrator
    arguments: --state x
  - file: plugins/counter.wasm
    active: false
`

const jsonDoc = `{
  "version": "v1",
  "logs": ["x"],
  "simulation": {"mode": "offline", "step": 0.1, "duration": 1.0, "depth": 12},
  "logging": {"format": "txt", "level": "warning"},
  "variables": [
    {"name": "x", "type": "double", "unit": "m", "init": 0},
    {"name": "count", "type": "uint", "init": 2}
  ],
  "modules": [
    {"file": "builtin:integrator", "arguments": "--state x"},
    {"file": "plugins/counter.wasm", "active": false}
  ]
}`

func TestLoadEveryFormat(t *testing.T) {
	t.Parallel()

	docs := map[loader.Format]string{
		loader.FormatTOML: tomlDoc,
		loader.FormatYAML: yamlDoc,
		loader.FormatJSON: jsonDoc,
	}
	for format, doc := range docs {
		t.Run(format.String(), func(t *testing.T) {
			cfg, err := NewConfigFromBytes([]byte(doc), format)
			require.NoError(t, err)

			assert.Equal(t, VersionLatest, cfg.Version)
			assert.Equal(t, Simulation{Mode: "offline", Step: 0.1, Duration: 1.0, Depth: 12}, cfg.Simulation)
			assert.Equal(t, logs.FormatText, cfg.Logging.Format)
			assert.Equal(t, logs.LevelWarn, cfg.Logging.Level)
			assert.Equal(t, []string{"x"}, cfg.Logs)

			vars, mods, err := cfg.Declarations()
			require.NoError(t, err)
			assert.Equal(t, []variable.Variable{
				{Name: "x", Type: variable.TypeDouble, Unit: "m"},
				{Name: "count", Type: variable.TypeUint32, Init: 2},
			}, vars)
			assert.Equal(t, []variable.Module{
				{File: "builtin:integrator", Arguments: "--state x", Active: true},
				{File: "plugins/counter.wasm", Active: false},
			}, mods)

			settings, err := cfg.Simulation.Settings()
			require.NoError(t, err)
			assert.Equal(t, uint64(10), settings.TotalSteps())
		})
	}
}

func TestNewConfigFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Variables, 2)

	_, err = NewConfig(filepath.Join(dir, "sim.ini"))
	require.ErrorIs(t, err, ErrFailedToLoadConfig)
	require.ErrorIs(t, err, loader.ErrUnsupportedExtension)

	cfg, err = NewConfigFromReader(strings.NewReader(tomlDoc), loader.FormatTOML)
	require.NoError(t, err)
	assert.Len(t, cfg.Modules, 2)
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfigFromBytes([]byte("[[variables]]\nname = \"v\"\ntype = \"float\"\n"), loader.FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, VersionLatest, cfg.Version)
	assert.Equal(t, "realtime", cfg.Simulation.Mode)
	assert.InDelta(t, simulator.DefaultSettings().Step, cfg.Simulation.Step, 0)
	assert.Equal(t, 10, cfg.Simulation.Depth)

	settings, err := cfg.Simulation.Settings()
	require.NoError(t, err)
	assert.Equal(t, simulator.Realtime, settings.Mode)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := &Config{
			Variables: []Variable{{Name: "x", Type: "double"}},
			Modules:   []Module{{File: "builtin:integrator"}},
			Logs:      []string{"x"},
		}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"version", func(c *Config) { c.Version = "v2" }, ErrUnsupportedConfigVer},
		{"bad name", func(c *Config) { c.Variables[0].Name = "1x" }, variable.ErrInvalidName},
		{"bad type", func(c *Config) { c.Variables[0].Type = "complex" }, variable.ErrInvalidType},
		{"duplicate variable", func(c *Config) {
			c.Variables = append(c.Variables, Variable{Name: "x", Type: "int32"})
		}, ErrDuplicateName},
		{"empty module", func(c *Config) { c.Modules[0].File = " " }, variable.ErrEmptyModuleFile},
		{"duplicate module", func(c *Config) {
			c.Modules = append(c.Modules, Module{File: "builtin:integrator"})
		}, ErrDuplicateName},
		{"unknown log", func(c *Config) { c.Logs = []string{"y"} }, ErrUnknownReference},
		{"duplicate log", func(c *Config) { c.Logs = []string{"x", "x"} }, ErrDuplicateName},
		{"offline without duration", func(c *Config) { c.Simulation.Mode = "offline" }, ErrInvalidSimulation},
		{"unknown mode", func(c *Config) { c.Simulation.Mode = "turbo" }, ErrInvalidSimulation},
		{"tiny step", func(c *Config) { c.Simulation.Step = 0.0001 }, ErrInvalidSimulation},
		{"depth", func(c *Config) { c.Simulation.Depth = 21 }, ErrInvalidSimulation},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, logs.ErrInvalidLogLevel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestValidateAggregates(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Variables: []Variable{{Name: "a b", Type: "double"}, {Name: "y", Type: "nope"}},
		Logs:      []string{"z"},
	}
	cfg.ApplyDefaults()

	err := cfg.Validate()
	require.ErrorIs(t, err, variable.ErrInvalidName)
	require.ErrorIs(t, err, variable.ErrInvalidType)
	require.ErrorIs(t, err, ErrUnknownReference)
	assert.Contains(t, err.Error(), "variable 1 (y)")

	_, err = NewConfigFromBytes([]byte(`{"variables": [{"name": "1"}]}`), loader.FormatJSON)
	require.ErrorIs(t, err, ErrFailedToValidateConfig)
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfigFromBytes([]byte(tomlDoc), loader.FormatTOML)
	require.NoError(t, err)

	for _, format := range loader.Formats {
		t.Run(format.String(), func(t *testing.T) {
			data, err := cfg.Marshal(format)
			require.NoError(t, err)

			again, err := NewConfigFromBytes(data, format)
			require.NoError(t, err)
			assert.Equal(t, cfg, again)
		})
	}
}

func TestClone(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfigFromBytes([]byte(tomlDoc), loader.FormatTOML)
	require.NoError(t, err)

	clone := cfg.Clone()
	require.Equal(t, cfg, clone)

	*clone.Modules[1].Active = true
	clone.Variables[0].Name = "changed"
	clone.Logs[0] = "changed"
	assert.False(t, cfg.Modules[1].IsActive())
	assert.Equal(t, "x", cfg.Variables[0].Name)
	assert.Equal(t, "x", cfg.Logs[0])

	var nilCfg *Config
	assert.Nil(t, nilCfg.Clone())
}

func TestConfigTree(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfigFromBytes([]byte(tomlDoc), loader.FormatTOML)
	require.NoError(t, err)

	out := cfg.String()
	for _, want := range []string{
		"Simulation Declarations (v1)",
		"Mode: offline",
		"Step: 0.1s",
		"Duration: 1s",
		"Depth: 12",
		"Logging",
		"Variables",
		"Unit: m",
		"Modules",
		"integrator",
		"counter",
		"Arguments: --state x",
		"Logs",
	} {
		assert.Contains(t, out, want)
	}

	v, ok := cfg.Variable("count")
	require.True(t, ok)
	assert.Equal(t, "uint", v.Type)
	_, ok = cfg.Variable("missing")
	assert.False(t, ok)
}

func TestEnvironmentInterpolation(t *testing.T) {
	t.Setenv("SIMKERNEL_TEST_GAIN", "2.5")
	t.Setenv("SIMKERNEL_TEST_LOGDIR", "/var/log/sim")

	doc := `
logs = ["u"]

[logging]
output = "${SIMKERNEL_TEST_LOGDIR}/run.log"

[[variables]]
name = "u"
type = "double"
unit = "${SIMKERNEL_TEST_GAIN}"

[[modules]]
file = "builtin:${SIMKERNEL_TEST_UNSET_PLUGIN:gain}"
arguments = "--in u --k ${SIMKERNEL_TEST_GAIN}"
`
	cfg, err := NewConfigFromBytes([]byte(doc), loader.FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, "/var/log/sim/run.log", cfg.Logging.Output)
	require.Len(t, cfg.Modules, 1)
	assert.Equal(t, "builtin:gain", cfg.Modules[0].File)
	assert.Equal(t, "--in u --k 2.5", cfg.Modules[0].Arguments)
	assert.Equal(t, "${SIMKERNEL_TEST_GAIN}", cfg.Variables[0].Unit, "units are not interpolated")

	_, err = NewConfigFromBytes([]byte(`
[[modules]]
file = "${SIMKERNEL_TEST_UNDEFINED_PLUGIN}"
`), loader.FormatTOML)
	require.ErrorIs(t, err, ErrFailedToLoadConfig)
	require.ErrorIs(t, err, interpolation.ErrUndefined)
}
