package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/atlanticdynamic/simkernel/internal/config"
	"github.com/atlanticdynamic/simkernel/internal/config/loader"
	"github.com/atlanticdynamic/simkernel/internal/sim/simulator"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
	"github.com/atlanticdynamic/simkernel/internal/storage"
)

const defaultSamples = 20

type emptyInput struct{}

type declareInput struct {
	Document string `json:"document"         jsonschema:"the declaration document"`
	Format   string `json:"format,omitempty" jsonschema:"toml, yaml or json (default toml)"`
}

type formatInput struct {
	Format string `json:"format,omitempty" jsonschema:"toml, yaml or json (default toml)"`
}

type readInput struct {
	Names []string `json:"names" jsonschema:"variable names to read"`
}

type seriesInput struct {
	Name    string `json:"name"              jsonschema:"a logged variable"`
	Samples int    `json:"samples,omitempty" jsonschema:"number of newest samples (default 20)"`
}

type nameInput struct {
	Name string `json:"name" jsonschema:"variable name"`
}

type moduleInput struct {
	File   string `json:"file"   jsonschema:"module file as declared"`
	Active bool   `json:"active" jsonschema:"whether the module takes part in the next run"`
}

type configureInput struct {
	Mode     string  `json:"mode,omitempty"     jsonschema:"realtime or offline"`
	Step     float64 `json:"step,omitempty"     jsonschema:"step in seconds"`
	Duration float64 `json:"duration,omitempty" jsonschema:"offline run length in seconds"`
	Depth    int     `json:"depth,omitempty"    jsonschema:"log depth exponent, 10 to 20"`
}

type statusOutput struct {
	State      string    `json:"state"`
	Mode       string    `json:"mode"`
	Time       float64   `json:"time"`
	Steps      uint64    `json:"steps"`
	TotalSteps uint64    `json:"total_steps,omitempty"`
	Progress   float64   `json:"progress,omitempty"`
	Runners    int       `json:"runners"`
	StartedAt  time.Time `json:"started_at,omitzero"`
}

type variableOutput struct {
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Unit  string  `json:"unit,omitempty"`
	Init  float64 `json:"init"`
	Value float64 `json:"value"`
}

type moduleOutput struct {
	File      string `json:"file"`
	Arguments string `json:"arguments,omitempty"`
	Active    bool   `json:"active"`
	Loaded    bool   `json:"loaded"`
	Failures  int    `json:"failures,omitempty"`
}

type seriesOutput struct {
	Name   string    `json:"name"`
	Time   []float64 `json:"time"`
	Values []float64 `json:"values"`
}

// addTool registers a handler whose errors become tool errors the client can read.
func addTool[In any](r *Runner, name, description string, h func(context.Context, In) (*mcpsdk.CallToolResult, error)) {
	mcpsdk.AddTool(r.server, &mcpsdk.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, any, error) {
			res, err := h(ctx, in)
			if err != nil {
				r.logger.Debug("Tool failed", "tool", name, "error", err)
				return nil, nil, err
			}
			return res, nil, nil
		})
}

func (r *Runner) registerTools() {
	addTool(r, "status", "Report the lifecycle state and run progress", r.status)
	addTool(r, "start", "Start a run, or resume a paused one", r.lifecycle(r.kernel.Start))
	addTool(r, "stop", "Stop the active run", r.lifecycle(r.kernel.Stop))
	addTool(r, "pause", "Pause the active run", r.lifecycle(r.kernel.Pause))
	addTool(r, "declare", "Replace all declarations with a document, only while idle", r.declare)
	addTool(r, "document", "Render the live declarations as a document", r.document)
	addTool(r, "configure", "Change the run settings and log depth, only while idle", r.configure)
	addTool(r, "variables", "List declared variables with their current values", r.variables)
	addTool(r, "modules", "List declared modules and the runners of the active run", r.modules)
	addTool(r, "read", "Read the current values of variables", r.read)
	addTool(r, "series", "Return the newest logged samples of a variable", r.series)
	addTool(r, "add_log", "Start logging a variable", r.addLog)
	addTool(r, "remove_log", "Stop logging a variable", r.removeLog)
	addTool(r, "set_module_active", "Include or exclude a module from the next run", r.setModuleActive)
	addTool(r, "export", "Save the last run and its logs to the run store", r.export)
}

func textResult(format string, args ...any) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

func jsonResult(v any) (*mcpsdk.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return textResult("%s", data), nil
}

func parseFormat(s string) (loader.Format, error) {
	if s == "" {
		return loader.FormatTOML, nil
	}
	return loader.FormatFromString(s)
}

func (r *Runner) status(context.Context, emptyInput) (*mcpsdk.CallToolResult, error) {
	st := r.kernel.Status()
	return jsonResult(statusOutput{
		State:      st.State.String(),
		Mode:       r.kernel.Settings().Mode.String(),
		Time:       st.Time,
		Steps:      st.Steps,
		TotalSteps: st.TotalSteps,
		Progress:   st.Progress(),
		Runners:    st.Runners,
		StartedAt:  st.StartedAt,
	})
}

func (r *Runner) lifecycle(
	request func(context.Context) error,
) func(context.Context, emptyInput) (*mcpsdk.CallToolResult, error) {
	return func(ctx context.Context, _ emptyInput) (*mcpsdk.CallToolResult, error) {
		if err := request(ctx); err != nil {
			return nil, err
		}
		return textResult("state: %s", r.kernel.State()), nil
	}
}

func (r *Runner) declare(ctx context.Context, in declareInput) (*mcpsdk.CallToolResult, error) {
	format, err := parseFormat(in.Format)
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewConfigFromBytes([]byte(in.Document), format)
	if err != nil {
		return nil, err
	}
	if err := r.kernel.Declare(ctx, cfg); err != nil {
		return nil, err
	}
	return textResult("declared %d variables, %d modules, %d logs",
		len(cfg.Variables), len(cfg.Modules), len(cfg.Logs)), nil
}

func (r *Runner) document(_ context.Context, in formatInput) (*mcpsdk.CallToolResult, error) {
	format, err := parseFormat(in.Format)
	if err != nil {
		return nil, err
	}
	data, err := r.kernel.Document().Marshal(format)
	if err != nil {
		return nil, err
	}
	return textResult("%s", data), nil
}

func (r *Runner) configure(_ context.Context, in configureInput) (*mcpsdk.CallToolResult, error) {
	settings := r.kernel.Settings()
	if in.Mode != "" {
		mode, err := simulator.ParseMode(in.Mode)
		if err != nil {
			return nil, err
		}
		settings.Mode = mode
	}
	if in.Step != 0 {
		settings.Step = in.Step
	}
	if in.Duration != 0 {
		settings.Duration = in.Duration
	}
	depth := in.Depth
	if depth == 0 {
		depth = r.kernel.Document().Simulation.Depth
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := r.kernel.Configure(settings, depth); err != nil {
		return nil, err
	}
	return textResult("mode %s, step %gs, duration %gs, depth %d",
		settings.Mode, settings.Step, settings.Duration, depth), nil
}

func (r *Runner) variables(context.Context, emptyInput) (*mcpsdk.CallToolResult, error) {
	vars := r.kernel.Variables()
	out := make([]variableOutput, 0, len(vars))
	for _, v := range vars {
		value, err := r.kernel.Value(v.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, variableOutput{
			Name: v.Name, Type: v.Type.String(), Unit: v.Unit, Init: v.Init, Value: value,
		})
	}
	return jsonResult(out)
}

func (r *Runner) modules(context.Context, emptyInput) (*mcpsdk.CallToolResult, error) {
	loaded := make(map[string]int)
	for _, info := range r.kernel.Runners() {
		loaded[info.File] = info.Failures
	}

	mods := r.kernel.Modules()
	out := make([]moduleOutput, 0, len(mods))
	for _, m := range mods {
		failures, ok := loaded[m.File]
		out = append(out, moduleOutput{
			File: m.File, Arguments: m.Arguments, Active: m.Active, Loaded: ok, Failures: failures,
		})
	}
	return jsonResult(out)
}

func (r *Runner) read(_ context.Context, in readInput) (*mcpsdk.CallToolResult, error) {
	out := make(map[string]float64, len(in.Names))
	for _, name := range in.Names {
		v, err := r.kernel.Value(name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return jsonResult(out)
}

func (r *Runner) series(_ context.Context, in seriesInput) (*mcpsdk.CallToolResult, error) {
	n := in.Samples
	if n <= 0 {
		n = defaultSamples
	}

	snap := r.kernel.Snapshot()
	values, ok := snap.Series[in.Name]
	if !ok || snap.Time == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSeries, in.Name)
	}
	return jsonResult(seriesOutput{
		Name:   in.Name,
		Time:   snap.Time.Tail(n),
		Values: values.Tail(n),
	})
}

func (r *Runner) addLog(_ context.Context, in nameInput) (*mcpsdk.CallToolResult, error) {
	if err := r.kernel.AddLog(in.Name); err != nil {
		return nil, err
	}
	return textResult("logging %s", in.Name), nil
}

func (r *Runner) removeLog(_ context.Context, in nameInput) (*mcpsdk.CallToolResult, error) {
	if !r.kernel.RemoveLog(in.Name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSeries, in.Name)
	}
	return textResult("stopped logging %s", in.Name), nil
}

func (r *Runner) setModuleActive(_ context.Context, in moduleInput) (*mcpsdk.CallToolResult, error) {
	if err := r.kernel.SetModuleActive(in.File, in.Active); err != nil {
		return nil, err
	}
	return textResult("%s active: %t", variable.Module{File: in.File}.Name(), in.Active), nil
}

func (r *Runner) export(context.Context, emptyInput) (*mcpsdk.CallToolResult, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	meta, err := r.store.Save(storage.Capture(r.kernel))
	if err != nil {
		return nil, err
	}
	return jsonResult(meta)
}
