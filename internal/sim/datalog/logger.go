// Package datalog records time-synchronized histories of selected variables.
//
// Every log entry owns a ring buffer of the same depth as the shared time axis.
// Samples are taken in SyncLog under the store lock so one call captures a
// consistent cross-variable snapshot.
package datalog

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/atlanticdynamic/simkernel/internal/sim/store"
	"github.com/atlanticdynamic/simkernel/internal/sim/timeseries"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

const (
	DefaultDepth = timeseries.MinDepth
	DefaultStep  = 0.01
)

// VariableLookup resolves variable declarations, usually the registry.
type VariableLookup interface {
	Variable(name string) (variable.Variable, bool)
}

type entry struct {
	name   string
	value  store.Value
	series *timeseries.Series
}

// Logger owns the log entries and the shared time axis.
type Logger struct {
	mu sync.Mutex

	store  *store.Store
	lookup VariableLookup

	depth        int
	step         float64
	pendingDepth int
	pendingStep  float64
	maxSamples   int

	time    *timeseries.Series
	entries []*entry

	logger *slog.Logger
}

// New creates a Logger sampling st. lookup provides initial values when series
// are re-initialized.
func New(st *store.Store, lookup VariableLookup, opts ...Option) *Logger {
	l := &Logger{
		store:  st,
		lookup: lookup,
		depth:  DefaultDepth,
		step:   DefaultStep,
		logger: slog.Default().WithGroup("datalog.Logger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.pendingDepth = l.depth
	l.pendingStep = l.step
	return l
}

// Depth returns the depth currently applied to the series.
func (l *Logger) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth
}

// Step returns the time step currently applied to the time axis prefill.
func (l *Logger) Step() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.step
}

// AddLog starts logging name. The first successful call creates the time axis,
// prefilled with negative timestamps spaced by the configured step.
func (l *Logger) AddLog(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.index(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateLog, name)
	}
	if _, ok := l.lookup.Variable(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	value, err := l.store.Read(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownVariable, err)
	}

	size := 1 << timeseries.ClampDepth(l.depth)
	needed := size
	if l.time == nil {
		needed += size
	}
	if !l.withinBudget(l.samples() + needed) {
		return fmt.Errorf("%w: %s needs %d samples", ErrSampleBudget, name, needed)
	}

	current, _ := value.Get()
	series, err := timeseries.New(l.depth, current)
	if err != nil {
		return err
	}

	if l.time == nil {
		axis, err := l.newTimeAxis()
		if err != nil {
			return err
		}
		l.time = axis
	}

	l.entries = append(l.entries, &entry{name: name, value: value, series: series})
	l.logger.Debug("Log added", "name", name, "depth", series.Depth())
	return nil
}

// RemoveLog stops logging name. The time axis is kept.
func (l *Logger) RemoveLog(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(name)
	if i < 0 {
		return false
	}
	l.entries = slices.Delete(l.entries, i, i+1)
	l.logger.Debug("Log removed", "name", name)
	return true
}

// Clear drops every log entry and releases the time axis.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.time = nil
}

// SyncLog appends t to the time axis and the current value of every logged
// variable to its series, holding the store lock for the whole pass.
func (l *Logger) SyncLog(t float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.time == nil {
		return
	}

	l.store.Lock()
	defer l.store.Unlock()

	l.time.Append(t)
	for _, e := range l.entries {
		v, ok := e.value.GetAsync()
		if !ok {
			v = math.NaN()
		}
		e.series.Append(v)
	}
}

// LogSeries returns a snapshot of the series for name.
func (l *Logger) LogSeries(name string) (*timeseries.Series, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(name)
	if i < 0 {
		return nil, false
	}
	return l.entries[i].series.Clone(), true
}

// LogTime returns a snapshot of the time axis. It is false before the first log is added.
func (l *Logger) LogTime() (*timeseries.Series, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.time == nil {
		return nil, false
	}
	return l.time.Clone(), true
}

// Names returns the logged variable names in the order they were added.
func (l *Logger) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, len(l.entries))
	for i, e := range l.entries {
		names[i] = e.name
	}
	return names
}

// Snapshot is a consistent copy of the time axis and every logged series.
type Snapshot struct {
	Time   *timeseries.Series
	Names  []string
	Series map[string]*timeseries.Series
}

// Snapshot copies the time axis and all series in one critical section.
func (l *Logger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{Series: make(map[string]*timeseries.Series, len(l.entries))}
	if l.time != nil {
		snap.Time = l.time.Clone()
	}
	for _, e := range l.entries {
		snap.Names = append(snap.Names, e.name)
		snap.Series[e.name] = e.series.Clone()
	}
	return snap
}

// Configure records the depth and step to apply when the simulation next
// leaves Idle. Non-positive steps are ignored.
func (l *Logger) Configure(depth int, step float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pendingDepth = timeseries.ClampDepth(depth)
	if step > 0 {
		l.pendingStep = step
	}
}

// Reconfigure applies pending settings. If the depth or step changed, every
// series is re-initialized to the new depth seeded with its variable's initial
// value. Series that fail to re-initialize are dropped, and the time axis is
// released when none remain.
func (l *Logger) Reconfigure() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pendingDepth == l.depth && l.pendingStep == l.step {
		return
	}
	l.depth = l.pendingDepth
	l.step = l.pendingStep

	if l.time == nil && len(l.entries) == 0 {
		return
	}

	size := 1 << l.depth
	used := size
	kept := l.entries[:0]
	for _, e := range l.entries {
		seed := 0.0
		if v, ok := l.lookup.Variable(e.name); ok {
			seed = v.Init
		}
		if !l.withinBudget(used+size) || !e.series.Initialize(l.depth, seed) {
			l.logger.Warn("Dropping log after depth change", "name", e.name, "depth", l.depth)
			continue
		}
		used += size
		kept = append(kept, e)
	}
	clear(l.entries[len(kept):])
	l.entries = kept

	if len(l.entries) == 0 {
		l.time = nil
		l.logger.Debug("No logs left, released time axis")
		return
	}

	axis, err := l.newTimeAxis()
	if err != nil {
		l.logger.Error("Failed to re-initialize time axis", "error", err)
		l.entries = nil
		l.time = nil
		return
	}
	l.time = axis
	l.logger.Debug("Logs re-initialized", "depth", l.depth, "step", l.step, "logs", len(l.entries))
}

// newTimeAxis allocates a time axis whose samples read -size*step ... -step.
func (l *Logger) newTimeAxis() (*timeseries.Series, error) {
	axis, err := timeseries.New(l.depth, 0)
	if err != nil {
		return nil, err
	}
	size := axis.Size()
	for i := range size {
		axis.Append(-float64(size-i) * l.step)
	}
	return axis, nil
}

func (l *Logger) samples() int {
	n := 0
	if l.time != nil {
		n += l.time.Size()
	}
	for _, e := range l.entries {
		n += e.series.Size()
	}
	return n
}

// Fits checks that logging n variables at depth, time axis included, stays
// within the sample budget.
func (l *Logger) Fits(depth, n int) error {
	if n == 0 {
		return nil
	}
	needed := (n + 1) << timeseries.ClampDepth(depth)
	if !l.withinBudget(needed) {
		return fmt.Errorf("%w: %d logs at depth %d need %d samples", ErrSampleBudget, n, depth, needed)
	}
	return nil
}

func (l *Logger) withinBudget(samples int) bool {
	return l.maxSamples <= 0 || samples <= l.maxSamples
}

func (l *Logger) index(name string) int {
	return slices.IndexFunc(l.entries, func(e *entry) bool { return e.name == name })
}
