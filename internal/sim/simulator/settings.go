package simulator

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Mode selects how steps are paced.
type Mode int

const (
	// Realtime paces one step per step interval of wall clock time.
	Realtime Mode = iota
	// Offline runs a fixed number of steps as fast as possible.
	Offline
)

func (m Mode) String() string {
	if m == Offline {
		return "offline"
	}
	return "realtime"
}

// ParseMode accepts "realtime" and "offline", case insensitive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "realtime", "real-time", "":
		return Realtime, nil
	case "offline":
		return Offline, nil
	default:
		return Realtime, fmt.Errorf("%w: unknown mode %q", ErrInvalidSettings, s)
	}
}

// Settings are the run parameters, in seconds.
type Settings struct {
	Mode     Mode
	Step     float64
	Duration float64
}

// DefaultSettings steps every 10ms in real time.
func DefaultSettings() Settings {
	return Settings{Mode: Realtime, Step: 0.01}
}

// StepMillis is the step rounded to whole milliseconds.
func (s Settings) StepMillis() int64 {
	return int64(math.Round(s.Step * 1000))
}

// TotalSteps is the offline step count, durationMs / stepMs. It is 0 in real time.
func (s Settings) TotalSteps() uint64 {
	if s.Mode != Offline {
		return 0
	}
	stepMs := s.StepMillis()
	if stepMs <= 0 {
		return 0
	}
	return uint64(int64(math.Round(s.Duration*1000)) / stepMs)
}

// Interval is the real-time tick period.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.StepMillis()) * time.Millisecond
}

// TimeAt is the logical time after n steps. It is computed from the step count
// so rounding does not accumulate.
func (s Settings) TimeAt(n uint64) float64 {
	return float64(n) * float64(s.StepMillis()) / 1000
}

// Validate checks the step and, offline, the duration.
func (s Settings) Validate() error {
	var errs []error
	if s.Mode != Realtime && s.Mode != Offline {
		errs = append(errs, fmt.Errorf("%w: mode %d", ErrInvalidSettings, s.Mode))
	}
	if s.StepMillis() < 1 {
		errs = append(errs, fmt.Errorf("%w: step %gs is below one millisecond", ErrInvalidSettings, s.Step))
	}
	if s.Mode == Offline && s.Duration <= 0 {
		errs = append(errs, fmt.Errorf("%w: offline runs need a positive duration", ErrInvalidSettings))
	}
	return errors.Join(errs...)
}
