package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/atlanticdynamic/simkernel/internal/sim/simulator"
)

// runProgress shows an offline run as a bar over its total steps and a real
// time run as a spinner with the logical time.
type runProgress struct {
	bar   *progressbar.ProgressBar
	total uint64
}

func newRunProgress(w io.Writer, settings simulator.Settings, enabled bool) *runProgress {
	if !enabled {
		return &runProgress{}
	}

	total := settings.TotalSteps()
	limit := int64(total)
	if settings.Mode != simulator.Offline {
		limit = -1
	}
	bar := progressbar.NewOptions64(limit,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(settings.Mode.String()),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &runProgress{bar: bar, total: total}
}

func (p *runProgress) update(st simulator.Status) {
	if p.bar == nil {
		return
	}
	if p.total == 0 {
		p.bar.Describe(fmt.Sprintf("t=%.3fs", st.Time))
	}
	_ = p.bar.Set64(int64(st.Steps))
}

func (p *runProgress) finish(st simulator.Status) {
	if p.bar == nil {
		return
	}
	p.update(st)
	_ = p.bar.Finish()
}
