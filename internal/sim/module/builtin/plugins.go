package builtin

import (
	"context"
	"fmt"
	"math"

	"github.com/urfave/cli/v3"

	"github.com/atlanticdynamic/simkernel/internal/sim/module"
	"github.com/atlanticdynamic/simkernel/internal/sim/store"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

func withName(name string, argv []string) []string {
	if len(argv) == 0 {
		return []string{name}
	}
	return argv
}

// Integrator accumulates gain*rate*dt into a double state variable. Without a
// rate variable the rate is 1, so the state tracks elapsed time.
//
//	--state x    InputOutput double (default "x")
//	--rate u     Input double, optional
//	--gain k     constant factor (default 1)
type Integrator struct {
	base
	state  float64
	rate   float64
	gain   float64
	byRate bool
}

func (p *Integrator) Init(ctx context.Context, argv []string) error {
	cmd, err := parseArgs(ctx, withName("integrator", argv),
		&cli.StringFlag{Name: "state", Value: "x"},
		&cli.StringFlag{Name: "rate"},
		&cli.FloatFlag{Name: "gain", Value: 1},
	)
	if err != nil {
		return err
	}
	p.gain = cmd.Float("gain")
	p.rate = 1

	_ = p.host.Use(cmd.String("state"), variable.TypeDouble, store.Ref(&p.state), variable.InputOutput)
	if rate := cmd.String("rate"); rate != "" {
		p.byRate = p.host.Use(rate, variable.TypeDouble, store.Ref(&p.rate), variable.Input) == nil
	}
	return nil
}

func (p *Integrator) Start(context.Context) error {
	p.host.Print(module.LevelText, fmt.Sprintf("integrating from %g", p.state))
	return nil
}

func (p *Integrator) Step(_ context.Context, dt float64) error {
	p.state += p.gain * p.rate * dt
	return nil
}

// Sine writes offset + amplitude*sin(2*pi*frequency*t) to a double output,
// where t is the plugin's own elapsed time.
//
//	--out y, --amplitude 1, --frequency 1, --offset 0
type Sine struct {
	base
	out       float64
	elapsed   float64
	amplitude float64
	frequency float64
	offset    float64
}

func (p *Sine) Init(ctx context.Context, argv []string) error {
	cmd, err := parseArgs(ctx, withName("sine", argv),
		&cli.StringFlag{Name: "out", Value: "y"},
		&cli.FloatFlag{Name: "amplitude", Value: 1},
		&cli.FloatFlag{Name: "frequency", Value: 1},
		&cli.FloatFlag{Name: "offset"},
	)
	if err != nil {
		return err
	}
	p.amplitude = cmd.Float("amplitude")
	p.frequency = cmd.Float("frequency")
	p.offset = cmd.Float("offset")
	p.elapsed = 0

	_ = p.host.Use(cmd.String("out"), variable.TypeDouble, store.Ref(&p.out), variable.Output)
	return nil
}

func (p *Sine) Start(context.Context) error {
	p.elapsed = 0
	p.out = p.value()
	return nil
}

func (p *Sine) Step(_ context.Context, dt float64) error {
	p.elapsed += dt
	p.out = p.value()
	return nil
}

func (p *Sine) value() float64 {
	return p.offset + p.amplitude*math.Sin(2*math.Pi*p.frequency*p.elapsed)
}

// Gain writes k times its input to its output.
//
//	--in u, --out y, --k 1
type Gain struct {
	base
	in  float64
	out float64
	k   float64
}

func (p *Gain) Init(ctx context.Context, argv []string) error {
	cmd, err := parseArgs(ctx, withName("gain", argv),
		&cli.StringFlag{Name: "in", Value: "u"},
		&cli.StringFlag{Name: "out", Value: "y"},
		&cli.FloatFlag{Name: "k", Value: 1},
	)
	if err != nil {
		return err
	}
	p.k = cmd.Float("k")

	_ = p.host.Use(cmd.String("in"), variable.TypeDouble, store.Ref(&p.in), variable.Input)
	_ = p.host.Use(cmd.String("out"), variable.TypeDouble, store.Ref(&p.out), variable.Output)
	return nil
}

func (p *Gain) Step(context.Context, float64) error {
	p.out = p.k * p.in
	return nil
}

// Counter counts steps into a uint32 output. Once the count reaches --limit it
// stops counting and mutes the output until Stop.
//
//	--out n, --limit 0 (no limit)
type Counter struct {
	base
	count uint32
	limit uint32
	muted bool
}

func (p *Counter) Init(ctx context.Context, argv []string) error {
	cmd, err := parseArgs(ctx, withName("counter", argv),
		&cli.StringFlag{Name: "out", Value: "n"},
		&cli.UintFlag{Name: "limit"},
	)
	if err != nil {
		return err
	}
	p.limit = uint32(cmd.Uint("limit"))
	p.count = 0
	p.muted = false

	_ = p.host.Use(cmd.String("out"), variable.TypeUint32, store.Ref(&p.count), variable.Output)
	return nil
}

func (p *Counter) Step(context.Context, float64) error {
	if p.muted {
		return nil
	}
	if p.limit > 0 && p.count >= p.limit {
		p.muted = true
		p.host.Print(module.LevelWarning, fmt.Sprintf("limit %d reached", p.limit))
		return p.host.Off(&p.count)
	}
	p.count++
	return nil
}

func (p *Counter) Stop(context.Context) error {
	if p.muted {
		return p.host.On(&p.count)
	}
	return nil
}
