/*
Copyright © 2022 the ModVege authors.
This file is part of ModVege.

ModVege is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ModVege is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ModVege.  If not, see <http://www.gnu.org/licenses/>.
*/

package modvege

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Engine simulates one site. An Engine holds no site state of its own, but
// the State and Simulation values it works on must not be shared between
// goroutines.
type Engine struct {
	Params *SiteParameters

	// Processes is the daily process chain, run in order.
	Processes []DayManipulator

	// SpinUpPasses is the maximum number of times the first year of
	// forcing is replayed when no initial state is given. Values below
	// one mean a single pass.
	SpinUpPasses int

	// SpinUpTolerance, if > 0, ends the spin-up early once a pass changes
	// the state by less than this relative amount.
	SpinUpTolerance float64

	Log logrus.FieldLogger
}

// NewEngine returns an Engine running the default processes for a site
// with parameters p. It returns a *ConfigurationError if p is invalid.
// If log is nil, the standard logger is used.
func NewEngine(p *SiteParameters, log logrus.FieldLogger) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		Params:       p,
		Processes:    DefaultProcesses(p),
		SpinUpPasses: 1,
		Log:          log,
	}, nil
}

// Step simulates day i with forcing f, updating s. Either all processes
// complete and their result is committed to s, or the day is rejected and
// s is left unchanged; the returned output is marked invalid in that case.
// Clamps are counted in diag, which may be nil.
func (e *Engine) Step(s *State, f DailyForcing, i int, diag Diagnostics) DailyOutput {
	if err := f.Check(i); err != nil {
		return invalid(s, f, err.(*ForcingDataError))
	}
	d := Day{Index: i, Forcing: f, State: *s, Diagnostics: diag}
	d.Out.Time = f.Time
	newYear(&d, e.Params.Management)
	for _, p := range e.Processes {
		p(&d)
		if d.err != nil {
			return invalid(s, f, d.err)
		}
	}
	d.State.Year = f.Time.Year()
	*s = d.State
	d.Out.Valid = true
	d.Out.fill(s)
	return d.Out
}

func invalid(s *State, f DailyForcing, err *ForcingDataError) DailyOutput {
	o := DailyOutput{Time: f.Time, Err: err}
	o.fill(s)
	return o
}

// SpinUpResult describes a completed spin-up.
type SpinUpResult struct {
	Passes int     // number of passes run
	Days   int     // days per pass
	Change float64 // relative state change during the last pass
}

// SpinUpDays returns the number of records in the first year of forcing:
// 365 or 366, or all of them if forcing is shorter than a year.
func SpinUpDays(forcing []DailyForcing) int {
	if len(forcing) == 0 {
		return 0
	}
	end := forcing[0].Time.AddDate(1, 0, 0)
	for i, f := range forcing {
		if !f.Time.Before(end) {
			return i
		}
	}
	return len(forcing)
}

// SpinUp replays the first year of forcing starting from s and returns the
// state reached, with its outputs discarded. Each pass starts a new
// management year; the returned state has its consumption totals cleared
// so that the recorded run starts from zero. If ctx is cancelled, s is
// returned unchanged with the context's error.
func (e *Engine) SpinUp(ctx context.Context, forcing []DailyForcing, s State) (State, SpinUpResult, error) {
	n := SpinUpDays(forcing)
	passes := e.SpinUpPasses
	if passes < 1 {
		passes = 1
	}
	res := SpinUpResult{Days: n}
	cur := s
	for pass := 0; pass < passes; pass++ {
		prev := cur
		cur.Year = 0
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return s, res, err
			}
			e.Step(&cur, forcing[i], i, nil)
		}
		res.Passes++
		res.Change = StateDistance(prev, cur)
		e.Log.WithFields(logrus.Fields{
			"pass":   res.Passes,
			"days":   n,
			"change": res.Change,
		}).Debug("spin-up pass complete")
		if e.SpinUpTolerance > 0 && res.Change < e.SpinUpTolerance {
			break
		}
	}
	cur.Year = 0
	cur.CutsDone = 0
	cur.CBM = 0
	cur.CBMAll = 0
	return cur, res, nil
}

// Simulation is a lazy, restartable sequence of daily outputs for one
// site. It is created by Engine.Simulate and advanced by Next.
type Simulation struct {
	engine  *Engine
	forcing []DailyForcing
	initial *State

	start   State // state at the beginning of the recorded run
	state   State
	phase   Phase
	day     int
	summary Summary
}

// Simulate prepares a simulation of forcing. If initial is nil, the
// simulation starts from DefaultState after a spin-up; otherwise it starts
// from a copy of *initial without spin-up. The forcing sequence must be
// chronological and gap-free; it is not modified.
func (e *Engine) Simulate(forcing []DailyForcing, initial *State) (*Simulation, error) {
	if err := CheckSequence(forcing); err != nil {
		return nil, err
	}
	sim := &Simulation{engine: e, forcing: forcing}
	if initial != nil {
		if err := initial.Validate(e.Params); err != nil {
			return nil, err
		}
		s := *initial
		sim.initial = &s
	}
	sim.Reset()
	return sim, nil
}

// Phase returns the simulation's lifecycle phase.
func (sim *Simulation) Phase() Phase { return sim.phase }

// State returns the current state of the site.
func (sim *Simulation) State() State { return sim.state }

// Summary returns a summary of the days simulated so far.
func (sim *Simulation) Summary() *Summary {
	s := sim.summary
	return &s
}

// Reset rewinds the simulation to its first recorded day. A spin-up that
// has already run is not repeated.
func (sim *Simulation) Reset() {
	spun := sim.phase != Uninitialized && sim.phase != SpinningUp
	sim.day = 0
	sim.summary = Summary{Diagnostics: make(Diagnostics), SpinUp: sim.summary.SpinUp}
	if spun {
		sim.state = sim.start
		sim.phase = Running
		return
	}
	sim.phase = Uninitialized
}

func (sim *Simulation) begin(ctx context.Context) error {
	e := sim.engine
	if sim.initial != nil {
		sim.start = *sim.initial
	} else {
		sim.phase = SpinningUp
		s, res, err := e.SpinUp(ctx, sim.forcing, DefaultState(e.Params))
		if err != nil {
			sim.phase = Uninitialized
			return err
		}
		sim.start = s
		sim.summary.SpinUp = res
		e.Log.WithFields(logrus.Fields{
			"passes": res.Passes,
			"days":   res.Days,
			"change": res.Change,
		}).Info("spin-up complete")
	}
	sim.state = sim.start
	sim.phase = Running
	return nil
}

// Next simulates the next day and returns its output. It returns io.EOF
// after the last day. Cancellation of ctx is checked before each day, so
// a cancelled simulation stops between days with its state consistent.
func (sim *Simulation) Next(ctx context.Context) (DailyOutput, error) {
	if err := ctx.Err(); err != nil {
		return DailyOutput{}, err
	}
	if sim.phase == Uninitialized {
		if err := sim.begin(ctx); err != nil {
			return DailyOutput{}, err
		}
	}
	if sim.day >= len(sim.forcing) {
		sim.phase = Complete
		return DailyOutput{}, io.EOF
	}
	o := sim.engine.Step(&sim.state, sim.forcing[sim.day], sim.day, sim.summary.Diagnostics)
	sim.summary.record(&o)
	if !o.Valid {
		sim.engine.Log.WithFields(logrus.Fields{
			"day":   sim.day,
			"date":  o.Time.Format("2006-01-02"),
			"field": o.Err.Field,
		}).Debug(o.Err.Reason)
	}
	sim.day++
	return o, nil
}

// Run simulates the whole forcing sequence and returns one output per
// day. See Simulate for the meaning of initial. If ctx is cancelled, the
// outputs completed so far are returned together with the context's error.
func (e *Engine) Run(ctx context.Context, forcing []DailyForcing, initial *State) ([]DailyOutput, *Summary, error) {
	start := time.Now()
	sim, err := e.Simulate(forcing, initial)
	if err != nil {
		return nil, nil, err
	}
	out, sum, err := collect(ctx, sim, len(forcing))
	if err != nil {
		return out, sum, err
	}
	e.Log.WithFields(logrus.Fields{
		"days":        sum.Days,
		"invalidDays": sum.InvalidDays,
		"clamps":      sum.Diagnostics.Total(),
		"duration":    time.Since(start),
	}).Debug("site simulation complete")
	return out, sum, nil
}
