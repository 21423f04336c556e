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
	"github.com/climag/modvege/science/growth/jouvengrowth"
	"github.com/climag/modvege/science/management/cutgraze"
	"github.com/climag/modvege/science/quality/omd"
	"github.com/climag/modvege/science/senescence/jouvensen"
	"github.com/climag/modvege/science/water/bucket"
)

// Day holds the working values of one simulated day. The Engine creates a
// Day from a copy of the site's state, runs each DayManipulator on it in
// order and commits State back to the site only if no process rejected
// the day.
type Day struct {
	Index   int
	Forcing DailyForcing
	State   State
	Out     DailyOutput

	Diagnostics Diagnostics

	stress float64 // water stress factor
	growth jouvengrowth.Result
	err    *ForcingDataError
}

// reject marks the day as invalid.
func (d *Day) reject(field string, value float64, reason string) {
	d.err = &ForcingDataError{Day: d.Index, Time: d.Forcing.Time, Field: field, Value: value, Reason: reason}
}

// DayManipulator is a process that updates one day of a site.
type DayManipulator func(d *Day)

// DefaultProcesses returns the daily process chain in its fixed order:
// water balance, growth, senescence and abscission, defoliation, then
// digestibility of the remaining sward.
func DefaultProcesses(p *SiteParameters) []DayManipulator {
	return []DayManipulator{
		WaterBalance(p),
		Growth(p),
		Senescence(p),
		Defoliation(p),
		Digestibility(p),
	}
}

// WaterBalance returns a process that updates the soil water reserve and
// sets the day's water stress factor.
func WaterBalance(p *SiteParameters) DayManipulator {
	wp := p.water()
	return func(d *Day) {
		r, err := bucket.Update(wp, d.State.WR, d.Forcing.PP, d.Forcing.PET)
		if err != nil {
			field, value := "PP", d.Forcing.PP
			if d.Forcing.PP >= 0 {
				field, value = "PET", d.Forcing.PET
			}
			d.reject(field, value, err.Error())
			return
		}
		d.Diagnostics.add("water", r.Clamped)
		d.State.WR = r.Reserve
		d.stress = r.Stress
		d.Out.AET = r.AET
		d.Out.WS = r.Stress
	}
}

// Growth returns a process that calculates the day's potential and actual
// growth and advances the growing degree day sum.
func Growth(p *SiteParameters) DayManipulator {
	gp := p.growth()
	return func(d *Day) {
		g := jouvengrowth.Grow(gp, d.Forcing.T, d.Forcing.PAR, d.stress, d.State.ST, d.State.GV)
		d.Diagnostics.add("growth", g.Clamped)
		d.growth = g
		d.Out.GRO, d.Out.PGRO = g.GRO, g.PGRO
		d.State.ST, d.Out.CycleEnd = jouvengrowth.DegreeDays(gp, d.State.ST, d.Forcing.T)
	}
}

// Senescence returns a process that adds the day's growth to the green
// compartments, moves senescent tissue to the dead compartments and
// removes abscised dead tissue.
func Senescence(p *SiteParameters) DayManipulator {
	sp := p.senescence()
	return func(d *Day) {
		s := &d.State
		pools := jouvensen.Pools{
			GV: s.GV, GR: s.GR, DV: s.DV, DR: s.DR,
			AgeGV: s.AgeGV, AgeGR: s.AgeGR, AgeDV: s.AgeDV, AgeDR: s.AgeDR,
		}
		next, f, clamped := jouvensen.Update(sp, pools, d.growth.GV, d.growth.GR, d.Forcing.T)
		d.Diagnostics.add("senescence", clamped)
		s.GV, s.GR, s.DV, s.DR = next.GV, next.GR, next.DV, next.DR
		s.AgeGV, s.AgeGR, s.AgeDV, s.AgeDR = next.AgeGV, next.AgeGR, next.AgeDV, next.AgeDR
		d.Out.SenAbs = f.Senescence() + f.Abscission()
		d.Out.ABS = f.Abscission()
		d.Out.Respiration = f.Respiration()
	}
}

// Defoliation returns a process that applies the site's cutting calendar
// or grazing. A cut restarts the growing degree day sum.
func Defoliation(p *SiteParameters) DayManipulator {
	plan := p.Management
	return func(d *Day) {
		s := &d.State
		e := cutgraze.Evaluate(plan, d.Forcing.Time.YearDay(), s.Biomass(), s.CutsDone)
		if !e.Fired {
			return
		}
		if e.Cut >= 0 {
			s.CutsDone |= 1 << uint(e.Cut)
			s.ST = 0
		}
		if plan.ConsumptionReset == cutgraze.PerEvent {
			s.CBM = 0
		}
		pools := cutgraze.Remove([4]float64{s.GV, s.GR, s.DV, s.DR}, e.Removed)
		s.GV, s.GR, s.DV, s.DR = pools[0], pools[1], pools[2], pools[3]
		s.CBM += e.Removed
		s.CBMAll += e.Removed
		d.Out.Removed = e.Removed
	}
}

// Digestibility returns a process that estimates the digestibility of
// the standing biomass at the end of the day.
func Digestibility(p *SiteParameters) DayManipulator {
	op := p.digestibility()
	return func(d *Day) {
		s := &d.State
		d.Out.OMD = omd.Sward(op, s.GV, s.GR, s.DV, s.DR, s.AgeGV, s.AgeGR)
	}
}

// newYear resets the yearly counters when d falls in a different
// calendar year than the site's previous day. On the first day of a run
// the calendar entries dated earlier in the year are marked as done; only
// entries missed during a run, because their day was invalid, fire late.
func newYear(d *Day, plan cutgraze.Plan) {
	y := d.Forcing.Time.Year()
	if d.State.Year == y {
		return
	}
	d.State.ST = 0
	d.State.CutsDone = 0
	if d.State.Year == 0 {
		d.State.CutsDone = cutgraze.Elapsed(plan, d.Forcing.Time.YearDay())
	}
	if plan.ConsumptionReset == cutgraze.Yearly {
		d.State.CBM = 0
	}
}
