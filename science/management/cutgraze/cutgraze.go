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

// Package cutgraze removes standing biomass by mowing or grazing. A site
// is managed either by a cutting calendar, where each entry fires at most
// once per year on a date, a biomass threshold or both, or by continuous
// grazing, which removes the herd's daily intake whenever the sward is
// above a grazing threshold.
package cutgraze

import (
	"fmt"
	"math"
	"strings"
)

// Mode is the management applied to a site.
type Mode int

// Management modes.
const (
	None Mode = iota
	Cutting
	Grazing
)

var modeNames = []string{"none", "cutting", "grazing"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	i, err := lookup("management mode", modeNames, string(b))
	*m = Mode(i)
	return err
}

// Trigger selects what makes a cutting calendar entry fire.
type Trigger int

// Cutting triggers.
const (
	ByDate Trigger = iota
	ByBiomass
	ByDateAndBiomass
)

var triggerNames = []string{"date", "biomass", "date+biomass"}

func (t Trigger) String() string {
	if t < 0 || int(t) >= len(triggerNames) {
		return fmt.Sprintf("Trigger(%d)", int(t))
	}
	return triggerNames[t]
}

// MarshalText implements encoding.TextMarshaler.
func (t Trigger) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Trigger) UnmarshalText(b []byte) error {
	i, err := lookup("cutting trigger", triggerNames, string(b))
	*t = Trigger(i)
	return err
}

// Reset selects when the cumulative consumption total is set back to zero.
type Reset int

// Consumption reset policies.
const (
	Never Reset = iota
	Yearly
	PerEvent
)

var resetNames = []string{"never", "yearly", "event"}

func (r Reset) String() string {
	if r < 0 || int(r) >= len(resetNames) {
		return fmt.Sprintf("Reset(%d)", int(r))
	}
	return resetNames[r]
}

// MarshalText implements encoding.TextMarshaler.
func (r Reset) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Reset) UnmarshalText(b []byte) error {
	i, err := lookup("consumption reset", resetNames, string(b))
	*r = Reset(i)
	return err
}

func lookup(kind string, names []string, s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("cutgraze: invalid %s %q; valid values are %s", kind, s, strings.Join(names, ", "))
}

// MaxCuts is the maximum number of entries in a cutting calendar.
const MaxCuts = 64

// Cut is one entry of a cutting calendar.
type Cut struct {
	Day       int     `toml:"day"`       // day of year on or after which the cut may fire
	Threshold float64 `toml:"threshold"` // standing biomass above which the cut may fire [kg DM/ha]
	Fraction  float64 `toml:"fraction"`  // fraction of standing biomass removed [-]
	Residual  float64 `toml:"residual"`  // biomass left after the cut [kg DM/ha]
}

// GrazingPlan describes continuous grazing.
type GrazingPlan struct {
	Threshold    float64 `toml:"threshold"`     // biomass above which animals graze [kg DM/ha]
	StockingRate float64 `toml:"stocking_rate"` // [livestock units/ha]
	Intake       float64 `toml:"intake"`        // daily intake per livestock unit [kg DM/LU/day]
	Residual     float64 `toml:"residual"`      // biomass never grazed [kg DM/ha]
}

// Plan is the management of one site.
type Plan struct {
	Mode             Mode        `toml:"mode"`
	Trigger          Trigger     `toml:"trigger"`
	Cuts             []Cut       `toml:"cuts"`
	Grazing          GrazingPlan `toml:"grazing"`
	ConsumptionReset Reset       `toml:"consumption_reset"`
}

// Validate returns a description of each inconsistency in the plan.
// maxBiomass is the largest standing biomass the site can carry; no
// residual may exceed it.
func (p Plan) Validate(maxBiomass float64) []string {
	var problems []string
	add := func(format string, a ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, a...))
	}
	if p.ConsumptionReset < Never || p.ConsumptionReset > PerEvent {
		add("invalid consumption reset %v", p.ConsumptionReset)
	}
	switch p.Mode {
	case None:
	case Cutting:
		if p.Trigger < ByDate || p.Trigger > ByDateAndBiomass {
			add("invalid cutting trigger %v", p.Trigger)
		}
		if len(p.Cuts) == 0 {
			add("cutting mode requires at least one cut")
		}
		if len(p.Cuts) > MaxCuts {
			add("%d cuts exceeds the maximum of %d", len(p.Cuts), MaxCuts)
		}
		usesDate := p.Trigger == ByDate || p.Trigger == ByDateAndBiomass
		usesBiomass := p.Trigger == ByBiomass || p.Trigger == ByDateAndBiomass
		for i, c := range p.Cuts {
			if c.Fraction <= 0 || c.Fraction > 1 {
				add("cut %d: fraction %g must be in (0, 1]", i, c.Fraction)
			}
			if c.Residual < 0 || c.Residual > maxBiomass {
				add("cut %d: residual %g must be in [0, %g]", i, c.Residual, maxBiomass)
			}
			if usesDate {
				if c.Day < 1 || c.Day > 366 {
					add("cut %d: day %d must be in [1, 366]", i, c.Day)
				}
				if i > 0 && c.Day <= p.Cuts[i-1].Day {
					add("cut %d: day %d is not after the previous cut (day %d)", i, c.Day, p.Cuts[i-1].Day)
				}
			}
			if usesBiomass && c.Threshold < c.Residual {
				add("cut %d: threshold %g is below the residual %g", i, c.Threshold, c.Residual)
			}
		}
	case Grazing:
		g := p.Grazing
		if g.StockingRate < 0 {
			add("negative stocking rate %g", g.StockingRate)
		}
		if g.Intake < 0 {
			add("negative intake %g", g.Intake)
		}
		if g.Residual < 0 || g.Residual > maxBiomass {
			add("grazing residual %g must be in [0, %g]", g.Residual, maxBiomass)
		}
		if g.Threshold < g.Residual {
			add("grazing threshold %g is below the residual %g", g.Threshold, g.Residual)
		}
	default:
		add("invalid management mode %v", p.Mode)
	}
	return problems
}

// Event is the outcome of evaluating the plan on one day.
type Event struct {
	// Fired reports whether a cut or grazing took place.
	Fired bool

	// Cut is the index of the calendar entry that fired, or -1.
	Cut int

	// Removed is the biomass taken off the sward [kg DM/ha].
	Removed float64
}

// Evaluate decides the day's defoliation for day of year doy and standing
// biomass bm. done is a bit set of the calendar entries that have already
// fired this year. At most one calendar entry fires per day: the first one,
// in calendar order, whose trigger is met.
func Evaluate(p Plan, doy int, bm float64, done uint64) Event {
	none := Event{Cut: -1}
	switch p.Mode {
	case Cutting:
		for i, c := range p.Cuts {
			if i >= MaxCuts {
				break
			}
			if done&(1<<uint(i)) != 0 {
				continue
			}
			var ok bool
			switch p.Trigger {
			case ByDate:
				ok = doy >= c.Day
			case ByBiomass:
				ok = bm > c.Threshold
			case ByDateAndBiomass:
				ok = doy >= c.Day && bm > c.Threshold
			}
			if !ok {
				if p.Trigger == ByBiomass {
					// Later entries wait for earlier ones.
					return none
				}
				continue
			}
			return Event{Fired: true, Cut: i, Removed: removal(c.Fraction*bm, bm, c.Residual)}
		}
		return none
	case Grazing:
		g := p.Grazing
		if bm <= g.Threshold {
			return none
		}
		return Event{Fired: true, Cut: -1, Removed: removal(g.StockingRate*g.Intake, bm, g.Residual)}
	default:
		return none
	}
}

// Elapsed returns the bit set of the date-triggered calendar entries whose
// day is before doy.
func Elapsed(p Plan, doy int) uint64 {
	if p.Mode != Cutting || p.Trigger == ByBiomass {
		return 0
	}
	var done uint64
	for i, c := range p.Cuts {
		if i >= MaxCuts {
			break
		}
		if c.Day < doy {
			done |= 1 << uint(i)
		}
	}
	return done
}

// removal limits the requested removal so that at least residual remains.
func removal(requested, bm, residual float64) float64 {
	return math.Max(0, math.Min(requested, bm-residual))
}

// Remove takes amount off the pools in proportion to their size and
// returns the remaining pools.
func Remove(pools [4]float64, amount float64) [4]float64 {
	var total float64
	for _, v := range pools {
		total += v
	}
	if total <= 0 || amount <= 0 {
		return pools
	}
	keep := 1 - math.Min(amount/total, 1)
	for i := range pools {
		pools[i] *= keep
	}
	return pools
}
