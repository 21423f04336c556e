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
	"fmt"
	"math"
)

// State is the state of one site carried from day to day. It is a plain
// value: copying it snapshots the site.
type State struct {
	GV float64 `json:"gv" desc:"Green vegetative biomass" units:"kg DM/ha"`
	GR float64 `json:"gr" desc:"Green reproductive biomass" units:"kg DM/ha"`
	DV float64 `json:"dv" desc:"Dead vegetative biomass" units:"kg DM/ha"`
	DR float64 `json:"dr" desc:"Dead reproductive biomass" units:"kg DM/ha"`

	AgeGV float64 `json:"age_gv" desc:"Age of green vegetative biomass" units:"°C d"`
	AgeGR float64 `json:"age_gr" desc:"Age of green reproductive biomass" units:"°C d"`
	AgeDV float64 `json:"age_dv" desc:"Age of dead vegetative biomass" units:"°C d"`
	AgeDR float64 `json:"age_dr" desc:"Age of dead reproductive biomass" units:"°C d"`

	WR float64 `json:"wr" desc:"Soil water reserve" units:"mm"`
	ST float64 `json:"st" desc:"Growing degree day sum since the last reset" units:"°C d"`

	CBM    float64 `json:"c_bm" desc:"Cumulative consumed or harvested biomass since the last reset" units:"kg DM/ha"`
	CBMAll float64 `json:"c_bm_all" desc:"Cumulative consumed or harvested biomass" units:"kg DM/ha"`

	// Year is the calendar year of the last simulated day, or 0 if the
	// next day starts a new management year regardless of its date.
	Year int `json:"year"`

	// CutsDone is a bit set of the cutting calendar entries that have
	// fired during Year.
	CutsDone uint64 `json:"cuts_done"`
}

// DefaultState returns the initial state used when a simulation starts
// without one: a moderately stocked sward on a soil at capacity.
func DefaultState(p *SiteParameters) State {
	return State{
		GV: 1200, DV: 400,
		AgeGV: 100, AgeDV: 300,
		WR: p.WHC,
	}
}

// Biomass returns total standing biomass [kg DM/ha].
func (s State) Biomass() float64 { return s.GV + s.GR + s.DV + s.DR }

// Validate checks that s is a valid initial state for a site with
// parameters p, returning a *ConfigurationError if it is not.
func (s State) Validate(p *SiteParameters) error {
	var problems []string
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"gv", s.GV}, {"gr", s.GR}, {"dv", s.DV}, {"dr", s.DR},
		{"age_gv", s.AgeGV}, {"age_gr", s.AgeGR}, {"age_dv", s.AgeDV}, {"age_dr", s.AgeDR},
		{"wr", s.WR}, {"st", s.ST}, {"c_bm", s.CBM}, {"c_bm_all", s.CBMAll},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) || v.val < 0 {
			problems = append(problems, fmt.Sprintf("initial %s = %g must be finite and non-negative", v.name, v.val))
		}
	}
	if s.WR > p.WHC {
		problems = append(problems, fmt.Sprintf("initial water reserve %g exceeds capacity %g", s.WR, p.WHC))
	}
	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// vector returns the continuous state variables for convergence checks.
func (s State) vector() []float64 {
	return []float64{s.GV, s.GR, s.DV, s.DR, s.AgeGV, s.AgeGR, s.AgeDV, s.AgeDR, s.WR, s.ST}
}
