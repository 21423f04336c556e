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

// Package omd estimates the organic matter digestibility of the sward.
// Green compartments lose digestibility linearly with age; dead
// compartments have a fixed digestibility.
package omd

import "math"

// Params holds the digestibility constants of a site.
type Params struct {
	MaxGV, MinGV float64 // digestibility bounds of green vegetative tissue [-]
	MaxGR, MinGR float64 // digestibility bounds of green reproductive tissue [-]
	DV, DR       float64 // digestibility of dead tissue [-]

	LLS      float64 // leaf lifespan [°C d]
	ST1, ST2 float64 // reproductive period [°C d]
}

// Green returns the digestibility of green tissue of the given age, which
// declines from hi to lo over lifespan.
func Green(hi, lo, age, lifespan float64) float64 {
	if lifespan <= 0 {
		return lo
	}
	return math.Max(lo, hi-age*(hi-lo)/lifespan)
}

// Sward returns the biomass-weighted digestibility of the four
// compartments (biomass in kg DM/ha, ages in °C d). A sward with no
// biomass has zero digestibility.
func Sward(p Params, gv, gr, dv, dr, ageGV, ageGR float64) float64 {
	bm := gv + gr + dv + dr
	if bm <= 0 {
		return 0
	}
	return (gv*Green(p.MaxGV, p.MinGV, ageGV, p.LLS) +
		gr*Green(p.MaxGR, p.MinGR, ageGR, p.ST2-p.ST1) +
		dv*p.DV + dr*p.DR) / bm
}
