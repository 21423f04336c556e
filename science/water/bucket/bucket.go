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

// Package bucket provides a single-layer soil water reserve ("bucket") model
// and the water stress factor that limits grass growth when the reserve
// runs low.
package bucket

import (
	"fmt"
	"math"
)

// Params holds the soil water constants of a site.
type Params struct {
	// Capacity is the water holding capacity of the root zone [mm].
	Capacity float64

	// AETThreshold is the fraction of Capacity below which actual
	// evapotranspiration falls below the potential rate. Above it the
	// surface transpires at the potential rate.
	AETThreshold float64

	// Drainage is the fraction of the post-evaporation reserve that
	// percolates below the root zone each day.
	Drainage float64
}

// Result holds the water balance of one day.
type Result struct {
	Reserve  float64 // water reserve at the end of the day [mm]
	AET      float64 // actual evapotranspiration [mm/day]
	Runoff   float64 // water in excess of Capacity [mm/day]
	Drainage float64 // deep percolation [mm/day]
	Stress   float64 // water stress factor, 1 = no stress [-]

	// Clamped names any quantity that had to be brought back into its
	// physical range.
	Clamped []string
}

// Update advances the water reserve by one day. Negative or non-finite
// precipitation or potential evapotranspiration are rejected.
func Update(p Params, reserve, precip, pet float64) (Result, error) {
	if math.IsNaN(precip) || math.IsInf(precip, 0) || precip < 0 {
		return Result{}, fmt.Errorf("bucket: invalid precipitation %g mm/day", precip)
	}
	if math.IsNaN(pet) || math.IsInf(pet, 0) || pet < 0 {
		return Result{}, fmt.Errorf("bucket: invalid potential evapotranspiration %g mm/day", pet)
	}
	var res Result
	if reserve < 0 || reserve > p.Capacity || math.IsNaN(reserve) {
		res.Clamped = append(res.Clamped, "reserve")
		reserve = clamp(reserve, 0, p.Capacity)
	}

	res.AET = ActualET(p, reserve, pet)
	// Evaporation can't take more water than is available today.
	if res.AET > reserve+precip {
		res.AET = reserve + precip
	}
	r := reserve + precip - res.AET
	if r > 0 && p.Drainage > 0 {
		res.Drainage = r * math.Min(p.Drainage, 1)
		r -= res.Drainage
	}
	if r > p.Capacity {
		res.Runoff = r - p.Capacity
		r = p.Capacity
	}
	if r < 0 {
		res.Clamped = append(res.Clamped, "reserve")
		r = 0
	}
	res.Reserve = r

	var fill float64
	if p.Capacity > 0 {
		fill = r / p.Capacity
	}
	res.Stress = StressFactor(fill, pet)
	return res, nil
}

// ActualET returns the actual evapotranspiration [mm/day] for the given
// reserve [mm] and potential evapotranspiration [mm/day]. It equals pet
// while the relative reserve is above p.AETThreshold and decreases
// linearly to zero as the reserve empties.
func ActualET(p Params, reserve, pet float64) float64 {
	if p.Capacity <= 0 {
		return 0
	}
	if p.AETThreshold <= 0 {
		return pet
	}
	return pet * math.Min(1, reserve/p.Capacity/p.AETThreshold)
}

// StressFactor returns the water stress factor for relative soil water
// content fill (reserve/capacity) under evaporative demand pet [mm/day].
// The piecewise-linear curves become steeper as demand increases so that
// the same reserve limits growth more on hot, dry days.
func StressFactor(fill, pet float64) float64 {
	w := clamp(fill, 0, 1)
	var s float64
	switch {
	case pet <= 3.8:
		switch {
		case w < 0.2:
			s = 4 * w
		case w < 0.4:
			s = 0.75*w + 0.65
		case w < 0.6:
			s = 0.25*w + 0.85
		default:
			s = 1
		}
	case pet <= 6.5:
		switch {
		case w < 0.2:
			s = 2 * w
		case w < 0.4:
			s = 1.5*w + 0.1
		case w < 0.6:
			s = w + 0.3
		case w < 0.8:
			s = 0.5*w + 0.6
		default:
			s = 1
		}
	default:
		switch {
		case w < 0.2:
			s = w
		case w < 0.4:
			s = 2*w - 0.2
		case w < 0.6:
			s = 1.5 * w
		case w < 0.7:
			s = w + 0.3
		default:
			s = 1
		}
	}
	return clamp(s, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
