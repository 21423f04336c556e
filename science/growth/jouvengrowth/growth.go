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

// Package jouvengrowth calculates daily grass growth following the
// ModVege formulation of Jouven et al. (2006): potential growth from
// intercepted radiation, reduced by temperature, water, radiation
// saturation, nutrition and a seasonal effect driven by the growing
// degree day sum.
package jouvengrowth

import "math"

// Params holds the growth constants of a site.
type Params struct {
	T0, T1, T2, TMax float64 // temperature thresholds [°C]

	ST1, ST2 float64 // growing degree day sums at the start and end of the reproductive period [°C d]

	MinSEA, MaxSEA float64 // bounds of the seasonal effect [-]

	RUEMax float64 // maximum radiation use efficiency [g DM/MJ]
	SLA    float64 // specific leaf area [m²/g]
	PctLAM float64 // fraction of laminae in green vegetative biomass [-]

	// MinLAI is the leaf area index assumed for interception when the green
	// vegetative compartment is smaller, so that regrowth can start from
	// bare ground.
	MinLAI float64

	NI float64 // nutritional index [-]
}

// Result holds one day of growth.
type Result struct {
	PGRO float64 // potential growth [kg DM/ha/day]
	GRO  float64 // actual growth [kg DM/ha/day]
	GV   float64 // growth allocated to green vegetative biomass [kg DM/ha/day]
	GR   float64 // growth allocated to green reproductive biomass [kg DM/ha/day]

	// Limitation is the combined reduction factor applied to PGRO.
	Limitation float64

	// Clamped names any limiting factor that evaluated outside [0, 1].
	Clamped []string
}

// extinction is the light extinction coefficient of the sward.
const extinction = 0.6

// TemperatureFactor returns the temperature limitation of growth: zero at
// or below T0, rising linearly to one at T1, one up to T2, then falling
// linearly to zero at TMax.
func TemperatureFactor(p Params, t float64) float64 {
	switch {
	case t <= p.T0 || t >= p.TMax:
		return 0
	case t < p.T1:
		return (t - p.T0) / (p.T1 - p.T0)
	case t <= p.T2:
		return 1
	default:
		return (p.TMax - t) / (p.TMax - p.T2)
	}
}

// RadiationFactor returns the reduction of radiation use efficiency at
// high incident PAR [MJ/m²/day].
func RadiationFactor(par float64) float64 {
	if par < 5 {
		return 1
	}
	return math.Max(1-0.0445*(par-5), 0)
}

// SeasonalEffect returns the seasonal effect on growth for growing degree
// day sum st. It is MinSEA in winter, rises to MaxSEA during the
// reproductive build-up before ST1, and declines back to MinSEA at ST2.
func SeasonalEffect(p Params, st float64) float64 {
	switch {
	case st < 200 || st >= p.ST2:
		return p.MinSEA
	case st < p.ST1-200:
		return p.MinSEA + (p.MaxSEA-p.MinSEA)*(st-200)/(p.ST1-400)
	case st < p.ST1-100:
		return p.MaxSEA
	default:
		return p.MaxSEA + (p.MinSEA-p.MaxSEA)*(st-(p.ST1-100))/(p.ST2-(p.ST1-100))
	}
}

// ReproductiveFraction returns the fraction of growth allocated to the
// reproductive compartment. Nothing is allocated before ST1; between ST1
// and ST2 the fraction increases linearly towards its nutrition-dependent
// maximum.
func ReproductiveFraction(p Params, st float64) float64 {
	if st < p.ST1 || st >= p.ST2 {
		return 0
	}
	ceiling := 0.25 + 0.75*(p.NI-0.35)/0.65
	return clamp(ceiling*(st-p.ST1)/(p.ST2-p.ST1), 0, 1)
}

// LAI returns the leaf area index of green vegetative biomass gv [kg DM/ha].
func LAI(p Params, gv float64) float64 {
	return p.SLA * p.PctLAM * gv / 10
}

// Potential returns potential growth [kg DM/ha/day] for incident PAR
// [MJ/m²/day] and green vegetative biomass gv [kg DM/ha].
func Potential(p Params, par, gv float64) float64 {
	if par <= 0 {
		return 0
	}
	lai := math.Max(LAI(p, gv), p.MinLAI)
	return par * p.RUEMax * (1 - math.Exp(-extinction*lai)) * 10
}

// Grow calculates the day's growth for temperature t [°C], incident PAR
// [MJ/m²/day], water stress factor w, growing degree day sum st [°C d]
// and green vegetative biomass gv [kg DM/ha]. Actual growth never exceeds
// potential growth.
func Grow(p Params, t, par, w, st, gv float64) Result {
	var r Result
	factor := func(name string, v float64) float64 {
		if v < 0 || v > 1 || math.IsNaN(v) {
			r.Clamped = append(r.Clamped, name)
			return clamp(v, 0, 1)
		}
		return v
	}
	r.PGRO = Potential(p, par, gv)

	f := factor("temperature", TemperatureFactor(p, t)) *
		factor("water", w) *
		factor("radiation", RadiationFactor(par)) *
		factor("nutrition", p.NI)
	// The seasonal effect may exceed one; the combined factor may not.
	r.Limitation = math.Min(f*SeasonalEffect(p, st), 1)
	r.GRO = r.PGRO * r.Limitation

	rep := ReproductiveFraction(p, st)
	r.GR = r.GRO * rep
	r.GV = r.GRO - r.GR
	return r
}

// DegreeDays advances the growing degree day sum st by the day's
// temperature t. The sum restarts from zero once it reaches ST2, which
// marks the end of the reproductive cycle; reset reports whether that
// happened.
func DegreeDays(p Params, st, t float64) (next float64, reset bool) {
	if t > p.T0 {
		st += t - p.T0
	}
	if st >= p.ST2 {
		return 0, true
	}
	return st, false
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
