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

// Package jouvensen moves green biomass into the dead compartments
// (senescence) and removes dead biomass from the sward (abscission) as
// described by Jouven et al. (2006). Both fluxes are proportional to
// temperature and accelerate as the compartments age.
package jouvensen

import "math"

// Params holds the senescence and abscission constants of a site.
type Params struct {
	T0  float64 // minimum temperature for growth and senescence [°C]
	LLS float64 // leaf lifespan [°C d]

	// ST1 and ST2 bound the reproductive period [°C d]; their difference
	// is the lifespan of reproductive organs.
	ST1, ST2 float64

	KGV, KGR   float64 // basic senescence rates [1/°C d]
	KlDV, KlDR float64 // basic abscission rates [1/°C d]

	// SigmaGV and SigmaGR are the fractions of senescent green biomass
	// lost to respiration instead of reaching the dead compartments.
	SigmaGV, SigmaGR float64
}

// Pools holds the four biomass compartments [kg DM/ha] and their ages [°C d].
type Pools struct {
	GV, GR, DV, DR             float64
	AgeGV, AgeGR, AgeDV, AgeDR float64
}

// Biomass returns the total standing biomass.
func (p Pools) Biomass() float64 { return p.GV + p.GR + p.DV + p.DR }

// Fluxes holds one day of senescence, abscission and respiration [kg DM/ha/day].
type Fluxes struct {
	SenGV, SenGR   float64
	AbsDV, AbsDR   float64
	RespGV, RespGR float64
}

// Senescence returns the total flux from green to dead biomass, including
// the part lost to respiration.
func (f Fluxes) Senescence() float64 { return f.SenGV + f.SenGR }

// Abscission returns the total loss of dead biomass.
func (f Fluxes) Abscission() float64 { return f.AbsDV + f.AbsDR }

// Respiration returns the total respiratory loss during senescence.
func (f Fluxes) Respiration() float64 { return f.RespGV + f.RespGR }

// GreenAgeFactor returns the age effect on senescence: one for young
// tissue, increasing linearly after a third of the lifespan and capped
// at three once the lifespan is exceeded.
func GreenAgeFactor(age, lifespan float64) float64 {
	switch {
	case lifespan <= 0:
		return 3
	case age < lifespan/3:
		return 1
	case age < lifespan:
		return 3 * age / lifespan
	default:
		return 3
	}
}

// DeadAgeFactor returns the age effect on abscission, a step function of
// the age of dead tissue in thirds of the lifespan.
func DeadAgeFactor(age, lifespan float64) float64 {
	switch {
	case lifespan <= 0:
		return 3
	case age < lifespan/3:
		return 1
	case age < 2*lifespan/3:
		return 2
	default:
		return 3
	}
}

// Rates returns the day's fluxes for start-of-day pools at temperature t
// [°C]. Green tissue senesces above T0 and, at a rate proportional to
// frost intensity, below 0 °C. Dead tissue is lost only above 0 °C.
// No flux exceeds the pool it draws from.
func Rates(p Params, pools Pools, t float64) Fluxes {
	var f Fluxes
	switch {
	case t > p.T0:
		f.SenGV = p.KGV * pools.GV * t * GreenAgeFactor(pools.AgeGV, p.LLS)
		f.SenGR = p.KGR * pools.GR * t * GreenAgeFactor(pools.AgeGR, p.ST2-p.ST1)
	case t < 0:
		f.SenGV = p.KGV * pools.GV * -t
		f.SenGR = p.KGR * pools.GR * -t
	}
	if t > 0 {
		f.AbsDV = p.KlDV * pools.DV * t * DeadAgeFactor(pools.AgeDV, p.LLS)
		f.AbsDR = p.KlDR * pools.DR * t * DeadAgeFactor(pools.AgeDR, p.ST2-p.ST1)
	}
	f.SenGV = bounded(f.SenGV, pools.GV)
	f.SenGR = bounded(f.SenGR, pools.GR)
	f.AbsDV = bounded(f.AbsDV, pools.DV)
	f.AbsDR = bounded(f.AbsDR, pools.DR)
	f.RespGV = p.SigmaGV * f.SenGV
	f.RespGR = p.SigmaGR * f.SenGR
	return f
}

// Update applies the day's growth (gv and gr [kg DM/ha/day]) together
// with senescence and abscission to start-of-day pools at temperature t.
// It returns the updated pools, the fluxes, and the names of any
// compartments that had to be floored at zero.
func Update(p Params, pools Pools, gv, gr, t float64) (Pools, Fluxes, []string) {
	f := Rates(p, pools, t)
	next := Pools{
		GV: pools.GV + gv - f.SenGV,
		GR: pools.GR + gr - f.SenGR,
		DV: pools.DV + f.SenGV - f.RespGV - f.AbsDV,
		DR: pools.DR + f.SenGR - f.RespGR - f.AbsDR,

		AgeGV: pools.AgeGV, AgeGR: pools.AgeGR, AgeDV: pools.AgeDV, AgeDR: pools.AgeDR,
	}
	if t > 0 {
		next.AgeGV = age(pools.GV, f.SenGV, gv, pools.AgeGV, t)
		next.AgeGR = age(pools.GR, f.SenGR, gr, pools.AgeGR, t)
		next.AgeDV = age(pools.DV, f.AbsDV, f.SenGV-f.RespGV, pools.AgeDV, t)
		next.AgeDR = age(pools.DR, f.AbsDR, f.SenGR-f.RespGR, pools.AgeDR, t)
	}

	var clamped []string
	for _, c := range []struct {
		name string
		v    *float64
	}{
		{"GV", &next.GV}, {"GR", &next.GR}, {"DV", &next.DV}, {"DR", &next.DR},
	} {
		if *c.v < 0 || math.IsNaN(*c.v) || math.IsInf(*c.v, 0) {
			clamped = append(clamped, c.name)
			*c.v = 0
		}
	}
	return next, f, clamped
}

// bounded limits flux v to [0, pool].
func bounded(v, pool float64) float64 {
	if v <= 0 || pool <= 0 || math.IsNaN(v) {
		return 0
	}
	return math.Min(v, pool)
}

// age returns the mean age of a compartment of biomass b after losing out
// and gaining in new (zero-age) tissue, with all remaining tissue aging
// by t.
func age(b, out, in, a, t float64) float64 {
	remaining := b - out
	total := remaining + in
	if remaining <= 0 || total <= 0 {
		return 0
	}
	return remaining / total * (a + t)
}
