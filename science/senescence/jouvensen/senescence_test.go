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

package jouvensen

import (
	"math"
	"testing"
)

func different(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance
}

var p = Params{
	T0: 4, LLS: 500, ST1: 600, ST2: 1200,
	KGV: 0.002, KGR: 0.001, KlDV: 0.001, KlDR: 0.0005,
	SigmaGV: 0.4, SigmaGR: 0.2,
}

var pools = Pools{GV: 1000, GR: 400, DV: 600, DR: 200, AgeGV: 100, AgeGR: 100, AgeDV: 100, AgeDR: 100}

func TestAgeFactors(t *testing.T) {
	for _, c := range []struct{ age, green, dead float64 }{
		{0, 1, 1}, {150, 1, 1}, {250, 1.5, 2}, {400, 2.4, 3}, {600, 3, 3},
	} {
		if g := GreenAgeFactor(c.age, 500); different(g, c.green, 1e-12) {
			t.Errorf("green age %g: have %g, want %g", c.age, g, c.green)
		}
		if d := DeadAgeFactor(c.age, 500); d != c.dead {
			t.Errorf("dead age %g: have %g, want %g", c.age, d, c.dead)
		}
	}
}

func TestRatesWarm(t *testing.T) {
	f := Rates(p, pools, 10)
	if different(f.SenGV, 0.002*1000*10, 1e-12) {
		t.Errorf("SenGV: have %g", f.SenGV)
	}
	if different(f.SenGR, 0.001*400*10, 1e-12) {
		t.Errorf("SenGR: have %g", f.SenGR)
	}
	if different(f.AbsDV, 0.001*600*10, 1e-12) {
		t.Errorf("AbsDV: have %g", f.AbsDV)
	}
	if different(f.AbsDR, 0.0005*200*10, 1e-12) {
		t.Errorf("AbsDR: have %g", f.AbsDR)
	}
	if different(f.Respiration(), 0.4*20+0.2*4, 1e-12) {
		t.Errorf("respiration: have %g", f.Respiration())
	}
	hot := Rates(p, pools, 30)
	if hot.Senescence() <= f.Senescence() {
		t.Error("senescence should accelerate with temperature")
	}
	old := pools
	old.AgeGV = 450
	if Rates(p, old, 10).SenGV <= f.SenGV {
		t.Error("senescence should accelerate with age")
	}
}

func TestRatesCool(t *testing.T) {
	f := Rates(p, pools, 2)
	if f.Senescence() != 0 {
		t.Errorf("no senescence between 0 and T0, have %g", f.Senescence())
	}
	if f.Abscission() <= 0 {
		t.Error("abscission should continue above 0 °C")
	}
	frost := Rates(p, pools, -5)
	if different(frost.SenGV, 0.002*1000*5, 1e-12) {
		t.Errorf("frost senescence: have %g", frost.SenGV)
	}
	if frost.Abscission() != 0 {
		t.Errorf("no abscission below 0 °C, have %g", frost.Abscission())
	}
}

func TestRatesCapped(t *testing.T) {
	fast := p
	fast.KGV, fast.KlDV = 10, 10
	f := Rates(fast, pools, 20)
	if f.SenGV != pools.GV || f.AbsDV != pools.DV {
		t.Errorf("fluxes should be capped at the source pool: %+v", f)
	}
	next, _, _ := Update(fast, pools, 0, 0, 20)
	if next.GV != 0 {
		t.Errorf("GV should be exhausted, have %g", next.GV)
	}
	if next.DV < 0 {
		t.Errorf("DV negative: %g", next.DV)
	}
}

func TestUpdateMassBalance(t *testing.T) {
	for _, temp := range []float64{-8, 0, 3, 12, 25} {
		next, f, clamped := Update(p, pools, 50, 20, temp)
		if len(clamped) != 0 {
			t.Errorf("T=%g: unexpected clamps %v", temp, clamped)
		}
		want := pools.Biomass() + 70 - f.Abscission() - f.Respiration()
		if different(next.Biomass(), want, 1e-9) {
			t.Errorf("T=%g: biomass %g, want %g", temp, next.Biomass(), want)
		}
	}
}

func TestUpdateNoRespiration(t *testing.T) {
	q := p
	q.SigmaGV, q.SigmaGR = 0, 0
	next, f, _ := Update(q, pools, 30, 0, 15)
	want := pools.Biomass() + 30 - f.Abscission()
	if different(next.Biomass(), want, 1e-9) {
		t.Errorf("biomass %g, want %g", next.Biomass(), want)
	}
}

func TestUpdateAges(t *testing.T) {
	next, _, _ := Update(p, pools, 0, 0, 10)
	if next.AgeGV <= pools.AgeGV {
		t.Errorf("tissue should age without new growth: %g", next.AgeGV)
	}
	diluted, _, _ := Update(p, pools, 500, 0, 10)
	if diluted.AgeGV >= next.AgeGV {
		t.Errorf("new growth should lower mean age: %g >= %g", diluted.AgeGV, next.AgeGV)
	}
	cold, _, _ := Update(p, pools, 0, 0, -2)
	if cold.AgeGV != pools.AgeGV || cold.AgeDV != pools.AgeDV {
		t.Error("ages should not change below 0 °C")
	}
	empty, _, _ := Update(p, Pools{}, 20, 0, 10)
	if empty.AgeGV != 0 {
		t.Errorf("regrowth from bare ground should have zero age, have %g", empty.AgeGV)
	}
}

func TestUpdateFloorsNegativePools(t *testing.T) {
	bad := pools
	bad.DR = -5
	next, _, clamped := Update(p, bad, 0, 0, 10)
	if next.DR != 0 {
		t.Errorf("DR should be floored at 0, have %g", next.DR)
	}
	if len(clamped) != 1 || clamped[0] != "DR" {
		t.Errorf("expected a DR clamp, got %v", clamped)
	}
}
