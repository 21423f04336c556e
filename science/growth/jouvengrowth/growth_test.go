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

package jouvengrowth

import (
	"math"
	"testing"
)

func different(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance
}

var p = Params{
	T0: 4, T1: 10, T2: 20, TMax: 40,
	ST1: 600, ST2: 1200,
	MinSEA: 0.8, MaxSEA: 1.2,
	RUEMax: 3, SLA: 0.033, PctLAM: 0.68, MinLAI: 0.2,
	NI: 0.9,
}

func TestTemperatureFactor(t *testing.T) {
	for _, c := range []struct{ t, want float64 }{
		{-5, 0}, {3, 0}, {4, 0}, {7, 0.5}, {10, 1}, {15, 1}, {20, 1}, {30, 0.5}, {40, 0}, {45, 0},
	} {
		if got := TemperatureFactor(p, c.t); different(got, c.want, 1e-12) {
			t.Errorf("T=%g: have %g, want %g", c.t, got, c.want)
		}
	}
}

func TestSeasonalEffect(t *testing.T) {
	for _, c := range []struct{ st, want float64 }{
		{0, 0.8}, {100, 0.8}, {300, 1.0}, {450, 1.2}, {550, 1.2 - 0.4*50/700}, {1199, 0.8 + 0.4/700}, {1200, 0.8},
	} {
		if got := SeasonalEffect(p, c.st); different(got, c.want, 1e-9) {
			t.Errorf("ST=%g: have %g, want %g", c.st, got, c.want)
		}
	}
}

func TestReproductiveFraction(t *testing.T) {
	if f := ReproductiveFraction(p, 599); f != 0 {
		t.Errorf("no reproductive growth before ST1, have %g", f)
	}
	want := (0.25 + 0.75*0.55/0.65) * 0.5
	if f := ReproductiveFraction(p, 900); different(f, want, 1e-12) {
		t.Errorf("have %g, want %g", f, want)
	}
	if ReproductiveFraction(p, 1000) <= ReproductiveFraction(p, 800) {
		t.Error("reproductive allocation should increase through the reproductive period")
	}
}

func TestPotential(t *testing.T) {
	if g := Potential(p, 0, 2000); g != 0 {
		t.Errorf("potential growth without light should be 0 but is %g", g)
	}
	want := 15 * 3 * (1 - math.Exp(-0.6*0.2)) * 10
	if g := Potential(p, 15, 0); different(g, want, 1e-9) {
		t.Errorf("bare ground: have %g, want %g", g, want)
	}
	if Potential(p, 15, 3000) <= Potential(p, 15, 1000) {
		t.Error("potential growth should increase with leaf area")
	}
}

func TestGrowNeverExceedsPotential(t *testing.T) {
	for _, temp := range []float64{-3, 5, 12, 25, 38} {
		for _, par := range []float64{0, 2, 8, 15} {
			for _, st := range []float64{0, 450, 900} {
				r := Grow(p, temp, par, 1, st, 1500)
				if r.GRO > r.PGRO+1e-12 || r.GRO < 0 {
					t.Errorf("T=%g PAR=%g ST=%g: GRO %g outside [0, PGRO=%g]", temp, par, st, r.GRO, r.PGRO)
				}
				if different(r.GV+r.GR, r.GRO, 1e-9) {
					t.Errorf("partition %g+%g does not add up to %g", r.GV, r.GR, r.GRO)
				}
			}
		}
	}
}

func TestGrowClampsFactors(t *testing.T) {
	r := Grow(p, 15, 3, 1.5, 0, 1000)
	if len(r.Clamped) != 1 || r.Clamped[0] != "water" {
		t.Fatalf("expected a water clamp, got %v", r.Clamped)
	}
	ref := Grow(p, 15, 3, 1, 0, 1000)
	if r.GRO != ref.GRO {
		t.Errorf("clamped water factor should behave like 1: have %g, want %g", r.GRO, ref.GRO)
	}
	bad := p
	bad.NI = -0.2
	if r := Grow(bad, 15, 3, 1, 0, 1000); r.GRO != 0 || len(r.Clamped) == 0 {
		t.Errorf("negative nutrition index should clamp to zero growth, have %g %v", r.GRO, r.Clamped)
	}
}

func TestDegreeDays(t *testing.T) {
	st, reset := DegreeDays(p, 100, 15)
	if st != 111 || reset {
		t.Errorf("have %g %v", st, reset)
	}
	st, reset = DegreeDays(p, 100, 3)
	if st != 100 || reset {
		t.Errorf("no accumulation below T0: have %g %v", st, reset)
	}
	st, reset = DegreeDays(p, 1195, 15)
	if st != 0 || !reset {
		t.Errorf("sum should restart after ST2: have %g %v", st, reset)
	}
}
