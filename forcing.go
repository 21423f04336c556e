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
	"math"
	"time"
)

// DailyForcing holds one day of weather for one site.
// Missing values are represented as NaN.
type DailyForcing struct {
	Time time.Time
	T    float64 `desc:"Mean air temperature" units:"°C"`
	PAR  float64 `desc:"Incident photosynthetically active radiation" units:"MJ/m²/day"`
	PP   float64 `desc:"Precipitation" units:"mm/day"`
	PET  float64 `desc:"Potential evapotranspiration" units:"mm/day"`
}

// Physical ranges of forcing values.
var forcingRanges = []struct {
	field    string
	min, max float64
	get      func(f *DailyForcing) float64
}{
	{"T", -60, 60, func(f *DailyForcing) float64 { return f.T }},
	{"PAR", 0, 60, func(f *DailyForcing) float64 { return f.PAR }},
	{"PP", 0, 1000, func(f *DailyForcing) float64 { return f.PP }},
	{"PET", 0, 50, func(f *DailyForcing) float64 { return f.PET }},
}

// Check returns a *ForcingDataError if any value of f is missing,
// non-finite or out of its physical range. i is the index of f in its
// sequence.
func (f DailyForcing) Check(i int) error {
	for _, r := range forcingRanges {
		v := r.get(&f)
		var reason string
		switch {
		case math.IsNaN(v):
			reason = "missing value"
		case math.IsInf(v, 0):
			reason = "non-finite value"
		case v < r.min || v > r.max:
			reason = "out of physical range"
		default:
			continue
		}
		return &ForcingDataError{Day: i, Time: f.Time, Field: r.field, Value: v, Reason: reason}
	}
	return nil
}

// CheckSequence checks that forcing is chronological and gap-free, with
// exactly one record per calendar day.
func CheckSequence(forcing []DailyForcing) error {
	for i := 1; i < len(forcing); i++ {
		want := forcing[i-1].Time.AddDate(0, 0, 1)
		if !sameDay(want, forcing[i].Time) {
			return &ForcingDataError{Day: i, Time: forcing[i].Time, Field: "Time",
				Reason: "record does not follow the previous day " + forcing[i-1].Time.Format("2006-01-02")}
		}
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
