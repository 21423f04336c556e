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

package modvegeutil

import (
	"fmt"
	"strings"

	"github.com/ctessum/unit"
)

const secondsPerDay = 86400

var (
	// wattPerMeter2 is an energy flux [kg s-3].
	wattPerMeter2 = unit.Dimensions{unit.MassDim: 1, unit.TimeDim: -3}

	// massFlux is a water flux [kg m-2 s-1]. One millimeter of water is
	// one kilogram per square meter.
	massFlux = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -2, unit.TimeDim: -1}
)

// quantity describes a unit of a forcing variable by its dimensions and
// its conversion to SI: si = value*scale + offset.
type quantity struct {
	dims          unit.Dimensions
	scale, offset float64
}

// knownUnits are the units accepted in forcing files, by name.
var knownUnits = map[string]quantity{
	"K":    {unit.Kelvin, 1, 0},
	"degC": {unit.Kelvin, 1, 273.15},
	"°C":   {unit.Kelvin, 1, 273.15},
	"C":    {unit.Kelvin, 1, 273.15},

	"W m-2":        {wattPerMeter2, 1, 0},
	"W/m2":         {wattPerMeter2, 1, 0},
	"W/m^2":        {wattPerMeter2, 1, 0},
	"MJ m-2 day-1": {wattPerMeter2, 1e6 / secondsPerDay, 0},
	"MJ/m2/day":    {wattPerMeter2, 1e6 / secondsPerDay, 0},
	"MJ/m²/day":    {wattPerMeter2, 1e6 / secondsPerDay, 0},

	"kg m-2 s-1": {massFlux, 1, 0},
	"kg/m2/s":    {massFlux, 1, 0},
	"mm day-1":   {massFlux, 1.0 / secondsPerDay, 0},
	"mm/day":     {massFlux, 1.0 / secondsPerDay, 0},
	"mm d-1":     {massFlux, 1.0 / secondsPerDay, 0},
	"mm":         {massFlux, 1.0 / secondsPerDay, 0},
}

// forcingTarget gives the dimensions each forcing field must have and the
// conversion from SI to model units: model = si*scale + offset.
var forcingTarget = map[string]quantity{
	"T":   {unit.Kelvin, 1, -273.15},
	"PAR": {wattPerMeter2, secondsPerDay / 1e6, 0},
	"PP":  {massFlux, secondsPerDay, 0},
	"PET": {massFlux, secondsPerDay, 0},
}

// converter returns the scale and offset that convert values of forcing
// field from units to model units: model = v*scale + offset. Shortwave
// radiation given for PAR is multiplied by parFraction.
func converter(field, units string, parFraction float64) (scale, offset float64, err error) {
	target, ok := forcingTarget[field]
	if !ok {
		return 0, 0, fmt.Errorf("modvegeutil: invalid forcing field %q", field)
	}
	from, ok := knownUnits[strings.TrimSpace(units)]
	if !ok {
		return 0, 0, fmt.Errorf("modvegeutil: forcing %s has unsupported units %q", field, units)
	}
	// Convert one unit of the input to SI and check that it has the
	// dimensions the field requires.
	one := unit.New(from.scale, from.dims)
	if err := one.Check(target.dims); err != nil {
		return 0, 0, fmt.Errorf("modvegeutil: forcing %s in %q: %v", field, units, err)
	}
	scale = one.Value() * target.scale
	offset = from.offset*target.scale + target.offset
	if field == "PAR" {
		scale *= parFraction
		offset *= parFraction
	}
	return scale, offset, nil
}

// convert converts vals in place.
func convert(vals []float64, scale, offset float64) {
	for i, v := range vals {
		vals[i] = v*scale + offset
	}
}
