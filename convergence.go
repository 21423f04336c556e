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

import "gonum.org/v1/gonum/floats"

// StateDistance returns the Euclidean distance between the continuous
// variables of two states relative to the magnitude of b. It is used to
// decide whether a spin-up has reached a repeating annual cycle.
func StateDistance(a, b State) float64 {
	va, vb := a.vector(), b.vector()
	norm := floats.Norm(vb, 2)
	dist := floats.Distance(va, vb, 2)
	if norm == 0 {
		return dist
	}
	return dist / norm
}
