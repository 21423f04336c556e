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

// Package modvege is a daily, per-site grass growth simulator based on the
// ModVege pasture model (Jouven et al., 2006). Each site carries four
// standing biomass compartments (green and dead, vegetative and
// reproductive), a soil water reserve and a growing degree day sum from one
// day to the next; every day a fixed chain of processes (water balance,
// growth, senescence and abscission, defoliation) updates that state and
// emits one DailyOutput record.
//
// Sites are independent of one another, so many of them can be simulated
// concurrently with a Pool. The package never reads or writes files; see
// package modvegeutil for a command-line driver.
package modvege

import "fmt"

// Version gives the version number.
const Version = "0.3.0"

// Phase is the lifecycle stage of a site simulation.
type Phase int

// Simulation phases.
const (
	Uninitialized Phase = iota
	SpinningUp
	Running
	Complete
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case SpinningUp:
		return "spinning up"
	case Running:
		return "running"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}
