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
	"fmt"
	"sort"
	"strings"
	"time"
)

// ConfigurationError reports invalid site parameters or an invalid initial
// state. It is returned before any day is simulated.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("modvege: invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// ForcingDataError reports a missing, non-finite or out-of-range daily
// forcing value. The affected day is marked invalid and the site's state is
// left unchanged for that day. A forcing sequence that is not chronological
// and gap-free is also reported as a ForcingDataError, in which case the
// run does not start.
type ForcingDataError struct {
	Day    int       // index of the record in the forcing sequence
	Time   time.Time // date of the record
	Field  string    // T, PAR, PP, PET or Time
	Value  float64
	Reason string
}

func (e *ForcingDataError) Error() string {
	if e.Field == "Time" {
		return fmt.Sprintf("modvege: forcing record %d (%s): %s", e.Day, e.Time.Format("2006-01-02"), e.Reason)
	}
	return fmt.Sprintf("modvege: forcing record %d (%s): %s = %g: %s",
		e.Day, e.Time.Format("2006-01-02"), e.Field, e.Value, e.Reason)
}

// NumericDomainError describes intermediate values that left their
// physical domain and were clamped back into it by a process. Such clamps
// are part of normal operation: they are counted in Diagnostics and never
// returned as errors.
type NumericDomainError struct {
	Process  string
	Quantity string
	Count    int
}

func (e *NumericDomainError) Error() string {
	return fmt.Sprintf("modvege: %s: %s clamped %d times", e.Process, e.Quantity, e.Count)
}

// Diagnostics counts clamped quantities by process.
type Diagnostics map[string]int

// add records one clamp of each quantity. It is a no-op on a nil map.
func (d Diagnostics) add(process string, quantities []string) {
	if d == nil {
		return
	}
	for _, q := range quantities {
		d[process+"/"+q]++
	}
}

// Total returns the number of clamps recorded.
func (d Diagnostics) Total() int {
	var n int
	for _, c := range d {
		n += c
	}
	return n
}

// Errors returns the recorded clamps in process/quantity order.
func (d Diagnostics) Errors() []*NumericDomainError {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	o := make([]*NumericDomainError, len(keys))
	for i, k := range keys {
		parts := strings.SplitN(k, "/", 2)
		o[i] = &NumericDomainError{Process: parts[0], Quantity: parts[1], Count: d[k]}
	}
	return o
}
