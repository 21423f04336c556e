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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/climag/modvege"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// outputFill marks cells that were not simulated in gridded output.
const outputFill = -9999

// checkOutputVars returns the metadata of each named output variable. The
// "valid" pseudo-variable flags days with accepted forcing.
func checkOutputVars(names []string) ([]modvege.OutputVariable, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("modvegeutil: there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again")
	}
	all := make(map[string]modvege.OutputVariable)
	for _, v := range modvege.OutputVariables() {
		all[v.Name] = v
	}
	all["valid"] = modvege.OutputVariable{Name: "valid", Description: "Forcing accepted (1) or rejected (0)", Units: "-"}
	o := make([]modvege.OutputVariable, len(names))
	for i, n := range names {
		v, ok := all[n]
		if !ok {
			return nil, fmt.Errorf("modvegeutil: invalid output variable %q", n)
		}
		o[i] = v
	}
	return o, nil
}

// GridOutput accumulates daily output for a grid of sites and writes it
// to a NetCDF file.
type GridOutput struct {
	times  []time.Time
	vars   []modvege.OutputVariable
	data   map[string]*sparse.DenseArray // [time, y, x]
	ny, nx int
}

// NewGridOutput prepares output of vars at times for an ny by nx grid.
// Cells that are never set are written as missing.
func NewGridOutput(times []time.Time, ny, nx int, vars []modvege.OutputVariable) *GridOutput {
	o := &GridOutput{times: times, vars: vars, ny: ny, nx: nx, data: make(map[string]*sparse.DenseArray)}
	for _, v := range vars {
		d := sparse.ZerosDense(len(times), ny, nx)
		for i := range d.Elements {
			d.Elements[i] = outputFill
		}
		o.data[v.Name] = d
	}
	return o
}

// Set stores the outputs of the cell at row j and column i. outputs must
// correspond to the output times.
func (o *GridOutput) Set(j, i int, outputs []modvege.DailyOutput) error {
	if len(outputs) != len(o.times) {
		return fmt.Errorf("modvegeutil: cell (%d, %d) has %d outputs; want %d", j, i, len(outputs), len(o.times))
	}
	for _, v := range o.vars {
		d := o.data[v.Name]
		for t, out := range outputs {
			val, err := out.Value(v.Name)
			if err != nil {
				return err
			}
			d.Set(val, t, j, i)
		}
	}
	return nil
}

// Write writes the output to w.
func (o *GridOutput) Write(w *os.File) error {
	if len(o.times) == 0 {
		return fmt.Errorf("modvegeutil: no output days to write")
	}
	h := cdf.NewHeader([]string{"time", "y", "x"}, []int{len(o.times), o.ny, o.nx})
	h.AddAttribute("", "comment", "ModVege daily grass growth simulation")
	h.AddAttribute("", "model_version", modvege.Version)

	origin := o.times[0]
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "days since "+origin.Format("2006-01-02"))
	h.AddAttribute("time", "calendar", "standard")
	for _, v := range o.vars {
		h.AddVariable(v.Name, []string{"time", "y", "x"}, []float32{0})
		h.AddAttribute(v.Name, "description", v.Description)
		h.AddAttribute(v.Name, "units", v.Units)
		h.AddAttribute(v.Name, "_FillValue", []float32{outputFill})
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("modvegeutil: invalid output header: %v", errs)
	}

	f, err := cdf.Create(w, h)
	if err != nil {
		return err
	}
	days := make([]float64, len(o.times))
	for t, tt := range o.times {
		days[t] = tt.Sub(origin).Hours() / 24
	}
	if _, err := f.Writer("time", nil, nil).Write(days); err != nil {
		return fmt.Errorf("modvegeutil: writing time: %v", err)
	}
	for _, v := range o.vars {
		d := o.data[v.Name]
		data32 := make([]float32, len(d.Elements))
		for i, e := range d.Elements {
			data32[i] = float32(e)
		}
		if _, err := f.Writer(v.Name, nil, nil).Write(data32); err != nil {
			return fmt.Errorf("modvegeutil: writing variable %s: %v", v.Name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

// WriteStationCSV writes daily outputs for one site as CSV, with a time
// column, the requested variables, and an error column describing
// rejected forcing.
func WriteStationCSV(w io.Writer, outputs []modvege.DailyOutput, vars []modvege.OutputVariable) error {
	cw := csv.NewWriter(w)
	header := []string{"time"}
	for _, v := range vars {
		header = append(header, v.Name)
	}
	header = append(header, "error")
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for _, o := range outputs {
		rec[0] = o.Time.Format("2006-01-02")
		for i, v := range vars {
			val, err := o.Value(v.Name)
			if err != nil {
				return err
			}
			rec[i+1] = strconv.FormatFloat(val, 'g', -1, 64)
		}
		rec[len(rec)-1] = ""
		if o.Err != nil {
			rec[len(rec)-1] = o.Err.Field + ": " + o.Err.Reason
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
