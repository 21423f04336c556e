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
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/climag/modvege"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// DefaultForcingVariables maps the model's forcing fields to the CF
// standard variable names used in gridded climate data.
var DefaultForcingVariables = map[string]string{
	"T":   "tas",
	"PAR": "rsds",
	"PP":  "pr",
	"PET": "evspsblpot",
}

// forcingFields are the forcing fields in a fixed order.
var forcingFields = []string{"T", "PAR", "PP", "PET"}

// GridForcing holds daily forcing for a rectangular grid of sites.
type GridForcing struct {
	Times  []time.Time
	NY, NX int

	// Data holds each forcing field in model units, with dimensions
	// [time, y, x]. Missing values are NaN.
	Data map[string]*sparse.DenseArray

	// Zones holds the parameter zone of each cell, with dimensions [y, x],
	// or is nil if no zone variable was read. Cells with a missing or
	// negative zone are not simulated.
	Zones *sparse.DenseArray
}

// ReadGridForcing reads gridded daily forcing from NetCDF file f. vars maps
// each forcing field (T, PAR, PP, PET, in any case) to its variable name in the file;
// fields not in vars use DefaultForcingVariables. Each variable must have
// dimensions [time, y, x] and a units attribute. Shortwave radiation is
// converted to PAR using parFraction. If zoneVar is not empty, it names a
// [y, x] variable holding the parameter zone of each cell.
func ReadGridForcing(f *os.File, vars map[string]string, parFraction float64, zoneVar string) (*GridForcing, error) {
	cf, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("modvegeutil: opening forcing file: %v", err)
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	nrecs := int(cf.Header.NumRecs(fi.Size()))

	times, err := readTimes(cf, nrecs)
	if err != nil {
		return nil, err
	}
	// Configuration layers may fold the case of map keys.
	names := make(map[string]string, len(vars))
	for k, v := range vars {
		names[strings.ToUpper(k)] = v
	}
	g := &GridForcing{Times: times, Data: make(map[string]*sparse.DenseArray)}
	for _, field := range forcingFields {
		name, ok := names[field]
		if !ok {
			name = DefaultForcingVariables[field]
		}
		dims := cf.Header.Dimensions(name)
		if dims == nil {
			return nil, fmt.Errorf("modvegeutil: forcing file has no variable %s for %s", name, field)
		}
		shape := shapeOf(cf, name, nrecs)
		if len(shape) != 3 || shape[0] != len(times) {
			return nil, fmt.Errorf("modvegeutil: forcing variable %s has dimensions %v %v; want [time, y, x] with %d times",
				name, dims, shape, len(times))
		}
		if g.NY == 0 {
			g.NY, g.NX = shape[1], shape[2]
		} else if shape[1] != g.NY || shape[2] != g.NX {
			return nil, fmt.Errorf("modvegeutil: forcing variable %s has grid %dx%d; want %dx%d",
				name, shape[1], shape[2], g.NY, g.NX)
		}
		units, _ := cf.Header.GetAttribute(name, "units").(string)
		scale, offset, err := converter(field, units, parFraction)
		if err != nil {
			return nil, err
		}
		data, err := readVariable(cf, name, shape)
		if err != nil {
			return nil, err
		}
		convert(data.Elements, scale, offset)
		g.Data[field] = data
	}
	if zoneVar != "" {
		shape := shapeOf(cf, zoneVar, nrecs)
		if len(shape) != 2 || shape[0] != g.NY || shape[1] != g.NX {
			return nil, fmt.Errorf("modvegeutil: zone variable %s has shape %v; want [%d, %d]", zoneVar, shape, g.NY, g.NX)
		}
		if g.Zones, err = readVariable(cf, zoneVar, shape); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Site returns the forcing of the cell at row j and column i.
func (g *GridForcing) Site(j, i int) []modvege.DailyForcing {
	o := make([]modvege.DailyForcing, len(g.Times))
	for t, tt := range g.Times {
		o[t] = modvege.DailyForcing{
			Time: tt,
			T:    g.Data["T"].Get(t, j, i),
			PAR:  g.Data["PAR"].Get(t, j, i),
			PP:   g.Data["PP"].Get(t, j, i),
			PET:  g.Data["PET"].Get(t, j, i),
		}
	}
	return o
}

// Zone returns the parameter zone of the cell at row j and column i and
// whether the cell is to be simulated.
func (g *GridForcing) Zone(j, i int) (int, bool) {
	if g.Zones == nil {
		return 0, true
	}
	z := g.Zones.Get(j, i)
	if math.IsNaN(z) || z < 0 {
		return 0, false
	}
	return int(z), true
}

// shapeOf returns the dimension lengths of variable v, with the record
// dimension replaced by the number of records.
func shapeOf(f *cdf.File, v string, nrecs int) []int {
	l := f.Header.Lengths(v)
	if l == nil {
		return nil
	}
	shape := make([]int, len(l))
	copy(shape, l)
	if f.Header.IsRecordVariable(v) {
		shape[0] = nrecs
	}
	return shape
}

// readVariable reads variable v with the given shape, applying any
// scale_factor and add_offset attributes and replacing missing values
// with NaN.
func readVariable(f *cdf.File, v string, shape []int) (*sparse.DenseArray, error) {
	data := sparse.ZerosDense(shape...)
	if len(data.Elements) == 0 {
		return data, nil
	}
	begin := make([]int, len(shape))
	end := make([]int, len(shape))
	for i, l := range shape {
		end[i] = l - 1
	}
	r := f.Reader(v, begin, end)
	buf := r.Zero(len(data.Elements))
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("modvegeutil: reading variable %s: %v", v, err)
	}
	if err := toFloat64(buf, data.Elements); err != nil {
		return nil, fmt.Errorf("modvegeutil: reading variable %s: %v", v, err)
	}
	scale, hasScale := attributeValue(f, v, "scale_factor")
	offset, hasOffset := attributeValue(f, v, "add_offset")
	fill, hasFill := attributeValue(f, v, "_FillValue")
	missing, hasMissing := attributeValue(f, v, "missing_value")
	for i, e := range data.Elements {
		switch {
		case hasFill && e == fill, hasMissing && e == missing, math.Abs(e) > 9e36:
			data.Elements[i] = math.NaN()
			continue
		}
		if hasScale {
			e *= scale
		}
		if hasOffset {
			e += offset
		}
		data.Elements[i] = e
	}
	return data, nil
}

func toFloat64(in interface{}, out []float64) error {
	switch v := in.(type) {
	case []float64:
		copy(out, v)
	case []float32:
		for i, e := range v {
			out[i] = float64(e)
		}
	case []int32:
		for i, e := range v {
			out[i] = float64(e)
		}
	case []int16:
		for i, e := range v {
			out[i] = float64(e)
		}
	case []uint8:
		for i, e := range v {
			out[i] = float64(e)
		}
	default:
		return fmt.Errorf("unsupported data type %T", in)
	}
	return nil
}

// attributeValue returns the first value of numeric attribute a of
// variable v.
func attributeValue(f *cdf.File, v, a string) (float64, bool) {
	var o []float64
	switch val := f.Header.GetAttribute(v, a).(type) {
	case []float64:
		o = val
	case nil, string:
		return 0, false
	default:
		o = make([]float64, 1)
		if toFloat64(val, o) != nil {
			return 0, false
		}
		return o[0], true
	}
	if len(o) == 0 {
		return 0, false
	}
	return o[0], true
}

// readTimes reads the "time" variable and decodes it using its CF units
// attribute, for example "days since 2001-01-01".
func readTimes(f *cdf.File, nrecs int) ([]time.Time, error) {
	units, _ := f.Header.GetAttribute("time", "units").(string)
	if units == "" {
		return nil, fmt.Errorf("modvegeutil: forcing file has no time variable with a units attribute")
	}
	if cal, ok := f.Header.GetAttribute("time", "calendar").(string); ok {
		switch strings.ToLower(cal) {
		case "standard", "gregorian", "proleptic_gregorian":
		default:
			return nil, fmt.Errorf("modvegeutil: unsupported calendar %q; daily forcing must use the standard calendar", cal)
		}
	}
	step, origin, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	vals, err := readVariable(f, "time", shapeOf(f, "time", nrecs))
	if err != nil {
		return nil, err
	}
	o := make([]time.Time, len(vals.Elements))
	for i, v := range vals.Elements {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("modvegeutil: missing time value at index %d", i)
		}
		o[i] = origin.Add(time.Duration(math.Round(v * float64(step))))
	}
	return o, nil
}

var timeLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "2006-01-02T15:04:05Z", "2006-1-2", "2006-1-2 15:04:05"}

// parseTimeUnits parses a CF time unit of the form "<unit> since <date>".
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("modvegeutil: invalid time units %q", units)
	}
	var step time.Duration
	switch strings.ToLower(parts[0]) {
	case "days", "day", "d":
		step = 24 * time.Hour
	case "hours", "hour", "h":
		step = time.Hour
	case "minutes", "minute":
		step = time.Minute
	case "seconds", "second", "s":
		step = time.Second
	default:
		return 0, time.Time{}, fmt.Errorf("modvegeutil: invalid time step in units %q", units)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(parts[1])); err == nil {
			return step, t, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("modvegeutil: invalid time origin in units %q", units)
}

// ReadStationCSV reads daily forcing for one site from CSV. The first row
// holds column names: time (YYYY-MM-DD) and T, PAR, PP, PET in model units
// (°C, MJ/m²/day, mm/day, mm/day), in any order. Empty and "NA" values
// are read as missing.
func ReadStationCSV(r io.Reader) ([]modvege.DailyForcing, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("modvegeutil: reading station forcing header: %v", err)
	}
	col := make(map[string]int)
	for i, h := range header {
		col[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	for _, name := range append([]string{"TIME"}, forcingFields...) {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("modvegeutil: station forcing has no %s column", strings.ToLower(name))
		}
	}
	var o []modvege.DailyForcing
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return o, nil
		} else if err != nil {
			return nil, fmt.Errorf("modvegeutil: reading station forcing: %v", err)
		}
		t, err := time.Parse("2006-01-02", strings.TrimSpace(rec[col["TIME"]]))
		if err != nil {
			return nil, fmt.Errorf("modvegeutil: station forcing line %d: %v", line, err)
		}
		var v [4]float64
		for k, name := range forcingFields {
			if v[k], err = parseValue(rec[col[name]]); err != nil {
				return nil, fmt.Errorf("modvegeutil: station forcing line %d, %s: %v", line, name, err)
			}
		}
		o = append(o, modvege.DailyForcing{Time: t, T: v[0], PAR: v[1], PP: v[2], PET: v[3]})
	}
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NA") || strings.EqualFold(s, "NaN") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
