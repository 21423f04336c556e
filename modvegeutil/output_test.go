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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/climag/modvege"
	"github.com/ctessum/cdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOutputs(n int) []modvege.DailyOutput {
	o := make([]modvege.DailyOutput, n)
	for i := range o {
		o[i] = modvege.DailyOutput{
			Time:  time.Date(2001, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Valid: true,
			GRO:   float64(10 * i),
			BM:    1000 + float64(i),
		}
	}
	return o
}

func TestCheckOutputVars(t *testing.T) {
	vars, err := checkOutputVars([]string{"bm", "valid", "c_bm_all"})
	require.NoError(t, err)
	require.Len(t, vars, 3)
	assert.Equal(t, "bm", vars[0].Name)
	assert.Equal(t, "kg DM/ha", vars[0].Units)
	assert.Equal(t, "valid", vars[1].Name)

	_, err = checkOutputVars(nil)
	assert.Error(t, err)
	_, err = checkOutputVars([]string{"bm", "yield"})
	assert.EqualError(t, err, `modvegeutil: invalid output variable "yield"`)
}

func TestGridOutput(t *testing.T) {
	vars, err := checkOutputVars([]string{"gro", "bm", "valid"})
	require.NoError(t, err)
	outputs := testOutputs(3)
	outputs[1].Valid = false
	times := []time.Time{outputs[0].Time, outputs[1].Time, outputs[2].Time}

	o := NewGridOutput(times, 2, 2, vars)
	require.NoError(t, o.Set(1, 0, outputs))
	assert.Error(t, o.Set(0, 0, outputs[:2]))

	path := filepath.Join(t.TempDir(), "out.nc")
	w, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, o.Write(w))
	require.NoError(t, w.Close())

	r, err := os.Open(path)
	require.NoError(t, err)
	defer r.Close()
	f, err := cdf.Open(r)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 2, 2}, f.Header.Lengths("bm"))
	assert.Equal(t, "days since 2001-01-01", f.Header.GetAttribute("time", "units"))
	assert.Equal(t, "kg DM/ha", f.Header.GetAttribute("bm", "units"))

	read := func(v string) []float32 {
		rd := f.Reader(v, nil, nil)
		buf := rd.Zero(12)
		_, err := rd.Read(buf)
		require.NoError(t, err, v)
		return buf.([]float32)
	}
	// Cell (1, 0) is element 2 of each [y, x] slab.
	bm := read("bm")
	assert.Equal(t, []float32{1000, 1001, 1002}, []float32{bm[2], bm[6], bm[10]})
	assert.Equal(t, float32(outputFill), bm[0])
	assert.Equal(t, float32(outputFill), bm[11])
	valid := read("valid")
	assert.Equal(t, []float32{1, 0, 1}, []float32{valid[2], valid[6], valid[10]})
	gro := read("gro")
	assert.Equal(t, float32(20), gro[10])

	// The time axis decodes back to the output dates.
	days, err := readTimes(f, 0)
	require.NoError(t, err)
	assert.Equal(t, times, days)
}

func TestGridOutputEmpty(t *testing.T) {
	o := NewGridOutput(nil, 1, 1, []modvege.OutputVariable{{Name: "bm"}})
	w, err := os.Create(filepath.Join(t.TempDir(), "out.nc"))
	require.NoError(t, err)
	defer w.Close()
	assert.Error(t, o.Write(w))
}

func TestWriteStationCSV(t *testing.T) {
	vars, err := checkOutputVars([]string{"bm", "gro", "valid"})
	require.NoError(t, err)
	outputs := testOutputs(2)
	outputs[1].Valid = false
	outputs[1].Err = &modvege.ForcingDataError{Day: 1, Time: outputs[1].Time, Field: "PP", Value: -1, Reason: "negative precipitation"}

	var buf bytes.Buffer
	require.NoError(t, WriteStationCSV(&buf, outputs, vars))
	want := strings.Join([]string{
		"time,bm,gro,valid,error",
		"2001-01-01,1000,0,1,",
		"2001-01-02,1001,10,0,PP: negative precipitation",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}
