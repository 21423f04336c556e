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
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

// zoneGrid is the parameter zone layout of the 2x2 test grid. The cell at
// (0, 1) is masked.
var zoneGrid = []float32{1, -1, 2, 1}

// writeTestForcing writes ndays of constant forcing starting on origin
// (YYYY-MM-DD) for a 2x2 grid to a NetCDF file in CF units. Cells in row 1
// are one degree warmer.
func writeTestForcing(t *testing.T, path, origin string, ndays int) {
	const ny, nx = 2, 2
	h := cdf.NewHeader([]string{"time", "y", "x"}, []int{ndays, ny, nx})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "days since "+origin)
	h.AddAttribute("time", "calendar", "standard")
	for _, v := range []struct{ name, units string }{
		{"tas", "K"},
		{"rsds", "W m-2"},
		{"pr", "kg m-2 s-1"},
		{"evspsblpot", "kg m-2 s-1"},
	} {
		h.AddVariable(v.name, []string{"time", "y", "x"}, []float32{0})
		h.AddAttribute(v.name, "units", v.units)
	}
	h.AddVariable("zone", []string{"y", "x"}, []float32{0})
	h.Define()
	require.Empty(t, h.Check())

	w, err := os.Create(path)
	require.NoError(t, err)
	defer w.Close()
	f, err := cdf.Create(w, h)
	require.NoError(t, err)

	days := make([]float64, ndays)
	for i := range days {
		days[i] = float64(i)
	}
	_, err = f.Writer("time", nil, nil).Write(days)
	require.NoError(t, err)

	fields := map[string]func(j int) float32{
		"tas":        func(j int) float32 { return 288.15 + float32(j) },
		"rsds":       func(int) float32 { return 200 },
		"pr":         func(int) float32 { return 3.0 / 86400 },
		"evspsblpot": func(int) float32 { return 2.0 / 86400 },
	}
	for name, val := range fields {
		data := make([]float32, ndays*ny*nx)
		for i := range data {
			data[i] = val((i / nx) % ny)
		}
		_, err = f.Writer(name, nil, nil).Write(data)
		require.NoError(t, err, name)
	}
	_, err = f.Writer("zone", nil, nil).Write(zoneGrid)
	require.NoError(t, err)
	require.NoError(t, cdf.UpdateNumRecs(w))
}

func TestReadGridForcing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forcing.nc")
	writeTestForcing(t, path, "2001-01-01", 10)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	g, err := ReadGridForcing(f, nil, 0.473, "zone")
	require.NoError(t, err)

	require.Len(t, g.Times, 10)
	assert.Equal(t, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), g.Times[0])
	assert.Equal(t, time.Date(2001, 1, 10, 0, 0, 0, 0, time.UTC), g.Times[9])
	assert.Equal(t, 2, g.NY)
	assert.Equal(t, 2, g.NX)

	s := g.Site(1, 0)
	require.Len(t, s, 10)
	assert.InDelta(t, 16, s[3].T, 1e-3)
	assert.InDelta(t, 200*0.0864*0.473, s[3].PAR, 1e-4)
	assert.InDelta(t, 3, s[3].PP, 1e-4)
	assert.InDelta(t, 2, s[3].PET, 1e-4)
	assert.InDelta(t, 15, g.Site(0, 0)[0].T, 1e-3)

	for _, c := range []struct {
		j, i, zone int
		ok         bool
	}{
		{0, 0, 1, true},
		{0, 1, 0, false},
		{1, 0, 2, true},
		{1, 1, 1, true},
	} {
		zone, ok := g.Zone(c.j, c.i)
		assert.Equal(t, c.ok, ok, "cell (%d, %d)", c.j, c.i)
		assert.Equal(t, c.zone, zone, "cell (%d, %d)", c.j, c.i)
	}
}

func TestReadGridForcingErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forcing.nc")
	writeTestForcing(t, path, "2001-01-01", 3)

	for name, c := range map[string]struct {
		vars    map[string]string
		zoneVar string
		msg     string
	}{
		"missing variable": {vars: map[string]string{"T": "tmean"}, msg: "no variable tmean"},
		"wrong units":      {vars: map[string]string{"T": "rsds"}, msg: "forcing T"},
		"wrong shape":      {vars: map[string]string{"PP": "zone"}, msg: "want [time, y, x]"},
		"zone shape":       {zoneVar: "tas", msg: "zone variable tas"},
	} {
		t.Run(name, func(t *testing.T) {
			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()
			_, err = ReadGridForcing(f, c.vars, 0.473, c.zoneVar)
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.msg)
		})
	}
}

func TestParseTimeUnits(t *testing.T) {
	step, origin, err := parseTimeUnits("hours since 1990-06-01 12:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, step)
	assert.Equal(t, time.Date(1990, 6, 1, 12, 0, 0, 0, time.UTC), origin)

	for _, u := range []string{"days", "fortnights since 2001-01-01", "days since yesterday"} {
		_, _, err := parseTimeUnits(u)
		assert.Error(t, err, u)
	}
}

func TestReadStationCSV(t *testing.T) {
	in := `time, T, PAR, PP, PET
2001-01-01, 5.5, 3, 0, 0.5
2001-01-02, NA, 3.5, 1.2, 0.6
2001-01-03, 6, , 0, 0.7
`
	f, err := ReadStationCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, f, 3)
	assert.Equal(t, time.Date(2001, 1, 2, 0, 0, 0, 0, time.UTC), f[1].Time)
	assert.Equal(t, 5.5, f[0].T)
	assert.Equal(t, 1.2, f[1].PP)
	assert.True(t, math.IsNaN(f[1].T))
	assert.True(t, math.IsNaN(f[2].PAR))

	// Columns may come in any order and any case.
	f, err = ReadStationCSV(strings.NewReader("pet,pp,par,t,TIME\n0.5,0,3,5.5,2001-01-01\n"))
	require.NoError(t, err)
	require.Len(t, f, 1)
	assert.Equal(t, 0.5, f[0].PET)
	assert.Equal(t, 5.5, f[0].T)
}

func TestReadStationCSVErrors(t *testing.T) {
	for name, in := range map[string]string{
		"missing column": "time,T,PAR,PP\n2001-01-01,1,2,3\n",
		"bad date":       "time,T,PAR,PP,PET\n01/01/2001,1,2,3,4\n",
		"bad value":      "time,T,PAR,PP,PET\n2001-01-01,warm,2,3,4\n",
		"empty":          "",
	} {
		if _, err := ReadStationCSV(strings.NewReader(in)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestReadGridForcingKeyCase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forcing.nc")
	writeTestForcing(t, path, "2001-01-01", 2)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = ReadGridForcing(f, map[string]string{"t": "tmean"}, 0.473, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no variable tmean for T")
}
