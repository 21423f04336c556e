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
	"context"
	"fmt"
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

// readGridOutput reads variable v from a gridded output file.
func readGridOutput(t *testing.T, path, v string) (units string, lengths []int, data []float32) {
	r, err := os.Open(path)
	require.NoError(t, err)
	defer r.Close()
	f, err := cdf.Open(r)
	require.NoError(t, err)
	lengths = f.Header.Lengths(v)
	require.NotNil(t, lengths, v)
	n := 1
	for _, l := range lengths {
		n *= l
	}
	rd := f.Reader(v, nil, nil)
	buf := rd.Zero(n)
	_, err = rd.Read(buf)
	require.NoError(t, err)
	units, _ = f.Header.GetAttribute("time", "units").(string)
	return units, lengths, buf.([]float32)
}

func gridConfig(t *testing.T, dir, forcing, output string) *GridConfig {
	return &GridConfig{
		ForcingFile:  forcing,
		PARFraction:  0.473,
		ZoneVariable: "zone",
		ZoneFiles: map[string]string{
			"1": writeFile(t, dir, "zone1.toml", "ni = 0.9\n"),
			"2": writeFile(t, dir, "zone2.toml", "ni = 0.6\n"),
		},
		OutputFile:      output,
		OutputVariables: []string{"bm", "gro", "valid"},
		Workers:         2,
		SpinUpPasses:    2,
		Checkpoint:      filepath.Join(dir, "checkpoints.db"),
	}
}

func TestRunGrid(t *testing.T) {
	dir := t.TempDir()
	forcing := filepath.Join(dir, "forcing.nc")
	writeTestForcing(t, forcing, "2001-01-01", 730)
	out := filepath.Join(dir, "out.nc")

	require.NoError(t, RunGrid(context.Background(), gridConfig(t, dir, forcing, out), quietLogger()))

	units, lengths, bm := readGridOutput(t, out, "bm")
	assert.Equal(t, "days since 2002-01-01", units)
	require.Equal(t, []int{365, 2, 2}, lengths)
	_, _, valid := readGridOutput(t, out, "valid")
	for day := 0; day < 365; day++ {
		for cell := 0; cell < 4; cell++ {
			k := day*4 + cell
			if cell == 1 {
				require.Equal(t, float32(outputFill), bm[k], "masked cell, day %d", day)
				continue
			}
			require.True(t, bm[k] > 0, "cell %d day %d: bm = %g", cell, day, bm[k])
			require.Equal(t, float32(1), valid[k])
		}
	}
	// Zone 2 has a lower nutritional index.
	_, _, gro := readGridOutput(t, out, "gro")
	var gro0, gro2 float32
	for day := 0; day < 365; day++ {
		gro0 += gro[day*4]
		gro2 += gro[day*4+2]
	}
	assert.True(t, gro2 < gro0, "zone 2 growth %g should be below zone 1 growth %g", gro2, gro0)

	store, err := OpenCheckpoints(filepath.Join(dir, "checkpoints.db"), quietLogger())
	require.NoError(t, err)
	defer store.Close()
	p1, err := ReadParameters(filepath.Join(dir, "zone1.toml"))
	require.NoError(t, err)
	c, err := store.Load("y0_x0", p1)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, time.Date(2002, 12, 31, 0, 0, 0, 0, time.UTC), c.Date)
	c, err = store.Load("y0_x1", p1)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestRunGridResume(t *testing.T) {
	dir := t.TempDir()

	// A continuous three-year run.
	full := filepath.Join(dir, "full.nc")
	writeTestForcing(t, full, "2001-01-01", 1095)
	fullOut := filepath.Join(dir, "full_out.nc")
	c := gridConfig(t, dir, full, fullOut)
	c.Checkpoint = ""
	require.NoError(t, RunGrid(context.Background(), c, quietLogger()))
	_, lengths, want := readGridOutput(t, fullOut, "bm")
	require.Equal(t, []int{730, 2, 2}, lengths)

	// The same period as two years followed by a resumed third year.
	first := filepath.Join(dir, "first.nc")
	writeTestForcing(t, first, "2001-01-01", 730)
	require.NoError(t, RunGrid(context.Background(), gridConfig(t, dir, first, filepath.Join(dir, "first_out.nc")), quietLogger()))

	second := filepath.Join(dir, "second.nc")
	writeTestForcing(t, second, "2003-01-01", 365)
	secondOut := filepath.Join(dir, "second_out.nc")
	c = gridConfig(t, dir, second, secondOut)
	c.Resume = true
	require.NoError(t, RunGrid(context.Background(), c, quietLogger()))

	units, lengths, have := readGridOutput(t, secondOut, "bm")
	assert.Equal(t, "days since 2003-01-01", units)
	require.Equal(t, []int{365, 2, 2}, lengths)
	for k := range have {
		require.InDelta(t, want[365*4+k], have[k], 1e-2, "element %d", k)
	}
}

func TestRunGridErrors(t *testing.T) {
	dir := t.TempDir()
	forcing := filepath.Join(dir, "forcing.nc")
	writeTestForcing(t, forcing, "2001-01-01", 30)

	c := gridConfig(t, dir, forcing, filepath.Join(dir, "out.nc"))
	delete(c.ZoneFiles, "2")
	err := RunGrid(context.Background(), c, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parameter file for zone 2")

	c = gridConfig(t, dir, forcing, filepath.Join(dir, "out.nc"))
	c.OutputVariables = []string{"yield"}
	assert.Error(t, RunGrid(context.Background(), c, quietLogger()))

	c = gridConfig(t, dir, filepath.Join(dir, "missing.nc"), filepath.Join(dir, "out.nc"))
	assert.Error(t, RunGrid(context.Background(), c, quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c = gridConfig(t, dir, forcing, filepath.Join(dir, "out.nc"))
	assert.ErrorIs(t, RunGrid(ctx, c, quietLogger()), context.Canceled)
}

func TestRunGridInvalidZone(t *testing.T) {
	dir := t.TempDir()
	forcing := filepath.Join(dir, "forcing.nc")
	writeTestForcing(t, forcing, "2001-01-01", 30)
	out := filepath.Join(dir, "out.nc")

	c := gridConfig(t, dir, forcing, out)
	c.ZoneFiles["2"] = writeFile(t, dir, "bad.toml", "sla = -1.0\n")
	require.NoError(t, RunGrid(context.Background(), c, quietLogger()))

	_, _, bm := readGridOutput(t, out, "bm")
	for day := 0; day < 30; day++ {
		assert.Equal(t, float32(outputFill), bm[day*4+2], "day %d", day)
		assert.True(t, bm[day*4] > 0, "day %d", day)
	}
}

// writeStationForcing writes ndays of constant forcing starting on
// 2001-01-01, with negative precipitation on day bad.
func writeStationForcing(t *testing.T, path string, ndays, bad int) {
	var b strings.Builder
	b.WriteString("time,T,PAR,PP,PET\n")
	for i := 0; i < ndays; i++ {
		pp := 3.0
		if i == bad {
			pp = -1
		}
		fmt.Fprintf(&b, "%s,15,8,%g,2\n", time.Date(2001, 1, 1+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), pp)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func TestRunStation(t *testing.T) {
	dir := t.TempDir()
	forcing := filepath.Join(dir, "station.csv")
	writeStationForcing(t, forcing, 730, 400)
	out := filepath.Join(dir, "out.csv")

	sum, err := RunStation(context.Background(), &StationConfig{
		SiteID:          "moorepark",
		ForcingFile:     forcing,
		OutputFile:      out,
		OutputVariables: []string{"bm", "valid"},
		SpinUpPasses:    1,
		Checkpoint:      filepath.Join(dir, "checkpoints.db"),
	}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 730, sum.Days)
	assert.Equal(t, 1, sum.InvalidDays)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 366)
	assert.Equal(t, "time,bm,valid,error", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2002-01-01,"), lines[1])
	// Day 400 is the 36th day of the output year.
	assert.True(t, strings.HasPrefix(lines[36], "2002-02-05,"), lines[36])
	assert.Contains(t, lines[36], ",0,PP: ")

	store, err := OpenCheckpoints(filepath.Join(dir, "checkpoints.db"), quietLogger())
	require.NoError(t, err)
	defer store.Close()
	c, err := store.Load("moorepark", modvege.DefaultParameters())
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, time.Date(2002, 12, 31, 0, 0, 0, 0, time.UTC), c.Date)
}

func TestRunStationErrors(t *testing.T) {
	dir := t.TempDir()
	forcing := filepath.Join(dir, "station.csv")
	writeStationForcing(t, forcing, 10, -1)

	_, err := RunStation(context.Background(), &StationConfig{
		ForcingFile:     forcing,
		ParameterFile:   writeFile(t, dir, "bad.toml", "whc = 0.0\n"),
		OutputFile:      filepath.Join(dir, "out.csv"),
		OutputVariables: []string{"bm"},
	}, quietLogger())
	var cfgErr *modvege.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	require.NoError(t, os.WriteFile(forcing, []byte("time,T,PAR,PP,PET\n"), 0644))
	_, err = RunStation(context.Background(), &StationConfig{
		ForcingFile:     forcing,
		OutputFile:      filepath.Join(dir, "out.csv"),
		OutputVariables: []string{"bm"},
	}, quietLogger())
	assert.Error(t, err)
}
