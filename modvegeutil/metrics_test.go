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
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/climag/modvege"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	m.observe(&modvege.SiteResult{
		Duration: 2 * time.Millisecond,
		Summary: &modvege.Summary{
			Days:        365,
			InvalidDays: 3,
			Diagnostics: modvege.Diagnostics{"growth/fT": 2, "senescence/GV": 1},
		},
	})
	m.observe(&modvege.SiteResult{
		Duration: time.Millisecond,
		Summary:  &modvege.Summary{Days: 365},
	})
	m.observe(&modvege.SiteResult{Err: errors.New("failed")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sites.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sites.WithLabelValues("failed")))
	assert.Equal(t, 730.0, testutil.ToFloat64(m.days))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.invalidDays))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.clamps.WithLabelValues("growth", "fT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clamps.WithLabelValues("senescence", "GV")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, f := range families {
		if f.GetName() == "modvege_site_duration_seconds" {
			samples = f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(3), samples)
}

func TestServeMetrics(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	reg := prometheus.NewRegistry()
	m := newMetrics(reg)
	m.days.Add(10)
	srv := serveMetrics(addr, reg, quietLogger())
	defer srv.Close()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		if resp, err = http.Get("http://" + addr + "/metrics"); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "modvege_days_total 10"), string(b))
}
