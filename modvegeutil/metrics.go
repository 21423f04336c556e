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
	"net/http"
	"strings"

	"github.com/climag/modvege"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "modvege"

// metrics records the progress of a multi-site run.
type metrics struct {
	sites       *prometheus.CounterVec
	days        prometheus.Counter
	invalidDays prometheus.Counter
	clamps      *prometheus.CounterVec
	duration    prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		sites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sites_total",
				Help:      "Sites simulated, by outcome",
			},
			[]string{"status"},
		),
		days: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_total",
			Help:      "Site-days simulated, excluding spin-up",
		}),
		invalidDays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_days_total",
			Help:      "Site-days with rejected forcing",
		}),
		clamps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clamps_total",
				Help:      "Intermediate values clamped back into their physical domain",
			},
			[]string{"process", "quantity"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "site_duration_seconds",
			Help:      "Wall time to simulate one site, including spin-up",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	reg.MustRegister(m.sites, m.days, m.invalidDays, m.clamps, m.duration)
	return m
}

// observe records a completed site.
func (m *metrics) observe(r *modvege.SiteResult) {
	status := "ok"
	if r.Err != nil {
		status = "failed"
	}
	m.sites.WithLabelValues(status).Inc()
	m.duration.Observe(r.Duration.Seconds())
	if r.Summary == nil {
		return
	}
	m.days.Add(float64(r.Summary.Days))
	m.invalidDays.Add(float64(r.Summary.InvalidDays))
	for k, n := range r.Summary.Diagnostics {
		parts := strings.SplitN(k, "/", 2)
		if len(parts) != 2 {
			continue
		}
		m.clamps.WithLabelValues(parts[0], parts[1]).Add(float64(n))
	}
}

// serveMetrics serves the metrics in reg at addr/metrics until the
// returned server is closed.
func serveMetrics(addr string, reg *prometheus.Registry, log logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
	return srv
}
