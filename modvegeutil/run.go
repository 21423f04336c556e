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
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/climag/modvege"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// GridConfig configures a gridded simulation.
type GridConfig struct {
	// ForcingFile is a NetCDF file of daily forcing; see ReadGridForcing.
	ForcingFile      string
	ForcingVariables map[string]string
	PARFraction      float64

	// ParameterFile holds the parameters of cells with no zone-specific
	// file. If empty, default parameters are used.
	ParameterFile string

	// ZoneVariable optionally names a [y, x] variable of the forcing file
	// holding the parameter zone of each cell, and ZoneFiles maps zone
	// numbers to parameter files.
	ZoneVariable string
	ZoneFiles    map[string]string

	OutputFile      string
	OutputVariables []string

	Workers         int
	SpinUpPasses    int
	SpinUpTolerance float64

	// Checkpoint optionally names a checkpoint database, where the final
	// state of each cell is saved. If Resume is true, cells start from
	// their checkpoints instead of spinning up, and the first year is
	// included in the output.
	Checkpoint string
	Resume     bool

	// MetricsAddr, if not empty, is the address to serve Prometheus
	// metrics on during the run.
	MetricsAddr string
}

// outputStart returns the index of the first output day. Without
// checkpoints the first year of forcing is used for spin-up and is not
// written, unless it is all the forcing there is.
func outputStart(forcing []modvege.DailyForcing, resume bool, log logrus.FieldLogger) int {
	if resume {
		return 0
	}
	n := modvege.SpinUpDays(forcing)
	if n >= len(forcing) {
		log.Warn("forcing covers only the spin-up year; writing it as output")
		return 0
	}
	return n
}

func siteID(j, i int) string { return fmt.Sprintf("y%d_x%d", j, i) }

// RunGrid simulates every cell of a gridded forcing file and writes the
// daily output to a NetCDF file. Cells whose parameters or forcing are
// unusable are logged and written as missing; the run fails only if
// its inputs or output cannot be read or written, or if ctx is cancelled.
func RunGrid(ctx context.Context, c *GridConfig, log logrus.FieldLogger) error {
	start := time.Now()
	vars, err := checkOutputVars(c.OutputVariables)
	if err != nil {
		return err
	}

	log.WithField("file", c.ForcingFile).Info("reading forcing")
	ff, err := os.Open(c.ForcingFile)
	if err != nil {
		return fmt.Errorf("modvegeutil: opening forcing file: %v", err)
	}
	g, err := ReadGridForcing(ff, c.ForcingVariables, c.PARFraction, c.ZoneVariable)
	ff.Close()
	if err != nil {
		return err
	}
	if len(g.Times) == 0 {
		return fmt.Errorf("modvegeutil: forcing file %s has no days", c.ForcingFile)
	}
	log.WithFields(logrus.Fields{
		"days":  len(g.Times),
		"start": g.Times[0].Format("2006-01-02"),
		"ny":    g.NY,
		"nx":    g.NX,
	}).Info("forcing loaded")

	var store *CheckpointStore
	if c.Checkpoint != "" {
		if store, err = OpenCheckpoints(c.Checkpoint, log); err != nil {
			return err
		}
		defer store.Close()
	}

	reg := prometheus.NewRegistry()
	m := newMetrics(reg)
	if c.MetricsAddr != "" {
		srv := serveMetrics(c.MetricsAddr, reg, log)
		defer srv.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	skip := outputStart(g.Site(0, 0), c.Resume, log)
	out := NewGridOutput(g.Times[skip:], g.NY, g.NX, vars)

	loader := newParameterLoader()
	sites := make(chan *modvege.Site)
	producerErr := make(chan error, 1)
	var rejected int64
	go func() {
		defer close(sites)
		for j := 0; j < g.NY; j++ {
			for i := 0; i < g.NX; i++ {
				site, err := gridSite(ctx, c, g, loader, store, j, i)
				var cfgErr *modvege.ConfigurationError
				if errors.As(err, &cfgErr) {
					log.WithField("site", siteID(j, i)).Warn(err)
					m.sites.WithLabelValues("failed").Inc()
					atomic.AddInt64(&rejected, 1)
					continue
				} else if err != nil {
					producerErr <- err
					cancel()
					return
				}
				if site == nil {
					continue
				}
				select {
				case sites <- site:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	pool := &modvege.Pool{
		Workers:         c.Workers,
		SpinUpPasses:    c.SpinUpPasses,
		SpinUpTolerance: c.SpinUpTolerance,
		Log:             log,
	}
	var nsites, failed, invalidDays int
	var runErr error
	for r := range pool.Run(ctx, sites) {
		m.observe(r)
		nsites++
		var cfgErr *modvege.ConfigurationError
		var fErr *modvege.ForcingDataError
		switch {
		case r.Err == nil:
		case errors.As(r.Err, &cfgErr), errors.As(r.Err, &fErr):
			failed++
			continue
		default:
			if runErr == nil {
				runErr = r.Err
			}
			cancel()
			continue
		}
		invalidDays += r.Summary.InvalidDays
		var j, i int
		if _, err := fmt.Sscanf(r.Site.ID, "y%d_x%d", &j, &i); err != nil {
			return fmt.Errorf("modvegeutil: invalid site id %q", r.Site.ID)
		}
		if err := out.Set(j, i, r.Outputs[skip:]); err != nil {
			return err
		}
		if store != nil {
			last := r.Outputs[len(r.Outputs)-1].Time
			if err := store.Save(r.Site.ID, r.Site.Params, last, r.Final); err != nil {
				return err
			}
		}
	}
	select {
	case err := <-producerErr:
		return err
	default:
	}
	if runErr != nil {
		return runErr
	}
	failed += int(atomic.LoadInt64(&rejected))
	if err := ctx.Err(); err != nil {
		return err
	}

	log.WithField("file", c.OutputFile).Info("writing output")
	w, err := os.Create(c.OutputFile)
	if err != nil {
		return fmt.Errorf("modvegeutil: creating output file: %v", err)
	}
	if err := out.Write(w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	fields := logrus.Fields{
		"sites":       nsites,
		"failed":      failed,
		"invalidDays": invalidDays,
		"duration":    time.Since(start),
	}
	if failed > 0 {
		log.WithFields(fields).Warn("simulation complete with failed sites")
	} else {
		log.WithFields(fields).Info("simulation complete")
	}
	return nil
}

// gridSite prepares the site at row j and column i, or returns nil if the
// cell is masked out.
func gridSite(ctx context.Context, c *GridConfig, g *GridForcing, loader *parameterLoader, store *CheckpointStore, j, i int) (*modvege.Site, error) {
	zone, ok := g.Zone(j, i)
	if !ok {
		return nil, nil
	}
	path := c.ParameterFile
	if f, ok := c.ZoneFiles[strconv.Itoa(zone)]; ok {
		path = f
	} else if g.Zones != nil && len(c.ZoneFiles) > 0 {
		return nil, fmt.Errorf("modvegeutil: no parameter file for zone %d of cell (%d, %d)", zone, j, i)
	}
	p, err := loader.load(ctx, path)
	if err != nil {
		return nil, err
	}
	site := &modvege.Site{ID: siteID(j, i), Params: p, Forcing: g.Site(j, i)}
	if store != nil && c.Resume {
		if site.Initial, err = store.Initial(site.ID, p, g.Times[0]); err != nil {
			return nil, err
		}
	}
	return site, nil
}

// StationConfig configures a simulation of a single site.
type StationConfig struct {
	SiteID string

	// ForcingFile is a CSV file of daily forcing; see ReadStationCSV.
	ForcingFile   string
	ParameterFile string

	OutputFile      string
	OutputVariables []string

	SpinUpPasses    int
	SpinUpTolerance float64

	Checkpoint string
	Resume     bool
}

// RunStation simulates one site from CSV forcing and writes its daily
// output as CSV.
func RunStation(ctx context.Context, c *StationConfig, log logrus.FieldLogger) (*modvege.Summary, error) {
	vars, err := checkOutputVars(c.OutputVariables)
	if err != nil {
		return nil, err
	}
	p, err := ReadParameters(c.ParameterFile)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(c.ForcingFile)
	if err != nil {
		return nil, fmt.Errorf("modvegeutil: opening forcing file: %v", err)
	}
	forcing, err := ReadStationCSV(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	if len(forcing) == 0 {
		return nil, fmt.Errorf("modvegeutil: forcing file %s has no days", c.ForcingFile)
	}
	log = log.WithField("site", c.SiteID)

	var store *CheckpointStore
	var initial *modvege.State
	if c.Checkpoint != "" {
		if store, err = OpenCheckpoints(c.Checkpoint, log); err != nil {
			return nil, err
		}
		defer store.Close()
		if c.Resume {
			if initial, err = store.Initial(c.SiteID, p, forcing[0].Time); err != nil {
				return nil, err
			}
		}
	}

	e, err := modvege.NewEngine(p, log)
	if err != nil {
		return nil, err
	}
	e.SpinUpPasses = c.SpinUpPasses
	e.SpinUpTolerance = c.SpinUpTolerance
	sim, err := e.Simulate(forcing, initial)
	if err != nil {
		return nil, err
	}
	outputs := make([]modvege.DailyOutput, 0, len(forcing))
	for {
		o, err := sim.Next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			return sim.Summary(), err
		}
		outputs = append(outputs, o)
	}
	sum := sim.Summary()

	w, err := os.Create(c.OutputFile)
	if err != nil {
		return sum, fmt.Errorf("modvegeutil: creating output file: %v", err)
	}
	if err := WriteStationCSV(w, outputs[outputStart(forcing, c.Resume, log):], vars); err != nil {
		w.Close()
		return sum, err
	}
	if err := w.Close(); err != nil {
		return sum, err
	}
	if store != nil {
		if err := store.Save(c.SiteID, p, outputs[len(outputs)-1].Time, sim.State()); err != nil {
			return sum, err
		}
	}
	log.WithFields(logrus.Fields{
		"days":        sum.Days,
		"invalidDays": sum.InvalidDays,
		"clamps":      sum.Diagnostics.Total(),
	}).Info("simulation complete")
	return sum, nil
}
