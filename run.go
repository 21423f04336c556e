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
	"context"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Site is one independent unit of simulation: a station or a grid cell.
type Site struct {
	ID      string
	Params  *SiteParameters // shared read-only between sites
	Forcing []DailyForcing

	// Initial is the state to start from; nil means spin up from
	// DefaultState.
	Initial *State
}

// SiteResult is the outcome of simulating one Site.
type SiteResult struct {
	Site     *Site
	Outputs  []DailyOutput // in chronological order
	Final    State         // state after the last simulated day
	Summary  *Summary
	Duration time.Duration

	// Err is a *ConfigurationError or *ForcingDataError that prevented the
	// site from running, or the context error if the run was cancelled,
	// in which case Outputs holds the days completed before cancellation.
	Err error
}

// Pool simulates sites concurrently. Each worker takes whole sites from a
// queue and runs them to completion, so no state is shared between
// workers.
type Pool struct {
	// Workers is the number of concurrent site runs. If < 1, it defaults
	// to GOMAXPROCS.
	Workers int

	SpinUpPasses    int
	SpinUpTolerance float64

	Log logrus.FieldLogger
}

// Run simulates every site received from sites until it is closed or ctx
// is cancelled, and sends each result to the returned channel, which is
// closed once all workers finish. Results for different sites arrive in
// no particular order. Once ctx is cancelled, results that nobody is
// receiving are dropped, so the caller may stop reading.
func (p *Pool) Run(ctx context.Context, sites <-chan *Site) <-chan *SiteResult {
	nprocs := p.Workers
	if nprocs < 1 {
		nprocs = runtime.GOMAXPROCS(0)
	}
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	results := make(chan *SiteResult, nprocs)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case site, ok := <-sites:
					if !ok {
						return
					}
					r := p.runSite(ctx, site, log.WithFields(logrus.Fields{"site": site.ID, "worker": pp}))
					select {
					case results <- r:
					case <-ctx.Done():
						return
					}
				}
			}
		}(pp)
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

func (p *Pool) runSite(ctx context.Context, site *Site, log logrus.FieldLogger) *SiteResult {
	start := time.Now()
	r := &SiteResult{Site: site}
	defer func() { r.Duration = time.Since(start) }()

	e, err := NewEngine(site.Params, log)
	if err != nil {
		log.WithError(err).Error("invalid site configuration")
		r.Err = err
		return r
	}
	e.SpinUpPasses = p.SpinUpPasses
	e.SpinUpTolerance = p.SpinUpTolerance

	sim, err := e.Simulate(site.Forcing, site.Initial)
	if err != nil {
		log.WithError(err).Error("invalid site input")
		r.Err = err
		return r
	}
	r.Outputs, r.Summary, r.Err = collect(ctx, sim, len(site.Forcing))
	r.Final = sim.State()
	if r.Err != nil {
		log.WithError(r.Err).Warn("site run cancelled")
		return r
	}
	log.WithFields(logrus.Fields{
		"days":        r.Summary.Days,
		"invalidDays": r.Summary.InvalidDays,
		"clamps":      r.Summary.Diagnostics.Total(),
	}).Info("site complete")
	return r
}

func collect(ctx context.Context, sim *Simulation, n int) ([]DailyOutput, *Summary, error) {
	out := make([]DailyOutput, 0, n)
	for {
		o, err := sim.Next(ctx)
		if err == io.EOF {
			return out, sim.Summary(), nil
		} else if err != nil {
			return out, sim.Summary(), err
		}
		out = append(out, o)
	}
}
