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
	"math"

	"github.com/climag/modvege/science/growth/jouvengrowth"
	"github.com/climag/modvege/science/management/cutgraze"
	"github.com/climag/modvege/science/quality/omd"
	"github.com/climag/modvege/science/senescence/jouvensen"
	"github.com/climag/modvege/science/water/bucket"
)

// SiteParameters holds the static constants of one site. A SiteParameters
// value is never modified by a simulation and may be shared by any number
// of concurrent site runs.
type SiteParameters struct {
	T0   float64 `toml:"t0" desc:"Minimum temperature for growth" units:"°C"`
	T1   float64 `toml:"t1" desc:"Lower bound of the optimum growth temperature range" units:"°C"`
	T2   float64 `toml:"t2" desc:"Upper bound of the optimum growth temperature range" units:"°C"`
	TMax float64 `toml:"t_max" desc:"Maximum temperature for growth" units:"°C"`

	ST1 float64 `toml:"st1" desc:"Growing degree day sum at the start of the reproductive period" units:"°C d"`
	ST2 float64 `toml:"st2" desc:"Growing degree day sum at the end of the reproductive period" units:"°C d"`

	MinSEA float64 `toml:"min_sea" desc:"Minimum seasonal effect" units:"-"`
	MaxSEA float64 `toml:"max_sea" desc:"Maximum seasonal effect" units:"-"`

	RUEMax float64 `toml:"rue_max" desc:"Maximum radiation use efficiency" units:"g DM/MJ"`
	SLA    float64 `toml:"sla" desc:"Specific leaf area" units:"m²/g"`
	PctLAM float64 `toml:"pct_lam" desc:"Fraction of laminae in green vegetative biomass" units:"-"`
	MinLAI float64 `toml:"min_lai" desc:"Leaf area index assumed for light interception by a sparse sward" units:"m²/m²"`
	NI     float64 `toml:"ni" desc:"Nutritional index" units:"-"`

	LLS     float64 `toml:"lls" desc:"Leaf lifespan" units:"°C d"`
	KGV     float64 `toml:"k_gv" desc:"Basic senescence rate of green vegetative biomass" units:"1/°C d"`
	KGR     float64 `toml:"k_gr" desc:"Basic senescence rate of green reproductive biomass" units:"1/°C d"`
	KlDV    float64 `toml:"kl_dv" desc:"Basic abscission rate of dead vegetative biomass" units:"1/°C d"`
	KlDR    float64 `toml:"kl_dr" desc:"Basic abscission rate of dead reproductive biomass" units:"1/°C d"`
	SigmaGV float64 `toml:"sigma_gv" desc:"Respiratory loss during senescence of green vegetative biomass" units:"-"`
	SigmaGR float64 `toml:"sigma_gr" desc:"Respiratory loss during senescence of green reproductive biomass" units:"-"`

	WHC          float64 `toml:"whc" desc:"Soil water holding capacity" units:"mm"`
	AETThreshold float64 `toml:"aet_threshold" desc:"Relative water reserve below which evapotranspiration is limited" units:"-"`
	Drainage     float64 `toml:"drainage" desc:"Daily drainage fraction of the water reserve" units:"1/day"`

	MaxOMDGV float64 `toml:"max_omd_gv" desc:"Maximum digestibility of green vegetative biomass" units:"-"`
	MinOMDGV float64 `toml:"min_omd_gv" desc:"Minimum digestibility of green vegetative biomass" units:"-"`
	MaxOMDGR float64 `toml:"max_omd_gr" desc:"Maximum digestibility of green reproductive biomass" units:"-"`
	MinOMDGR float64 `toml:"min_omd_gr" desc:"Minimum digestibility of green reproductive biomass" units:"-"`
	OMDDV    float64 `toml:"omd_dv" desc:"Digestibility of dead vegetative biomass" units:"-"`
	OMDDR    float64 `toml:"omd_dr" desc:"Digestibility of dead reproductive biomass" units:"-"`

	MaxBiomass float64 `toml:"max_biomass" desc:"Largest standing biomass the site can carry" units:"kg DM/ha"`

	Management cutgraze.Plan `toml:"management"`
}

// DefaultParameters returns the parameters of a permanent grassland
// without management, after Jouven et al. (2006).
func DefaultParameters() *SiteParameters {
	return &SiteParameters{
		T0: 4, T1: 10, T2: 20, TMax: 40,
		ST1: 600, ST2: 1200,
		MinSEA: 0.8, MaxSEA: 1.2,
		RUEMax: 3, SLA: 0.033, PctLAM: 0.68, MinLAI: 0.2, NI: 0.9,
		LLS: 500, KGV: 0.002, KGR: 0.001, KlDV: 0.001, KlDR: 0.0005,
		SigmaGV: 0.4, SigmaGR: 0.2,
		WHC: 100, AETThreshold: 0.5, Drainage: 0,
		MaxOMDGV: 0.9, MinOMDGV: 0.75, MaxOMDGR: 0.9, MinOMDGR: 0.65, OMDDV: 0.45, OMDDR: 0.4,
		MaxBiomass: 20000,
	}
}

// Validate checks the parameters for consistency. It returns a
// *ConfigurationError listing every problem found, or nil.
func (p *SiteParameters) Validate() error {
	var problems []string
	add := func(format string, a ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, a...))
	}
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"t0", p.T0}, {"t1", p.T1}, {"t2", p.T2}, {"t_max", p.TMax},
		{"st1", p.ST1}, {"st2", p.ST2}, {"min_sea", p.MinSEA}, {"max_sea", p.MaxSEA},
		{"rue_max", p.RUEMax}, {"sla", p.SLA}, {"pct_lam", p.PctLAM}, {"min_lai", p.MinLAI}, {"ni", p.NI},
		{"lls", p.LLS}, {"k_gv", p.KGV}, {"k_gr", p.KGR}, {"kl_dv", p.KlDV}, {"kl_dr", p.KlDR},
		{"sigma_gv", p.SigmaGV}, {"sigma_gr", p.SigmaGR},
		{"whc", p.WHC}, {"aet_threshold", p.AETThreshold}, {"drainage", p.Drainage},
		{"max_omd_gv", p.MaxOMDGV}, {"min_omd_gv", p.MinOMDGV}, {"max_omd_gr", p.MaxOMDGR},
		{"min_omd_gr", p.MinOMDGR}, {"omd_dv", p.OMDDV}, {"omd_dr", p.OMDDR},
		{"max_biomass", p.MaxBiomass},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			add("%s is not finite", v.name)
			continue
		}
		// Temperatures are the only parameters that may be negative.
		if v.val < 0 && v.name[0] != 't' {
			add("%s = %g must not be negative", v.name, v.val)
		}
	}
	if !(p.T0 < p.T1 && p.T1 <= p.T2 && p.T2 < p.TMax) {
		add("temperature thresholds must satisfy t0 < t1 <= t2 < t_max (have %g, %g, %g, %g)", p.T0, p.T1, p.T2, p.TMax)
	}
	if !(p.ST1 > 0 && p.ST1 < p.ST2) {
		add("degree day sums must satisfy 0 < st1 < st2 (have %g, %g)", p.ST1, p.ST2)
	}
	if p.MinSEA > p.MaxSEA {
		add("min_sea %g exceeds max_sea %g", p.MinSEA, p.MaxSEA)
	}
	if p.LLS <= 0 {
		add("lls must be positive")
	}
	if p.WHC <= 0 {
		add("whc must be positive")
	}
	if p.MaxBiomass <= 0 {
		add("max_biomass must be positive")
	}
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"pct_lam", p.PctLAM}, {"ni", p.NI}, {"sigma_gv", p.SigmaGV}, {"sigma_gr", p.SigmaGR},
		{"aet_threshold", p.AETThreshold}, {"drainage", p.Drainage},
		{"max_omd_gv", p.MaxOMDGV}, {"min_omd_gv", p.MinOMDGV}, {"max_omd_gr", p.MaxOMDGR},
		{"min_omd_gr", p.MinOMDGR}, {"omd_dv", p.OMDDV}, {"omd_dr", p.OMDDR},
	} {
		if v.val > 1 {
			add("%s = %g must not exceed 1", v.name, v.val)
		}
	}
	if p.MinOMDGV > p.MaxOMDGV || p.MinOMDGR > p.MaxOMDGR {
		add("minimum digestibility exceeds maximum digestibility")
	}
	for _, s := range p.Management.Validate(p.MaxBiomass) {
		add("management: %s", s)
	}
	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

func (p *SiteParameters) water() bucket.Params {
	return bucket.Params{Capacity: p.WHC, AETThreshold: p.AETThreshold, Drainage: p.Drainage}
}

func (p *SiteParameters) growth() jouvengrowth.Params {
	return jouvengrowth.Params{
		T0: p.T0, T1: p.T1, T2: p.T2, TMax: p.TMax,
		ST1: p.ST1, ST2: p.ST2,
		MinSEA: p.MinSEA, MaxSEA: p.MaxSEA,
		RUEMax: p.RUEMax, SLA: p.SLA, PctLAM: p.PctLAM, MinLAI: p.MinLAI,
		NI: p.NI,
	}
}

func (p *SiteParameters) senescence() jouvensen.Params {
	return jouvensen.Params{
		T0: p.T0, LLS: p.LLS, ST1: p.ST1, ST2: p.ST2,
		KGV: p.KGV, KGR: p.KGR, KlDV: p.KlDV, KlDR: p.KlDR,
		SigmaGV: p.SigmaGV, SigmaGR: p.SigmaGR,
	}
}

func (p *SiteParameters) digestibility() omd.Params {
	return omd.Params{
		MaxGV: p.MaxOMDGV, MinGV: p.MinOMDGV, MaxGR: p.MaxOMDGR, MinGR: p.MinOMDGR,
		DV: p.OMDDV, DR: p.OMDDR, LLS: p.LLS, ST1: p.ST1, ST2: p.ST2,
	}
}
