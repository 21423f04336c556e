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
	"reflect"
	"time"
)

// DailyOutput is the record emitted for one site and one day. Fluxes are
// zero on invalid days; state variables then repeat the previous day's.
type DailyOutput struct {
	Time time.Time

	// Valid is false if the day's forcing was rejected, in which case
	// Err describes why.
	Valid bool
	Err   *ForcingDataError

	// CycleEnd is true on the day the degree day sum reached ST2 and
	// restarted.
	CycleEnd bool

	GRO         float64 `name:"gro" desc:"Actual growth" units:"kg DM/ha/day"`
	PGRO        float64 `name:"pgro" desc:"Potential growth" units:"kg DM/ha/day"`
	BM          float64 `name:"bm" desc:"Standing biomass" units:"kg DM/ha"`
	GV          float64 `name:"gv" desc:"Green vegetative biomass" units:"kg DM/ha"`
	GR          float64 `name:"gr" desc:"Green reproductive biomass" units:"kg DM/ha"`
	DV          float64 `name:"dv" desc:"Dead vegetative biomass" units:"kg DM/ha"`
	DR          float64 `name:"dr" desc:"Dead reproductive biomass" units:"kg DM/ha"`
	SenAbs      float64 `name:"sen_abs" desc:"Senescence and abscission" units:"kg DM/ha/day"`
	ABS         float64 `name:"abs" desc:"Abscission" units:"kg DM/ha/day"`
	// Respiration is lost from the sward as green matter senesces. It is
	// not part of SenAbs, so on days without defoliation
	// BM = previous BM + GRO - ABS - Respiration.
	Respiration float64 `name:"resp" desc:"Respiratory loss during senescence" units:"kg DM/ha/day"`
	Removed     float64 `name:"removed" desc:"Biomass removed by cutting or grazing" units:"kg DM/ha/day"`
	CBM         float64 `name:"c_bm" desc:"Cumulative consumed or harvested biomass since the last reset" units:"kg DM/ha"`
	CBMAll      float64 `name:"c_bm_all" desc:"Cumulative consumed or harvested biomass" units:"kg DM/ha"`
	WR          float64 `name:"wr" desc:"Soil water reserve" units:"mm"`
	AET         float64 `name:"aet" desc:"Actual evapotranspiration" units:"mm/day"`
	WS          float64 `name:"ws" desc:"Water stress factor" units:"-"`
	ST          float64 `name:"st" desc:"Growing degree day sum" units:"°C d"`
	OMD         float64 `name:"omd" desc:"Organic matter digestibility of standing biomass" units:"-"`
}

// fill copies the state variables of s into o.
func (o *DailyOutput) fill(s *State) {
	o.BM = s.Biomass()
	o.GV, o.GR, o.DV, o.DR = s.GV, s.GR, s.DV, s.DR
	o.CBM, o.CBMAll = s.CBM, s.CBMAll
	o.WR = s.WR
	o.ST = s.ST
}

// OutputVariable describes one numeric field of DailyOutput.
type OutputVariable struct {
	Name, Description, Units string
	index                    int
}

var outputVariables []OutputVariable

func init() {
	t := reflect.TypeOf(DailyOutput{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("name")
		if name == "" {
			continue
		}
		outputVariables = append(outputVariables, OutputVariable{
			Name:        name,
			Description: f.Tag.Get("desc"),
			Units:       f.Tag.Get("units"),
			index:       i,
		})
	}
}

// OutputVariables returns the names, descriptions and units of the
// numeric output variables, in a fixed order.
func OutputVariables() []OutputVariable {
	o := make([]OutputVariable, len(outputVariables))
	copy(o, outputVariables)
	return o
}

// Value returns the output variable with the given name. The "valid"
// pseudo-variable is 1 for valid days and 0 otherwise.
func (o DailyOutput) Value(name string) (float64, error) {
	if name == "valid" {
		if o.Valid {
			return 1, nil
		}
		return 0, nil
	}
	for _, v := range outputVariables {
		if v.Name == name {
			return reflect.ValueOf(o).Field(v.index).Float(), nil
		}
	}
	return 0, fmt.Errorf("modvege: invalid output variable %q", name)
}

// maxRecordedErrors limits the forcing errors kept in a Summary.
const maxRecordedErrors = 100

// Summary describes a completed (or cancelled) site run.
type Summary struct {
	Days        int // days simulated, excluding spin-up
	InvalidDays int // days with rejected forcing
	CycleEnds   int // days on which the reproductive cycle ended

	// Errors holds the first forcing errors encountered.
	Errors []*ForcingDataError

	// Diagnostics counts numeric clamps during the recorded run.
	Diagnostics Diagnostics

	SpinUp SpinUpResult
}

func (s *Summary) record(o *DailyOutput) {
	s.Days++
	if o.Valid {
		if o.CycleEnd {
			s.CycleEnds++
		}
		return
	}
	s.InvalidDays++
	if len(s.Errors) < maxRecordedErrors {
		s.Errors = append(s.Errors, o.Err)
	}
}
