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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/climag/modvege"
	"github.com/ctessum/requestcache"
	"github.com/spf13/cast"
)

// ReadParameters reads site parameters from a TOML file or, if the file
// name ends in ".csv", from a CSV file with a header row of parameter
// names and a single row of values. Parameters missing from the file keep
// their default values. The parameters are validated.
func ReadParameters(path string) (*modvege.SiteParameters, error) {
	path = os.ExpandEnv(path)
	p := modvege.DefaultParameters()
	if path == "" {
		return p, nil
	}
	var err error
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("modvegeutil: opening parameter file: %v", err)
		}
		defer f.Close()
		err = decodeParametersCSV(f, p)
	} else {
		err = decodeParametersTOML(path, p)
	}
	if err != nil {
		return nil, fmt.Errorf("modvegeutil: reading parameter file %s: %v", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeParametersTOML(path string, p *modvege.SiteParameters) error {
	md, err := toml.DecodeFile(path, p)
	if err != nil {
		return err
	}
	if u := md.Undecoded(); len(u) > 0 {
		keys := make([]string, len(u))
		for i, k := range u {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown parameters: %s", strings.Join(keys, ", "))
	}
	return nil
}

// parameterFields maps the TOML names of the numeric parameters to their
// field indices.
func parameterFields() map[string]int {
	t := reflect.TypeOf(modvege.SiteParameters{})
	o := make(map[string]int)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Float64 {
			o[f.Tag.Get("toml")] = i
		}
	}
	return o
}

func decodeParametersCSV(r io.Reader, p *modvege.SiteParameters) error {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return err
	}
	if len(records) != 2 {
		return fmt.Errorf("want a header row and one row of values, have %d rows", len(records))
	}
	fields := parameterFields()
	v := reflect.ValueOf(p).Elem()
	for i, name := range records[0] {
		name = strings.TrimSpace(name)
		idx, ok := fields[name]
		if !ok {
			return fmt.Errorf("unknown parameter %q", name)
		}
		val, err := cast.ToFloat64E(strings.TrimSpace(records[1][i]))
		if err != nil {
			return fmt.Errorf("parameter %s: %v", name, err)
		}
		v.Field(idx).SetFloat(val)
	}
	return nil
}

// WriteParameters writes p to w in TOML format.
func WriteParameters(w io.Writer, p *modvege.SiteParameters) error {
	return toml.NewEncoder(w).Encode(p)
}

// parameterLoader reads parameter files, reading each file only once
// however many sites use it. The returned parameters are shared and must
// not be modified.
type parameterLoader struct {
	cache *requestcache.Cache
}

func newParameterLoader() *parameterLoader {
	return &parameterLoader{
		cache: requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			return ReadParameters(request.(string))
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(100)),
	}
}

func (l *parameterLoader) load(ctx context.Context, path string) (*modvege.SiteParameters, error) {
	r, err := l.cache.NewRequest(ctx, path, path).Result()
	if err != nil {
		return nil, err
	}
	return r.(*modvege.SiteParameters), nil
}
