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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"
)

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`modvegeutil: you need to specify an output file configuration variable (for example: OutputFile="output.nc")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("modvegeutil: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// defaultOutputFile returns f, or the default output file name with
// extension ext if f is blank.
func defaultOutputFile(f, ext string) string {
	if strings.TrimSpace(f) == "" {
		return "modvege_output" + ext
	}
	return f
}

// checkInputFile makes sure that a required input file is specified and
// exists, and expands any environment variables.
func checkInputFile(name, f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf("modvegeutil: you need to specify the %s configuration variable", name)
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(f); err != nil {
		return f, fmt.Errorf("modvegeutil: %s: %v", name, err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return os.ExpandEnv(logFile)
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument. Environment variables in the values are
// expanded.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	var o map[string]string
	switch v := cfg.Get(varName).(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		o = make(map[string]string, len(v))
		for k, s := range v {
			o[k] = s
		}
	case map[string]interface{}:
		var err error
		if o, err = cast.ToStringMapStringE(v); err != nil {
			return nil, fmt.Errorf("modvegeutil: parsing %s: %v", varName, err)
		}
	case string:
		o = make(map[string]string)
		if strings.TrimSpace(v) == "" {
			return o, nil
		}
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("modvegeutil: parsing %s: %v", varName, err)
		}
	default:
		return nil, fmt.Errorf("modvegeutil: invalid type for %s: %#v", varName, v)
	}
	for k, v := range o {
		o[k] = os.ExpandEnv(v)
	}
	return o, nil
}
