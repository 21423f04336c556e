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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/climag/modvege"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func defaultOutputVariables() []string {
	o := []string{"valid"}
	for _, v := range modvege.OutputVariables() {
		o = append(o, v.Name)
	}
	return o
}

func init() {
	// Options are the configuration options available to ModVege.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "ParameterFile",
			usage: `
              ParameterFile is the path to the site parameter file, in TOML
              format or, if its name ends in .csv, as a header row of
              parameter names followed by one row of values. Parameters
              not given keep their default values (see 'modvege params').
              If empty, default parameters are used.`,
			shorthand:  "p",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), siteCmd.Flags(), paramsCmd.Flags()},
		},
		{
			name: "ParameterZoneVariable",
			usage: `
              ParameterZoneVariable is the name of a [y, x] variable in the
              forcing file holding the parameter zone number of each cell.
              Cells with a negative or missing zone are not simulated.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ParameterZoneFiles",
			usage: `
              ParameterZoneFiles maps parameter zone numbers to parameter
              files, for example {"1":"grassland.toml","2":"upland.toml"}.
              If a zone variable is given, every zone must be listed.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ForcingFile",
			usage: `
              ForcingFile is the path to the daily forcing. For 'run' it is a
              NetCDF file with [time, y, x] variables; for 'site' it is a CSV
              file with columns time, T, PAR, PP and PET.`,
			shorthand:  "f",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), siteCmd.Flags()},
		},
		{
			name: "ForcingVariables",
			usage: `
              ForcingVariables maps the forcing fields T (temperature), PAR
              (radiation), PP (precipitation) and PET (potential
              evapotranspiration) to variable names in the NetCDF forcing
              file. Units are read from each variable's units attribute.`,
			defaultVal: DefaultForcingVariables,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PARFraction",
			usage: `
              PARFraction is the fraction of incoming shortwave radiation
              that is photosynthetically active. It is applied to the PAR
              forcing variable of gridded forcing files.`,
			defaultVal: 0.473,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the output file: NetCDF for 'run'
              and CSV for 'site'. If it is left blank, the output is
              written to modvege_output.nc or modvege_output.csv.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), siteCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables lists the daily variables to write.`,
			defaultVal: defaultOutputVariables(),
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), siteCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              logfile will be saved in the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), siteCmd.Flags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages: debug, info,
              warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), siteCmd.Flags()},
		},
		{
			name: "NumWorkers",
			usage: `
              NumWorkers is the number of sites simulated concurrently. If
              it is less than one, the number of processors is used.`,
			shorthand:  "n",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SiteID",
			usage: `
              SiteID identifies the site in logs and checkpoints.`,
			defaultVal: "site",
			flagsets:   []*pflag.FlagSet{siteCmd.Flags()},
		},
		{
			name: "Checkpoint",
			usage: `
              Checkpoint is the path to a SQLite database where the final
              state of each site is saved. If empty, no state is saved.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), siteCmd.Flags()},
		},
		{
			name: "Resume",
			usage: `
              Resume specifies whether sites start from the states saved in
              the Checkpoint database at the end of the preceding period.
              Sites without a usable checkpoint are spun up.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), siteCmd.Flags()},
		},
		{
			name: "SpinUpPasses",
			usage: `
              SpinUpPasses is the maximum number of times the first year of
              forcing is replayed to initialize a site.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), siteCmd.Flags()},
		},
		{
			name: "SpinUpTolerance",
			usage: `
              SpinUpTolerance ends the spin-up early once a pass changes the
              site state by less than this relative amount. Zero disables
              the check.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), siteCmd.Flags()},
		},
		{
			name: "MetricsAddr",
			usage: `
              MetricsAddr is the address, for example ":9090", on which to
              serve Prometheus metrics while a gridded run is in progress.
              If empty, metrics are not served.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("MODVEGE")
	Cfg.AutomaticEnv()

	for _, option := range options {
		if option.defaultVal != nil {
			Cfg.SetDefault(option.name, option.defaultVal)
		}
		for _, set := range option.flagsets {
			if set.Lookup(option.name) != nil {
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
			case int:
				set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				json.NewEncoder(b).Encode(option.defaultVal)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(paramsCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(siteCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("modvegeutil: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "modvege",
	Short: "A daily grass growth model.",
	Long: `ModVege simulates the daily growth, senescence and harvest of grassland
biomass at one site or over a grid of independent sites, driven by daily
temperature, radiation, precipitation and potential evapotranspiration.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'MODVEGE_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Options shared by several commands are bound to the flags of the
		// command being run.
		if err := Cfg.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		return setConfig()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of ModVege.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("ModVege v%s\n", modvege.Version)
	},
	DisableAutoGenTag: true,
}

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print site parameters",
	Long: `params prints the site parameters in TOML format: the default
parameters, or those read from ParameterFile after validation. The output
can be edited and used as a parameter file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := ReadParameters(Cfg.GetString("ParameterFile"))
		if err != nil {
			return err
		}
		return WriteParameters(cmd.OutOrStdout(), p)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a gridded simulation.",
	Long: `run simulates every cell of a NetCDF forcing file and writes the daily
output of each cell to a NetCDF file with dimensions [time, y, x].
Unless sites resume from checkpoints, the first year of forcing is used to
spin up each cell and is not written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(defaultOutputFile(Cfg.GetString("OutputFile"), ".nc"))
		if err != nil {
			return err
		}
		forcingFile, err := checkInputFile("ForcingFile", Cfg.GetString("ForcingFile"))
		if err != nil {
			return err
		}
		forcingVars, err := GetStringMapString("ForcingVariables", Cfg)
		if err != nil {
			return err
		}
		zoneFiles, err := GetStringMapString("ParameterZoneFiles", Cfg)
		if err != nil {
			return err
		}
		outputVars, err := cast.ToStringSliceE(Cfg.Get("OutputVariables"))
		if err != nil {
			return fmt.Errorf("modvegeutil: reading OutputVariables: %v", err)
		}
		log, closeLog, err := newLogger(cmd.OutOrStdout(), checkLogFile(Cfg.GetString("LogFile"), outputFile), Cfg.GetString("LogLevel"))
		if err != nil {
			return err
		}
		defer closeLog()
		return RunGrid(context.Background(), &GridConfig{
			ForcingFile:      forcingFile,
			ForcingVariables: forcingVars,
			PARFraction:      Cfg.GetFloat64("PARFraction"),
			ParameterFile:    os.ExpandEnv(Cfg.GetString("ParameterFile")),
			ZoneVariable:     Cfg.GetString("ParameterZoneVariable"),
			ZoneFiles:        zoneFiles,
			OutputFile:       outputFile,
			OutputVariables:  expandStringSlice(outputVars),
			Workers:          Cfg.GetInt("NumWorkers"),
			SpinUpPasses:     Cfg.GetInt("SpinUpPasses"),
			SpinUpTolerance:  Cfg.GetFloat64("SpinUpTolerance"),
			Checkpoint:       os.ExpandEnv(Cfg.GetString("Checkpoint")),
			Resume:           Cfg.GetBool("Resume"),
			MetricsAddr:      Cfg.GetString("MetricsAddr"),
		}, log)
	},
	DisableAutoGenTag: true,
}

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Simulate a single site.",
	Long: `site simulates one site driven by a CSV forcing file and writes its
daily output as CSV.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(defaultOutputFile(Cfg.GetString("OutputFile"), ".csv"))
		if err != nil {
			return err
		}
		forcingFile, err := checkInputFile("ForcingFile", Cfg.GetString("ForcingFile"))
		if err != nil {
			return err
		}
		outputVars, err := cast.ToStringSliceE(Cfg.Get("OutputVariables"))
		if err != nil {
			return fmt.Errorf("modvegeutil: reading OutputVariables: %v", err)
		}
		log, closeLog, err := newLogger(cmd.OutOrStdout(), checkLogFile(Cfg.GetString("LogFile"), outputFile), Cfg.GetString("LogLevel"))
		if err != nil {
			return err
		}
		defer closeLog()
		_, err = RunStation(context.Background(), &StationConfig{
			SiteID:          Cfg.GetString("SiteID"),
			ForcingFile:     forcingFile,
			ParameterFile:   os.ExpandEnv(Cfg.GetString("ParameterFile")),
			OutputFile:      outputFile,
			OutputVariables: expandStringSlice(outputVars),
			SpinUpPasses:    Cfg.GetInt("SpinUpPasses"),
			SpinUpTolerance: Cfg.GetFloat64("SpinUpTolerance"),
			Checkpoint:      os.ExpandEnv(Cfg.GetString("Checkpoint")),
			Resume:          Cfg.GetBool("Resume"),
		}, log)
		return err
	},
	DisableAutoGenTag: true,
}

// newLogger returns a logger writing to both out and logFile.
func newLogger(out io.Writer, logFile, level string) (*logrus.Logger, func(), error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("modvegeutil: LogLevel: %v", err)
	}
	f, err := os.Create(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("modvegeutil: problem creating log file: %v", err)
	}
	log := logrus.New()
	log.Out = io.MultiWriter(out, f)
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}
	log.Level = lvl
	return log, func() { f.Close() }, nil
}
