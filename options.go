package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rtm0/era5fetch/internal/cds"
	"github.com/rtm0/era5fetch/internal/levels"
	"github.com/rtm0/era5fetch/internal/mars"
	"github.com/rtm0/era5fetch/internal/repair"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// logger is replaced once the configuration has been read.
var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	formSets := []*pflag.FlagSet{requestCmd.Flags(), retrieveCmd.Flags()}
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
			name: "log-level",
			usage: `
              log-level is the minimum level of log messages: debug, info,
              warn or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "variables",
			usage: `
              variables is the CSV table of selectable variables with the
              columns Name and id.`,
			defaultVal: "var_names.csv",
			flagsets:   []*pflag.FlagSet{variablesCmd.Flags(), requestCmd.Flags(), retrieveCmd.Flags()},
		},
		{
			name: "levels-table",
			usage: `
              levels-table is the CSV table of model levels. The column n
              holds the level number, the other columns hold the level in
              each unit.`,
			defaultVal: "geo_names.csv",
			flagsets:   []*pflag.FlagSet{levelsCmd.Flags(), requestCmd.Flags(), retrieveCmd.Flags(), repairCmd.Flags()},
		},
		{
			name: "altitude-column",
			usage: `
              altitude-column is the index of the levels-table column
              holding altitudes in m. A negative value keeps the default.`,
			defaultVal: -1,
			flagsets:   []*pflag.FlagSet{levelsCmd.Flags(), requestCmd.Flags(), retrieveCmd.Flags(), repairCmd.Flags()},
		},
		{
			name: "pressure-column",
			usage: `
              pressure-column is the index of the levels-table column
              holding pressures in hPa. A negative value keeps the default.`,
			defaultVal: -1,
			flagsets:   []*pflag.FlagSet{levelsCmd.Flags(), requestCmd.Flags(), retrieveCmd.Flags(), repairCmd.Flags()},
		},
		{
			name: "temperature-column",
			usage: `
              temperature-column is the index of the levels-table column
              holding temperatures in K. A negative value keeps the default.`,
			defaultVal: -1,
			flagsets:   []*pflag.FlagSet{levelsCmd.Flags(), requestCmd.Flags(), retrieveCmd.Flags(), repairCmd.Flags()},
		},
		{
			name: "unit",
			usage: `
              unit is the unit of the requested levels: m, hPa, K or ml.`,
			shorthand:  "u",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{levelsCmd.Flags(), requestCmd.Flags(), retrieveCmd.Flags(), repairCmd.Flags()},
		},
		{
			name: "levels",
			usage: `
              levels is a comma-separated list of requested levels.`,
			shorthand:  "l",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{levelsCmd.Flags(), requestCmd.Flags(), retrieveCmd.Flags(), repairCmd.Flags()},
		},
		{
			name: "hours",
			usage: `
              hours is a comma-separated list of times of day in hh:mm:ss.`,
			defaultVal: "00:00:00",
			flagsets:   formSets,
		},
		{
			name: "grid",
			usage: `
              grid is the latitude and longitude step in degrees, e.g. 1.0x1.0.`,
			defaultVal: "1.0x1.0",
			flagsets:   formSets,
		},
		{
			name: "file",
			usage: `
              file is the NetCDF file to write, or to read for repair and
              inspect.`,
			shorthand:  "f",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{requestCmd.Flags(), retrieveCmd.Flags(), repairCmd.Flags(), inspectCmd.Flags()},
		},
		{
			name: "start",
			usage: `
              start is the first date in yyyy/mm/dd.`,
			defaultVal: "",
			flagsets:   formSets,
		},
		{
			name: "end",
			usage: `
              end is the last date in yyyy/mm/dd.`,
			defaultVal: "",
			flagsets:   formSets,
		},
		{
			name: "north",
			usage: `
              north is the northern edge of the area in degrees.`,
			defaultVal: "90",
			flagsets:   formSets,
		},
		{
			name: "west",
			usage: `
              west is the western edge of the area in degrees.`,
			defaultVal: "-180",
			flagsets:   formSets,
		},
		{
			name: "south",
			usage: `
              south is the southern edge of the area in degrees.`,
			defaultVal: "-90",
			flagsets:   formSets,
		},
		{
			name: "east",
			usage: `
              east is the eastern edge of the area in degrees.`,
			defaultVal: "180",
			flagsets:   formSets,
		},
		{
			name: "var",
			usage: `
              var is the name of a variable to retrieve. Repeat the flag or
              separate names with commas.`,
			shorthand:  "v",
			defaultVal: []string{},
			flagsets:   formSets,
		},
		{
			name: "dataset",
			usage: `
              dataset is the archive dataset to retrieve from.`,
			defaultVal: mars.Dataset,
			flagsets:   formSets,
		},
		{
			name: "max-model-level",
			usage: `
              max-model-level is the highest accepted model level number.`,
			defaultVal: levels.DefaultMaxModelLevel,
			flagsets:   []*pflag.FlagSet{requestCmd.Flags(), retrieveCmd.Flags(), levelsCmd.Flags(), repairCmd.Flags()},
		},
		{
			name: "anchor",
			usage: `
              anchor is the dimension the level axis is inserted before
              when a file is repaired. An empty value appends it last.`,
			defaultVal: repair.DefaultAnchor,
			flagsets:   []*pflag.FlagSet{retrieveCmd.Flags(), repairCmd.Flags()},
		},
		{
			name: "cdsapirc",
			usage: `
              cdsapirc is the file holding the archive url and key. The
              CDSAPI_URL and CDSAPI_KEY environment variables take
              precedence.`,
			defaultVal: cds.DefaultConfigPath(),
			flagsets:   []*pflag.FlagSet{retrieveCmd.Flags()},
		},
		{
			name: "poll-interval",
			usage: `
              poll-interval is the delay between two job status requests.`,
			defaultVal: cds.DefaultPollInterval.String(),
			flagsets:   []*pflag.FlagSet{retrieveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("ERA5FETCH")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // The same flag is shared by every command using it.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
			case int:
				set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

// setConfig reads the configuration file, if there is one, and sets up
// logging.
func setConfig(w io.Writer) error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("era5fetch: problem reading configuration file: %v", err)
		}
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(Cfg.GetString("log-level"))); err != nil {
		return fmt.Errorf("era5fetch: invalid log level: %v", err)
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return nil
}
