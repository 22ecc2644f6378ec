package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/rtm0/era5fetch/internal/catalog"
	"github.com/rtm0/era5fetch/internal/cds"
	"github.com/rtm0/era5fetch/internal/era5"
	"github.com/rtm0/era5fetch/internal/form"
	"github.com/rtm0/era5fetch/internal/levels"
	"github.com/rtm0/era5fetch/internal/mars"
	"github.com/rtm0/era5fetch/internal/pipeline"
	"github.com/rtm0/era5fetch/internal/repair"
)

// Version is the version of era5fetch.
const Version = "0.3.0"

func init() {
	Root.AddCommand(versionCmd)
	Root.AddCommand(variablesCmd)
	Root.AddCommand(levelsCmd)
	Root.AddCommand(requestCmd)
	Root.AddCommand(retrieveCmd)
	Root.AddCommand(repairCmd)
	Root.AddCommand(inspectCmd)
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "era5fetch",
	Short: "Retrieve ERA5 model level data as NetCDF.",
	Long: `era5fetch builds retrieval requests for ERA5 model level data, submits
them to the Copernicus Climate Data Store and repairs the downloaded NetCDF
file so that it has a level dimension.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'ERA5FETCH_var' where 'var'
is the name of the option with dashes replaced by underscores.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return setConfig(cmd.OutOrStdout()) },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "era5fetch v%s\n", Version)
	},
	DisableAutoGenTag: true,
}

var variablesCmd = &cobra.Command{
	Use:   "variables [prefix]",
	Short: "List the variables starting with prefix.",
	Long: `variables prints the names of the selectable variables whose name
starts with prefix, ignoring case.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.Open(Cfg.GetString("variables"))
		if err != nil {
			return err
		}
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		for _, name := range cat.Search(prefix) {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Check requested levels against the level table.",
	Long: `levels resolves every requested level to the nearest level of the
level table and prints the matched values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var tbl *levels.Table
		if unit, err := levels.ParseUnit(Cfg.GetString("unit")); err == nil && unit.Physical() {
			if tbl, err = levelTable(); err != nil {
				return err
			}
		}
		vs, err := form.CheckLevels(Cfg.GetString("unit"), Cfg.GetString("levels"), tbl, Cfg.GetInt("max-model-level"))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), vs)
		return nil
	},
	DisableAutoGenTag: true,
}

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Print the retrieval request without submitting it.",
	Long: `request validates the selections, resolves the levels and prints the
request that retrieve would submit, as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		fields, err := formFields()
		if err != nil {
			return err
		}
		plan, err := p.Prepare(fields)
		if err != nil {
			return err
		}
		out := struct {
			Dataset string            `json:"dataset"`
			Target  string            `json:"target"`
			Levels  []float64         `json:"levels"`
			Params  map[string]string `json:"params"`
		}{plan.Request.Dataset, plan.Request.Target, levels.Values(plan.Levels), plan.Request.Params()}
		e := json.NewEncoder(cmd.OutOrStdout())
		e.SetIndent("", "  ")
		return e.Encode(out)
	},
	DisableAutoGenTag: true,
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Retrieve data and repair the downloaded file.",
	Long: `retrieve validates the selections, submits the request to the archive,
waits for the download and adds the level dimension to the file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		cfg, err := cds.LoadConfig(Cfg.GetString("cdsapirc"))
		if err != nil {
			return err
		}
		poll, err := cast.ToDurationE(Cfg.Get("poll-interval"))
		if err != nil {
			return fmt.Errorf("poll-interval: %w", err)
		}
		if p.Fetcher, err = cds.NewClient(logger, cfg, cds.WithPollInterval(poll)); err != nil {
			return err
		}
		fields, err := formFields()
		if err != nil {
			return err
		}
		out, err := p.Submit(cmd.Context(), fields)
		if err != nil {
			return err
		}
		logger.Info("Retrieval finished", "file", out.Repair.Path, "levels", levels.Values(out.Levels),
			"modified", out.Repair.Modified)
		return nil
	},
	DisableAutoGenTag: true,
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Add the level dimension to a downloaded file.",
	Long: `repair resolves the levels as retrieve does and rewrites the file so
that it has a level dimension holding them. Files that already have one are
left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := levels.ParseUnit(Cfg.GetString("unit"))
		if err != nil {
			return err
		}
		var res []levels.Resolution
		if unit == levels.ModelLevel {
			res, err = levels.ResolveModelLevels(Cfg.GetString("levels"), Cfg.GetInt("max-model-level"))
		} else {
			res, err = resolve(unit, Cfg.GetString("levels"))
		}
		if err != nil {
			return err
		}
		out, err := repair.Repair(cmd.Context(), Cfg.GetString("file"),
			repair.Levels{Unit: unit, Values: levels.Values(res)},
			repair.WithAnchor(Cfg.GetString("anchor")), repair.WithLogger(logger))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: modified=%t levels=%d reshaped=%s\n", out.Path, out.Modified, out.Levels,
			strings.Join(out.Variables, ","))
		return nil
	},
	DisableAutoGenTag: true,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize a NetCDF file.",
	Long:  `inspect logs the dimensions and variables of a NetCDF file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := era5.NewScanner(Cfg.GetString("file"))
		if err != nil {
			return err
		}
		defer s.Close()
		logger.Info("NetCDF summary", s.Summary()...)
		for _, d := range s.Dimensions() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", d.Name, d.Len)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// levelTable loads the level table and applies the column options.
func levelTable() (*levels.Table, error) {
	tbl, err := levels.OpenTable(Cfg.GetString("levels-table"))
	if err != nil {
		return nil, err
	}
	for u, opt := range map[levels.Unit]string{
		levels.Altitude:    "altitude-column",
		levels.Pressure:    "pressure-column",
		levels.Temperature: "temperature-column",
	} {
		col, err := cast.ToIntE(Cfg.Get(opt))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", opt, err)
		}
		if col < 0 {
			continue
		}
		if err := tbl.Bind(u, col); err != nil {
			return nil, fmt.Errorf("%s: %w", opt, err)
		}
	}
	return tbl, nil
}

func resolve(u levels.Unit, text string) ([]levels.Resolution, error) {
	vs, err := levels.ParseValues(text)
	if err != nil {
		return nil, err
	}
	tbl, err := levelTable()
	if err != nil {
		return nil, err
	}
	return tbl.Resolve(u, vs)
}

func newPipeline() (*pipeline.Pipeline, error) {
	cat, err := catalog.Open(Cfg.GetString("variables"))
	if err != nil {
		return nil, err
	}
	p := &pipeline.Pipeline{
		Catalog:       cat,
		Logger:        logger,
		MaxModelLevel: Cfg.GetInt("max-model-level"),
		Anchor:        Cfg.GetString("anchor"),
		Dataset:       Cfg.GetString("dataset"),
		Now:           time.Now,
	}
	if unit, err := levels.ParseUnit(Cfg.GetString("unit")); err == nil && unit.Physical() {
		if p.Levels, err = levelTable(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func formFields() (form.Fields, error) {
	var vars []string
	switch v := Cfg.Get("var").(type) {
	case string:
		// Environment variables and config files may hold a comma list.
		vars = mars.SplitList(v)
	default:
		var err error
		if vars, err = cast.ToStringSliceE(v); err != nil {
			return form.Fields{}, fmt.Errorf("var: %w", err)
		}
	}
	return form.Fields{
		Unit:      Cfg.GetString("unit"),
		Levels:    Cfg.GetString("levels"),
		Hours:     Cfg.GetString("hours"),
		Grid:      Cfg.GetString("grid"),
		File:      Cfg.GetString("file"),
		Start:     Cfg.GetString("start"),
		End:       Cfg.GetString("end"),
		North:     Cfg.GetString("north"),
		West:      Cfg.GetString("west"),
		South:     Cfg.GetString("south"),
		East:      Cfg.GetString("east"),
		Variables: vars,
	}, nil
}
