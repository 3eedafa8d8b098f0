/*
Copyright © 2024 the geotag authors.
This file is part of geotag.

geotag is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geotag is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geotag.  If not, see <http://www.gnu.org/licenses/>.
*/

package geotagutil

import (
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spatialmodel/geotag"
)

// Cfg holds the configuration and command tree for the geotag CLI, the way
// inmaputil.Cfg does for InMAP: a *viper.Viper plus the cobra commands that
// read from it.
type Cfg struct {
	*viper.Viper

	Root, versionCmd, gridCmd, gridBuildCmd, evalCmd *cobra.Command
}

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig builds the geotag command tree and binds every
// configuration option to its cobra flags and viper keys.
func InitializeConfig() *Cfg {
	cfg := &Cfg{Viper: viper.New()}

	cfg.Root = &cobra.Command{
		Use:   "geotag",
		Short: "A supervised document geolocation model.",
		Long: `geotag estimates the geographic location a text document is about by
comparing its word distribution against language models built from a
training corpus tiled into a geodesic grid of cells.

Configuration can be changed by using a configuration file (and providing
the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'GEOTAG_var'
where 'var' is the name of the variable to be set.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setConfig(cfg)
		},
	}

	cfg.versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("geotag v%s\n", geotag.Version)
		},
		DisableAutoGenTag: true,
	}

	cfg.gridCmd = &cobra.Command{
		Use:               "grid",
		Short:             "Build and inspect geotag grids.",
		DisableAutoGenTag: true,
	}

	cfg.gridBuildCmd = &cobra.Command{
		Use:   "build",
		Short: "Build a grid from a training corpus and save it.",
		Long: `build reads article metadata and word-count data from the files named
in the configuration, tiles the located documents into a grid (word counts
come from training-split documents only), and saves the result so that future eval runs don't need to re-read the
corpus.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunGridBuild(cfg)
		},
		DisableAutoGenTag: true,
	}

	cfg.evalCmd = &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a ranking strategy against a corpus.",
		Long: `eval loads a previously built grid, ranks every eligible document in
the corpus against it using the configured strategy, and reports
aggregate error and accuracy statistics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunEval(cfg)
		},
		DisableAutoGenTag: true,
	}

	cfg.Root.AddCommand(cfg.versionCmd)
	cfg.Root.AddCommand(cfg.gridCmd)
	cfg.gridCmd.AddCommand(cfg.gridBuildCmd)
	cfg.Root.AddCommand(cfg.evalCmd)

	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name:       "config",
			usage:      `config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name:       "Corpus.ArticleData",
			usage:      `Corpus.ArticleData is the path to the tab-separated article metadata file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.gridBuildCmd.Flags(), cfg.evalCmd.Flags()},
		},
		{
			name:       "Corpus.Counts",
			usage:      `Corpus.Counts is the path to the per-article word-count file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.gridBuildCmd.Flags(), cfg.evalCmd.Flags()},
		},
		{
			name:       "Corpus.Stopwords",
			usage:      `Corpus.Stopwords is the path to an optional stopword list, one word per line.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.gridBuildCmd.Flags(), cfg.evalCmd.Flags()},
		},
		{
			name:       "Corpus.MaxTrainingDocs",
			usage:      `Corpus.MaxTrainingDocs caps the number of training-split documents ingested; 0 means unlimited.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{cfg.gridBuildCmd.Flags()},
		},
		{
			name:       "Corpus.MaxTimePerStage",
			usage:      `Corpus.MaxTimePerStage bounds ingestion wall-clock time, as a duration string like "5m"; empty means unlimited.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.gridBuildCmd.Flags()},
		},
		{
			name:       "Grid.DegreesPerRegion",
			usage:      `Grid.DegreesPerRegion is the width in degrees of one elementary tile. Overridden by Grid.MilesPerRegion when that is positive.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{cfg.gridBuildCmd.Flags()},
		},
		{
			name:       "Grid.MilesPerRegion",
			usage:      `Grid.MilesPerRegion, when positive, overrides Grid.DegreesPerRegion with a tile width expressed in statute miles.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{cfg.gridBuildCmd.Flags()},
		},
		{
			name:       "Grid.WidthOfStatRegion",
			usage:      `Grid.WidthOfStatRegion is the number of tiles (W) on a side of each overlapping cell window.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{cfg.gridBuildCmd.Flags()},
		},
		{
			name:       "Grid.MinWordCount",
			usage:      `Grid.MinWordCount is the minimum observed count for a word to survive into a finished model.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{cfg.gridBuildCmd.Flags(), cfg.evalCmd.Flags()},
		},
		{
			name:       "Grid.PreserveCase",
			usage:      `Grid.PreserveCase, if true, memoizes words case-sensitively instead of folding to lower case.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.gridBuildCmd.Flags(), cfg.evalCmd.Flags()},
		},
		{
			name:       "Grid.IncludeStopwordsInDocDists",
			usage:      `Grid.IncludeStopwordsInDocDists, if true, counts stopword occurrences toward document and cell distributions instead of only toward toponym resolution.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.gridBuildCmd.Flags(), cfg.evalCmd.Flags()},
		},
		{
			name:       "Grid.File",
			usage:      `Grid.File is the path to read or write the persisted grid.`,
			defaultVal: "geotag_grid.gob",
			flagsets:   []*pflag.FlagSet{cfg.gridBuildCmd.Flags(), cfg.evalCmd.Flags()},
		},
		{
			name:       "Strategy.Kind",
			usage:      `Strategy.Kind selects the ranking strategy: "baseline", "kl", "cosine", "nb", or "acp".`,
			defaultVal: "kl",
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Strategy.Baseline",
			usage:      `Strategy.Baseline selects the baseline variant when Strategy.Kind is "baseline".`,
			defaultVal: "internal_link",
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Strategy.Partial",
			usage:      `Strategy.Partial, for kl/cosine, restricts the score domain to words the document itself observed.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Strategy.Symmetric",
			usage:      `Strategy.Symmetric, for kl, averages both divergence orderings.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Strategy.Smoothed",
			usage:      `Strategy.Smoothed, for cosine, compares smoothed probabilities instead of raw observed frequency.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Strategy.NBWeighting",
			usage:      `Strategy.NBWeighting selects how naive Bayes weighs word evidence against the link prior: "equal" or "equal_words".`,
			defaultVal: "equal",
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Strategy.NBBaselineWeight",
			usage:      `Strategy.NBBaselineWeight is beta, the weight given to the link prior term under "equal_words" weighting.`,
			defaultVal: 0.5,
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Strategy.Seed",
			usage:      `Strategy.Seed seeds the random baseline's shuffle for reproducibility.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Strategy.PosteriorCacheSize",
			usage:      `Strategy.PosteriorCacheSize bounds the number of word-cell posteriors kept resident for the ACP and regdist-toponym strategies.`,
			defaultVal: 10000,
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Eval.Split",
			usage:      `Eval.Split selects which corpus split is evaluated: "dev", "test", or "all".`,
			defaultVal: "test",
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Eval.SkipInitial",
			usage:      `Eval.SkipInitial skips this many eligible documents before evaluating any.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Eval.EveryNth",
			usage:      `Eval.EveryNth evaluates only every Nth eligible document.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Eval.NumTestDocs",
			usage:      `Eval.NumTestDocs stops evaluation after this many documents; 0 means unlimited.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Eval.Oracle",
			usage:      `Eval.Oracle, if true, also reports the oracle (self-comparison) score for strategies that support one.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "Eval.AccuracyThresholdKm",
			usage:      `Eval.AccuracyThresholdKm is the great-circle distance, in kilometers, under which a prediction counts as "accurate".`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{cfg.evalCmd.Flags()},
		},
		{
			name:       "LogLevel",
			usage:      `LogLevel sets the logging verbosity: "debug", "info", "warn", or "error".`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
	}

	cfg.SetEnvPrefix("GEOTAG")
	cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 {
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.String(option.name, v, option.usage)
			case bool:
				set.Bool(option.name, v, option.usage)
			case int:
				set.Int(option.name, v, option.usage)
			case float64:
				set.Float64(option.name, v, option.usage)
			default:
				panic(fmt.Errorf("geotagutil: invalid option default type: %T", option.defaultVal))
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
	return cfg
}

// setConfig reads in the configuration file named by the "config" option,
// if one was given, and applies the configured log level.
func setConfig(cfg *Cfg) error {
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(cfgpath)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("geotag: problem reading configuration file: %v", err)
		}
	}
	if lvl, err := logrus.ParseLevel(cfg.GetString("LogLevel")); err == nil {
		logrus.SetLevel(lvl)
	}
	return nil
}

// StartCLI is the entry point cmd/geotag/main.go delegates to.
func StartCLI() {
	cfg := InitializeConfig()
	if err := cfg.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
