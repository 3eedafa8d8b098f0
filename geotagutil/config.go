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
	"path/filepath"
	"strings"
	"time"

	"github.com/lnashier/viper"

	"github.com/spatialmodel/geotag"
)

// GridConfig builds a geotag.GridConfig from the bound configuration
// variables and validates it.
func GridConfig(v *viper.Viper) (geotag.GridConfig, error) {
	cfg := geotag.GridConfig{
		DegPerRegion:               v.GetFloat64("Grid.DegreesPerRegion"),
		MilesPerRegion:             v.GetFloat64("Grid.MilesPerRegion"),
		Width:                      v.GetInt("Grid.WidthOfStatRegion"),
		MinWordCount:               uint32(v.GetInt("Grid.MinWordCount")),
		PreserveCase:               v.GetBool("Grid.PreserveCase"),
		IncludeStopwordsInDocDists: v.GetBool("Grid.IncludeStopwordsInDocDists"),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("geotagutil: %w", err)
	}
	return cfg, nil
}

// CorpusConfig builds a geotag.CorpusConfig around the given vocabulary and
// background model, which the caller owns and may share with a grid.
func CorpusConfig(v *viper.Viper, vocab *geotag.Vocabulary, bg *geotag.BackgroundModel, stopwords map[string]struct{}) geotag.CorpusConfig {
	var maxTime time.Duration
	if s := v.GetString("Corpus.MaxTimePerStage"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			maxTime = d
		}
	}
	return geotag.CorpusConfig{
		Vocab:                      vocab,
		Background:                 bg,
		DocMinCount:                uint32(v.GetInt("Grid.MinWordCount")),
		PreserveCase:               v.GetBool("Grid.PreserveCase"),
		Stopwords:                  stopwords,
		IncludeStopwordsInDocDists: v.GetBool("Grid.IncludeStopwordsInDocDists"),
		MaxTrainingDocs:            v.GetInt("Corpus.MaxTrainingDocs"),
		MaxTimePerStage:            maxTime,
	}
}

// checkInputFile expands environment variables in f and confirms the
// resulting path names a file that exists, mirroring InMAP's
// checkOutputFile but for a read-side path.
func checkInputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf("geotagutil: required input file path is empty")
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(f); err != nil {
		return "", fmt.Errorf("geotagutil: input file %q: %w", f, err)
	}
	return f, nil
}

// checkOutputFile expands environment variables in f and confirms its
// parent directory exists.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf("geotagutil: required output file path is empty")
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return "", fmt.Errorf("geotagutil: output directory for %q: %w", f, err)
	}
	return f, nil
}

// strategyKindFromString recognizes the strategy names accepted by the
// Strategy.Kind configuration variable.
func strategyKindFromString(s string) (geotag.StrategyKind, error) {
	switch strings.ToLower(s) {
	case "baseline":
		return geotag.StrategyBaseline, nil
	case "kl":
		return geotag.StrategyKL, nil
	case "cosine":
		return geotag.StrategyCosine, nil
	case "nb", "naivebayes":
		return geotag.StrategyNB, nil
	case "acp":
		return geotag.StrategyACP, nil
	default:
		return 0, fmt.Errorf("geotagutil: unrecognized Strategy.Kind %q", s)
	}
}

func baselineKindFromString(s string) (geotag.BaselineKind, error) {
	switch strings.ToLower(s) {
	case "internal_link", "internallink":
		return geotag.BaselineInternalLink, nil
	case "num_articles", "numarticles":
		return geotag.BaselineNumArticles, nil
	case "random":
		return geotag.BaselineRandom, nil
	case "link_most_common_toponym":
		return geotag.BaselineLinkMostCommonToponym, nil
	case "regdist_most_common_toponym":
		return geotag.BaselineRegdistMostCommonToponym, nil
	default:
		return 0, fmt.Errorf("geotagutil: unrecognized Strategy.Baseline %q", s)
	}
}

// evalSplitFromString recognizes the Eval.Split configuration values. "all"
// returns a nil *geotag.Split, meaning every split is eligible.
func evalSplitFromString(s string) (*geotag.Split, error) {
	if strings.ToLower(s) == "all" || s == "" {
		return nil, nil
	}
	split, ok := geotag.ParseSplit(strings.ToLower(s))
	if !ok {
		return nil, fmt.Errorf("geotagutil: unrecognized Eval.Split %q", s)
	}
	return &split, nil
}

func nbWeightingFromString(s string) (geotag.NBWeighting, error) {
	switch strings.ToLower(s) {
	case "equal":
		return geotag.NBWeightingEqual, nil
	case "equal_words", "equalwords":
		return geotag.NBWeightingEqualWords, nil
	default:
		return 0, fmt.Errorf("geotagutil: unrecognized Strategy.NBWeighting %q", s)
	}
}

// Strategy builds a geotag.Strategy from the bound configuration variables
// against an already-built grid. posteriors and gaz may be nil when the
// configured strategy kind does not need them; they are stored on the
// Strategy as given.
func Strategy(v *viper.Viper, grid *geotag.Grid, posteriors *geotag.PosteriorCache, gaz geotag.Gazetteer) (*geotag.Strategy, error) {
	kind, err := strategyKindFromString(v.GetString("Strategy.Kind"))
	if err != nil {
		return nil, err
	}
	s := &geotag.Strategy{
		Kind:             kind,
		Partial:          v.GetBool("Strategy.Partial"),
		Symmetric:        v.GetBool("Strategy.Symmetric"),
		Smoothed:         v.GetBool("Strategy.Smoothed"),
		NBBaselineWeight: v.GetFloat64("Strategy.NBBaselineWeight"),
		Seed:             int64(v.GetInt("Strategy.Seed")),
		Grid:             grid,
		Posteriors:       posteriors,
		Gazetteer:        gaz,
	}
	if kind == geotag.StrategyBaseline {
		bk, err := baselineKindFromString(v.GetString("Strategy.Baseline"))
		if err != nil {
			return nil, err
		}
		s.Baseline = bk
	}
	if kind == geotag.StrategyNB {
		w, err := nbWeightingFromString(v.GetString("Strategy.NBWeighting"))
		if err != nil {
			return nil, err
		}
		s.NBWeighting = w
	}
	return s, nil
}
