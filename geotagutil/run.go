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

	"github.com/spatialmodel/geotag"
)

// loadCorpus opens Corpus.ArticleData, Corpus.Counts, and the optional
// Corpus.Stopwords file and ingests them into a fresh DocumentTable sharing
// vocab and bg, the way the corpus-reading subcommands of the teacher's
// preproc pipeline each open their configured input files in turn.
func loadCorpus(cfg *Cfg, vocab *geotag.Vocabulary, bg *geotag.BackgroundModel) (*geotag.DocumentTable, error) {
	articlePath, err := checkInputFile(cfg.GetString("Corpus.ArticleData"))
	if err != nil {
		return nil, err
	}
	countsPath, err := checkInputFile(cfg.GetString("Corpus.Counts"))
	if err != nil {
		return nil, err
	}

	var stopwords map[string]struct{}
	if swPath := cfg.GetString("Corpus.Stopwords"); swPath != "" {
		f, err := os.Open(os.ExpandEnv(swPath))
		if err != nil {
			return nil, fmt.Errorf("geotagutil: opening stopwords file: %w", err)
		}
		defer f.Close()
		stopwords, err = geotag.LoadStopwords(f)
		if err != nil {
			return nil, err
		}
	}

	dt := geotag.NewDocumentTable(CorpusConfig(cfg.Viper, vocab, bg, stopwords))

	articleFile, err := os.Open(articlePath)
	if err != nil {
		return nil, fmt.Errorf("geotagutil: opening article data file: %w", err)
	}
	defer articleFile.Close()
	if err := dt.ReadArticleData(articleFile); err != nil {
		return nil, err
	}
	dt.ResolveRedirects()

	countsFile, err := os.Open(countsPath)
	if err != nil {
		return nil, fmt.Errorf("geotagutil: opening counts file: %w", err)
	}
	defer countsFile.Close()
	if err := dt.ReadCounts(countsFile); err != nil {
		return nil, err
	}
	return dt, nil
}

// RunGridBuild implements `geotag grid build`: ingest the configured corpus,
// tile its located documents into a grid (every split contributes link
// counts, only training-split documents contribute word counts), and
// persist the result.
func RunGridBuild(cfg *Cfg) error {
	gridFile, err := checkOutputFile(cfg.GetString("Grid.File"))
	if err != nil {
		return err
	}
	gridCfg, err := GridConfig(cfg.Viper)
	if err != nil {
		return err
	}

	vocab := geotag.NewVocabulary()
	bg := geotag.NewBackgroundModel()
	dt, err := loadCorpus(cfg, vocab, bg)
	if err != nil {
		return err
	}

	grid, err := geotag.NewGrid(gridCfg, vocab, bg)
	if err != nil {
		return err
	}
	for _, doc := range dt.Documents() {
		grid.AddDocument(doc)
	}
	grid.BuildCells()

	f, err := os.Create(gridFile)
	if err != nil {
		return fmt.Errorf("geotagutil: creating grid output file: %w", err)
	}
	defer f.Close()
	if err := grid.Save(f); err != nil {
		return fmt.Errorf("geotagutil: saving grid: %w", err)
	}
	fmt.Printf("built grid with %d cells from %d documents\n", grid.NumCells(), len(dt.Documents()))
	return nil
}

// RunEval implements `geotag eval`: load a previously built grid, re-ingest
// the corpus to recover its non-training documents and gazetteer, rank
// every eligible document with the configured strategy, and print the
// resulting report.
func RunEval(cfg *Cfg) error {
	gridPath, err := checkInputFile(cfg.GetString("Grid.File"))
	if err != nil {
		return err
	}
	f, err := os.Open(gridPath)
	if err != nil {
		return fmt.Errorf("geotagutil: opening grid file: %w", err)
	}
	defer f.Close()
	grid, err := geotag.LoadGrid(f)
	if err != nil {
		return err
	}

	dt, err := loadCorpus(cfg, grid.Vocab, grid.Background)
	if err != nil {
		return err
	}

	var posteriors *geotag.PosteriorCache
	kindStr := cfg.GetString("Strategy.Kind")
	baselineStr := cfg.GetString("Strategy.Baseline")
	if kindStr == "acp" || baselineStr == "regdist_most_common_toponym" {
		posteriors = geotag.NewPosteriorCache(grid, cfg.GetInt("Strategy.PosteriorCacheSize"))
	}

	strategy, err := Strategy(cfg.Viper, grid, posteriors, dt.Gazetteer)
	if err != nil {
		return err
	}

	evalSplit, err := evalSplitFromString(cfg.GetString("Eval.Split"))
	if err != nil {
		return err
	}
	evalCfg := geotag.EvalConfig{
		Strategy:            strategy,
		Grid:                grid,
		EvalSplit:           evalSplit,
		SkipInitial:         cfg.GetInt("Eval.SkipInitial"),
		EveryNth:            cfg.GetInt("Eval.EveryNth"),
		NumTestDocs:         cfg.GetInt("Eval.NumTestDocs"),
		Oracle:              cfg.GetBool("Eval.Oracle"),
		AccuracyThresholdKm: cfg.GetFloat64("Eval.AccuracyThresholdKm"),
	}
	report := geotag.Evaluate(dt.Documents(), evalCfg)

	fmt.Printf("evaluated:        %d\n", report.NumEvaluated)
	fmt.Printf("unpredictable:    %d\n", report.NumUnpredictable)
	fmt.Printf("no coordinate:    %d\n", report.NumNoCoord)
	fmt.Printf("mean error (km):  %.3f\n", report.MeanErrorKm)
	fmt.Printf("median error (km):%.3f\n", report.MedianErrorKm)
	fmt.Printf("accuracy@%gkm:    %.3f\n", report.AccuracyThresholdKm, report.AccuracyAtThreshold)
	if report.HasOracle {
		fmt.Printf("oracle mean score:%.3f\n", report.OracleMeanScore)
	}
	return nil
}
