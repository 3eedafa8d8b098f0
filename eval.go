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

package geotag

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// defaultAccuracyThresholdKm is the "accuracy@161" convention from the
// document-geolocation literature (roughly 100 miles), used when a Report
// is asked for an accuracy figure without an explicit threshold.
const defaultAccuracyThresholdKm = 161.0

// EvalConfig configures one run of the evaluation harness over a set of
// documents.
type EvalConfig struct {
	Strategy *Strategy
	Grid     *Grid

	EvalSplit   *Split // nil means every split is eligible; otherwise only this one
	SkipInitial int    // skip this many eligible documents before evaluating any
	EveryNth    int // evaluate only every Nth eligible document; 0 or 1 means every one
	NumTestDocs int // stop after this many evaluated documents; 0 means unlimited

	Oracle              bool
	AccuracyThresholdKm float64 // 0 means use defaultAccuracyThresholdKm
}

// DocResult is the outcome of ranking and scoring a single document.
type DocResult struct {
	DocID string

	Predicted   CellID
	HasTrueCell bool
	TrueCell    CellID
	TrueRank    int // index of TrueCell within the ranking, -1 if not found

	ErrorKm     float64
	HasError    bool // false if the document had no coordinate, or no ranking was produced
	OracleScore float64
	HasOracle   bool

	Unpredictable bool   // the strategy returned an empty ranking
	SkipReason    string // set when the document has no coordinate; it is still ranked but not scored
}

// Report aggregates DocResults from one evaluation run.
type Report struct {
	Results []DocResult

	NumEvaluated     int
	NumUnpredictable int
	NumNoCoord       int

	MeanErrorKm         float64
	MedianErrorKm       float64
	AccuracyAtThreshold float64
	AccuracyThresholdKm float64

	OracleMeanScore float64
	HasOracle       bool
}

// Evaluate runs the harness described in §4.8 over docs, in input order,
// honoring the configured skip/stride/count budgets. No per-document
// failure aborts the run: a document missing coordinates is excluded from
// the error aggregate but still counted as evaluated, and a strategy
// returning an empty ranking yields an "unable to predict" result instead
// of an error.
func Evaluate(docs []*DocumentModel, cfg EvalConfig) *Report {
	threshold := cfg.AccuracyThresholdKm
	if threshold <= 0 {
		threshold = defaultAccuracyThresholdKm
	}
	everyNth := cfg.EveryNth
	if everyNth < 1 {
		everyNth = 1
	}

	rpt := &Report{AccuracyThresholdKm: threshold}
	var errorsKm []float64
	var oracleScores []float64
	var withinThreshold int

	eligible := 0
	for _, doc := range docs {
		if cfg.EvalSplit != nil && doc.Split != *cfg.EvalSplit {
			continue
		}
		if cfg.NumTestDocs > 0 && rpt.NumEvaluated >= cfg.NumTestDocs {
			logger.Warnf("geotag: num_test_docs budget reached; remaining documents skipped")
			break
		}
		eligible++
		if eligible <= cfg.SkipInitial {
			continue
		}
		if (eligible-cfg.SkipInitial-1)%everyNth != 0 {
			continue
		}

		res := evaluateOne(doc, cfg)
		rpt.Results = append(rpt.Results, res)
		rpt.NumEvaluated++

		if res.Unpredictable {
			rpt.NumUnpredictable++
		}
		if !res.HasError {
			if doc.Coord == nil {
				rpt.NumNoCoord++
			}
			continue
		}
		errorsKm = append(errorsKm, res.ErrorKm)
		if res.ErrorKm <= threshold {
			withinThreshold++
		}
		if res.HasOracle {
			oracleScores = append(oracleScores, res.OracleScore)
		}
	}

	if len(errorsKm) > 0 {
		sorted := append([]float64(nil), errorsKm...)
		sort.Float64s(sorted)
		rpt.MeanErrorKm = stat.Mean(errorsKm, nil)
		rpt.MedianErrorKm = stat.Quantile(0.5, stat.Empirical, sorted, nil)
		rpt.AccuracyAtThreshold = float64(withinThreshold) / float64(len(errorsKm))
	}
	if len(oracleScores) > 0 {
		rpt.OracleMeanScore = stat.Mean(oracleScores, nil)
		rpt.HasOracle = true
	}
	return rpt
}

func evaluateOne(doc *DocumentModel, cfg EvalConfig) DocResult {
	res := DocResult{DocID: doc.ID, TrueRank: -1}

	coord, err := doc.Coordinate()
	if err != nil {
		res.SkipReason = err.Error()
	} else if c, ok := cfg.Grid.CellForCoord(coord); ok {
		res.HasTrueCell = true
		res.TrueCell = c.ID
	}

	if !doc.Model.Finished() {
		doc.Model.Finish(0)
	}

	ranking, err := cfg.Strategy.Rank(doc)
	if err != nil || len(ranking) == 0 {
		res.Unpredictable = true
		return res
	}
	res.Predicted = ranking[0].Cell

	if res.HasTrueCell {
		for i, cp := range ranking {
			if cp.Cell == res.TrueCell {
				res.TrueRank = i
				break
			}
		}
	}

	if coord, err := doc.Coordinate(); err == nil {
		predictedCenter := cfg.Grid.CellCenter(res.Predicted)
		res.ErrorKm = coord.DistanceKm(predictedCenter)
		res.HasError = true
	}

	if cfg.Oracle && res.HasTrueCell {
		if trueCell, ok := cfg.Grid.CellByID(res.TrueCell); ok {
			if score, ok := cfg.Strategy.oracleScore(trueCell); ok {
				res.OracleScore = score
				res.HasOracle = true
			}
		}
	}

	return res
}
