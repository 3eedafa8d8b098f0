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

import "testing"

func TestEvaluateHonorsSkipStrideAndCount(t *testing.T) {
	grid, _ := buildTwoCellGrid(t)
	s := &Strategy{Kind: StrategyBaseline, Baseline: BaselineNumArticles, Grid: grid}

	var docs []*DocumentModel
	for i := 0; i < 10; i++ {
		d := &DocumentModel{ID: string(rune('a' + i)), Split: SplitTest, Coord: &Coord{10, 10}, Model: NewSmoothedModel(grid.Background)}
		d.Finish(0)
		docs = append(docs, d)
	}

	rpt := Evaluate(docs, EvalConfig{Strategy: s, Grid: grid, SkipInitial: 2, EveryNth: 3, NumTestDocs: 2})
	if rpt.NumEvaluated != 2 {
		t.Fatalf("NumEvaluated = %d, want 2 (NumTestDocs budget)", rpt.NumEvaluated)
	}
	// With SkipInitial=2 and EveryNth=3 over 10 eligible docs, the
	// candidate indices (0-based within the eligible stream) are 2, 5, 8;
	// NumTestDocs=2 stops after the first two of those.
	if rpt.Results[0].DocID != docs[2].ID || rpt.Results[1].DocID != docs[5].ID {
		t.Fatalf("unexpected evaluation order: %+v", rpt.Results)
	}
}

func TestEvaluateFiltersByEvalSplit(t *testing.T) {
	grid, _ := buildTwoCellGrid(t)
	s := &Strategy{Kind: StrategyBaseline, Baseline: BaselineNumArticles, Grid: grid}

	train := &DocumentModel{ID: "train", Split: SplitTraining, Coord: &Coord{10, 10}, Model: NewSmoothedModel(grid.Background)}
	train.Finish(0)
	test := &DocumentModel{ID: "test", Split: SplitTest, Coord: &Coord{10, 10}, Model: NewSmoothedModel(grid.Background)}
	test.Finish(0)

	want := SplitTest
	rpt := Evaluate([]*DocumentModel{train, test}, EvalConfig{Strategy: s, Grid: grid, EvalSplit: &want})
	if rpt.NumEvaluated != 1 {
		t.Fatalf("NumEvaluated = %d, want 1 (only SplitTest docs eligible)", rpt.NumEvaluated)
	}
	if rpt.Results[0].DocID != "test" {
		t.Fatalf("evaluated doc = %q, want %q", rpt.Results[0].DocID, "test")
	}
}

func TestEvaluateDocWithoutCoordCountedButExcludedFromErrors(t *testing.T) {
	grid, _ := buildTwoCellGrid(t)
	s := &Strategy{Kind: StrategyBaseline, Baseline: BaselineNumArticles, Grid: grid}

	noCoord := &DocumentModel{ID: "no-coord", Split: SplitTest, Model: NewSmoothedModel(grid.Background)}
	noCoord.Finish(0)

	rpt := Evaluate([]*DocumentModel{noCoord}, EvalConfig{Strategy: s, Grid: grid})
	if rpt.NumEvaluated != 1 {
		t.Fatalf("NumEvaluated = %d, want 1", rpt.NumEvaluated)
	}
	if rpt.NumNoCoord != 1 {
		t.Fatalf("NumNoCoord = %d, want 1", rpt.NumNoCoord)
	}
	if rpt.Results[0].HasError {
		t.Fatalf("a coordinate-less document must not contribute an error distance")
	}
}

func TestEvaluateEmptyRankingIsUnpredictable(t *testing.T) {
	grid, _ := buildTwoCellGrid(t)
	s := &Strategy{Kind: StrategyNone, Grid: grid}

	doc := &DocumentModel{ID: "x", Split: SplitTest, Coord: &Coord{10, 10}, Model: NewSmoothedModel(grid.Background)}
	doc.Finish(0)

	rpt := Evaluate([]*DocumentModel{doc}, EvalConfig{Strategy: s, Grid: grid})
	if rpt.NumUnpredictable != 1 {
		t.Fatalf("NumUnpredictable = %d, want 1", rpt.NumUnpredictable)
	}
	if rpt.Results[0].HasError {
		t.Fatalf("an unpredictable result must not carry an error distance")
	}
}

func TestEvaluateOracleModeComputesSelfComparisonBound(t *testing.T) {
	grid, vocab := buildTwoCellGrid(t)
	s := &Strategy{Kind: StrategyKL, Partial: true, Grid: grid}

	doc := &DocumentModel{ID: "x", Split: SplitTest, Coord: &Coord{10, 10}, Model: NewSmoothedModel(grid.Background)}
	b, _ := vocab.TryMemoize("b")
	doc.Model.AddCount(b, 1)
	doc.Finish(0)

	rpt := Evaluate([]*DocumentModel{doc}, EvalConfig{Strategy: s, Grid: grid, Oracle: true})
	if !rpt.HasOracle {
		t.Fatalf("Report.HasOracle = false, want true")
	}
	if !rpt.Results[0].HasOracle {
		t.Fatalf("DocResult.HasOracle = false, want true")
	}
}

func TestEvaluateOracleSkippedForACP(t *testing.T) {
	grid, vocab := buildTwoCellGrid(t)
	pc := NewPosteriorCache(grid, 10)
	s := &Strategy{Kind: StrategyACP, Grid: grid, Posteriors: pc}

	doc := &DocumentModel{ID: "x", Split: SplitTest, Coord: &Coord{10, 10}, Model: NewSmoothedModel(grid.Background)}
	b, _ := vocab.TryMemoize("b")
	doc.Model.AddCount(b, 1)
	doc.Finish(0)

	rpt := Evaluate([]*DocumentModel{doc}, EvalConfig{Strategy: s, Grid: grid, Oracle: true})
	if rpt.HasOracle {
		t.Fatalf("Report.HasOracle = true for an ACP strategy, which has no self-comparison score")
	}
}

func TestReportAccuracyAtThreshold(t *testing.T) {
	grid, _ := buildTwoCellGrid(t)
	s := &Strategy{Kind: StrategyBaseline, Baseline: BaselineNumArticles, Grid: grid}

	near := &DocumentModel{ID: "near", Split: SplitTest, Coord: &Coord{10, 10}, Model: NewSmoothedModel(grid.Background)}
	near.Finish(0)
	far := &DocumentModel{ID: "far", Split: SplitTest, Coord: &Coord{-80, 170}, Model: NewSmoothedModel(grid.Background)}
	far.Finish(0)

	rpt := Evaluate([]*DocumentModel{near, far}, EvalConfig{Strategy: s, Grid: grid, AccuracyThresholdKm: 1})
	if rpt.AccuracyThresholdKm != 1 {
		t.Fatalf("AccuracyThresholdKm = %v, want 1", rpt.AccuracyThresholdKm)
	}
	if rpt.AccuracyAtThreshold < 0 || rpt.AccuracyAtThreshold > 1 {
		t.Fatalf("AccuracyAtThreshold = %v, want a fraction in [0,1]", rpt.AccuracyAtThreshold)
	}
}
