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
	"math"
	"testing"
)

func newTestDoc(id string, coord Coord, counts map[string]uint32, vocab *Vocabulary, bg *BackgroundModel, split Split) *DocumentModel {
	doc := &DocumentModel{
		ID:    id,
		Title: id,
		Split: split,
		Coord: &coord,
		Model: NewSmoothedModel(bg),
	}
	for w, n := range counts {
		doc.Model.AddCount(vocab.Memoize(w), n)
	}
	doc.Finish(0)
	if split == SplitTraining {
		bg.AddModel(doc.Model)
	}
	return doc
}

func TestGridConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  GridConfig
		ok   bool
	}{
		{"valid degrees", GridConfig{DegPerRegion: 1, Width: 1}, true},
		{"valid miles", GridConfig{MilesPerRegion: 69.172, Width: 1}, true},
		{"neither set", GridConfig{Width: 1}, false},
		{"zero width", GridConfig{DegPerRegion: 1, Width: 0}, false},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("%s: Validate() error = %v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestGridSingleCellWorld(t *testing.T) {
	// §8 scenario 1: one 180deg-wide cell spans the whole world.
	vocab := NewVocabulary()
	bg := NewBackgroundModel()
	grid, err := NewGrid(GridConfig{DegPerRegion: 180, Width: 1}, vocab, bg)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}

	train := newTestDoc("train1", Coord{0, 0}, map[string]uint32{"hello": 2, "world": 1}, vocab, bg, SplitTraining)
	grid.AddDocument(train)
	grid.BuildCells()

	if n := grid.NumCells(); n != 1 {
		t.Fatalf("NumCells() = %d, want 1", n)
	}

	cell, ok := grid.CellForCoord(Coord{0, 0})
	if !ok {
		t.Fatalf("CellForCoord((0,0)) not found")
	}

	test := &DocumentModel{ID: "test1", Model: NewSmoothedModel(bg)}
	test.Model.AddCount(vocab.Memoize("hello"), 2)
	test.Model.AddCount(vocab.Memoize("world"), 1)
	test.Finish(0)

	kl := test.Model.FastKL(cell.Model, true)
	if math.Abs(kl) > 1e-9 {
		t.Fatalf("partial FastKL of identical distributions = %v, want ~0", kl)
	}
}

func TestGridAddDocumentPanicsAfterBuild(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("AddDocument did not panic after BuildCells")
		}
	}()
	vocab := NewVocabulary()
	bg := NewBackgroundModel()
	grid, _ := NewGrid(GridConfig{DegPerRegion: 10, Width: 1}, vocab, bg)
	grid.BuildCells()
	grid.AddDocument(&DocumentModel{Coord: &Coord{0, 0}, Model: NewSmoothedModel(bg)})
}

func TestGridDocumentWithoutCoordIsIgnored(t *testing.T) {
	vocab := NewVocabulary()
	bg := NewBackgroundModel()
	grid, _ := NewGrid(GridConfig{DegPerRegion: 10, Width: 1}, vocab, bg)
	grid.AddDocument(&DocumentModel{ID: "no-coord", Model: NewSmoothedModel(bg)})
	grid.BuildCells()
	if n := grid.NumCells(); n != 0 {
		t.Fatalf("NumCells() = %d, want 0 for a grid fed only coordinate-less documents", n)
	}
}

func TestGridLongitudeWrap(t *testing.T) {
	vocab := NewVocabulary()
	bg := NewBackgroundModel()
	grid, err := NewGrid(GridConfig{DegPerRegion: 10, Width: 3}, vocab, bg)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}

	near180 := newTestDoc("near-180", Coord{0, 179}, map[string]uint32{"a": 1}, vocab, bg, SplitTraining)
	nearNeg180 := newTestDoc("near-neg-180", Coord{0, -179}, map[string]uint32{"a": 1}, vocab, bg, SplitTraining)
	grid.AddDocument(near180)
	grid.AddDocument(nearNeg180)
	grid.BuildCells()

	cell, ok := grid.CellForCoord(Coord{0, 179})
	if !ok {
		t.Fatalf("CellForCoord near the antimeridian not found")
	}
	// With W=3 and 10-degree tiles, the window anchored at (179's tile)
	// should wrap around and absorb the -179 document too.
	if cell.NumDocsLinks != 2 {
		t.Fatalf("cell absorbed %d documents across the antimeridian, want 2", cell.NumDocsLinks)
	}
}

func TestGridPolarClipping(t *testing.T) {
	vocab := NewVocabulary()
	bg := NewBackgroundModel()
	grid, err := NewGrid(GridConfig{DegPerRegion: 10, Width: 5}, vocab, bg)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	doc := newTestDoc("polar", Coord{90, 0}, map[string]uint32{"a": 1}, vocab, bg, SplitTraining)
	grid.AddDocument(doc)
	// BuildCells must not panic or loop forever walking off the top of the grid.
	grid.BuildCells()
	if grid.NumCells() == 0 {
		t.Fatalf("a document placed exactly at the pole produced no cells")
	}
}

func TestIterNonEmptyCellsIsSortedAndStable(t *testing.T) {
	vocab := NewVocabulary()
	bg := NewBackgroundModel()
	grid, _ := NewGrid(GridConfig{DegPerRegion: 10, Width: 1}, vocab, bg)
	grid.AddDocument(newTestDoc("d1", Coord{20, 20}, map[string]uint32{"a": 1}, vocab, bg, SplitTraining))
	grid.AddDocument(newTestDoc("d2", Coord{-10, -10}, map[string]uint32{"a": 1}, vocab, bg, SplitTraining))
	grid.BuildCells()

	cells := grid.IterNonEmptyCells(false)
	for i := 1; i < len(cells); i++ {
		if !cells[i-1].ID.Less(cells[i].ID) {
			t.Fatalf("IterNonEmptyCells not sorted ascending at index %d", i)
		}
	}
}
