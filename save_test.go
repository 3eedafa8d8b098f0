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
	"bytes"
	"encoding/gob"
	"math"
	"testing"
)

func TestGridSaveLoadRoundTrip(t *testing.T) {
	grid, vocab := buildTwoCellGrid(t)

	var buf bytes.Buffer
	if err := grid.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadGrid(&buf)
	if err != nil {
		t.Fatalf("LoadGrid: %v", err)
	}

	if loaded.NumCells() != grid.NumCells() {
		t.Fatalf("NumCells() = %d after reload, want %d", loaded.NumCells(), grid.NumCells())
	}

	origCell, ok := grid.CellForCoord(Coord{10, 10})
	if !ok {
		t.Fatalf("original grid has no cell at (10,10)")
	}
	loadedCell, ok := loaded.CellForCoord(Coord{10, 10})
	if !ok {
		t.Fatalf("reloaded grid has no cell at (10,10)")
	}
	if loadedCell.ID != origCell.ID {
		t.Fatalf("reloaded cell ID = %v, want %v", loadedCell.ID, origCell.ID)
	}

	// The background-reattachment loop in LoadGrid must leave the
	// reloaded cell models able to compute probabilities against the
	// shared background distribution, not panic on a nil background.
	b, ok := vocab.TryMemoize("b")
	if !ok {
		t.Fatalf("word %q not memoized", "b")
	}
	if p := loadedCell.Model.P(b); p <= 0 {
		t.Fatalf("reloaded cell model P(b) = %v, want > 0", p)
	}

	test := &DocumentModel{ID: "test", Model: NewSmoothedModel(grid.Background)}
	test.Model.AddCount(b, 1)
	test.Finish(0)

	origKL := test.Model.FastKL(origCell.Model, true)
	loadedKL := test.Model.FastKL(loadedCell.Model, true)
	if math.Abs(origKL-loadedKL) > 1e-9 {
		t.Fatalf("FastKL against reloaded cell = %v, want %v (matching the pre-save grid)", loadedKL, origKL)
	}
}

func TestGridSavePanicsBeforeBuild(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Save did not panic on an unbuilt grid")
		}
	}()
	vocab := NewVocabulary()
	bg := NewBackgroundModel()
	grid, _ := NewGrid(GridConfig{DegPerRegion: 10, Width: 1}, vocab, bg)
	var buf bytes.Buffer
	grid.Save(&buf)
}

func TestLoadGridRejectsWrongDataVersion(t *testing.T) {
	grid, _ := buildTwoCellGrid(t)
	var buf bytes.Buffer
	if err := grid.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Corrupt the version by re-encoding a snapshot with a bogus version,
	// rather than poking at the gob bytes directly.
	bogus := gridSnapshot{
		DataVersion: "not-a-real-version",
		Config:      grid.cfg,
		Vocab:       grid.Vocab,
		Background:  grid.Background,
		Cells:       grid.cells,
	}
	var buf2 bytes.Buffer
	if err := gob.NewEncoder(&buf2).Encode(bogus); err != nil {
		t.Fatalf("encoding bogus snapshot: %v", err)
	}
	if _, err := LoadGrid(&buf2); err == nil {
		t.Fatal("LoadGrid accepted a snapshot with the wrong data version")
	}
}
