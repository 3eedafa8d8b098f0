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
	"encoding/gob"
	"fmt"
	"io"
)

// gridDataVersion is bumped whenever gridSnapshot's wire format changes in a
// way that is not backward compatible, so LoadGrid can refuse a stale file
// instead of decoding it into nonsense.
const gridDataVersion = "geotag-grid-v1"

// gridSnapshot is the persisted form of a built Grid: everything needed to
// answer CellForCoord/CellByID/IterNonEmptyCells queries without re-reading
// the training corpus. Config is carried alongside so LoadGrid can rebuild
// the derived fields (deg, tile counts, lat/lon bounds) exactly as NewGrid
// would have computed them.
type gridSnapshot struct {
	DataVersion string
	Config      GridConfig
	Vocab       *Vocabulary
	Background  *BackgroundModel
	Cells       map[TileIndex]*Cell
}

// Save writes g to w in gob form. It panics if g has not been built, since
// an unbuilt grid has nothing worth persisting (its tiling buffer is raw,
// pre-aggregation state that Save does not attempt to round-trip).
func (g *Grid) Save(w io.Writer) error {
	if !g.built {
		panic("geotag: Grid.Save called before BuildCells")
	}
	snap := gridSnapshot{
		DataVersion: gridDataVersion,
		Config:      g.cfg,
		Vocab:       g.Vocab,
		Background:  g.Background,
		Cells:       g.cells,
	}
	return gob.NewEncoder(w).Encode(snap)
}

// LoadGrid reads a Grid previously written by Save. The decoded cells'
// SmoothedModels do not carry their own reference to Background over the
// wire (every cell in a grid shares one background distribution, encoded
// once); LoadGrid reattaches it to each one before returning.
func LoadGrid(r io.Reader) (*Grid, error) {
	var snap gridSnapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("geotag: decoding grid: %w", err)
	}
	if snap.DataVersion != gridDataVersion {
		return nil, fmt.Errorf("geotag: grid file has data version %q, want %q", snap.DataVersion, gridDataVersion)
	}

	g, err := NewGrid(snap.Config, snap.Vocab, snap.Background)
	if err != nil {
		return nil, err
	}
	g.tiling = nil
	g.cells = snap.Cells
	g.built = true

	for _, cell := range g.cells {
		if cell.Model != nil {
			cell.Model.SetBackground(g.Background)
		}
		if cell.MostPopularDoc != nil && cell.MostPopularDoc.Model != nil {
			cell.MostPopularDoc.Model.SetBackground(g.Background)
		}
	}
	return g, nil
}
