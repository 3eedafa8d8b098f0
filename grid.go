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
	"sort"
)

// milesPerDegree converts degrees of latitude to statute miles, used when a
// grid is configured by MilesPerRegion instead of DegPerRegion.
const milesPerDegree = 69.172

// polarEpsilon keeps the north pole out of its own degenerate tile: without
// it, floor(90/deg)/deg would place a document sitting exactly on the pole
// into a tile row that has zero width at that latitude.
const polarEpsilon = 1e-10

// TileIndex addresses an elementary tile of the grid by its south-west
// corner, in units of GridConfig.DegPerRegion.
type TileIndex struct {
	ILat int
	ILon int
}

// Less orders tiles row-major (latitude, then longitude), giving the
// ascending-cell-id tie-break the ranking strategies rely on.
func (t TileIndex) Less(o TileIndex) bool {
	if t.ILat != o.ILat {
		return t.ILat < o.ILat
	}
	return t.ILon < o.ILon
}

// CellID identifies a cell by the tile at its south-west corner. Cells and
// tiles coincide when GridConfig.Width == 1.
type CellID = TileIndex

// GridConfig parameterizes a Grid. At least one of DegPerRegion or
// MilesPerRegion must be positive; MilesPerRegion, when positive, overrides
// DegPerRegion.
type GridConfig struct {
	DegPerRegion   float64
	MilesPerRegion float64
	Width          int // W, width_of_stat_region, in tiles

	MinWordCount               uint32
	PreserveCase               bool
	IncludeStopwordsInDocDists bool
}

// Validate checks the configuration invariants spelled out in §6/§7:
// illegal combinations are a configuration error surfaced before any corpus
// is read or grid built.
func (c GridConfig) Validate() error {
	if c.DegPerRegion <= 0 && c.MilesPerRegion <= 0 {
		return &ConfigError{Msg: "one of degrees_per_region or miles_per_region must be positive"}
	}
	if c.Width < 1 {
		return &ConfigError{Msg: "width_of_stat_region must be >= 1"}
	}
	return nil
}

func (c GridConfig) degPerRegion() float64 {
	if c.MilesPerRegion > 0 {
		return c.MilesPerRegion / milesPerDegree
	}
	return c.DegPerRegion
}

// Grid is a geodesic grid of tiles, windowed into overlapping W×W cells,
// that aggregates a training corpus into per-cell language models. A Grid
// is not safe for concurrent mutation; it is built once (AddDocument,
// BuildCells) and is read-only thereafter.
type Grid struct {
	cfg GridConfig

	deg                      float64
	width                    int
	tileLatCount             int
	tileLonCount             int
	minLatInd, maxLatInd     int
	minLonInd, maxLonInd     int

	Vocab      *Vocabulary
	Background *BackgroundModel

	tiling map[TileIndex][]*DocumentModel
	cells  map[TileIndex]*Cell

	built bool
}

// NewGrid returns a Grid configured per cfg, sharing vocab and bg with the
// rest of the pipeline (the document table memoizes into vocab and
// accumulates into bg before the grid is built).
func NewGrid(cfg GridConfig, vocab *Vocabulary, bg *BackgroundModel) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	deg := cfg.degPerRegion()

	g := &Grid{
		cfg:          cfg,
		deg:          deg,
		width:        cfg.Width,
		tileLatCount: int(math.Round(180 / deg)),
		tileLonCount: int(math.Round(360 / deg)),
		Vocab:        vocab,
		Background:   bg,
		tiling:       make(map[TileIndex][]*DocumentModel),
		cells:        make(map[TileIndex]*Cell),
	}
	g.minLatInd = int(math.Floor(-90 / deg))
	g.maxLatInd = int(math.Floor((90 - polarEpsilon) / deg))
	g.minLonInd = int(math.Floor(-180 / deg))
	g.maxLonInd = int(math.Floor((180 - polarEpsilon) / deg))
	return g, nil
}

// CoordToTile floor-divides c by the grid's tile size and clamps latitude
// to the grid's bounds, wrapping longitude around the antimeridian.
func (g *Grid) CoordToTile(c Coord) TileIndex {
	ilat := int(math.Floor(c.Lat / g.deg))
	if ilat < g.minLatInd {
		ilat = g.minLatInd
	}
	if ilat > g.maxLatInd {
		ilat = g.maxLatInd
	}
	ilon := g.wrapLon(int(math.Floor(c.Lon / g.deg)))
	return TileIndex{ILat: ilat, ILon: ilon}
}

func (g *Grid) wrapLon(ilon int) int {
	n := g.tileLonCount
	span := g.maxLonInd - g.minLonInd + 1
	if span <= 0 {
		span = n
	}
	return ((ilon-g.minLonInd)%span+span)%span + g.minLonInd
}

// AddDocument routes doc to the tile containing its coordinate. Documents
// without a coordinate are not routed to any tile and so never contribute
// to any cell; the caller is expected to have already filtered those out
// if it cares to report them separately. AddDocument must be called before
// BuildCells.
func (g *Grid) AddDocument(doc *DocumentModel) {
	if g.built {
		panic("geotag: Grid.AddDocument called after BuildCells")
	}
	if doc.Coord == nil {
		return
	}
	tile := g.CoordToTile(*doc.Coord)
	g.tiling[tile] = append(g.tiling[tile], doc)
}

// BuildCells performs the one-pass grid construction described in §4.3: for
// every populated tile, in row-major order, it creates (if not already
// present) a cell anchored at that tile's south-west corner and folds in
// every document from the W×W window of tiles extending north and east
// from it, wrapping
// longitude and clipping against the polar limit. Once built, the tiling
// map is dropped and AddDocument may no longer be called.
func (g *Grid) BuildCells() {
	tiles := make([]TileIndex, 0, len(g.tiling))
	for t := range g.tiling {
		tiles = append(tiles, t)
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].Less(tiles[j]) })

	for _, t := range tiles {
		if _, exists := g.cells[t]; exists {
			continue
		}
		cell := newCell(t, g.Background)
		for di := 0; di < g.width; di++ {
			lat := t.ILat + di
			if lat > g.maxLatInd {
				break // clip the window against the polar limit
			}
			for dj := 0; dj < g.width; dj++ {
				lon := g.wrapLon(t.ILon + dj)
				for _, doc := range g.tiling[TileIndex{ILat: lat, ILon: lon}] {
					cell.absorb(doc)
				}
			}
		}
		cell.finish(g.cfg.MinWordCount)
		g.cells[t] = cell
	}

	g.tiling = nil
	g.built = true
}

// CellForCoord returns the cell whose south-west corner is c's tile, if one
// was populated.
func (g *Grid) CellForCoord(c Coord) (*Cell, bool) {
	cell, ok := g.cells[g.CoordToTile(c)]
	return cell, ok
}

// CellByID looks up a cell by its id directly.
func (g *Grid) CellByID(id CellID) (*Cell, bool) {
	cell, ok := g.cells[id]
	return cell, ok
}

// CellCenter returns the geographic center of the W×W window of tiles
// anchored at id, used as the predicted coordinate for a cell.
func (g *Grid) CellCenter(id CellID) Coord {
	halfWidth := float64(g.width) / 2
	lat := (float64(id.ILat) + halfWidth) * g.deg
	lon := (float64(id.ILon) + halfWidth) * g.deg
	if lat > 90 {
		lat = 90
	}
	lon = ((lon+180)-math.Floor((lon+180)/360)*360) - 180
	return Coord{Lat: lat, Lon: lon}
}

// NumCells returns the number of populated cells.
func (g *Grid) NumCells() int { return len(g.cells) }

// IterNonEmptyCells returns every populated cell in ascending cell-id
// order, for reproducible iteration across runs (§5). If nonEmptyModel is
// set, cells whose smoothed model observed zero tokens (no training-split
// document landed there) are skipped.
func (g *Grid) IterNonEmptyCells(nonEmptyModel bool) []*Cell {
	ids := make([]TileIndex, 0, len(g.cells))
	for id := range g.cells {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	out := make([]*Cell, 0, len(ids))
	for _, id := range ids {
		c := g.cells[id]
		if nonEmptyModel && c.Model.TotalTokens() == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}
