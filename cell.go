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

// Cell is a W×W window of tiles, anchored at its south-west tile, that
// aggregates every document landing inside it into a single language
// model plus an incoming-link prior. Grid.BuildCells creates one Cell for
// each tile that holds at least one document, anchored at that tile, and
// the Cell is never mutated again once BuildCells finishes it.
type Cell struct {
	ID    CellID
	Model *SmoothedModel

	// NumDocsDist is the number of training-split documents folded into
	// Model. NumDocsLinks is the number of documents of any split that
	// contributed to IncomingLinksSum; always NumDocsDist <= NumDocsLinks
	// because link counts are folded for every split but word counts only
	// for training (§4.4, an intentional departure from train-on-training).
	NumDocsDist  int
	NumDocsLinks int

	IncomingLinksSum uint64
	MostPopularDoc   *DocumentModel
}

func newCell(id CellID, bg *BackgroundModel) *Cell {
	return &Cell{
		ID:    id,
		Model: NewSmoothedModel(bg),
	}
}

// absorb folds one document into the cell per §4.4: the document's
// incoming-link count and most-popular-landmark tracking always apply,
// regardless of split, but word counts are only folded for training-split
// documents that have already had their own model finished.
func (c *Cell) absorb(doc *DocumentModel) {
	links := doc.IncomingLinksOr(0)
	c.IncomingLinksSum += links
	c.NumDocsLinks++
	if c.MostPopularDoc == nil || links > c.MostPopularDoc.IncomingLinksOr(0) {
		c.MostPopularDoc = doc
	}

	if doc.Split == SplitTraining && doc.Model != nil && doc.Model.Finished() {
		c.Model.AddDocumentModel(doc.Model)
		c.NumDocsDist++
	}
}

func (c *Cell) finish(minCount uint32) {
	c.Model.Finish(minCount)
}
