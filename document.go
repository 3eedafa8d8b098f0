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

// Split identifies which partition of the corpus a document belongs to.
type Split int

const (
	SplitTraining Split = iota
	SplitDev
	SplitTest
)

func (s Split) String() string {
	switch s {
	case SplitTraining:
		return "training"
	case SplitDev:
		return "dev"
	case SplitTest:
		return "test"
	default:
		return "unknown"
	}
}

// ParseSplit recognizes the three splits named in §6; an unrecognized
// value is a corpus format error, not a panic, since the document table
// must be able to skip-and-continue on it.
func ParseSplit(s string) (Split, bool) {
	switch s {
	case "training":
		return SplitTraining, true
	case "dev":
		return SplitDev, true
	case "test":
		return SplitTest, true
	default:
		return 0, false
	}
}

// DocumentModel is a single corpus document: its metadata plus the
// word-count model accumulated for it. Coord and IncomingLinks are
// pointers because both are optional per §3 ("Option-typed coordinates and
// link counts"); a nil pointer is the dedicated "absent" variant rather
// than a silently defaulted zero.
type DocumentModel struct {
	ID    string
	Title string
	Split Split

	Coord         *Coord
	IncomingLinks *uint64

	Model *SmoothedModel
}

// Finish freezes the document's word-count model. It is the caller's
// responsibility to call this once all counts for the document have been
// accumulated, typically at the end of a counts block (§6).
func (d *DocumentModel) Finish(minCount uint32) {
	d.Model.Finish(minCount)
}

// IncomingLinksOr returns the document's incoming link count, or def if the
// document has none recorded.
func (d *DocumentModel) IncomingLinksOr(def uint64) uint64 {
	if d.IncomingLinks == nil {
		return def
	}
	return *d.IncomingLinks
}

// Coordinate returns d's coordinate, or ErrNoCoord if d has none (§3's
// option-typed coordinate, absent for documents a corpus never located).
func (d *DocumentModel) Coordinate() (Coord, error) {
	if d.Coord == nil {
		return Coord{}, ErrNoCoord
	}
	return *d.Coord, nil
}
