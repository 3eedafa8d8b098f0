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
	"sync"

	"github.com/golang/groupcache/lru"
)

// CellProb pairs a cell with a score, the common currency every ranking
// strategy in this package returns.
type CellProb struct {
	Cell CellID
	Prob float64
}

// rankedDescending sorts a slice of CellProb by Prob descending, breaking
// ties by ascending cell id so that identical runs produce identical
// orderings (§5, §8 scenario 2).
func rankedDescending(cp []CellProb) {
	sort.Slice(cp, func(i, j int) bool {
		if cp[i].Prob != cp[j].Prob {
			return cp[i].Prob > cp[j].Prob
		}
		return cp[i].Cell.Less(cp[j].Cell)
	})
}

// WordCellPosterior is the distribution over cells of P(cell | word) for
// one word: c.Model.P(w) for every non-empty cell, normalized to sum to 1
// when possible. If every cell assigns the word zero probability the
// posterior is left Normalized=false rather than dividing by zero; callers
// (ACP, KML emission) must check and handle that case (§7 kind 4).
type WordCellPosterior struct {
	Probs      map[CellID]float64
	Normalized bool
}

// RankedCells returns the posterior sorted best-first.
func (p *WordCellPosterior) RankedCells() []CellProb {
	out := make([]CellProb, 0, len(p.Probs))
	for id, prob := range p.Probs {
		out = append(out, CellProb{Cell: id, Prob: prob})
	}
	rankedDescending(out)
	return out
}

func computeWordCellPosterior(w WordId, cells []*Cell) *WordCellPosterior {
	probs := make(map[CellID]float64, len(cells))
	var z float64
	for _, c := range cells {
		p := c.Model.P(w)
		probs[c.ID] = p
		z += p
	}
	normalized := z > 0
	if normalized {
		for id := range probs {
			probs[id] /= z
		}
	}
	return &WordCellPosterior{Probs: probs, Normalized: normalized}
}

// PosteriorCache memoizes WordCellPosterior by word id under a fixed
// capacity, evicting least-recently-used entries. It is the dominant cost
// of ACP inference (§4.6); the cache itself is backed by groupcache's lru,
// guarded by a mutex so it can be shared across concurrently evaluated
// test documents once the grid is built and read-only (§5).
type PosteriorCache struct {
	mu    sync.Mutex
	cache *lru.Cache
	cells []*Cell
}

// NewPosteriorCache returns a cache of the given capacity over grid's
// non-empty cells. The cell list is snapshotted once at construction,
// which is safe because a Grid never mutates cells after BuildCells.
func NewPosteriorCache(grid *Grid, capacity int) *PosteriorCache {
	return &PosteriorCache{
		cache: lru.New(capacity),
		cells: grid.IterNonEmptyCells(true),
	}
}

// Get returns the posterior for w, computing and caching it on a miss.
func (pc *PosteriorCache) Get(w WordId) *WordCellPosterior {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if v, ok := pc.cache.Get(w); ok {
		return v.(*WordCellPosterior)
	}
	wp := computeWordCellPosterior(w, pc.cells)
	pc.cache.Add(w, wp)
	return wp
}

// Len reports the number of entries currently resident in the cache.
func (pc *PosteriorCache) Len() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.cache.Len()
}

// RankDocument implements average-cell-probability (ACP): for every word a
// test document contains, it sums that word's count times the word's
// cached per-cell posterior, then normalizes the result across cells.
func (pc *PosteriorCache) RankDocument(doc *DocumentModel) []CellProb {
	scores := make(map[CellID]float64)
	doc.Model.ForEachCount(func(w WordId, n uint32) {
		wp := pc.Get(w)
		if !wp.Normalized {
			return
		}
		for id, p := range wp.Probs {
			scores[id] += float64(n) * p
		}
	})

	var z float64
	for _, v := range scores {
		z += v
	}
	out := make([]CellProb, 0, len(scores))
	for id, v := range scores {
		if z > 0 {
			v /= z
		}
		out = append(out, CellProb{Cell: id, Prob: v})
	}
	rankedDescending(out)
	return out
}
