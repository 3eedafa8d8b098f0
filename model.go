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
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// smoothingEpsilon clips unseen_mass into [ε, 1−ε] for a model with observed
// tokens (a model with none keeps unseen_mass = 1), and is the fallback
// value for overall_unseen_mass when that would otherwise be 0 or negative.
const smoothingEpsilon = 1e-9

// BackgroundModel is the process-wide unigram distribution built from all
// training-document counts. It is constructed once, after which it is
// read-only and safe to share across every cell's SmoothedModel.
type BackgroundModel struct {
	counts map[WordId]uint64
	total  uint64
}

// NewBackgroundModel returns an empty BackgroundModel ready to accumulate.
func NewBackgroundModel() *BackgroundModel {
	return &BackgroundModel{counts: make(map[WordId]uint64)}
}

// Add folds n additional observations of w into the background distribution.
func (b *BackgroundModel) Add(w WordId, n uint32) {
	b.counts[w] += uint64(n)
	b.total += uint64(n)
}

// AddModel folds every observed count in m into the background distribution.
// It may be called on a SmoothedModel whether or not that model has been
// finished, since Finish only drops counts and never adds them.
func (b *BackgroundModel) AddModel(m *SmoothedModel) {
	for w, c := range m.counts {
		b.Add(w, c)
	}
}

// PGlobal returns count(w) / Σ count(·) over the whole background, or 0 if
// w was never observed or the background has no observations at all.
func (b *BackgroundModel) PGlobal(w WordId) float64 {
	if b.total == 0 {
		return 0
	}
	c, ok := b.counts[w]
	if !ok {
		return 0
	}
	return float64(c) / float64(b.total)
}

// backgroundModelGob is the wire format for BackgroundModel.
type backgroundModelGob struct {
	Counts map[WordId]uint64
	Total  uint64
}

// GobEncode implements gob.GobEncoder.
func (b *BackgroundModel) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	g := backgroundModelGob{Counts: b.counts, Total: b.total}
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (b *BackgroundModel) GobDecode(data []byte) error {
	var g backgroundModelGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	b.counts = g.Counts
	b.total = g.Total
	if b.counts == nil {
		b.counts = make(map[WordId]uint64)
	}
	return nil
}

// SmoothedModel is a sparse unigram distribution with a Good-Turing-ish
// reserved mass for unseen words, redistributed according to a shared
// BackgroundModel. It backs both per-document models (§3 DocumentModel) and
// per-cell models (§3 Cell). A SmoothedModel accumulates counts until
// Finish is called, after which it is immutable and all queries are valid.
type SmoothedModel struct {
	background *BackgroundModel
	counts     map[WordId]uint32

	totalTokens       uint64
	unseenMass        float64
	overallUnseenMass float64
	finished          bool
}

// NewSmoothedModel returns an empty, accumulating SmoothedModel that will
// redistribute unseen mass using bg.
func NewSmoothedModel(bg *BackgroundModel) *SmoothedModel {
	return &SmoothedModel{
		background: bg,
		counts:     make(map[WordId]uint32),
	}
}

// AddCount folds n additional observations of w into the model. It panics
// if the model has already been finished.
func (m *SmoothedModel) AddCount(w WordId, n uint32) {
	m.requireNotFinished("AddCount")
	m.counts[w] += n
}

// AddDocumentModel sums other's observed counts into m. other may itself be
// finished or still accumulating; Finish never destroys the ability to read
// a model's observed counts (it only drops rare ones and computes derived
// statistics), so folding after the fact is safe.
func (m *SmoothedModel) AddDocumentModel(other *SmoothedModel) {
	m.requireNotFinished("AddDocumentModel")
	for w, c := range other.counts {
		m.counts[w] += c
	}
}

// TotalTokens returns the total observed token count. Valid only once the
// model is finished.
func (m *SmoothedModel) TotalTokens() uint64 {
	m.requireFinished("TotalTokens")
	return m.totalTokens
}

// UnseenMass returns the probability mass reserved for unseen words.
func (m *SmoothedModel) UnseenMass() float64 {
	m.requireFinished("UnseenMass")
	return m.unseenMass
}

// Finished reports whether Finish has been called.
func (m *SmoothedModel) Finished() bool { return m.finished }

// SetBackground attaches bg as this model's background distribution. It
// exists for reattaching the shared BackgroundModel after a SmoothedModel
// has been decoded from gob, since that reference is not itself encoded.
func (m *SmoothedModel) SetBackground(bg *BackgroundModel) { m.background = bg }

// Seen reports whether w was observed (and survived the minimum-count
// cutoff) in this model.
func (m *SmoothedModel) Seen(w WordId) bool {
	_, ok := m.counts[w]
	return ok
}

// NumSeen returns the number of distinct words observed.
func (m *SmoothedModel) NumSeen() int { return len(m.counts) }

// Finish drops entries with count < minCount, computes total_tokens and
// unseen_mass from the surviving counts, and computes overall_unseen_mass
// against the shared background model. After Finish, the model is
// immutable and every query in this file is valid to call. Finish is
// idempotent: calling it again on an already-finished model is a no-op.
func (m *SmoothedModel) Finish(minCount uint32) {
	if m.finished {
		return
	}
	for w, c := range m.counts {
		if c < minCount {
			delete(m.counts, w)
		}
	}

	var total uint64
	var singletons uint64
	for _, c := range m.counts {
		total += uint64(c)
		if c == 1 {
			singletons++
		}
	}
	m.totalTokens = total

	if total == 0 {
		m.unseenMass = 1
	} else {
		um := float64(singletons) / float64(total)
		m.unseenMass = clip(um, smoothingEpsilon, 1-smoothingEpsilon)
	}

	var seenGlobalMass float64
	for w := range m.counts {
		seenGlobalMass += m.background.PGlobal(w)
	}
	oum := 1 - seenGlobalMass
	if oum <= 0 {
		logger.Warnf("geotag: overall_unseen_mass degenerate for a model that observed the entire global vocabulary; falling back to epsilon=%v", smoothingEpsilon)
		oum = smoothingEpsilon
	}
	m.overallUnseenMass = oum
	m.finished = true
}

// P returns the smoothed probability of w: the discounted observed
// frequency if w was seen, otherwise a share of the reserved unseen mass
// proportional to w's probability in the background model. P is 0 only if
// neither this model nor the background model has ever seen w.
func (m *SmoothedModel) P(w WordId) float64 {
	m.requireFinished("P")
	if c, ok := m.counts[w]; ok {
		return (1 - m.unseenMass) * float64(c) / float64(m.totalTokens)
	}
	pg := m.background.PGlobal(w)
	if pg == 0 {
		return 0
	}
	return m.unseenMass * pg / m.overallUnseenMass
}

// value returns the probability (smoothed=true) or raw observed frequency
// (smoothed=false) of w, the shared building block for fastCosine. Raw
// frequency is 0 for words this model never observed, regardless of what
// the background model knows.
func (m *SmoothedModel) value(w WordId, smoothed bool) float64 {
	if smoothed {
		return m.P(w)
	}
	if c, ok := m.counts[w]; ok && m.totalTokens > 0 {
		return float64(c) / float64(m.totalTokens)
	}
	return 0
}

// FastKL returns the Kullback-Leibler divergence KL(m ‖ q). If partial is
// true, the sum ranges only over words m has observed (the "partial KL"
// ranking strategy); otherwise it also adds the closed-form contribution
// from words q observed that m did not, using m's unseen-mass bucket rather
// than a scan of the full vocabulary.
func (m *SmoothedModel) FastKL(q *SmoothedModel, partial bool) float64 {
	m.requireFinished("FastKL")
	q.requireFinished("FastKL")

	var sum float64
	var skipped int
	for w := range m.counts {
		pw := m.P(w)
		qw := q.P(w)
		if pw > 0 && qw > 0 {
			sum += pw * math.Log(pw/qw)
		} else if pw > 0 {
			skipped++
		}
	}
	if !partial {
		for w := range q.counts {
			if _, ok := m.counts[w]; ok {
				continue // already folded into the loop above
			}
			pw := m.P(w)
			qw := q.P(w)
			if pw > 0 && qw > 0 {
				sum += pw * math.Log(pw/qw)
			} else if pw > 0 {
				skipped++
			}
		}
	}
	if skipped > 0 {
		logger.Warnf("geotag: FastKL skipped %d words with zero probability under the comparison model", skipped)
	}
	return sum
}

// SymmetricKL returns (FastKL(m, q, partial) + FastKL(q, m, partial)) / 2,
// which is exactly symmetric in floating point because it evaluates both
// orderings rather than algebraically simplifying.
func (m *SmoothedModel) SymmetricKL(q *SmoothedModel, partial bool) float64 {
	return (m.FastKL(q, partial) + q.FastKL(m, partial)) / 2
}

// FastCosine returns cos(θ) between m and q's distributions. If partial is
// true the domain is m's observed words only; otherwise it is the union of
// both models' observed words. If smoothed is true, probabilities come from
// P; otherwise from raw observed frequency (0 outside a model's own
// observations).
func (m *SmoothedModel) FastCosine(q *SmoothedModel, partial, smoothed bool) float64 {
	m.requireFinished("FastCosine")
	q.requireFinished("FastCosine")

	var domain map[WordId]struct{}
	if partial {
		domain = make(map[WordId]struct{}, len(m.counts))
		for w := range m.counts {
			domain[w] = struct{}{}
		}
	} else {
		domain = make(map[WordId]struct{}, len(m.counts)+len(q.counts))
		for w := range m.counts {
			domain[w] = struct{}{}
		}
		for w := range q.counts {
			domain[w] = struct{}{}
		}
	}
	if len(domain) == 0 {
		return 0
	}

	a := make([]float64, 0, len(domain))
	b := make([]float64, 0, len(domain))
	for w := range domain {
		a = append(a, m.value(w, smoothed))
		b = append(b, q.value(w, smoothed))
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}

// FindMostCommon does a linear scan of the words this model observed and
// returns the one with the highest count satisfying predicate. ok is false
// if no observed word satisfies predicate.
func (m *SmoothedModel) FindMostCommon(predicate func(WordId) bool) (w WordId, count uint32, ok bool) {
	m.requireFinished("FindMostCommon")
	var best WordId
	var bestCount uint32
	found := false
	for cand, c := range m.counts {
		if !predicate(cand) {
			continue
		}
		if !found || c > bestCount {
			best, bestCount, found = cand, c, true
		}
	}
	return best, bestCount, found
}

// ForEachCount calls f once for every word observed by this model, in
// unspecified order, with its surviving count. It may be called whether or
// not the model has been finished.
func (m *SmoothedModel) ForEachCount(f func(w WordId, count uint32)) {
	for w, c := range m.counts {
		f(w, c)
	}
}

// smoothedModelGob is the wire format for SmoothedModel. background is
// deliberately not part of it: every SmoothedModel in a persisted Grid
// shares the same BackgroundModel, which is encoded once at the Grid level
// and reattached to each decoded SmoothedModel by the caller.
type smoothedModelGob struct {
	Counts            map[WordId]uint32
	TotalTokens       uint64
	UnseenMass        float64
	OverallUnseenMass float64
	Finished          bool
}

// GobEncode implements gob.GobEncoder.
func (m *SmoothedModel) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	g := smoothedModelGob{
		Counts:            m.counts,
		TotalTokens:       m.totalTokens,
		UnseenMass:        m.unseenMass,
		OverallUnseenMass: m.overallUnseenMass,
		Finished:          m.finished,
	}
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder. The caller must reattach background
// before calling any method that relies on it (P, FastKL, FastCosine, ...).
func (m *SmoothedModel) GobDecode(data []byte) error {
	var g smoothedModelGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	m.counts = g.Counts
	if m.counts == nil {
		m.counts = make(map[WordId]uint32)
	}
	m.totalTokens = g.TotalTokens
	m.unseenMass = g.UnseenMass
	m.overallUnseenMass = g.OverallUnseenMass
	m.finished = g.Finished
	return nil
}

func (m *SmoothedModel) requireFinished(op string) {
	if !m.finished {
		panic(fmt.Errorf("geotag: SmoothedModel.%s: %w", op, ErrNotFinished))
	}
}

func (m *SmoothedModel) requireNotFinished(op string) {
	if m.finished {
		panic(fmt.Sprintf("geotag: SmoothedModel.%s called after Finish", op))
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
