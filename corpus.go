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
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ArticleMeta is one parsed article-data row (§6). Rows whose namespace is
// not "Main" are never materialized into an ArticleMeta at all — they are
// filtered during ReadArticleData, not treated as an error.
type ArticleMeta struct {
	ID    string
	Title string
	Split Split
	Redir string

	Coord         *Coord
	IncomingLinks *uint64
}

// CorpusConfig parameterizes DocumentTable ingestion.
type CorpusConfig struct {
	Vocab        *Vocabulary
	Background   *BackgroundModel
	DocMinCount  uint32 // min_count passed to each DocumentModel's Finish
	PreserveCase bool
	Stopwords    map[string]struct{} // nil means no filtering

	// IncludeStopwordsInDocDists, if true, folds stopword occurrences into
	// the document (and therefore cell) word-count distributions instead of
	// only memoizing them for toponym resolution (§6).
	IncludeStopwordsInDocDists bool

	MaxTrainingDocs int           // 0 = unlimited
	MaxTimePerStage time.Duration // 0 = unlimited
}

// DocumentTable streams a corpus's article-data rows and counts blocks,
// producing a DocumentModel per article and a Gazetteer of title locations
// for the most-common-toponym baselines (§4.5, §6).
type DocumentTable struct {
	cfg CorpusConfig

	byID    map[string]*ArticleMeta
	byTitle map[string]*ArticleMeta

	documents map[string]*DocumentModel
	docOrder  []string // ids in the order finishDocument saw them, for reproducible iteration
	Gazetteer Gazetteer

	trainingDocsLoaded int
	deadline           time.Time
	budgetHit          bool
}

// NewDocumentTable returns an empty table ready to read article data.
func NewDocumentTable(cfg CorpusConfig) *DocumentTable {
	dt := &DocumentTable{
		cfg:       cfg,
		byID:      make(map[string]*ArticleMeta),
		byTitle:   make(map[string]*ArticleMeta),
		documents: make(map[string]*DocumentModel),
		Gazetteer: make(Gazetteer),
	}
	if cfg.MaxTimePerStage > 0 {
		dt.deadline = time.Now().Add(cfg.MaxTimePerStage)
	}
	return dt
}

// ReadArticleData parses the tab-separated article metadata rows described
// in §6: a header row naming fields, by name not position. Malformed rows
// (missing id/title/split, an unrecognized split, an unparsable coord or
// incoming_links value) are logged and skipped; only a completely
// unreadable stream is a fatal error.
func (dt *DocumentTable) ReadArticleData(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("geotag.ReadArticleData: reading header: %v", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	line := 1
	for {
		line++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warnf("geotag: corpus format error at line %d: %v; skipping", line, err)
			continue
		}
		if err := dt.parseArticleRow(line, col, record); err != nil {
			logger.Warnf("%v; skipping", err)
		}
	}
	return nil
}

func field(col map[string]int, record []string, name string) (string, bool) {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return "", false
	}
	return record[i], true
}

func (dt *DocumentTable) parseArticleRow(line int, col map[string]int, record []string) error {
	if ns, ok := field(col, record, "namespace"); ok && ns != "" && ns != "Main" {
		return nil // not an error: rows outside the Main namespace are simply ignored
	}

	id, ok := field(col, record, "id")
	if !ok || id == "" {
		return &CorpusFormatError{Line: line, Field: "id", Msg: "missing required field"}
	}
	title, ok := field(col, record, "title")
	if !ok || title == "" {
		return &CorpusFormatError{Line: line, Field: "title", Msg: "missing required field"}
	}
	splitStr, ok := field(col, record, "split")
	if !ok || splitStr == "" {
		return &CorpusFormatError{Line: line, Field: "split", Msg: "missing required field"}
	}
	split, ok := ParseSplit(splitStr)
	if !ok {
		return &CorpusFormatError{Line: line, Field: "split", Msg: fmt.Sprintf("unrecognized split %q", splitStr)}
	}

	meta := &ArticleMeta{ID: id, Title: title, Split: split}

	if redir, ok := field(col, record, "redir"); ok {
		meta.Redir = redir
	}
	if coordStr, ok := field(col, record, "coord"); ok && coordStr != "" {
		c, err := parseCoord(coordStr)
		if err != nil {
			return &CorpusFormatError{Line: line, Field: "coord", Msg: err.Error()}
		}
		meta.Coord = &c
	}
	if linksStr, ok := field(col, record, "incoming_links"); ok && linksStr != "" {
		n, err := strconv.ParseUint(linksStr, 10, 64)
		if err != nil {
			return &CorpusFormatError{Line: line, Field: "incoming_links", Msg: err.Error()}
		}
		meta.IncomingLinks = &n
	}

	dt.byID[meta.ID] = meta
	dt.byTitle[meta.Title] = meta
	return nil
}

func parseCoord(s string) (Coord, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return Coord{}, fmt.Errorf("expected \"lat,lon\", got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coord{}, fmt.Errorf("bad latitude: %v", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coord{}, fmt.Errorf("bad longitude: %v", err)
	}
	c := Coord{Lat: lat, Lon: lon}
	if !c.Valid() {
		return Coord{}, fmt.Errorf("coordinate %v out of range", c)
	}
	return c, nil
}

// ResolveRedirects folds each redirect's incoming-link count into its
// target article (§8 scenario 4), at the end of the first pass over
// article data and before ReadCounts is called. A redirect whose target
// was never seen (or was itself filtered out of the Main namespace) is
// logged and skipped.
func (dt *DocumentTable) ResolveRedirects() {
	for _, meta := range dt.byID {
		if meta.Redir == "" {
			continue
		}
		target, ok := dt.byTitle[meta.Redir]
		if !ok {
			logger.Warnf("geotag: redirect target %q for article %q not found; skipping", meta.Redir, meta.Title)
			continue
		}
		var sum uint64
		if target.IncomingLinks != nil {
			sum = *target.IncomingLinks
		}
		if meta.IncomingLinks != nil {
			sum += *meta.IncomingLinks
		}
		target.IncomingLinks = &sum
	}
}

// ReadCounts streams the counts blocks described in §6:
//
//	Article title: <title>
//	Article ID: <id>
//	<word> = <count>
//	...
//
// blocks separated by the next "Article title:" line. ReadCounts must be
// called after ResolveRedirects so each document is stamped with its final
// incoming-link count.
func (dt *DocumentTable) ReadCounts(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var meta *ArticleMeta
	var doc *DocumentModel
	skipBlock := false
	line := 0

	flush := func() {
		if doc != nil && !skipBlock {
			dt.finishDocument(meta, doc)
		}
		meta, doc, skipBlock = nil, nil, false
	}

	for sc.Scan() {
		line++
		text := sc.Text()

		if strings.HasPrefix(text, "Article title:") {
			flush()
			continue // the block's article is looked up by the following "Article ID:" line; the title is not checked
		}
		if strings.HasPrefix(text, "Article ID:") {
			id := strings.TrimSpace(strings.TrimPrefix(text, "Article ID:"))
			m, ok := dt.byID[id]
			if !ok {
				skipBlock = true
				continue
			}
			if dt.budgetExhausted() {
				skipBlock = true
				continue
			}
			meta = m
			doc = &DocumentModel{
				ID:            m.ID,
				Title:         m.Title,
				Split:         m.Split,
				Coord:         m.Coord,
				IncomingLinks: m.IncomingLinks,
				Model:         NewSmoothedModel(dt.cfg.Background),
			}
			continue
		}
		if skipBlock || doc == nil || text == "" {
			continue
		}
		if err := dt.parseCountLine(line, doc, text); err != nil {
			logger.Warnf("%v; skipping line", err)
		}
	}
	flush()
	return sc.Err()
}

func (dt *DocumentTable) parseCountLine(line int, doc *DocumentModel, text string) error {
	idx := strings.LastIndex(text, " = ")
	if idx < 0 {
		return &CorpusFormatError{Line: line, Field: "counts", Msg: fmt.Sprintf("missing ' = ' delimiter in %q", text)}
	}
	word := text[:idx]
	countStr := text[idx+len(" = "):]
	n, err := strconv.ParseUint(countStr, 10, 32)
	if err != nil {
		return &CorpusFormatError{Line: line, Field: "counts", Msg: fmt.Sprintf("bad count in %q: %v", text, err)}
	}

	folded := word
	if !dt.cfg.PreserveCase {
		folded = strings.ToLower(word)
	}
	wid := dt.cfg.Vocab.Memoize(folded)

	if _, stopword := dt.cfg.Stopwords[folded]; stopword && !dt.cfg.IncludeStopwordsInDocDists {
		return nil // memoized for toponym resolution, but not counted in the distribution
	}
	doc.Model.AddCount(wid, uint32(n))
	return nil
}

func (dt *DocumentTable) finishDocument(meta *ArticleMeta, doc *DocumentModel) {
	doc.Finish(dt.cfg.DocMinCount)
	if doc.Split == SplitTraining {
		dt.cfg.Background.AddModel(doc.Model)
		dt.trainingDocsLoaded++
	}
	if doc.Coord != nil {
		dt.Gazetteer[meta.Title] = append(dt.Gazetteer[meta.Title], *doc.Coord)
	}
	if _, exists := dt.documents[doc.ID]; !exists {
		dt.docOrder = append(dt.docOrder, doc.ID)
	}
	dt.documents[doc.ID] = doc
}

func (dt *DocumentTable) budgetExhausted() bool {
	if dt.budgetHit {
		return true
	}
	if dt.cfg.MaxTrainingDocs > 0 && dt.trainingDocsLoaded >= dt.cfg.MaxTrainingDocs {
		dt.budgetHit = true
	}
	if !dt.deadline.IsZero() && time.Now().After(dt.deadline) {
		dt.budgetHit = true
	}
	if dt.budgetHit {
		logger.Warnf("geotag: ingestion budget exhausted; remaining records will be skipped")
	}
	return dt.budgetHit
}

// Documents returns every document successfully ingested, in the order
// their counts blocks were read (§5, §8: grid construction and evaluation
// must see the same document order on every run, which a map iteration
// cannot guarantee).
func (dt *DocumentTable) Documents() []*DocumentModel {
	out := make([]*DocumentModel, 0, len(dt.docOrder))
	for _, id := range dt.docOrder {
		out = append(out, dt.documents[id])
	}
	return out
}

// LoadStopwords reads one stopword per line (blank lines and lines
// starting with '#' are ignored).
func LoadStopwords(r io.Reader) (map[string]struct{}, error) {
	sc := bufio.NewScanner(r)
	out := make(map[string]struct{})
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		out[w] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("geotag.LoadStopwords: %v", err)
	}
	return out, nil
}
