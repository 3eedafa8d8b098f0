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
	"strings"
	"testing"
)

const testArticleData = "id\ttitle\tsplit\tcoord\tincoming_links\tredir\n" +
	"1\tLondon\ttraining\t51.5,-0.1\t10\t\n" +
	"2\tLondon Redirect\ttraining\t\t3\tLondon\n" +
	"3\tParis\ttest\t48.8,2.3\t7\t\n" +
	"4\tBad Row\tnot-a-split\t\t\t\n"

const testCounts = `Article title: London
Article ID: 1
foo = 3
bar = 1

Article title: Paris
Article ID: 3
foo = 1
baz = 2
`

func TestDocumentTableEndToEnd(t *testing.T) {
	vocab := NewVocabulary()
	bg := NewBackgroundModel()
	dt := NewDocumentTable(CorpusConfig{Vocab: vocab, Background: bg})

	if err := dt.ReadArticleData(strings.NewReader(testArticleData)); err != nil {
		t.Fatalf("ReadArticleData: %v", err)
	}
	dt.ResolveRedirects()
	if err := dt.ReadCounts(strings.NewReader(testCounts)); err != nil {
		t.Fatalf("ReadCounts: %v", err)
	}

	docs := dt.Documents()
	if len(docs) != 2 {
		t.Fatalf("Documents() returned %d documents, want 2", len(docs))
	}

	var london, paris *DocumentModel
	for _, d := range docs {
		switch d.ID {
		case "1":
			london = d
		case "3":
			paris = d
		}
	}
	if london == nil || paris == nil {
		t.Fatalf("expected documents with id 1 and 3, got %+v", docs)
	}

	// §8 scenario 4: the redirect's incoming links fold into its target.
	if got, want := london.IncomingLinksOr(0), uint64(13); got != want {
		t.Fatalf("London IncomingLinks = %d, want %d (10 + redirect's 3)", got, want)
	}
	if paris.Coord == nil || paris.Coord.Lat != 48.8 {
		t.Fatalf("Paris coord not parsed correctly: %+v", paris.Coord)
	}
	if _, ok := dt.Gazetteer["London"]; !ok {
		t.Fatalf("Gazetteer missing an entry for London")
	}
}

func TestDocumentTableSkipsMalformedSplit(t *testing.T) {
	vocab := NewVocabulary()
	bg := NewBackgroundModel()
	dt := NewDocumentTable(CorpusConfig{Vocab: vocab, Background: bg})
	if err := dt.ReadArticleData(strings.NewReader(testArticleData)); err != nil {
		t.Fatalf("ReadArticleData: %v", err)
	}
	// Row 4 ("Bad Row") has an unrecognized split and must be skipped, not
	// cause ReadArticleData to fail.
	if _, ok := dt.byTitle["Bad Row"]; ok {
		t.Fatalf("a row with an unrecognized split was not skipped")
	}
}

func TestDocumentTableStopwordsMemoizedButNotCounted(t *testing.T) {
	vocab := NewVocabulary()
	bg := NewBackgroundModel()
	stopwords := map[string]struct{}{"bar": {}}
	dt := NewDocumentTable(CorpusConfig{Vocab: vocab, Background: bg, Stopwords: stopwords})

	if err := dt.ReadArticleData(strings.NewReader(testArticleData)); err != nil {
		t.Fatalf("ReadArticleData: %v", err)
	}
	dt.ResolveRedirects()
	if err := dt.ReadCounts(strings.NewReader(testCounts)); err != nil {
		t.Fatalf("ReadCounts: %v", err)
	}

	bar, ok := vocab.TryMemoize("bar")
	if !ok {
		t.Fatalf("stopword %q was not memoized", "bar")
	}
	var london *DocumentModel
	for _, d := range dt.Documents() {
		if d.ID == "1" {
			london = d
		}
	}
	if london == nil {
		t.Fatalf("document 1 not found")
	}
	if london.Model.Seen(bar) {
		t.Fatalf("stopword %q was counted in the document distribution", "bar")
	}
}

func TestDocumentTableIncludeStopwordsInDocDists(t *testing.T) {
	vocab := NewVocabulary()
	bg := NewBackgroundModel()
	stopwords := map[string]struct{}{"bar": {}}
	dt := NewDocumentTable(CorpusConfig{
		Vocab:                      vocab,
		Background:                 bg,
		Stopwords:                  stopwords,
		IncludeStopwordsInDocDists: true,
	})

	if err := dt.ReadArticleData(strings.NewReader(testArticleData)); err != nil {
		t.Fatalf("ReadArticleData: %v", err)
	}
	dt.ResolveRedirects()
	if err := dt.ReadCounts(strings.NewReader(testCounts)); err != nil {
		t.Fatalf("ReadCounts: %v", err)
	}

	bar, ok := vocab.TryMemoize("bar")
	if !ok {
		t.Fatalf("stopword %q was not memoized", "bar")
	}
	var london *DocumentModel
	for _, d := range dt.Documents() {
		if d.ID == "1" {
			london = d
		}
	}
	if london == nil {
		t.Fatalf("document 1 not found")
	}
	if !london.Model.Seen(bar) {
		t.Fatalf("stopword %q was not counted in the document distribution with IncludeStopwordsInDocDists set", "bar")
	}
}

func TestDocumentsPreservesInsertionOrder(t *testing.T) {
	vocab := NewVocabulary()
	bg := NewBackgroundModel()
	dt := NewDocumentTable(CorpusConfig{Vocab: vocab, Background: bg})

	if err := dt.ReadArticleData(strings.NewReader(testArticleData)); err != nil {
		t.Fatalf("ReadArticleData: %v", err)
	}
	dt.ResolveRedirects()
	if err := dt.ReadCounts(strings.NewReader(testCounts)); err != nil {
		t.Fatalf("ReadCounts: %v", err)
	}

	docs := dt.Documents()
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	// testCounts lists London (id 1) before Paris (id 3); Documents() must
	// reproduce that order on every call, not a randomized map order.
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "3" {
		t.Fatalf("Documents() order = %v, want [1 3]", ids)
	}
}

func TestParseCoordRejectsOutOfRange(t *testing.T) {
	if _, err := parseCoord("91,0"); err == nil {
		t.Fatal("parseCoord accepted an out-of-range latitude")
	}
	if _, err := parseCoord("not,a,coord"); err == nil {
		t.Fatal("parseCoord accepted a malformed string")
	}
}

func TestLoadStopwords(t *testing.T) {
	sw, err := LoadStopwords(strings.NewReader("the\n# comment\n\nof\n"))
	if err != nil {
		t.Fatalf("LoadStopwords: %v", err)
	}
	if _, ok := sw["the"]; !ok {
		t.Fatalf("stopword %q missing", "the")
	}
	if _, ok := sw["# comment"]; ok {
		t.Fatalf("comment line was loaded as a stopword")
	}
	if len(sw) != 2 {
		t.Fatalf("len(sw) = %d, want 2", len(sw))
	}
}
