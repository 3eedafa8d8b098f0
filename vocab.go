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
)

// WordId is a dense, process-stable identifier for a memoized word. Ids are
// assigned in first-seen order starting from 0.
type WordId int32

// Vocabulary is a bidirectional map between strings and the WordIds used
// internally by SmoothedModel and friends. A Vocabulary is single-producer
// during corpus ingestion and read-only afterwards; like the rest of the
// core, it does not synchronize itself, so callers must serialize writes.
type Vocabulary struct {
	toId  map[string]WordId
	toStr []string
}

// NewVocabulary returns an empty Vocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{
		toId: make(map[string]WordId),
	}
}

// Memoize returns the WordId for s, assigning the next available id if s
// has not been seen before. Memoize is idempotent: repeated calls with the
// same string return the same id.
func (v *Vocabulary) Memoize(s string) WordId {
	if id, ok := v.toId[s]; ok {
		return id
	}
	id := WordId(len(v.toStr))
	v.toId[s] = id
	v.toStr = append(v.toStr, s)
	return id
}

// TryMemoize returns the WordId for s without assigning a new one. Used at
// test time so unknown words do not pollute the vocabulary built from
// training data.
func (v *Vocabulary) TryMemoize(s string) (WordId, bool) {
	id, ok := v.toId[s]
	return id, ok
}

// Unmemoize returns the string that was assigned id. It panics if id was
// never issued by this Vocabulary, which is a contract bug, not a runtime
// condition callers should expect to recover from.
func (v *Vocabulary) Unmemoize(id WordId) string {
	if int(id) < 0 || int(id) >= len(v.toStr) {
		panic("geotag: Unmemoize called with an id never issued by this Vocabulary")
	}
	return v.toStr[id]
}

// Len returns the number of distinct words memoized so far.
func (v *Vocabulary) Len() int {
	return len(v.toStr)
}

// vocabularyGob is the wire format for Vocabulary: only the id-ordered
// string list needs to survive a round trip, since the id->string map is
// rebuilt from it on decode.
type vocabularyGob struct {
	ToStr []string
}

// GobEncode implements gob.GobEncoder so a Grid carrying unexported fields
// can still be persisted with a plain gob.Encoder (§ grid persistence).
func (v *Vocabulary) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vocabularyGob{ToStr: v.toStr}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder, the counterpart to GobEncode.
func (v *Vocabulary) GobDecode(data []byte) error {
	var g vocabularyGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	v.toStr = g.ToStr
	v.toId = make(map[string]WordId, len(g.ToStr))
	for id, s := range g.ToStr {
		v.toId[s] = WordId(id)
	}
	return nil
}
