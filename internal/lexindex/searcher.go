package lexindex

// Hit is one matching document from a Searcher query, with the matched
// field's first token offset for snippet extraction.
type Hit struct {
	FileID      string
	FirstOffset int
}

// Field selects which of the four analyzed views of a document to query.
type Field int

const (
	FieldContent Field = iota
	FieldLiteral
	FieldCode
	FieldSymbols
)

// Searcher is a near-real-time reader over a workspace's lexical index:
// it reads directly from the live Writer's in-memory segments rather
// than a point-in-time disk snapshot, so it observes uncommitted adds
// (§4.4 "near-real-time reader"). IsCurrent/Refresh exist for the rare
// case a caller wants point-in-time comparison against a known
// generation rather than always-live reads.
type Searcher struct {
	writer      *Writer
	snapshotGen uint64
}

func newSearcher(w *Writer) *Searcher {
	return &Searcher{writer: w, snapshotGen: w.generationSnapshot()}
}

// Search returns every document containing token in the given field,
// sorted by file ID for deterministic output.
func (s *Searcher) Search(field Field, token string) []Hit {
	seg := s.writer.fields[field]
	matches := seg.search(token)
	if len(matches) == 0 {
		return nil
	}
	ids := sortedFileIDs(matches)
	hits := make([]Hit, 0, len(ids))
	for _, id := range ids {
		offsets := matches[id]
		first := 0
		if len(offsets) > 0 {
			first = offsets[0]
		}
		hits = append(hits, Hit{FileID: id, FirstOffset: first})
	}
	return hits
}

// IsCurrent reports whether this Searcher reflects the writer's latest
// generation. Since reads are always live against the writer's segments,
// this is informational rather than gating: callers that want to know
// "has anything changed since I last looked" use it, but Search always
// sees current state regardless.
func (s *Searcher) IsCurrent() bool {
	return s.snapshotGen == s.writer.generationSnapshot()
}

// Refresh re-synchronizes the generation marker used by IsCurrent.
func (s *Searcher) Refresh() {
	s.snapshotGen = s.writer.generationSnapshot()
}

// DocumentCount is the live document count, used by statistics().
func (s *Searcher) DocumentCount() int {
	return s.writer.documentCount()
}
