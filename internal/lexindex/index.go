// Package lexindex implements the per-workspace lexical (inverted) index
// manager (spec §4.4, component C4). It generalizes the teacher's
// sharded trigram/postings machinery (internal/core/trigram_sharded_storage.go,
// internal/core/postings.go) from a single flat in-memory word index into a
// segment-oriented writer/reader pair with the writer-lifetime, stuck-lock,
// and near-real-time-reader contracts §4.4 requires.
package lexindex

import (
	"sort"
	"strings"
	"sync"

	"github.com/standardbeagle/lci/internal/types"
)

const shardCount = 64

// posting is one occurrence list: the file and every token offset in it.
type posting struct {
	fileID  string
	offsets []int
}

// shard is a lock-striped bucket of the inverted index, the same
// finer-grained-than-global-lock idea as the teacher's TrigramBucket.
type shard struct {
	mu     sync.RWMutex
	tokens map[string]map[string]*posting // token -> fileID -> posting
}

func newShard() *shard {
	return &shard{tokens: make(map[string]map[string]*posting)}
}

func shardFor(token string) int {
	var h uint32 = 2166136261
	for i := 0; i < len(token); i++ {
		h ^= uint32(token[i])
		h *= 16777619
	}
	return int(h % shardCount)
}

// segment is the in-memory inverted index for one field of one workspace.
// Fields mirror types.LexicalDocument: Content, ContentLiteral, ContentCode,
// ContentSymbols each get their own segment so queries can target the
// field that matches their intent (analyzed vs literal vs symbol-only).
type segment struct {
	shards [shardCount]*shard

	mu      sync.RWMutex
	docs    map[string]types.LexicalDocument // fileID -> document
	deleted map[string]bool                  // tombstones not yet compacted
}

func newSegment() *segment {
	s := &segment{docs: make(map[string]types.LexicalDocument), deleted: make(map[string]bool)}
	for i := range s.shards {
		s.shards[i] = newShard()
	}
	return s
}

// addDocumentField tokenizes text and records postings for fileID under
// this field's segment.
func (s *segment) addDocumentField(fileID, text string) {
	toks := tokenize(text)

	perToken := make(map[string][]int, len(toks))
	for _, t := range toks {
		perToken[t.text] = append(perToken[t.text], t.offset)
	}

	for tok, offsets := range perToken {
		sh := s.shards[shardFor(tok)]
		sh.mu.Lock()
		m, ok := sh.tokens[tok]
		if !ok {
			m = make(map[string]*posting)
			sh.tokens[tok] = m
		}
		m[fileID] = &posting{fileID: fileID, offsets: offsets}
		sh.mu.Unlock()
	}
}

// removeDocumentField drops every posting for fileID. Tombstone-based:
// cheap per-document delete, real reclamation happens in optimize().
func (s *segment) removeDocumentField(fileID string) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, m := range sh.tokens {
			delete(m, fileID)
		}
		sh.mu.Unlock()
	}
}

// search returns fileIDs containing token, with first-offset per file.
func (s *segment) search(token string) map[string][]int {
	tok := strings.ToLower(token)
	sh := s.shards[shardFor(tok)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	m, ok := sh.tokens[tok]
	if !ok {
		return nil
	}
	out := make(map[string][]int, len(m))
	for fid, p := range m {
		out[fid] = p.offsets
	}
	return out
}

// compact rebuilds every shard's maps, physically dropping tombstoned
// entries; called by optimize().
func (s *segment) compact(liveFileIDs map[string]bool) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for tok, m := range sh.tokens {
			for fid := range m {
				if !liveFileIDs[fid] {
					delete(m, fid)
				}
			}
			if len(m) == 0 {
				delete(sh.tokens, tok)
			}
		}
		sh.mu.Unlock()
	}
}

type token struct {
	text   string
	offset int
}

// tokenize does a fast ASCII word split (letters, digits, underscore),
// lower-cased, minimum length 2 — the same token-char rule as the
// teacher's PostingsIndex.IndexFile, extended to keep every occurrence's
// offset instead of only the first.
func tokenize(text string) []token {
	var out []token
	start := -1
	data := []byte(text)
	for i := 0; i <= len(data); i++ {
		var b byte
		if i < len(data) {
			b = data[i]
		}
		if i < len(data) && isTokenChar(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			raw := data[start:i]
			if len(raw) >= 2 {
				out = append(out, token{text: strings.ToLower(string(raw)), offset: start})
			}
			start = -1
		}
	}
	return out
}

func isTokenChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == '_'
}

// sortedFileIDs is a small helper for deterministic result ordering.
func sortedFileIDs(m map[string][]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
