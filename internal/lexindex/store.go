package lexindex

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/types"
)

// snapshot is the on-disk representation of one field's segment: enough
// to rebuild the shard maps without needing to re-tokenize every document.
type snapshot struct {
	Docs     map[string]types.LexicalDocument
	Postings map[string]map[string][]int // token -> fileID -> offsets
}

// diskStore persists a Writer's four field segments to a workspace's
// index directory, and reloads them on startup. Write-temp-then-rename,
// the same pattern used by the workspace registry (internal/registry).
type diskStore struct {
	dir string
}

func newDiskStore(dir string) *diskStore {
	return &diskStore{dir: dir}
}

func (s *diskStore) segmentPath(field int) string {
	names := [4]string{"content", "literal", "code", "symbols"}
	return filepath.Join(s.dir, "segment_"+names[field]+".gob")
}

func (s *diskStore) save(ctx context.Context, fields [4]*segment) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "lexindex_commit", err).WithFile(s.dir)
	}
	for i, seg := range fields {
		if err := ctx.Err(); err != nil {
			return lcierrors.New(lcierrors.TransientIO, "lexindex_commit", err)
		}
		snap := toSnapshot(seg)
		if err := writeSnapshot(s.segmentPath(i), snap); err != nil {
			return err
		}
	}
	return nil
}

func (s *diskStore) load() ([4]*segment, bool, error) {
	var fields [4]*segment
	for i := range fields {
		fields[i] = newSegment()
	}

	if _, err := os.Stat(s.segmentPath(fieldContent)); os.IsNotExist(err) {
		return fields, false, nil
	}

	for i := range fields {
		snap, err := readSnapshot(s.segmentPath(i))
		if err != nil {
			return fields, false, lcierrors.New(lcierrors.IndexCorrupt, "lexindex_load", err).WithFile(s.segmentPath(i)).
				WithSuggestion("index directory may need to be cleared and rebuilt")
		}
		fromSnapshot(fields[i], snap)
	}
	return fields, true, nil
}

func toSnapshot(seg *segment) snapshot {
	seg.mu.RLock()
	docs := make(map[string]types.LexicalDocument, len(seg.docs))
	for k, v := range seg.docs {
		docs[k] = v
	}
	seg.mu.RUnlock()

	postings := make(map[string]map[string][]int)
	for _, sh := range seg.shards {
		sh.mu.RLock()
		for tok, m := range sh.tokens {
			entry := make(map[string][]int, len(m))
			for fid, p := range m {
				entry[fid] = p.offsets
			}
			postings[tok] = entry
		}
		sh.mu.RUnlock()
	}
	return snapshot{Docs: docs, Postings: postings}
}

func fromSnapshot(seg *segment, snap snapshot) {
	seg.mu.Lock()
	seg.docs = snap.Docs
	seg.mu.Unlock()

	for tok, m := range snap.Postings {
		sh := seg.shards[shardFor(tok)]
		sh.mu.Lock()
		dst := make(map[string]*posting, len(m))
		for fid, offsets := range m {
			dst[fid] = &posting{fileID: fid, offsets: offsets}
		}
		sh.tokens[tok] = dst
		sh.mu.Unlock()
	}
}

func writeSnapshot(path string, snap snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "segment-*.tmp")
	if err != nil {
		return lcierrors.New(lcierrors.TransientIO, "lexindex_commit", err).WithFile(path)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return lcierrors.New(lcierrors.TransientIO, "lexindex_commit", err).WithFile(path)
	}
	if err := tmp.Close(); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "lexindex_commit", err).WithFile(path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return lcierrors.New(lcierrors.TransientIO, "lexindex_commit", err).WithFile(path)
	}
	return nil
}

func readSnapshot(path string) (snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return snapshot{}, err
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}
