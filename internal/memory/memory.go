// Package memory implements the Memory Store (spec §4.12, component
// C12): two independent lexical indexes — project-memory (shared,
// version-controllable) and local-memory (personal, per-machine) — each
// holding schema-free knowledge entries searchable by content. Indexing
// reuses the Lexical Index Manager (C4) exactly as the pipeline does;
// full-fidelity storage and relationship edges are grounded on the
// teacher's internal/clarification/storage.Storage CRUD shape and
// internal/semantic/memory_entry.go's entry/ID idiom, adapted from a
// SQLite-backed store to the engine's own inverted index.
package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/lexindex"
	"github.com/standardbeagle/lci/internal/types"
)

// Kind selects which of the two independent memory indexes a Store
// operates on.
type Kind string

const (
	KindProject Kind = "project-memory" // shared, meant to be checked into the repo
	KindLocal   Kind = "local-memory"    // personal, per-machine only
)

const (
	maxContentBytes  = 100_000
	maxFilePaths     = 50
	maxFilePathBytes = 260
	maxExtendedKeys  = 20
	maxFieldNameLen  = 50
	maxFieldValueLen = 1000
)

// scriptInjectionTokens are screened for in content and flagged as a
// warning (never an error — memory content is free text, not HTML).
var scriptInjectionTokens = []string{"<script", "javascript:", "onerror=", "onload="}

// Store is one of the two memory indexes (project or local). Each Store
// owns its own lexindex.Manager instance so the two kinds never share a
// writer or a directory lock.
type Store struct {
	kind  Kind
	ws    types.Workspace
	index *lexindex.Manager

	mu            sync.RWMutex
	entries       map[string]types.MemoryEntry
	relationships []types.MemoryRelationship
}

// New opens (or creates) a memory store of the given kind, rooted at
// basePath/<kind>.
func New(kind Kind, basePath string) *Store {
	return &Store{
		kind: kind,
		ws: types.Workspace{
			Hash:      string(kind),
			IndexRoot: filepath.Join(basePath, string(kind)),
		},
		index:   lexindex.NewManager(0),
		entries: make(map[string]types.MemoryEntry),
	}
}

// ValidationResult carries hard validation errors and soft warnings
// (spec §4.12: script-injection screening is a warning, not a rejection).
type ValidationResult struct {
	Warnings []string
}

// ValidateMemory enforces the entry-shape rules from spec §4.12. A
// non-nil error means the entry must be rejected; warnings are returned
// alongside a nil error for entries that pass but look suspicious.
func ValidateMemory(entry types.MemoryEntry) (ValidationResult, error) {
	var result ValidationResult

	if len(entry.Content) == 0 {
		return result, lcierrors.New(lcierrors.InvalidArgument, "validate_memory", nil).
			WithField("content").WithSuggestion("content must not be empty")
	}
	if len(entry.Content) > maxContentBytes {
		return result, lcierrors.New(lcierrors.InvalidArgument, "validate_memory", nil).
			WithField("content").WithSuggestion(fmt.Sprintf("content exceeds %d bytes", maxContentBytes))
	}
	if entry.Type == "" {
		return result, lcierrors.New(lcierrors.InvalidArgument, "validate_memory", nil).
			WithField("type").WithSuggestion("type must not be empty")
	}
	if len(entry.FilesInvolved) > maxFilePaths {
		return result, lcierrors.New(lcierrors.InvalidArgument, "validate_memory", nil).
			WithField("files_involved").WithSuggestion(fmt.Sprintf("at most %d file paths allowed", maxFilePaths))
	}
	for _, p := range entry.FilesInvolved {
		if len(p) > maxFilePathBytes {
			return result, lcierrors.New(lcierrors.InvalidArgument, "validate_memory", nil).
				WithField("files_involved").WithSuggestion("file path exceeds 260 chars")
		}
		if err := validatePathSafety(p); err != nil {
			return result, err
		}
	}
	if len(entry.ExtendedFields) > maxExtendedKeys {
		return result, lcierrors.New(lcierrors.InvalidArgument, "validate_memory", nil).
			WithField("extended_fields").WithSuggestion(fmt.Sprintf("at most %d extended fields allowed", maxExtendedKeys))
	}
	for name, value := range entry.ExtendedFields {
		if len(name) > maxFieldNameLen {
			return result, lcierrors.New(lcierrors.InvalidArgument, "validate_memory", nil).
				WithField("extended_fields").WithSuggestion("field name exceeds 50 chars: " + name)
		}
		if types.ReservedExtendedFieldNames[strings.ToLower(name)] {
			return result, lcierrors.New(lcierrors.InvalidArgument, "validate_memory", nil).
				WithField("extended_fields").WithSuggestion("field name is reserved: " + name)
		}
		if s, ok := value.(string); ok && len(s) > maxFieldValueLen {
			return result, lcierrors.New(lcierrors.InvalidArgument, "validate_memory", nil).
				WithField("extended_fields").WithSuggestion("field value exceeds 1000 chars: " + name)
		}
	}

	lower := strings.ToLower(entry.Content)
	for _, token := range scriptInjectionTokens {
		if strings.Contains(lower, token) {
			result.Warnings = append(result.Warnings, "content contains a possible script-injection token: "+token)
		}
	}
	return result, nil
}

// validatePathSafety rejects traversal segments, including URL-encoded
// variants (spec §4.12: "no .. or ~ segments, no URL-encoded traversal").
// Any URL-encoded ".." sequence is rejected, wherever it appears.
func validatePathSafety(p string) error {
	if strings.Contains(strings.ToLower(p), "%2e%2e") {
		return lcierrors.New(lcierrors.InvalidArgument, "validate_memory", nil).
			WithField("files_involved").WithSuggestion("URL-encoded traversal not allowed: " + p)
	}
	decoded := strings.NewReplacer("%2e", ".", "%2E", ".", "%2f", "/", "%2F", "/").Replace(p)
	for _, segment := range strings.Split(filepath.ToSlash(decoded), "/") {
		if segment == ".." || segment == "~" {
			return lcierrors.New(lcierrors.InvalidArgument, "validate_memory", nil).
				WithField("files_involved").WithSuggestion("path traversal segment not allowed: " + p)
		}
	}
	return nil
}

// AddEntry validates, assigns an ID/timestamps if missing, indexes the
// entry's content for search, and stores it for retrieval.
func (s *Store) AddEntry(ctx context.Context, entry types.MemoryEntry) (types.MemoryEntry, ValidationResult, error) {
	result, err := ValidateMemory(entry)
	if err != nil {
		return types.MemoryEntry{}, result, err
	}

	now := time.Now()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Created.IsZero() {
		entry.Created = now
	}
	entry.Modified = now

	writer, err := s.index.GetWriter(ctx, s.ws)
	if err != nil {
		return types.MemoryEntry{}, result, err
	}
	if err := writer.AddDocument(types.LexicalDocument{
		ID:      entry.ID,
		Content: entry.Content,
	}); err != nil {
		return types.MemoryEntry{}, result, err
	}
	if err := s.index.Commit(ctx, s.ws); err != nil {
		return types.MemoryEntry{}, result, err
	}

	s.mu.Lock()
	s.entries[entry.ID] = entry
	s.mu.Unlock()

	return entry, result, nil
}

// GetEntry retrieves a stored entry by ID, bumping AccessCount/LastAccessed.
func (s *Store) GetEntry(id string) (types.MemoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return types.MemoryEntry{}, false
	}
	entry.AccessCount++
	entry.LastAccessed = time.Now()
	s.entries[id] = entry
	return entry, true
}

// DeleteEntry removes an entry from both the lexical index and storage.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	writer, err := s.index.GetWriter(ctx, s.ws)
	if err != nil {
		return err
	}
	if err := writer.RemoveDocument(id); err != nil {
		return err
	}
	if err := s.index.Commit(ctx, s.ws); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Search runs a single-token lexical query against stored entry content
// and returns matching entries, most recently modified first.
func (s *Store) Search(ctx context.Context, token string) ([]types.MemoryEntry, error) {
	searcher, err := s.index.GetSearcher(ctx, s.ws)
	if err != nil {
		return nil, err
	}
	hits := searcher.Search(lexindex.FieldContent, strings.ToLower(token))

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.MemoryEntry, 0, len(hits))
	for _, h := range hits {
		if e, ok := s.entries[h.FileID]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	return out, nil
}

// AddRelationship stores a directed edge between two entries. Symmetric
// kinds (spec §4.12, types.SymmetricRelationshipKinds) are indexed
// bidirectionally: both (from, kind, to) and (to, kind, from) are
// retrievable from GetRelationships regardless of which side is queried.
func (s *Store) AddRelationship(rel types.MemoryRelationship) {
	rel.Bidirectional = types.SymmetricRelationshipKinds[rel.Kind]
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships = append(s.relationships, rel)
}

// GetRelationships returns every relationship touching entryID, in
// either direction for symmetric kinds.
func (s *Store) GetRelationships(entryID string) []types.MemoryRelationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.MemoryRelationship
	for _, r := range s.relationships {
		switch {
		case r.FromID == entryID:
			out = append(out, r)
		case r.ToID == entryID && r.Bidirectional:
			out = append(out, types.MemoryRelationship{FromID: r.ToID, ToID: r.FromID, Kind: r.Kind, Bidirectional: true})
		}
	}
	return out
}

// Close releases the underlying lexical index's resources.
func (s *Store) Close() error {
	return s.index.Close()
}
