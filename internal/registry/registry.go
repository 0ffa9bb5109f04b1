// Package registry implements the Workspace Registry (spec §4.2,
// component C2): the durable, process-wide catalog of known workspaces
// and orphaned index directories.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/types"
)

// document is the on-disk shape of registry.json.
type document struct {
	Workspaces []types.Workspace     `json:"workspaces"`
	Orphans    []types.OrphanedIndex `json:"orphans"`
}

// Registry is the authority for "does this workspace exist". It loads
// registry.json once, serves reads from an in-memory cache, and
// serializes every mutation behind the write side of a single RWMutex;
// reads take the read side, so they wait only while a mutation runs.
type Registry struct {
	path string

	mu         sync.RWMutex
	byHash     map[string]*types.Workspace
	orphans    []types.OrphanedIndex
	loaded     bool
}

// New creates a Registry backed by the document at path. Call Load before
// any other method.
func New(path string) *Registry {
	return &Registry{path: path, byHash: make(map[string]*types.Workspace)}
}

// Load reads registry.json into memory, or starts from an empty registry
// if the file does not exist yet.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		r.loaded = true
		return nil
	}
	if err != nil {
		return lcierrors.New(lcierrors.TransientIO, "registry_load", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return lcierrors.New(lcierrors.Fatal, "registry_load", err)
	}

	r.byHash = make(map[string]*types.Workspace, len(doc.Workspaces))
	for i := range doc.Workspaces {
		ws := doc.Workspaces[i]
		r.byHash[ws.Hash] = &ws
	}
	r.orphans = doc.Orphans
	r.loaded = true
	return nil
}

// save persists the in-memory state atomically: write to a temp file in
// the same directory, then rename over the target, guarded by a
// cross-process flock so two engine instances never interleave writes.
// Callers must already hold r.mu.
func (r *Registry) save() error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return lcierrors.New(lcierrors.Fatal, "registry_save", err)
	}

	lockPath := r.path + ".lock"
	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		return lcierrors.New(lcierrors.Fatal, "registry_save", err)
	}
	defer fl.Unlock()

	doc := document{Orphans: r.orphans}
	for _, ws := range r.byHash {
		doc.Workspaces = append(doc.Workspaces, *ws)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return lcierrors.New(lcierrors.Fatal, "registry_save", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return lcierrors.New(lcierrors.Fatal, "registry_save", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return lcierrors.New(lcierrors.Fatal, "registry_save", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return lcierrors.New(lcierrors.Fatal, "registry_save", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return lcierrors.New(lcierrors.Fatal, "registry_save", err)
	}
	return nil
}

// Register creates (or returns the existing) entry for path, keyed by its
// workspace hash. Two different paths that collapse to the same hash are
// a configuration error (spec §3 invariant) and are rejected.
func (r *Registry) Register(ctx context.Context, path, hash, indexRoot string) (*types.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byHash[hash]; ok {
		if existing.Path != path {
			return nil, lcierrors.New(lcierrors.InvalidArgument, "register",
				fmt.Errorf("hash %s already maps to %s, cannot also map to %s", hash, existing.Path, path))
		}
		return existing, nil
	}

	now := time.Now()
	ws := &types.Workspace{
		Hash:         hash,
		Path:         path,
		IndexRoot:    indexRoot,
		Status:       types.WorkspaceIndexing,
		CreatedAt:    now,
		LastAccessed: now,
	}
	r.byHash[hash] = ws
	if err := r.save(); err != nil {
		delete(r.byHash, hash)
		return nil, err
	}
	return ws, nil
}

// Unregister removes a workspace entry. Per spec §4.2 invariant (c), the
// index directory is deleted here, or reclassified as an orphan if
// deletion fails, within this same call.
func (r *Registry) Unregister(ctx context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.byHash[hash]
	if !ok {
		return lcierrors.New(lcierrors.NotFound, "unregister", fmt.Errorf("no workspace with hash %s", hash))
	}
	delete(r.byHash, hash)

	if err := os.RemoveAll(ws.IndexRoot); err != nil {
		if _, statErr := os.Stat(ws.IndexRoot); statErr == nil {
			r.orphans = append(r.orphans, types.OrphanedIndex{
				Directory:     ws.IndexRoot,
				Reason:        "unregister: " + err.Error(),
				AttemptedPath: ws.Path,
				DiscoveredAt:  time.Now(),
				CleanupAfter:  time.Now().Add(7 * 24 * time.Hour),
			})
		}
	}

	return r.save()
}

// GetByHash returns the workspace for hash, or NotFound.
func (r *Registry) GetByHash(hash string) (*types.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws, ok := r.byHash[hash]
	if !ok {
		return nil, lcierrors.New(lcierrors.NotFound, "get_by_hash", fmt.Errorf("no workspace with hash %s", hash))
	}
	cp := *ws
	return &cp, nil
}

// GetByPath returns the workspace registered for an exact path.
func (r *Registry) GetByPath(path string) (*types.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ws := range r.byHash {
		if ws.Path == path {
			cp := *ws
			return &cp, nil
		}
	}
	return nil, lcierrors.New(lcierrors.NotFound, "get_by_path", fmt.Errorf("no workspace registered for %s", path))
}

// GetByDirectoryName returns the workspace whose index root's base name
// matches dirName (i.e. its hash).
func (r *Registry) GetByDirectoryName(dirName string) (*types.Workspace, error) {
	return r.GetByHash(dirName)
}

// List returns a snapshot of all registered workspaces.
func (r *Registry) List() []types.Workspace {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Workspace, 0, len(r.byHash))
	for _, ws := range r.byHash {
		out = append(out, *ws)
	}
	return out
}

// UpdateStatus transitions a workspace's status field.
func (r *Registry) UpdateStatus(ctx context.Context, hash string, status types.WorkspaceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.byHash[hash]
	if !ok {
		return lcierrors.New(lcierrors.NotFound, "update_status", fmt.Errorf("no workspace with hash %s", hash))
	}
	ws.Status = status
	return r.save()
}

// UpdateStatistics records the document count and index size for a
// workspace.
func (r *Registry) UpdateStatistics(ctx context.Context, hash string, documentCount int, indexSizeBytes int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.byHash[hash]
	if !ok {
		return lcierrors.New(lcierrors.NotFound, "update_statistics", fmt.Errorf("no workspace with hash %s", hash))
	}
	ws.DocumentCount = documentCount
	ws.IndexSizeBytes = indexSizeBytes
	return r.save()
}

// UpdateLastAccessed bumps the last-accessed timestamp and saves the
// registry, like every other mutation.
func (r *Registry) UpdateLastAccessed(ctx context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.byHash[hash]
	if !ok {
		return lcierrors.New(lcierrors.NotFound, "update_last_accessed", fmt.Errorf("no workspace with hash %s", hash))
	}
	ws.LastAccessed = time.Now()
	return r.save()
}

// MarkOrphaned records an on-disk index directory with no owning
// workspace. Per spec §4.2 invariant (b), the directory must exist at the
// moment it is recorded.
func (r *Registry) MarkOrphaned(ctx context.Context, dir, reason, attemptedPath string) error {
	if _, err := os.Stat(dir); err != nil {
		return lcierrors.New(lcierrors.InvalidArgument, "mark_orphaned", fmt.Errorf("directory %s does not exist: %w", dir, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.orphans = append(r.orphans, types.OrphanedIndex{
		Directory:     dir,
		Reason:        reason,
		AttemptedPath: attemptedPath,
		DiscoveredAt:  time.Now(),
		CleanupAfter:  time.Now().Add(7 * 24 * time.Hour),
	})
	return r.save()
}

// ListOrphansReadyForCleanup returns orphans whose grace period has
// elapsed.
func (r *Registry) ListOrphansReadyForCleanup() []types.OrphanedIndex {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := time.Now()
	var out []types.OrphanedIndex
	for _, o := range r.orphans {
		if now.After(o.CleanupAfter) {
			out = append(out, o)
		}
	}
	return out
}

// MigrateFromLegacyMetadata assembles a registry from per-workspace
// legacy metadata files when no registry.json exists yet. Dangling
// directories (present on disk, absent from legacy metadata) are
// recorded as orphans. The operation is idempotent: re-running it once a
// registry.json already exists only merges newly discovered legacy
// entries and orphans, it never duplicates existing ones.
func (r *Registry) MigrateFromLegacyMetadata(ctx context.Context, indexBaseDir string) error {
	entries, err := os.ReadDir(filepath.Join(indexBaseDir, "index"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return lcierrors.New(lcierrors.TransientIO, "migrate_legacy", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		hash := e.Name()
		if _, exists := r.byHash[hash]; exists {
			continue
		}

		metaPath := filepath.Join(indexBaseDir, "index", hash, "workspace.meta.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			// No legacy metadata for this directory: record as orphan,
			// unless an earlier run already did.
			dir := filepath.Join(indexBaseDir, "index", hash)
			known := false
			for _, o := range r.orphans {
				if o.Directory == dir {
					known = true
					break
				}
			}
			if !known {
				r.orphans = append(r.orphans, types.OrphanedIndex{
					Directory:    dir,
					Reason:       "no legacy metadata found during migration",
					DiscoveredAt: time.Now(),
					CleanupAfter: time.Now().Add(7 * 24 * time.Hour),
				})
			}
			continue
		}

		var legacy struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal(data, &legacy); err != nil {
			continue
		}

		r.byHash[hash] = &types.Workspace{
			Hash:         hash,
			Path:         legacy.Path,
			IndexRoot:    filepath.Join(indexBaseDir, "index", hash),
			Status:       types.WorkspaceActive,
			CreatedAt:    time.Now(),
			LastAccessed: time.Now(),
		}
	}

	return r.save()
}
