package lexindex

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/types"
)

// Statistics summarizes one workspace's lexical index for the
// statistics() operation.
type Statistics struct {
	DocumentCount int
	PendingCount  int
	IndexExists   bool
}

type entry struct {
	writer   *Writer
	searcher *Searcher
	lock     *flock.Flock
	dir      string
}

// Manager owns one Writer/Searcher pair per workspace (§4.4). Writer
// creation is deduplicated across concurrent callers with a
// singleflight.Group so two goroutines racing to open the same
// workspace's index never produce two Writers fighting over the same
// lock file.
type Manager struct {
	entries     sync.Map // string (workspace hash) -> *entry
	group       singleflight.Group
	lockTimeout time.Duration
}

// NewManager builds a Manager. lockTimeout of 0 uses DefaultStuckLockTimeout.
func NewManager(lockTimeout time.Duration) *Manager {
	return &Manager{lockTimeout: lockTimeout}
}

func (m *Manager) indexDir(ws types.Workspace) string {
	return filepath.Join(ws.IndexRoot, "lexical")
}

// GetWriter returns the single Writer for ws, creating and disk-loading
// it on first call. Every subsequent call for the same workspace returns
// the same instance until Clear or process exit.
func (m *Manager) GetWriter(ctx context.Context, ws types.Workspace) (*Writer, error) {
	e, err := m.getOrCreateEntry(ws)
	if err != nil {
		return nil, err
	}
	return e.writer, nil
}

// GetSearcher returns a near-real-time reader bound to ws's live writer.
func (m *Manager) GetSearcher(ctx context.Context, ws types.Workspace) (*Searcher, error) {
	e, err := m.getOrCreateEntry(ws)
	if err != nil {
		return nil, err
	}
	return newSearcher(e.writer), nil
}

func (m *Manager) getOrCreateEntry(ws types.Workspace) (*entry, error) {
	if v, ok := m.entries.Load(ws.Hash); ok {
		return v.(*entry), nil
	}

	v, err, _ := m.group.Do(ws.Hash, func() (interface{}, error) {
		if v, ok := m.entries.Load(ws.Hash); ok {
			return v, nil
		}

		dir := m.indexDir(ws)
		lock, err := acquireWriteLock(dir, m.lockTimeout)
		if err != nil {
			return nil, err
		}

		store := newDiskStore(dir)
		fields, _, err := store.load()
		if err != nil {
			lock.Unlock()
			return nil, err
		}

		w := newWriter(store)
		w.fields = fields

		e := &entry{writer: w, dir: dir, lock: lock}
		e.searcher = newSearcher(w)
		m.entries.Store(ws.Hash, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

// Commit flushes ws's writer to disk.
func (m *Manager) Commit(ctx context.Context, ws types.Workspace) error {
	e, err := m.getOrCreateEntry(ws)
	if err != nil {
		return err
	}
	return e.writer.commit(ctx)
}

// Optimize compacts ws's index, physically reclaiming tombstoned postings.
func (m *Manager) Optimize(ctx context.Context, ws types.Workspace) error {
	e, err := m.getOrCreateEntry(ws)
	if err != nil {
		return err
	}
	return e.writer.optimize(ctx)
}

// Clear discards ws's index entirely: in-memory state, on-disk segments,
// and the write lock, so the next GetWriter starts from empty.
func (m *Manager) Clear(ctx context.Context, ws types.Workspace) error {
	v, ok := m.entries.LoadAndDelete(ws.Hash)
	if !ok {
		return clearIndexDir(m.indexDir(ws))
	}
	e := v.(*entry)
	e.writer.close()
	if e.lock != nil {
		e.lock.Unlock()
	}
	return clearIndexDir(e.dir)
}

// IndexExists reports whether ws has a persisted index on disk, without
// opening a writer for it.
func (m *Manager) IndexExists(ws types.Workspace) bool {
	store := newDiskStore(m.indexDir(ws))
	_, exists, err := store.load()
	return err == nil && exists
}

// Statistics reports document counts for ws, opening the workspace's
// writer if it is not already open.
func (m *Manager) Statistics(ctx context.Context, ws types.Workspace) (Statistics, error) {
	e, err := m.getOrCreateEntry(ws)
	if err != nil {
		return Statistics{}, err
	}
	return Statistics{
		DocumentCount: e.writer.documentCount(),
		PendingCount:  e.writer.PendingCount(),
		IndexExists:   true,
	}, nil
}

// closeBudget is the total time allotted to flush every open writer on
// disposal (§4.4 "bounded by a 30-second total budget").
const closeBudget = 30 * time.Second

// Close commits every open writer within a shared 30-second budget and
// releases their write locks. Writers that don't finish in time are
// abandoned with their lock released anyway: a stuck commit must not
// block process shutdown forever.
func (m *Manager) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeBudget)
	defer cancel()

	var errs []error
	m.entries.Range(func(key, value interface{}) bool {
		e := value.(*entry)
		if err := e.writer.commit(ctx); err != nil {
			errs = append(errs, err)
		}
		e.writer.close()
		if e.lock != nil {
			e.lock.Unlock()
		}
		m.entries.Delete(key)
		return true
	})
	if len(errs) > 0 {
		return lcierrors.NewMultiError(errs)
	}
	return nil
}
