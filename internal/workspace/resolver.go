// Package workspace maps user-supplied paths to stable workspace hashes
// and the on-disk index roots derived from them (spec §4.1, component C1).
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// HashLength is the number of hex characters kept from the digest. The
// spec requires at least 8; 16 gives a comfortable collision margin while
// staying short enough to use as a directory name.
const HashLength = 16

// Resolver maps canonicalized workspace paths to hashes and index roots.
// It holds no mutable state — every method is a pure function of its
// arguments and the configured base directory — so a single Resolver is
// safe to share across goroutines without locking.
type Resolver struct {
	indexBase  string
	memoryBase string
}

// New creates a Resolver rooted at indexBase for workspace indexes and
// memoryBase for the project/local memory stores.
func New(indexBase, memoryBase string) *Resolver {
	return &Resolver{indexBase: indexBase, memoryBase: memoryBase}
}

// Canonicalize normalizes a user-supplied path so that two different
// spellings of the same directory hash identically: it lowercases drive
// letters are upper-cased (Windows convention), backslashes become
// forward slashes, and any trailing separator is trimmed.
func Canonicalize(path string) string {
	p := strings.TrimSpace(path)
	p = strings.ReplaceAll(p, "\\", "/")

	// Upper-case a Windows drive letter (C: -> C:) for platform-stable
	// hashing; everything else is lower-cased.
	if len(p) >= 2 && p[1] == ':' {
		p = strings.ToUpper(p[:1]) + p[1:]
	}

	p = strings.ToLower(p)
	// re-uppercase the drive letter after the lowercase pass
	if len(p) >= 2 && p[1] == ':' {
		p = strings.ToUpper(p[:1]) + p[1:]
	}

	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}

	return p
}

// WorkspaceHash returns the deterministic hash for a workspace path. It is
// computed over the canonicalized form, so two paths resolving to the
// same directory always produce the same hash (spec §8 invariant).
func WorkspaceHash(path string) string {
	canon := Canonicalize(path)
	sum := xxhash.Sum64String(canon)
	return fmt.Sprintf("%016x", sum)[:HashLength]
}

// IsMemoryPath reports whether path falls under the configured memory
// base directory, distinguishing memory-store paths from workspace paths
// for routing purposes.
func (r *Resolver) IsMemoryPath(path string) bool {
	if r.memoryBase == "" {
		return false
	}
	rel, err := filepath.Rel(r.memoryBase, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// IndexRoot returns the on-disk directory that holds the lexical index and
// symbol database for the workspace identified by hash.
func (r *Resolver) IndexRoot(hash string) string {
	return filepath.Join(r.indexBase, "index", hash)
}

// LucenexIndexPath returns the lexical (inverted) index subdirectory for a
// workspace hash.
func (r *Resolver) LexicalIndexPath(hash string) string {
	return filepath.Join(r.IndexRoot(hash), "lexical")
}

// SymbolDBPath returns the SQL symbol-database file path for a workspace
// hash.
func (r *Resolver) SymbolDBPath(hash string) string {
	return filepath.Join(r.indexBase, "index", hash+".db")
}

// MemoryPaths returns the project-memory and local-memory index roots.
func (r *Resolver) MemoryPaths() (project, local string) {
	return filepath.Join(r.memoryBase, "project-memory"),
		filepath.Join(r.memoryBase, "local-memory")
}

// RegistryPath returns the path to the workspace registry document.
func (r *Resolver) RegistryPath() string {
	return filepath.Join(r.indexBase, "registry.json")
}
