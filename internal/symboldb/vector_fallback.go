//go:build !(sqlite_vec && cgo)

package symboldb

import (
	"context"
	"database/sql"
)

// noopVectorIndex is the default build's vector backend: no ANN extension
// is loaded, so every semantic-search call reports "unavailable" per
// §4.3's graceful-degradation requirement rather than attempting a
// brute-force scan that would silently misrepresent the feature as
// present.
type noopVectorIndex struct{}

func newVectorIndex(_ *sql.DB, _ string) VectorIndex { return noopVectorIndex{} }

func (noopVectorIndex) Available() bool { return false }

func (noopVectorIndex) Upsert(ctx context.Context, symbolID string, vector []float32) error {
	return ErrSemanticUnavailable
}

func (noopVectorIndex) Search(ctx context.Context, query []float32, k int) ([]struct {
	SymbolID   string
	Similarity float64
}, error) {
	return nil, ErrSemanticUnavailable
}
