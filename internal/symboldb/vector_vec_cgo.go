//go:build sqlite_vec && cgo

package symboldb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

var registerVecOnce sync.Once

// vecVectorIndex backs §4.3's ANN table with the real sqlite-vec
// extension. It needs a cgo sqlite driver to load the C extension, so it
// opens a second connection onto the same database file purely for the
// vec0 virtual table and its queries; every other table is still owned by
// the primary modernc.org/sqlite connection.
type vecVectorIndex struct {
	cgoDB *sql.DB
	dim   int
}

func newVectorIndex(_ *sql.DB, path string) VectorIndex {
	registerVecOnce.Do(vec.Auto)

	cgoDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return noopVectorIndex{}
	}
	idx := &vecVectorIndex{cgoDB: cgoDB, dim: 0}
	if err := idx.ensureTable(); err != nil {
		cgoDB.Close()
		return noopVectorIndex{}
	}
	return idx
}

func (v *vecVectorIndex) ensureTable() error {
	_, err := v.cgoDB.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_symbols USING vec0(symbol_id TEXT PRIMARY KEY, embedding FLOAT[384])`)
	return err
}

func (v *vecVectorIndex) Available() bool { return true }

func (v *vecVectorIndex) Upsert(ctx context.Context, symbolID string, vector []float32) error {
	blob, err := vec.SerializeFloat32(vector)
	if err != nil {
		return err
	}
	_, err = v.cgoDB.ExecContext(ctx, `
		INSERT INTO vec_symbols(symbol_id, embedding) VALUES (?, ?)
		ON CONFLICT(symbol_id) DO UPDATE SET embedding = excluded.embedding
	`, symbolID, blob)
	return err
}

func (v *vecVectorIndex) Search(ctx context.Context, query []float32, k int) ([]struct {
	SymbolID   string
	Similarity float64
}, error) {
	if k <= 0 {
		k = 10
	}
	blob, err := vec.SerializeFloat32(query)
	if err != nil {
		return nil, err
	}

	rows, err := v.cgoDB.QueryContext(ctx, `
		SELECT symbol_id, distance FROM vec_symbols
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("vec_symbols ANN query: %w", err)
	}
	defer rows.Close()

	var out []struct {
		SymbolID   string
		Similarity float64
	}
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, err
		}
		out = append(out, struct {
			SymbolID   string
			Similarity float64
		}{SymbolID: id, Similarity: 1 - distance})
	}
	return out, rows.Err()
}
