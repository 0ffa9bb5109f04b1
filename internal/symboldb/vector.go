package symboldb

import (
	"context"
	"encoding/binary"
	"math"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/types"
)

// VectorMatch is one ANN hit joined back to its symbol.
type VectorMatch struct {
	Symbol     types.Symbol
	Similarity float64
}

// VectorIndex abstracts the embedding/ANN backend so the default pure-Go
// build (modernc.org/sqlite, no cgo) degrades to the "unavailable" signal
// required by §4.3, while a `sqlite_vec && cgo` build gets real ANN via
// the sqlite-vec extension. See vector_vec_cgo.go / vector_fallback.go.
type VectorIndex interface {
	Available() bool
	Upsert(ctx context.Context, symbolID string, vector []float32) error
	Search(ctx context.Context, query []float32, k int) ([]struct {
		SymbolID   string
		Similarity float64
	}, error)
}

// ErrSemanticUnavailable is the distinguishable "unavailable" signal from
// §4.3: the caller gets an empty list and this sentinel, never a crash.
var ErrSemanticUnavailable = lcierrors.New(lcierrors.DependencyUnavail, "search_symbols_semantic", nil).
	WithSuggestion("sqlite-vec extension or embedding provider unavailable in this build")

// SearchSymbolsSemantic embeds nothing itself — callers pass an
// already-embedded query vector (the embedding provider lives outside this
// module, per §6) — does an ANN lookup, and joins back to symbols.
func (db *DB) SearchSymbolsSemantic(ctx context.Context, queryVector []float32, k int) ([]VectorMatch, error) {
	if !db.vector.Available() {
		return nil, ErrSemanticUnavailable
	}
	hits, err := db.vector.Search(ctx, queryVector, k)
	if err != nil {
		return nil, lcierrors.New(lcierrors.TransientIO, "search_symbols_semantic", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]interface{}, len(hits))
	placeholders := make([]byte, 0, len(hits)*2)
	for i, h := range hits {
		ids[i] = h.SymbolID
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, kind, language, file_path, start_line, start_col, end_line, end_col, COALESCE(signature, ''), COALESCE(parent_id, '')
		FROM symbols WHERE id IN (`+string(placeholders)+`)
	`, ids...)
	if err != nil {
		return nil, lcierrors.New(lcierrors.TransientIO, "search_symbols_semantic", err)
	}
	defer rows.Close()

	byID := make(map[string]types.Symbol)
	for rows.Next() {
		var s types.Symbol
		var kind string
		if err := rows.Scan(&s.ID, &s.Name, &kind, &s.Language, &s.FilePath,
			&s.StartLine, &s.StartCol, &s.EndLine, &s.EndCol, &s.Signature, &s.ParentID); err != nil {
			return nil, lcierrors.New(lcierrors.TransientIO, "search_symbols_semantic", err)
		}
		s.Kind = types.SymbolKind(kind)
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, lcierrors.New(lcierrors.TransientIO, "search_symbols_semantic", err)
	}

	out := make([]VectorMatch, 0, len(hits))
	for _, h := range hits {
		if s, ok := byID[h.SymbolID]; ok {
			out = append(out, VectorMatch{Symbol: s, Similarity: h.Similarity})
		}
	}
	return out, nil
}

// BulkEmbedMissing embeds every symbol lacking an embedding, in batches of
// batchSize (sized by C7's recommendation per §4.3 "Bulk embedding").
// embed is the caller-supplied embedding-provider call; failures for a
// subset do not abort the rest.
func (db *DB) BulkEmbedMissing(ctx context.Context, batchSize int, embed func(ctx context.Context, symbolIDs []string, texts []string) ([][]float32, error)) (embedded int, failed int, err error) {
	if !db.vector.Available() {
		return 0, 0, ErrSemanticUnavailable
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	for {
		ids, texts, err := db.nextUnembeddedBatch(ctx, batchSize)
		if err != nil {
			return embedded, failed, err
		}
		if len(ids) == 0 {
			break
		}

		vectors, embedErr := embed(ctx, ids, texts)
		if embedErr != nil {
			failed += len(ids)
			continue
		}
		for i, id := range ids {
			if i >= len(vectors) || vectors[i] == nil {
				failed++
				continue
			}
			if _, err := db.conn.ExecContext(ctx, `
				INSERT INTO symbol_embeddings (symbol_id, vector) VALUES (?, ?)
				ON CONFLICT(symbol_id) DO UPDATE SET vector = excluded.vector
			`, id, encodeVector(vectors[i])); err != nil {
				failed++
				continue
			}
			if err := db.vector.Upsert(ctx, id, vectors[i]); err != nil {
				failed++
				continue
			}
			embedded++
		}
	}
	return embedded, failed, nil
}

// EmbeddingForSymbol returns the raw stored vector for a symbol, decoded
// from its BLOB, for callers (e.g. the call-path tracer's semantic bridge)
// that need the vector directly rather than through an ANN search.
func (db *DB) EmbeddingForSymbol(ctx context.Context, symbolID string) ([]float32, error) {
	var blob []byte
	err := db.conn.QueryRowContext(ctx, `SELECT vector FROM symbol_embeddings WHERE symbol_id = ?`, symbolID).Scan(&blob)
	if err != nil {
		return nil, lcierrors.New(lcierrors.NotFound, "embedding_for_symbol", err).WithPattern(symbolID)
	}
	return decodeVector(blob), nil
}

// SimilarityBetweenSymbols computes cosine similarity between two symbols'
// stored embeddings, used by the call-path tracer's semantic bridge (§4.10)
// without going through the ANN index.
func (db *DB) SimilarityBetweenSymbols(ctx context.Context, a, b string) (float64, error) {
	va, err := db.EmbeddingForSymbol(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := db.EmbeddingForSymbol(ctx, b)
	if err != nil {
		return 0, err
	}
	return cosineSimilarity(va, vb), nil
}

func (db *DB) nextUnembeddedBatch(ctx context.Context, batchSize int) ([]string, []string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.id, s.name || ' ' || COALESCE(s.signature, '')
		FROM symbols s
		LEFT JOIN symbol_embeddings e ON e.symbol_id = s.id
		WHERE e.symbol_id IS NULL
		LIMIT ?
	`, batchSize)
	if err != nil {
		return nil, nil, lcierrors.New(lcierrors.TransientIO, "bulk_embed_missing", err)
	}
	defer rows.Close()

	var ids, texts []string
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, nil, lcierrors.New(lcierrors.TransientIO, "bulk_embed_missing", err)
		}
		ids = append(ids, id)
		texts = append(texts, text)
	}
	return ids, texts, rows.Err()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
