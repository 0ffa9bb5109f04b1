package symboldb

import (
	"context"
	"database/sql"
	"strings"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/types"
)

// upwardCTE finds callers of X: seed on call-identifiers named X, then
// repeatedly hop from the identifier's containing symbol to identifiers
// that call *that* symbol's name. depth and path (pipe-joined identifier
// ids) are carried on every row for the cap and cycle-detection
// requirements in spec §4.3.
const upwardCTE = `
WITH RECURSIVE trace(id, name, kind, language, file_path, start_line, start_col, end_line, end_col,
	code_context, containing_symbol_id, target_symbol_id, confidence, depth, path) AS (
	SELECT i.id, i.name, i.kind, i.language, i.file_path, i.start_line, i.start_col, i.end_line, i.end_col,
		i.code_context, i.containing_symbol_id, i.target_symbol_id, i.confidence, 0, CAST(i.id AS TEXT)
	FROM identifiers i
	WHERE i.name = ? AND i.kind = 'call'

	UNION ALL

	SELECT i2.id, i2.name, i2.kind, i2.language, i2.file_path, i2.start_line, i2.start_col, i2.end_line, i2.end_col,
		i2.code_context, i2.containing_symbol_id, i2.target_symbol_id, i2.confidence, t.depth + 1, t.path || '|' || i2.id
	FROM trace t
	JOIN symbols s ON s.id = t.containing_symbol_id
	JOIN identifiers i2 ON i2.name = s.name AND i2.kind = 'call'
	WHERE t.depth < ? AND instr('|' || t.path || '|', '|' || i2.id || '|') = 0
)
SELECT id, name, kind, language, file_path, start_line, start_col, end_line, end_col,
	code_context, containing_symbol_id, target_symbol_id, confidence, depth
FROM trace
ORDER BY depth
`

// downwardCTE finds callees of X: seed on identifiers whose containing
// symbol is named X, then hop from each call's resolved (or name-matched)
// target symbol to that symbol's own containing identifiers.
const downwardCTE = `
WITH RECURSIVE trace(id, name, kind, language, file_path, start_line, start_col, end_line, end_col,
	code_context, containing_symbol_id, target_symbol_id, confidence, depth, path) AS (
	SELECT i.id, i.name, i.kind, i.language, i.file_path, i.start_line, i.start_col, i.end_line, i.end_col,
		i.code_context, i.containing_symbol_id, i.target_symbol_id, i.confidence, 0, CAST(i.id AS TEXT)
	FROM identifiers i
	WHERE i.containing_symbol_id IN (SELECT id FROM symbols WHERE name = ?)

	UNION ALL

	SELECT i2.id, i2.name, i2.kind, i2.language, i2.file_path, i2.start_line, i2.start_col, i2.end_line, i2.end_col,
		i2.code_context, i2.containing_symbol_id, i2.target_symbol_id, i2.confidence, t.depth + 1, t.path || '|' || i2.id
	FROM trace t
	JOIN symbols target ON (target.id = t.target_symbol_id OR (t.target_symbol_id IS NULL AND target.name = t.name))
	JOIN identifiers i2 ON i2.containing_symbol_id = target.id
	WHERE t.depth < ? AND instr('|' || t.path || '|', '|' || i2.id || '|') = 0
)
SELECT id, name, kind, language, file_path, start_line, start_col, end_line, end_col,
	code_context, containing_symbol_id, target_symbol_id, confidence, depth
FROM trace
ORDER BY depth
`

// ExecuteCallTrace runs the recursive CTE for dir and returns the flat,
// depth-ordered identifier rows, capped at maxDepth hops (default 10).
// This is the raw traversal only: resolving ContainingSymbol/TargetSymbol,
// combining directions, and the semantic-bridge tier are
// internal/callpath's job, one level up — this method exists so that
// package can drive C3's CTEs without owning a SQL connection itself.
func (db *DB) ExecuteCallTrace(ctx context.Context, dir types.CallDirection, symbolName string, maxDepth int) ([]types.CallPathNode, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	query := upwardCTE
	if dir == types.DirectionDownward {
		query = downwardCTE
	}

	rows, err := db.conn.QueryContext(ctx, query, symbolName, maxDepth)
	if err != nil {
		return nil, lcierrors.New(lcierrors.TransientIO, "execute_call_trace", err).WithPattern(symbolName)
	}
	defer rows.Close()

	var out []types.CallPathNode
	for rows.Next() {
		var id types.Identifier
		var kind string
		var containing, target sql.NullString
		var depth int
		var codeContext sql.NullString

		if err := rows.Scan(&id.ID, &id.Name, &kind, &id.Language, &id.FilePath,
			&id.StartLine, &id.StartCol, &id.EndLine, &id.EndCol,
			&codeContext, &containing, &target, &id.Confidence, &depth); err != nil {
			return nil, lcierrors.New(lcierrors.TransientIO, "execute_call_trace", err).WithPattern(symbolName)
		}
		id.Kind = types.IdentifierKind(kind)
		id.CodeContext = codeContext.String
		id.ContainingSymbolID = containing.String
		id.ResolvedTargetSymbol = target.String

		out = append(out, types.CallPathNode{
			Identifier: id,
			Depth:      depth,
			Direction:  dir,
			Confidence: id.Confidence,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, lcierrors.New(lcierrors.TransientIO, "execute_call_trace", err).WithPattern(symbolName)
	}
	return out, nil
}

// FetchSymbolsByID batches a symbol lookup by id set in one query instead
// of N+1, used by internal/callpath to hydrate ContainingSymbol/TargetSymbol
// and by its SelectBestImplementation disambiguation.
func (db *DB) FetchSymbolsByID(ctx context.Context, ids []string) (map[string]*types.Symbol, error) {
	if len(ids) == 0 {
		return map[string]*types.Symbol{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, kind, language, file_path, start_line, start_col, end_line, end_col, COALESCE(signature, ''), COALESCE(parent_id, '')
		FROM symbols WHERE id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return nil, lcierrors.New(lcierrors.TransientIO, "fetch_symbols_by_id", err)
	}
	defer rows.Close()

	byID := make(map[string]*types.Symbol, len(ids))
	for rows.Next() {
		var s types.Symbol
		var kind string
		if err := rows.Scan(&s.ID, &s.Name, &kind, &s.Language, &s.FilePath,
			&s.StartLine, &s.StartCol, &s.EndLine, &s.EndCol, &s.Signature, &s.ParentID); err != nil {
			return nil, lcierrors.New(lcierrors.TransientIO, "fetch_symbols_by_id", err)
		}
		s.Kind = types.SymbolKind(kind)
		cp := s
		byID[s.ID] = &cp
	}
	if err := rows.Err(); err != nil {
		return nil, lcierrors.New(lcierrors.TransientIO, "fetch_symbols_by_id", err)
	}
	return byID, nil
}
