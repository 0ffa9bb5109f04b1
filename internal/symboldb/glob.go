package symboldb

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
)

// SearchFilesByPattern implements §4.3's glob search: one or more
// comma-free glob patterns, optionally prefixed with "!" for negation,
// matched against every indexed file path using doublestar semantics
// (`**` across segments, `*` within a segment, `?`, `{a,b}`, character
// classes) — the same library the pipeline uses for exclusion globs (C8).
func (db *DB) SearchFilesByPattern(ctx context.Context, patterns []string) ([]string, error) {
	var positive, negative []string
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "!") {
			negative = append(negative, p[1:])
		} else {
			positive = append(positive, p)
		}
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT path FROM files`)
	if err != nil {
		return nil, lcierrors.New(lcierrors.TransientIO, "search_files_by_pattern", err)
	}
	defer rows.Close()

	var matched []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, lcierrors.New(lcierrors.TransientIO, "search_files_by_pattern", err)
		}
		included := len(positive) == 0 || matchesAny(path, positive)
		excluded := len(negative) > 0 && matchesAny(path, negative)
		if included && !excluded {
			matched = append(matched, path)
		}
	}
	return matched, rows.Err()
}

// matchesAny reports whether path matches any of patterns.
func matchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
