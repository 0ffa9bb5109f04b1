// Package extractor models the external symbol-extraction boundary
// (spec §6): the engine itself never parses source code in-process, it
// hands a file path to a subprocess and decodes whatever JSON that
// process writes to stdout. This is a hard boundary, not an
// implementation detail — no parsing library belongs on this side of it.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/types"
)

// Extractor produces symbols, identifiers, and relationships for one file.
type Extractor interface {
	Extract(ctx context.Context, path, language string) (types.ExtractionResult, error)
}

// wireResult is the JSON shape the extractor subprocess is expected to
// write to stdout for a single file: one object carrying all three
// arrays, UTF-8 encoded (§6).
type wireResult struct {
	Symbols []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Kind      string `json:"kind"`
		StartLine int    `json:"start_line"`
		StartCol  int    `json:"start_col"`
		EndLine   int    `json:"end_line"`
		EndCol    int    `json:"end_col"`
		Signature string `json:"signature"`
		ParentID  string `json:"parent_id"`
	} `json:"symbols"`
	Identifiers []struct {
		ID                 string  `json:"id"`
		Name               string  `json:"name"`
		Kind               string  `json:"kind"`
		StartLine          int     `json:"start_line"`
		StartCol           int     `json:"start_col"`
		EndLine            int     `json:"end_line"`
		EndCol             int     `json:"end_col"`
		CodeContext        string  `json:"code_context"`
		ContainingSymbolID string  `json:"containing_symbol_id"`
		ResolvedTarget     string  `json:"resolved_target_symbol"`
		Confidence         float64 `json:"confidence"`
	} `json:"identifiers"`
	Relationships []struct {
		From string `json:"from_symbol_id"`
		To   string `json:"to_symbol_id"`
		Kind string `json:"kind"`
	} `json:"relationships"`
}

func (w wireResult) toDomain(path, language string) types.ExtractionResult {
	result := types.ExtractionResult{
		Symbols:       make([]types.Symbol, 0, len(w.Symbols)),
		Identifiers:   make([]types.Identifier, 0, len(w.Identifiers)),
		Relationships: make([]types.Relationship, 0, len(w.Relationships)),
	}
	for _, s := range w.Symbols {
		result.Symbols = append(result.Symbols, types.Symbol{
			ID: s.ID, Name: s.Name, Kind: types.SymbolKind(s.Kind), Language: language, FilePath: path,
			StartLine: s.StartLine, StartCol: s.StartCol, EndLine: s.EndLine, EndCol: s.EndCol,
			Signature: s.Signature, ParentID: s.ParentID,
		})
	}
	for _, id := range w.Identifiers {
		result.Identifiers = append(result.Identifiers, types.Identifier{
			ID: id.ID, Name: id.Name, Kind: types.IdentifierKind(id.Kind), Language: language, FilePath: path,
			StartLine: id.StartLine, StartCol: id.StartCol, EndLine: id.EndLine, EndCol: id.EndCol,
			CodeContext: id.CodeContext, ContainingSymbolID: id.ContainingSymbolID,
			ResolvedTargetSymbol: id.ResolvedTarget, Confidence: id.Confidence,
		})
	}
	for _, r := range w.Relationships {
		result.Relationships = append(result.Relationships, types.Relationship{
			FromSymbolID: r.From, ToSymbolID: r.To, Kind: types.RelationshipKind(r.Kind),
		})
	}
	return result
}

// SubprocessExtractor runs an external command once per file, passing the
// path as the final argument and decoding a single wireResult object from
// its stdout.
type SubprocessExtractor struct {
	command string
	args    []string
}

// NewSubprocessExtractor builds a SubprocessExtractor. args is the fixed
// portion of the command line; the file path is appended on every call.
func NewSubprocessExtractor(command string, args ...string) *SubprocessExtractor {
	return &SubprocessExtractor{command: command, args: args}
}

func (e *SubprocessExtractor) Extract(ctx context.Context, path, language string) (types.ExtractionResult, error) {
	args := make([]string, 0, len(e.args)+1)
	args = append(args, e.args...)
	args = append(args, path)

	cmd := exec.CommandContext(ctx, e.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return types.ExtractionResult{}, lcierrors.New(lcierrors.DependencyUnavail, "extractor_run", err).
			WithFile(path).
			WithSuggestion("symbol extractor subprocess failed: " + stderr.String())
	}

	var wire wireResult
	if err := json.Unmarshal(stdout.Bytes(), &wire); err != nil {
		return types.ExtractionResult{}, lcierrors.New(lcierrors.DependencyUnavail, "extractor_decode", err).
			WithFile(path).
			WithSuggestion("symbol extractor produced malformed JSON")
	}
	return wire.toDomain(path, language), nil
}

// NullExtractor returns an empty ExtractionResult for every file. It
// exists for workspaces or tests that run the pipeline without a
// configured extractor, so lexical indexing still proceeds.
type NullExtractor struct{}

func (NullExtractor) Extract(ctx context.Context, path, language string) (types.ExtractionResult, error) {
	return types.ExtractionResult{}, nil
}
