package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	lcidebug "github.com/standardbeagle/lci/internal/debug"
	lcierrors "github.com/standardbeagle/lci/internal/errors"
	"github.com/standardbeagle/lci/internal/memory"
	"github.com/standardbeagle/lci/internal/types"
)

func jsonResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(content)}}}, nil
}

// errorResponse follows spec §7's "user-visible behavior": a top-level
// success flag and, on failure, a {kind, message, suggestions?} object,
// rather than a raw JSON-RPC protocol error.
func errorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	lcidebug.LogMCP("%s failed: %v", operation, err)
	body := map[string]interface{}{"success": false}
	if lcErr, ok := err.(*lcierrors.Error); ok {
		body["kind"] = lcErr.Kind
		body["message"] = lcErr.Error()
		if lcErr.Suggestion != "" {
			body["suggestions"] = []string{lcErr.Suggestion}
		}
	} else {
		body["kind"] = lcierrors.Fatal
		body["message"] = err.Error()
	}
	return jsonResponse(body)
}

func (e *engine) registerTools(server *mcp.Server) {
	server.AddTool(&mcp.Tool{
		Name:        "index_workspace",
		Description: "Index (or re-index) the configured workspace: walks the tree, extracts symbols, and builds the lexical and symbol indexes.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, e.handleIndexWorkspace)

	server.AddTool(&mcp.Tool{
		Name:        "text_search",
		Description: "Lexical full-text search over the indexed workspace's files.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query":       {Type: "string", Description: "Search text"},
				"max_results": {Type: "integer", Description: "Maximum results"},
			},
			Required: []string{"query"},
		},
	}, e.handleTextSearch)

	server.AddTool(&mcp.Tool{
		Name:        "hybrid_search",
		Description: "Fused lexical + semantic search. Degrades to lexical-only (merge_strategy=LexicalOnly-Fallback) when no embedding provider is configured.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query":       {Type: "string", Description: "Search text"},
				"max_results": {Type: "integer", Description: "Maximum results"},
			},
			Required: []string{"query"},
		},
	}, e.handleHybridSearch)

	server.AddTool(&mcp.Tool{
		Name:        "trace_upward",
		Description: "Trace callers of a symbol up the call graph.",
		InputSchema: traceSchema(),
	}, e.handleTraceUpward)

	server.AddTool(&mcp.Tool{
		Name:        "trace_downward",
		Description: "Trace callees of a symbol down the call graph.",
		InputSchema: traceSchema(),
	}, e.handleTraceDownward)

	server.AddTool(&mcp.Tool{
		Name:        "add_memory",
		Description: "Store a knowledge entry in the project (shared) or local (per-machine) memory index.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"kind":    {Type: "string", Description: "\"project\" or \"local\""},
				"type":    {Type: "string", Description: "Entry type, e.g. \"decision\", \"debt\", \"note\""},
				"content": {Type: "string", Description: "Entry content"},
			},
			Required: []string{"type", "content"},
		},
	}, e.handleAddMemory)

	server.AddTool(&mcp.Tool{
		Name:        "search_memory",
		Description: "Search the project and/or local memory indexes.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"kind":  {Type: "string", Description: "\"project\" or \"local\""},
				"query": {Type: "string", Description: "Search token"},
			},
			Required: []string{"query"},
		},
	}, e.handleSearchMemory)

	server.AddTool(&mcp.Tool{
		Name:        "get_boosts",
		Description: "Compute per-term ranking multipliers from session recency context (current file, recent files/queries, technology vocabulary).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"terms": {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Terms to score"},
			},
			Required: []string{"terms"},
		},
	}, e.handleGetBoosts)
}

func traceSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"symbol":    {Type: "string", Description: "Symbol name to trace from"},
			"max_depth": {Type: "integer", Description: "Maximum traversal depth"},
		},
		Required: []string{"symbol"},
	}
}

func (e *engine) handleIndexWorkspace(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := e.pipe.IndexWorkspace(ctx, e.ws, false)
	if err != nil {
		return errorResponse("index_workspace", err)
	}
	return jsonResponse(map[string]interface{}{
		"success":       true,
		"files_scanned": stats.FilesScanned,
		"files_indexed": stats.FilesIndexed,
		"files_skipped": stats.FilesSkipped,
		"error_count":   len(stats.Errors),
	})
}

type textSearchParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (e *engine) handleTextSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params textSearchParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("text_search", lcierrors.New(lcierrors.InvalidArgument, "text_search", err))
	}
	if params.MaxResults <= 0 {
		params.MaxResults = 20
	}
	e.boostCtx.RecordQuery(params.Query)

	paths, err := e.db.SearchFilesFTS(ctx, params.Query, params.MaxResults)
	if err != nil {
		return errorResponse("text_search", err)
	}
	return jsonResponse(map[string]interface{}{"success": true, "files": paths})
}

func (e *engine) handleHybridSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params textSearchParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("hybrid_search", lcierrors.New(lcierrors.InvalidArgument, "hybrid_search", err))
	}
	if params.MaxResults <= 0 {
		params.MaxResults = 20
	}
	e.boostCtx.RecordQuery(params.Query)

	result, err := e.search.Search(ctx, params.Query, params.MaxResults)
	if err != nil {
		return errorResponse("hybrid_search", err)
	}

	terms := []string{params.Query}
	boosts := e.boostCtx.GetBoosts(terms)
	return jsonResponse(map[string]interface{}{
		"success":        true,
		"merge_strategy": result.Strategy,
		"hits":           result.Hits,
		"query_boost":    boosts[params.Query],
	})
}

type traceParams struct {
	Symbol   string `json:"symbol"`
	MaxDepth int    `json:"max_depth"`
}

func (e *engine) handleTraceUpward(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return e.trace(ctx, req, e.tracer.TraceUpward)
}

func (e *engine) handleTraceDownward(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return e.trace(ctx, req, e.tracer.TraceDownward)
}

func (e *engine) trace(ctx context.Context, req *mcp.CallToolRequest, fn func(context.Context, string, int) ([]types.CallPathNode, error)) (*mcp.CallToolResult, error) {
	var params traceParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("trace", lcierrors.New(lcierrors.InvalidArgument, "trace", err))
	}
	if params.MaxDepth <= 0 {
		params.MaxDepth = 10
	}
	nodes, err := fn(ctx, params.Symbol, params.MaxDepth)
	if err != nil {
		return errorResponse("trace", err)
	}
	return jsonResponse(map[string]interface{}{"success": true, "nodes": nodes})
}

type addMemoryParams struct {
	Kind    string                 `json:"kind"`
	Type    string                 `json:"type"`
	Content string                 `json:"content"`
	Files   []string               `json:"files_involved"`
	Fields  map[string]interface{} `json:"extended_fields"`
}

func (e *engine) handleAddMemory(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params addMemoryParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("add_memory", lcierrors.New(lcierrors.InvalidArgument, "add_memory", err))
	}
	store := e.memoryStore(params.Kind)
	stored, result, err := store.AddEntry(ctx, types.MemoryEntry{
		Type:           params.Type,
		Content:        params.Content,
		FilesInvolved:  params.Files,
		ExtendedFields: params.Fields,
	})
	if err != nil {
		return errorResponse("add_memory", err)
	}
	return jsonResponse(map[string]interface{}{"success": true, "entry": stored, "warnings": result.Warnings})
}

type searchMemoryParams struct {
	Kind  string `json:"kind"`
	Query string `json:"query"`
}

func (e *engine) handleSearchMemory(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params searchMemoryParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("search_memory", lcierrors.New(lcierrors.InvalidArgument, "search_memory", err))
	}
	store := e.memoryStore(params.Kind)
	entries, err := store.Search(ctx, params.Query)
	if err != nil {
		return errorResponse("search_memory", err)
	}
	return jsonResponse(map[string]interface{}{"success": true, "entries": entries})
}

func (e *engine) memoryStore(kind string) *memory.Store {
	if kind == "local" {
		return e.localMemory
	}
	return e.projectMemory
}

type getBoostsParams struct {
	Terms []string `json:"terms"`
}

func (e *engine) handleGetBoosts(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params getBoostsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("get_boosts", lcierrors.New(lcierrors.InvalidArgument, "get_boosts", err))
	}
	boosts := e.boostCtx.GetBoosts(params.Terms)
	return jsonResponse(map[string]interface{}{"success": true, "boosts": boosts})
}
