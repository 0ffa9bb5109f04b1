// Package types holds the data shapes shared across the indexing pipeline,
// the symbol database, the lexical index, and the memory store. Keeping
// them in one leaf package avoids import cycles between the coordinators
// that build on top of them.
//
// model.go carries the workspace code-intelligence domain model. The
// sibling files in this package (symbol_types.go, string_ref*.go,
// graph_types.go, ...) are the teacher's own in-memory-index types; they
// are adapted or retired during the final pass once every consumer below
// has migrated to the shapes defined here.
package types

import "time"

// WorkspaceStatus is the lifecycle state of a registered workspace.
type WorkspaceStatus string

const (
	WorkspaceActive   WorkspaceStatus = "active"
	WorkspaceIndexing WorkspaceStatus = "indexing"
	WorkspaceStale    WorkspaceStatus = "stale"
	WorkspaceDisabled WorkspaceStatus = "disabled"
)

// Workspace is a registered root directory and its on-disk index identity.
type Workspace struct {
	Hash          string
	Path          string
	IndexRoot     string
	Status        WorkspaceStatus
	DocumentCount int
	IndexSizeBytes int64
	CreatedAt     time.Time
	LastAccessed  time.Time
}

// OrphanedIndex is an on-disk index directory with no owning workspace.
type OrphanedIndex struct {
	Directory     string
	Reason        string
	AttemptedPath string
	DiscoveredAt  time.Time
	CleanupAfter  time.Time
}

// FileRecord is the canonical snapshot of one file's content and metadata.
type FileRecord struct {
	Path             string
	Content          string
	Language         string
	SizeBytes        int64
	LastModifiedUnix int64
	ContentHash      string
}

// SymbolKind enumerates the declared-entity kinds a language extractor
// may emit. The set is open in practice (languages invent their own), so
// this is a string type rather than a closed Go enum.
type SymbolKind string

const (
	SymbolClass     SymbolKind = "class"
	SymbolMethod    SymbolKind = "method"
	SymbolFunction  SymbolKind = "function"
	SymbolInterface SymbolKind = "interface"
	SymbolEnum      SymbolKind = "enum"
	SymbolField     SymbolKind = "field"
	SymbolProperty  SymbolKind = "property"
)

// Symbol is a declared program entity at a source location.
type Symbol struct {
	ID        string
	Name      string
	Kind      SymbolKind
	Language  string
	FilePath  string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	Signature string
	ParentID  string // empty when top-level
}

// IdentifierKind enumerates usage-occurrence kinds.
type IdentifierKind string

const (
	IdentifierCall         IdentifierKind = "call"
	IdentifierMemberAccess IdentifierKind = "member_access"
	IdentifierVariableRef  IdentifierKind = "variable_ref"
	IdentifierTypeRef      IdentifierKind = "type_ref"
)

// Identifier is one occurrence of a name at a source location.
type Identifier struct {
	ID                   string
	Name                 string
	Kind                 IdentifierKind
	Language             string
	FilePath             string
	StartLine            int
	StartCol             int
	EndLine              int
	EndCol               int
	CodeContext          string
	ContainingSymbolID   string
	ResolvedTargetSymbol string // empty when unresolved
	Confidence           float64
}

// RelationshipKind enumerates symbol-to-symbol edges.
type RelationshipKind string

const (
	RelExtends    RelationshipKind = "extends"
	RelImplements RelationshipKind = "implements"
	RelOverrides  RelationshipKind = "overrides"
	RelUses       RelationshipKind = "uses"
)

// Relationship is a directed edge between two symbols in the same workspace.
type Relationship struct {
	FromSymbolID string
	ToSymbolID   string
	Kind         RelationshipKind
}

// Embedding is a fixed-dimension vector associated with one symbol.
type Embedding struct {
	SymbolID string
	Vector   []float32
}

// LexicalDocument is the unit indexed by the lexical index manager, one
// per file.
type LexicalDocument struct {
	ID             string // == Path
	Path           string
	Filename       string
	Extension      string
	Content        string // code-aware analyzed field
	ContentLiteral string // un-analyzed, exact/special-character matches
	ContentCode    string // code-friendly tokenization (stemmed)
	ContentSymbols string // symbol-name-only field
	LineBreaks     []int  // byte offsets of each '\n'
}

// ExtractionResult is what the external symbol extractor produces for one
// file.
type ExtractionResult struct {
	Symbols       []Symbol
	Identifiers   []Identifier
	Relationships []Relationship
}

// CallDirection distinguishes the two traversal directions of a call path.
type CallDirection string

const (
	DirectionUpward   CallDirection = "upward"
	DirectionDownward CallDirection = "downward"
)

// CallPathNode is one flat row of a call-path traversal result.
type CallPathNode struct {
	Identifier       Identifier
	ContainingSymbol *Symbol
	TargetSymbol     *Symbol
	Depth            int
	Direction        CallDirection
	IsSemanticMatch  bool
	Confidence       float64
}

// FusionStrategy names how HybridSearch combined lexical and semantic
// result sets to produce a HybridHit's Score.
type FusionStrategy string

const (
	FusionLinear          FusionStrategy = "Linear"
	FusionRRF             FusionStrategy = "ReciprocalRankFusion"
	FusionMultiplicative  FusionStrategy = "Multiplicative"
	FusionLexicalFallback FusionStrategy = "LexicalOnly-Fallback"
)

// HybridHit is one fused search result: a file path with a combined score
// and a record of which underlying search(es) produced it.
type HybridHit struct {
	Path           string
	Score          float64
	LexicalScore   float64
	SemanticScore  float64
	LexicalRank     int // 0 means "not found" by that search
	SemanticRank    int
	FoundInLexical  bool
	FoundInSemantic bool
	FoundInBoth     bool
}

// MemoryEntry is a schema-free knowledge document.
type MemoryEntry struct {
	ID             string
	Type           string
	Content        string
	Created        time.Time
	Modified       time.Time
	LastAccessed   time.Time
	AccessCount    int
	SessionID      string
	IsShared       bool
	FilesInvolved  []string
	ExtendedFields map[string]any
}

// MemoryRelationshipKind enumerates memory-graph edge kinds.
type MemoryRelationshipKind string

const (
	MemRelatedTo  MemoryRelationshipKind = "relatedTo"
	MemBlockedBy  MemoryRelationshipKind = "blockedBy"
	MemImplements MemoryRelationshipKind = "implements"
	MemSupersedes MemoryRelationshipKind = "supersedes"
	MemDependsOn  MemoryRelationshipKind = "dependsOn"
	MemParentOf   MemoryRelationshipKind = "parentOf"
	MemReferences MemoryRelationshipKind = "references"
	MemCauses     MemoryRelationshipKind = "causes"
	MemResolves   MemoryRelationshipKind = "resolves"
	MemDuplicates MemoryRelationshipKind = "duplicates"
)

// SymmetricRelationshipKinds are bidirectional by default: storing an edge
// (A, kind, B) implies the reverse edge exists for query purposes.
var SymmetricRelationshipKinds = map[MemoryRelationshipKind]bool{
	MemRelatedTo:  true,
	MemDuplicates: true,
}

// MemoryRelationship is a directed (or symmetric) edge between two memory
// entries.
type MemoryRelationship struct {
	FromID        string
	ToID          string
	Kind          MemoryRelationshipKind
	Bidirectional bool
}

// ReservedExtendedFieldNames are the core MemoryEntry field names that may
// not be reused as extended-field keys.
var ReservedExtendedFieldNames = map[string]bool{
	"id": true, "type": true, "content": true, "created": true,
	"modified": true, "last_accessed": true, "access_count": true,
	"session_id": true, "is_shared": true, "files_involved": true,
	"fields": true,
}
