package semantic

import (
	"github.com/standardbeagle/lci/internal/types"
)

// annotationDependency is a declared dependency edge ("http", "redis",
// ...) attached to a symbol's @lci: annotation.
type annotationDependency struct {
	Type string
	Name string
	Mode string
}

// AnnotationSearchIndex provides semantic search capabilities through @lci:
// annotations: label-based and category-based symbol discovery built from
// whatever labels/categories/tags/dependencies callers record against a
// symbol ID.
type AnnotationSearchIndex struct {
	labelIndex    map[string][]types.SymbolID
	categoryIndex map[string][]types.SymbolID
	tagIndex      map[string]map[string][]types.SymbolID

	symbolLabelMap    map[types.SymbolID][]string
	symbolCategoryMap map[types.SymbolID]string
	symbolDepsMap     map[types.SymbolID][]annotationDependency
}

// NewAnnotationSearchIndex creates an empty annotation search index.
func NewAnnotationSearchIndex() *AnnotationSearchIndex {
	return &AnnotationSearchIndex{
		labelIndex:        make(map[string][]types.SymbolID),
		categoryIndex:     make(map[string][]types.SymbolID),
		tagIndex:          make(map[string]map[string][]types.SymbolID),
		symbolLabelMap:    make(map[types.SymbolID][]string),
		symbolCategoryMap: make(map[types.SymbolID]string),
		symbolDepsMap:     make(map[types.SymbolID][]annotationDependency),
	}
}

// GetSymbolsByLabel finds all symbols with a specific label
func (asi *AnnotationSearchIndex) GetSymbolsByLabel(label string) []types.SymbolID {
	return asi.labelIndex[label]
}

// GetSymbolsByCategory finds all symbols in a specific category
func (asi *AnnotationSearchIndex) GetSymbolsByCategory(category string) []types.SymbolID {
	return asi.categoryIndex[category]
}

// GetSymbolsByTag finds symbols with a specific tag key=value pair
func (asi *AnnotationSearchIndex) GetSymbolsByTag(tagKey, tagValue string) []types.SymbolID {
	fullKey := tagKey + ":" + tagValue
	if m, ok := asi.tagIndex[fullKey]; ok {
		return m[tagKey]
	}
	return nil
}

// GetSymbolsDependingOn finds symbols that depend on a specific resource
func (asi *AnnotationSearchIndex) GetSymbolsDependingOn(depType, depName string) []types.SymbolID {
	var result []types.SymbolID

	for symbolID, deps := range asi.symbolDepsMap {
		for _, dep := range deps {
			if dep.Type == depType && dep.Name == depName {
				result = append(result, symbolID)
				break
			}
		}
	}

	return result
}

// ExpandQueryWithAnnotations returns the original pattern as a one-element
// slice. The label and category lookups it runs add nothing to the
// result: the index holds symbol IDs, not symbol names.
func (asi *AnnotationSearchIndex) ExpandQueryWithAnnotations(pattern string, labels []string, categories []string) []string {
	expansions := []string{pattern}

	for _, label := range labels {
		_ = asi.GetSymbolsByLabel(label)
	}
	for _, category := range categories {
		_ = asi.GetSymbolsByCategory(category)
	}

	seen := make(map[string]bool)
	var unique []string
	for _, exp := range expansions {
		if !seen[exp] {
			unique = append(unique, exp)
			seen[exp] = true
		}
	}

	return unique
}

// GetLabelsForSymbol gets all labels assigned to a symbol
func (asi *AnnotationSearchIndex) GetLabelsForSymbol(symbolID types.SymbolID) []string {
	return asi.symbolLabelMap[symbolID]
}

// GetCategoryForSymbol gets the category assigned to a symbol
func (asi *AnnotationSearchIndex) GetCategoryForSymbol(symbolID types.SymbolID) string {
	return asi.symbolCategoryMap[symbolID]
}

// GetDependenciesForSymbol gets the dependencies declared by a symbol
func (asi *AnnotationSearchIndex) GetDependenciesForSymbol(symbolID types.SymbolID) []annotationDependency {
	return asi.symbolDepsMap[symbolID]
}

// GetLabelStats returns statistics about label usage
func (asi *AnnotationSearchIndex) GetLabelStats() map[string]int {
	stats := make(map[string]int)
	for label, symbolIDs := range asi.labelIndex {
		stats[label] = len(symbolIDs)
	}
	return stats
}

// GetCategoryStats returns statistics about category usage
func (asi *AnnotationSearchIndex) GetCategoryStats() map[string]int {
	stats := make(map[string]int)
	for category, symbolIDs := range asi.categoryIndex {
		stats[category] = len(symbolIDs)
	}
	return stats
}

// GetTotalAnnotatedSymbols returns the total number of annotated symbols
func (asi *AnnotationSearchIndex) GetTotalAnnotatedSymbols() int {
	return len(asi.symbolLabelMap)
}

// GetAnnotationCoverage returns the percentage of symbols that have annotations
func (asi *AnnotationSearchIndex) GetAnnotationCoverage(totalSymbols int) float64 {
	if totalSymbols == 0 {
		return 0.0
	}
	return float64(asi.GetTotalAnnotatedSymbols()) / float64(totalSymbols) * 100.0
}

// SearchQueryBuilder helps construct complex queries using annotations
type SearchQueryBuilder struct {
	index      *AnnotationSearchIndex
	labels     []string
	categories []string
	tags       map[string]string
	deps       map[string]string
}

// NewSearchQueryBuilder creates a new query builder
func NewSearchQueryBuilder(index *AnnotationSearchIndex) *SearchQueryBuilder {
	return &SearchQueryBuilder{
		index:      index,
		labels:     make([]string, 0),
		categories: make([]string, 0),
		tags:       make(map[string]string),
		deps:       make(map[string]string),
	}
}

// WithLabel adds a label filter
func (sqb *SearchQueryBuilder) WithLabel(label string) *SearchQueryBuilder {
	sqb.labels = append(sqb.labels, label)
	return sqb
}

// WithCategory adds a category filter
func (sqb *SearchQueryBuilder) WithCategory(category string) *SearchQueryBuilder {
	sqb.categories = append(sqb.categories, category)
	return sqb
}

// WithTag adds a tag filter (key=value)
func (sqb *SearchQueryBuilder) WithTag(key, value string) *SearchQueryBuilder {
	sqb.tags[key] = value
	return sqb
}

// WithDependency adds a dependency filter (type:name)
func (sqb *SearchQueryBuilder) WithDependency(depType, depName string) *SearchQueryBuilder {
	depKey := depType + ":" + depName
	sqb.deps[depKey] = depKey
	return sqb
}

// Execute runs the query and returns matching symbol IDs
func (sqb *SearchQueryBuilder) Execute() []types.SymbolID {
	resultSets := make([]map[types.SymbolID]bool, 0)

	for _, label := range sqb.labels {
		symbolSet := make(map[types.SymbolID]bool)
		for _, sid := range sqb.index.GetSymbolsByLabel(label) {
			symbolSet[sid] = true
		}
		resultSets = append(resultSets, symbolSet)
	}

	for _, category := range sqb.categories {
		symbolSet := make(map[types.SymbolID]bool)
		for _, sid := range sqb.index.GetSymbolsByCategory(category) {
			symbolSet[sid] = true
		}
		resultSets = append(resultSets, symbolSet)
	}

	for tagKey, tagValue := range sqb.tags {
		symbolSet := make(map[types.SymbolID]bool)
		for _, sid := range sqb.index.GetSymbolsByTag(tagKey, tagValue) {
			symbolSet[sid] = true
		}
		resultSets = append(resultSets, symbolSet)
	}

	for depKey := range sqb.deps {
		parts := make([]string, 0)
		for i := 0; i < len(depKey); i++ {
			if depKey[i] == ':' {
				parts = append(parts, depKey[:i])
				parts = append(parts, depKey[i+1:])
				break
			}
		}
		if len(parts) == 2 {
			symbolSet := make(map[types.SymbolID]bool)
			for _, sid := range sqb.index.GetSymbolsDependingOn(parts[0], parts[1]) {
				symbolSet[sid] = true
			}
			resultSets = append(resultSets, symbolSet)
		}
	}

	if len(resultSets) == 0 {
		return nil
	}

	result := make([]types.SymbolID, 0)
	for symbolID := range resultSets[0] {
		inAll := true
		for i := 1; i < len(resultSets); i++ {
			if !resultSets[i][symbolID] {
				inAll = false
				break
			}
		}
		if inAll {
			result = append(result, symbolID)
		}
	}

	return result
}
