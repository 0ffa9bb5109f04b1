package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/standardbeagle/lci/internal/types"
)

// SearchRankingScoreConstants defines scoring constants for search ranking configuration
// These values are used as defaults in both code and configuration parsing
const (
	DefaultCodeFileBoost    = 50.0
	DefaultDocFilePenalty   = -20.0
	DefaultConfigFileBoost  = 10.0
	DefaultNonSymbolPenalty = -30.0
	RequireSymbolPenalty    = -1000.0
)

// Config is the engine's full runtime configuration, assembled from
// ~/.lci.kdl (base), <project>/.lci.kdl (override), and
// built-in defaults, in that order (see Load).
type Config struct {
	Version              int
	Project              Project
	Index                Index
	Performance          Performance
	Lucene               Lucene
	BatchIndexing        BatchIndexing
	QueryCache           QueryCacheConfig
	MemoryLimits         MemoryLimits
	Semantic             Semantic
	SemanticScoring      SemanticScoring
	Search               Search
	Hybrid               Hybrid
	Boost                Boost
	FeatureFlags         FeatureFlags
	Include              []string
	Exclude              []string
	PropagationConfigDir string
}

type Project struct {
	Root string
	Name string
}

type Index struct {
	MaxFileSize      int64
	MaxTotalSizeMB   int64
	MaxFileCount     int
	FollowSymlinks   bool
	SmartSizeControl bool
	PriorityMode     string // "recent", "small", "important"
	RespectGitignore bool
	WatchMode        bool
	WatchDebounceMs  int
	IndexBasePath    string // base directory for on-disk index roots (C1/C2)
}

type Performance struct {
	MaxMemoryMB         int
	MaxGoroutines       int
	DebounceMs          int
	ParallelFileWorkers int // 0 = auto-detect (NumCPU)
	IndexingTimeoutSec  int
	StartupDelayMs      int
}

// Lucene configures the lexical index manager (C4). The name matches the
// spec's configuration-key namespace even though the engine behind it is
// the generalized in-process inverted index, not Apache Lucene itself.
type Lucene struct {
	LockTimeoutMinutes int
	IndexBasePath      string
}

// BatchIndexing configures the batch indexer (C5).
type BatchIndexing struct {
	BatchSize         int
	MaxBatchAgeSeconds int
}

// QueryCacheConfig configures the query cache (C6).
type QueryCacheConfig struct {
	Enabled           bool
	MaxSizeMB         int
	SlidingExpireMins int
}

// MemoryLimits configures the memory pressure monitor (C7) and backpressure
// thresholds consulted by C5/C8.
type MemoryLimits struct {
	MaxMemoryUsagePercent int
	MaxIndexingConcurrency int
}

type Semantic struct {
	BatchSize     int
	ChannelSize   int
	MinStemLength int
	CacheSize     int
}

type SemanticScoring struct {
	ExactWeight        float64
	SubstringWeight    float64
	AnnotationWeight   float64
	FuzzyWeight        float64
	StemmingWeight     float64
	NameSplitWeight    float64
	AbbreviationWeight float64

	FuzzyThreshold float64
	StemMinLength  int

	MaxResults int
	MinScore   float64
}

// SearchRanking controls file type and symbol preference in search results.
type SearchRanking struct {
	Enabled bool

	CodeFileBoost   float64
	DocFilePenalty  float64
	ConfigFileBoost float64

	RequireSymbol    bool
	NonSymbolPenalty float64

	ExtensionWeights map[string]float64
}

// Validate checks that SearchRanking values are within reasonable ranges.
func (r SearchRanking) Validate() error {
	if r.CodeFileBoost > 1000 || r.CodeFileBoost < -1000 {
		return fmt.Errorf("CodeFileBoost must be between -1000 and 1000, got %v", r.CodeFileBoost)
	}
	if r.DocFilePenalty > 0 || r.DocFilePenalty < -1000 {
		return fmt.Errorf("DocFilePenalty must be between -1000 and 0, got %v", r.DocFilePenalty)
	}
	if r.ConfigFileBoost > 1000 || r.ConfigFileBoost < -1000 {
		return fmt.Errorf("ConfigFileBoost must be between -1000 and 1000, got %v", r.ConfigFileBoost)
	}
	if r.NonSymbolPenalty > 0 || r.NonSymbolPenalty < -1000 {
		return fmt.Errorf("NonSymbolPenalty must be between -1000 and 0, got %v", r.NonSymbolPenalty)
	}
	for ext, weight := range r.ExtensionWeights {
		if weight > 1000 || weight < -1000 {
			return fmt.Errorf("ExtensionWeights[%s] must be between -1000 and 1000, got %v", ext, weight)
		}
	}
	return nil
}

type Search struct {
	DefaultContextLines    int
	MaxResults             int
	EnableFuzzy            bool
	MaxContextLines        int
	MergeFileResults       bool
	EnsureCompleteStmt     bool
	IncludeLeadingComments bool
	Ranking                SearchRanking
}

// Hybrid configures the fusion strategy the hybrid search (C11) uses to
// merge lexical and semantic result sets.
type Hybrid struct {
	Strategy        string // "linear", "rrf", "multiplicative"
	LexicalWeight   float64
	SemanticWeight  float64
	BothFoundBoost  float64
	RRFRankConstant int
	ResultOverfetch int // multiplier applied to max_results before fusion
}

// Boost configures the Context/Boost Layer (C13): the per-term
// multipliers applied for current-file, recent-file, recent-query, and
// technology-vocabulary matches, plus the bounded recency queue sizes.
type Boost struct {
	CurrentFileBoost float64
	RecentFileBoost  float64
	RecentQueryBoost float64
	TechnologyBoost  float64
	MaxRecentFiles   int
	MaxRecentQueries int
}

// FeatureFlags controls experimental features and rollback capabilities.
type FeatureFlags struct {
	EnableMemoryLimits         bool
	EnableGracefulDegradation  bool
	EnableRelationshipAnalysis bool

	EnablePerformanceMonitoring bool
	EnableDetailedErrorLogging  bool
	EnableFeatureFlagLogging    bool
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	homeDir, err := os.UserHomeDir()
	var baseConfig *Config
	if err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	if kdlCfg, err := LoadKDL(searchDir); err == nil && kdlCfg != nil {
		projectConfig = kdlCfg
	} else if err != nil {
		return nil, err
	}

	if baseConfig != nil && projectConfig != nil {
		return mergeConfigs(baseConfig, projectConfig), nil
	} else if projectConfig != nil {
		return projectConfig, nil
	} else if baseConfig != nil {
		baseConfig.Project.Root = searchDir
		return baseConfig, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	cfg := Default(cwd)
	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

// Default returns the built-in configuration rooted at root, matching the
// keys enumerated in spec §6.
func Default(root string) *Config {
	homeBase, err := os.UserHomeDir()
	if err != nil {
		homeBase = os.TempDir()
	}
	indexBase := homeBase + "/.codesearch"

	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Index: Index{
			MaxFileSize:      types.DefaultMaxFileSize,
			MaxTotalSizeMB:   types.DefaultMaxTotalSizeMB,
			MaxFileCount:     types.DefaultMaxFileCount,
			FollowSymlinks:   false,
			SmartSizeControl: true,
			PriorityMode:     "recent",
			RespectGitignore: true,
			WatchMode:        true,
			WatchDebounceMs:  300,
			IndexBasePath:    indexBase,
		},
		Performance: Performance{
			MaxMemoryMB:         500,
			MaxGoroutines:       runtime.NumCPU(),
			DebounceMs:          100,
			ParallelFileWorkers: 0,
			IndexingTimeoutSec:  120,
			StartupDelayMs:      1500,
		},
		Lucene: Lucene{
			LockTimeoutMinutes: 15,
			IndexBasePath:      indexBase,
		},
		BatchIndexing: BatchIndexing{
			BatchSize:          500,
			MaxBatchAgeSeconds: 30,
		},
		QueryCache: QueryCacheConfig{
			Enabled:           true,
			MaxSizeMB:         100,
			SlidingExpireMins: 15,
		},
		MemoryLimits: MemoryLimits{
			MaxMemoryUsagePercent: 75,
			MaxIndexingConcurrency: runtime.NumCPU(),
		},
		Semantic: Semantic{
			BatchSize:     100,
			ChannelSize:   1000,
			MinStemLength: 3,
			CacheSize:     1000,
		},
		SemanticScoring: SemanticScoring{
			ExactWeight:        1.0,
			SubstringWeight:    0.9,
			AnnotationWeight:   0.85,
			FuzzyWeight:        0.70,
			StemmingWeight:     0.55,
			NameSplitWeight:    0.40,
			AbbreviationWeight: 0.25,
			FuzzyThreshold:     0.7,
			StemMinLength:      3,
			MaxResults:         10,
			MinScore:           0.2,
		},
		Search: Search{
			DefaultContextLines:    0,
			MaxResults:             100,
			EnableFuzzy:            true,
			MaxContextLines:        100,
			MergeFileResults:       true,
			EnsureCompleteStmt:     false,
			IncludeLeadingComments: true,
			Ranking: SearchRanking{
				Enabled:          true,
				CodeFileBoost:    DefaultCodeFileBoost,
				DocFilePenalty:   DefaultDocFilePenalty,
				ConfigFileBoost:  DefaultConfigFileBoost,
				RequireSymbol:    false,
				NonSymbolPenalty: DefaultNonSymbolPenalty,
			},
		},
		Hybrid: Hybrid{
			Strategy:        "linear",
			LexicalWeight:   0.5,
			SemanticWeight:  0.5,
			BothFoundBoost:  1.2,
			RRFRankConstant: 60,
			ResultOverfetch: 2,
		},
		Boost: Boost{
			CurrentFileBoost: 1.5,
			RecentFileBoost:  1.3,
			RecentQueryBoost: 1.2,
			TechnologyBoost:  1.2,
			MaxRecentFiles:   20,
			MaxRecentQueries: 20,
		},
		FeatureFlags: FeatureFlags{
			EnableMemoryLimits:          true,
			EnableGracefulDegradation:   true,
			EnableRelationshipAnalysis:  false,
			EnablePerformanceMonitoring: true,
			EnableDetailedErrorLogging:  true,
			EnableFeatureFlagLogging:    true,
		},
		Include: []string{},
		Exclude: defaultExclusions(),
	}
}

func defaultExclusions() []string {
	return []string{
		"**/.git/**",
		"**/.*/**",
		"**/node_modules/**",
		"**/vendor/**",
		"**/bower_components/**",
		"**/jspm_packages/**",
		"**/dist/**",
		"**/build/**",
		"**/out/**",
		"**/target/**",
		"**/bin/**",
		"**/obj/**",
		"**/*.min.js",
		"**/*.min.css",
		"**/__pycache__/**",
		"**/*.pyc",
		"**/Thumbs.db",
		"**/desktop.ini",
		"**/logs/**",
		"**/*.log",
	}
}

// mergeConfigs merges a base config with a project config. Project config
// takes precedence, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		excludeMap := make(map[string]bool)
		for _, pattern := range base.Exclude {
			excludeMap[pattern] = true
		}
		for _, pattern := range project.Exclude {
			excludeMap[pattern] = true
		}
		merged.Exclude = make([]string, 0, len(excludeMap))
		for pattern := range excludeMap {
			merged.Exclude = append(merged.Exclude, pattern)
		}
	}

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// EnrichExclusionsWithBuildArtifacts detects build output directories from
// language configs and adds them to the exclusion list.
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}
	detector := NewBuildArtifactDetector(c.Project.Root)
	detected := detector.DetectOutputDirectories()
	if len(detected) > 0 {
		c.Exclude = append(c.Exclude, detected...)
		c.Exclude = DeduplicatePatterns(c.Exclude)
	}
}
