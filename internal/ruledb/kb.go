// Package ruledb maintains per-linter rule metadata: a built-in table
// shipped with the binary, optionally merged with newer externally
// refreshed metadata. The knowledge base is advisory: a failed refresh
// or corrupt cache degrades accuracy, never correctness.
package ruledb

import (
	"context"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lintmender/lintmender/internal/model"
	"github.com/lintmender/lintmender/internal/service"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Provenance records where a rule entry came from.
type Provenance string

// Provenance constants.
const (
	ProvenanceBuiltIn   Provenance = "built-in"
	ProvenanceRefreshed Provenance = "refreshed"
)

// Entry is the best-known metadata for one rule.
type Entry struct {
	Category   model.Category
	Tier       model.FixabilityTier
	Provenance Provenance
}

// Unknown is returned for rules the knowledge base has never seen.
var Unknown = Entry{
	Category:   model.CategoryUnknown,
	Tier:       model.TierManualOnly,
	Provenance: ProvenanceBuiltIn,
}

// Table maps rule id to entry for one linter.
type Table map[string]Entry

// Config holds knowledge base settings.
type Config struct {
	// RefreshURL is the optional rule metadata source; the linter name is
	// appended as <url>/<linter>.yaml. Empty disables refresh.
	RefreshURL string
	// CacheMaxAge bounds how stale a cached refresh may be before it is
	// ignored in favor of built-ins.
	CacheMaxAge time.Duration
	// RefreshTimeout bounds one fetch.
	RefreshTimeout time.Duration
}

// DefaultConfig returns the default knowledge base configuration.
func DefaultConfig() Config {
	return Config{
		CacheMaxAge:    30 * 24 * time.Hour,
		RefreshTimeout: 10 * time.Second,
	}
}

// KnowledgeBase serves rule metadata lookups for loaded linters.
type KnowledgeBase struct {
	storage    service.Storage
	httpClient *http.Client
	tables     map[string]Table
	config     Config
	mu         sync.RWMutex
}

// New creates a knowledge base. Storage may be nil, in which case
// refreshed metadata is neither cached nor recovered.
func New(storage service.Storage, config Config) *KnowledgeBase {
	return &KnowledgeBase{
		storage:    storage,
		config:     config,
		tables:     make(map[string]Table),
		httpClient: &http.Client{Timeout: config.RefreshTimeout},
	}
}

// Load returns the merged rule table for a linter: built-in entries
// overlaid with any sufficiently fresh refreshed cache. The table is
// retained for subsequent Lookup calls.
func (kb *KnowledgeBase) Load(ctx context.Context, linterName string) (Table, error) {
	table, err := kb.loadBuiltin(linterName)
	if err != nil {
		return nil, err
	}

	if cached := kb.loadCached(ctx, linterName); cached != nil {
		for id, entry := range cached {
			table[id] = entry
		}
	}

	kb.mu.Lock()
	kb.tables[linterName] = table
	kb.mu.Unlock()

	return table, nil
}

// Lookup returns the entry for a rule id, scoped to the table of the
// linter that reported it. An unknown linter falls back to scanning all
// loaded tables in name order, so rule ids that collide across linters
// resolve the same way on every run.
func (kb *KnowledgeBase) Lookup(linterName, ruleID string) (Entry, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if table, ok := kb.tables[linterName]; ok {
		if entry, ok := table[ruleID]; ok {
			return entry, true
		}
		return Unknown, false
	}

	names := make([]string, 0, len(kb.tables))
	for name := range kb.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if entry, ok := kb.tables[name][ruleID]; ok {
			return entry, true
		}
	}
	return Unknown, false
}

// Refresh fetches newer metadata for a linter and merges it into the
// loaded table. Failure is non-fatal: the last good cached or built-in
// table remains in effect.
func (kb *KnowledgeBase) Refresh(ctx context.Context, linterName string) error {
	if kb.config.RefreshURL == "" {
		return fmt.Errorf("%s: no refresh source configured", linterName)
	}

	payload, err := kb.fetch(ctx, linterName)
	if err != nil {
		slog.Warn("Rule metadata refresh failed, keeping last good table",
			"linter", linterName,
			"error", err)
		return err
	}

	table, err := parseTable(payload, ProvenanceRefreshed)
	if err != nil {
		slog.Warn("Rule metadata refresh returned malformed payload",
			"linter", linterName,
			"error", err)
		return err
	}

	if kb.storage != nil {
		if saveErr := kb.storage.SaveRuleCache(ctx, linterName, payload); saveErr != nil {
			slog.Warn("Failed to cache refreshed rule metadata",
				"linter", linterName,
				"error", saveErr)
		}
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	merged := kb.tables[linterName]
	if merged == nil {
		merged = make(Table, len(table))
	}
	for id, entry := range table {
		merged[id] = entry
	}
	kb.tables[linterName] = merged

	slog.Info("Refreshed rule metadata",
		"linter", linterName,
		"rules", len(table))

	return nil
}

// Loaded returns the names of linters with loaded tables.
func (kb *KnowledgeBase) Loaded() []string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	names := make([]string, 0, len(kb.tables))
	for name := range kb.tables {
		names = append(names, name)
	}
	return names
}

func (kb *KnowledgeBase) loadBuiltin(linterName string) (Table, error) {
	name := path.Join("builtin", linterName+".yaml")
	data, err := builtinFS.ReadFile(name)
	if err != nil {
		// No built-in table is not an error: everything resolves to Unknown.
		return make(Table), nil
	}

	table, err := parseTable(data, ProvenanceBuiltIn)
	if err != nil {
		return nil, fmt.Errorf("built-in table for %s is malformed: %w", linterName, err)
	}
	return table, nil
}

func (kb *KnowledgeBase) loadCached(ctx context.Context, linterName string) Table {
	if kb.storage == nil {
		return nil
	}

	payload, err := kb.storage.GetRuleCache(ctx, linterName, kb.config.CacheMaxAge)
	if err != nil || payload == nil {
		return nil
	}

	table, err := parseTable(payload, ProvenanceRefreshed)
	if err != nil {
		slog.Warn("Ignoring corrupt rule metadata cache",
			"linter", linterName,
			"error", err)
		return nil
	}
	return table
}

func (kb *KnowledgeBase) fetch(ctx context.Context, linterName string) ([]byte, error) {
	url := strings.TrimRight(kb.config.RefreshURL, "/") + "/" + linterName + ".yaml"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh request: %w", err)
	}

	resp, err := kb.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rule metadata: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rule metadata source returned %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read rule metadata: %w", err)
	}
	return payload, nil
}

type yamlTable struct {
	Linter string              `yaml:"linter"`
	Rules  map[string]yamlRule `yaml:"rules"`
}

type yamlRule struct {
	Category string `yaml:"category"`
	Tier     string `yaml:"tier"`
}

func parseTable(data []byte, provenance Provenance) (Table, error) {
	var raw yamlTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid rule table: %w", err)
	}

	table := make(Table, len(raw.Rules))
	for id, rule := range raw.Rules {
		tier, ok := model.ParseTier(rule.Tier)
		if !ok {
			return nil, fmt.Errorf("rule %s has unknown tier %q", id, rule.Tier)
		}

		category := model.Category(rule.Category)
		switch category {
		case model.CategoryStyle, model.CategoryLogic, model.CategoryStructural:
		default:
			return nil, fmt.Errorf("rule %s has unknown category %q", id, rule.Category)
		}

		table[id] = Entry{
			Category:   category,
			Tier:       tier,
			Provenance: provenance,
		}
	}
	return table, nil
}
