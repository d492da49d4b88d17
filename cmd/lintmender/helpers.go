package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lintmender/lintmender/internal/classifier"
	"github.com/lintmender/lintmender/internal/linter"
	"github.com/lintmender/lintmender/internal/pattern"
	"github.com/lintmender/lintmender/internal/ruledb"
	"github.com/lintmender/lintmender/internal/service"
	"github.com/lintmender/lintmender/internal/storage"
	"github.com/spf13/viper"
)

// expandPath expands ~ and environment variables in a file path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}
	return os.ExpandEnv(path)
}

// databasePath resolves the configured database location.
func databasePath() string {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/lintmender/lintmender.db"
	}
	return expandPath(dbPath)
}

// initStorage opens the database and applies pending migrations.
func initStorage(ctx context.Context) (service.Storage, error) {
	store, err := storage.NewSQLiteStorage(databasePath())
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newKnowledgeBase builds the rule knowledge base from config and loads
// the tables for every known linter.
func newKnowledgeBase(ctx context.Context, store service.Storage) (*ruledb.KnowledgeBase, error) {
	cfg := ruledb.DefaultConfig()
	cfg.RefreshURL = viper.GetString("rules.refresh_url")
	if age := viper.GetDuration("rules.cache_max_age"); age > 0 {
		cfg.CacheMaxAge = age
	}

	kb := ruledb.New(store, cfg)
	for _, adapter := range linter.DefaultAdapters() {
		if _, err := kb.Load(ctx, adapter.Name()); err != nil {
			return nil, fmt.Errorf("failed to load rule table for %s: %w", adapter.Name(), err)
		}
	}
	return kb, nil
}

// newClassifier assembles the classifier with its knowledge base and
// pattern matcher. A broken pattern set degrades to KB-only operation
// rather than failing the run.
func newClassifier(ctx context.Context, store service.Storage) (*classifier.Classifier, *ruledb.KnowledgeBase, error) {
	kb, err := newKnowledgeBase(ctx, store)
	if err != nil {
		return nil, nil, err
	}

	matcher, err := pattern.NewMatcher(pattern.DefaultPatterns())
	if err != nil {
		matcher = nil
	}

	cls, err := classifier.New(ctx, kb, matcher, store, classifier.Config{
		Language: viper.GetString("language"),
	})
	if err != nil {
		return nil, nil, err
	}
	return cls, kb, nil
}

// runDeadline converts a --deadline duration into an absolute time, zero
// when unset.
func runDeadline() time.Time {
	d := viper.GetDuration("fix.deadline")
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
