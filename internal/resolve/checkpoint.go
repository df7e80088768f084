// Package resolve drains a finite queue of discovered short links through a
// worker pool of HTTP probes and records each link's live outcome exactly
// once in a local checkpoint database.
package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Outcome is one resolved link. URL is the primary key: the checkpoint is
// both the outcome sink and the already-resolved filter for later runs.
type Outcome struct {
	URL         string `gorm:"primaryKey;size:512"`
	Status      string `gorm:"index;size:32"`
	RedirectURL string `gorm:"type:text"`
	ResolvedAt  time.Time
}

// Checkpoint is the SQLite-backed outcome store.
type Checkpoint struct {
	db *gorm.DB
}

// OpenCheckpoint opens (creating if needed) the checkpoint database.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Outcome{}); err != nil {
		return nil, fmt.Errorf("migrate checkpoint: %w", err)
	}
	return &Checkpoint{db: db}, nil
}

// ResolvedURLs returns the set of urls that already have an outcome.
func (c *Checkpoint) ResolvedURLs(ctx context.Context) (map[string]struct{}, error) {
	var urls []string
	if err := c.db.WithContext(ctx).Model(&Outcome{}).Pluck("url", &urls).Error; err != nil {
		return nil, fmt.Errorf("list resolved urls: %w", err)
	}
	resolved := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		resolved[u] = struct{}{}
	}
	return resolved, nil
}

// Record persists one outcome. A url that somehow already has a row keeps
// its first outcome; the conflict is absorbed, not surfaced.
func (c *Checkpoint) Record(ctx context.Context, outcome Outcome) error {
	if outcome.ResolvedAt.IsZero() {
		outcome.ResolvedAt = time.Now()
	}
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&outcome).Error
	if err != nil {
		return fmt.Errorf("record outcome for %s: %w", outcome.URL, err)
	}
	return nil
}

// Count returns the number of recorded outcomes.
func (c *Checkpoint) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.WithContext(ctx).Model(&Outcome{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return n, nil
}
