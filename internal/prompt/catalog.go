package prompt

import (
	"context"
	"fmt"
	"sync"

	"stylefit/internal/infra"
	"stylefit/internal/sqlinline"

	"github.com/rs/zerolog"
)

// Catalog caches the trigger words of trained model assets. Prompt building
// is hot-path and synchronous, so lookups never hit the database; Refresh
// reloads the cache (at startup and whenever a deployment retrains models).
type Catalog struct {
	sql    infra.SQLExecutor
	logger zerolog.Logger

	mu    sync.RWMutex
	words map[string]string
}

func NewCatalog(sql infra.SQLExecutor, logger zerolog.Logger) *Catalog {
	return &Catalog{sql: sql, logger: logger, words: map[string]string{}}
}

// Refresh replaces the cached trigger words with the current database state.
func (c *Catalog) Refresh(ctx context.Context) error {
	rows, err := c.sql.Query(ctx, sqlinline.QSelectModelTriggerWords)
	if err != nil {
		return fmt.Errorf("load model trigger words: %w", err)
	}
	defer rows.Close()

	words := map[string]string{}
	for rows.Next() {
		var id, word string
		if err := rows.Scan(&id, &word); err != nil {
			return fmt.Errorf("scan model trigger word: %w", err)
		}
		if word != "" {
			words[id] = word
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.words = words
	c.mu.Unlock()
	c.logger.Info().Int("models", len(words)).Msg("prompt: model catalog refreshed")
	return nil
}

// TriggerWord returns the cached trigger word, or empty when the model asset
// is unknown (the builder falls back to a generic subject).
func (c *Catalog) TriggerWord(modelAssetID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.words[modelAssetID]
}

var _ ModelTokenResolver = (*Catalog)(nil)
