package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// snapshotRecord is the persisted form of a dynamic entry: hashed key maps
// to the original query, the answer, and the creation timestamp.
type snapshotRecord struct {
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// LoadSnapshot restores dynamic entries from the snapshot file configured
// via WithSnapshotPath. Expired records are skipped. A missing file is not
// an error.
func (c *Cache) LoadSnapshot() error {
	if c.snapshotPath == "" {
		return nil
	}
	data, err := os.ReadFile(c.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache snapshot: %w", err)
	}
	var records map[string]snapshotRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse cache snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	loaded := 0
	for _, rec := range records {
		if c.ttl > 0 && !c.now().Before(rec.Timestamp.Add(c.ttl)) {
			continue
		}
		c.insertLocked(rec.Query, rec.Answer, rec.Timestamp, false)
		loaded++
	}
	c.logger.Info("cache snapshot loaded", zap.Int("entries", loaded))
	return nil
}

// Persist writes the dynamic entries to the snapshot file now. Failures are
// logged and swallowed; the in-memory cache stays authoritative.
func (c *Cache) Persist() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persistLocked()
}

func (c *Cache) persistLocked() {
	if c.snapshotPath == "" {
		return
	}
	records := make(map[string]snapshotRecord, len(c.entries))
	for key, entry := range c.entries {
		if entry.Protected {
			continue // FAQ entries come from the FAQ file, not the snapshot
		}
		records[key] = snapshotRecord{Query: entry.Query, Answer: entry.Answer, Timestamp: entry.CreatedAt}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		c.logger.Warn("cache snapshot marshal failed", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.snapshotPath), 0755); err != nil {
		c.logger.Warn("cache snapshot dir create failed", zap.Error(err))
		return
	}
	if err := os.WriteFile(c.snapshotPath, data, 0600); err != nil {
		c.logger.Warn("cache snapshot write failed", zap.String("path", c.snapshotPath), zap.Error(err))
		return
	}
	c.stats.Saves++
}

// LoadFAQFile reads a question-to-answer JSON map from path.
func LoadFAQFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read FAQ file: %w", err)
	}
	var faq map[string]string
	if err := json.Unmarshal(data, &faq); err != nil {
		return nil, fmt.Errorf("parse FAQ file: %w", err)
	}
	return faq, nil
}
