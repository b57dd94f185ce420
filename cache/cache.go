// Package cache persists references to audio files the bot has already
// uploaded to Telegram, keyed by canonical track URL. A cache hit lets the
// bot re-send the stored document instead of downloading the track again.
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "uploads"

// CachedAudio is everything needed to re-send a previously uploaded audio
// document without touching the extractor.
type CachedAudio struct {
	DocumentID    int64     `json:"document_id"`
	AccessHash    int64     `json:"access_hash"`
	FileReference []byte    `json:"file_reference"`
	FileSize      int64     `json:"file_size"`
	Title         string    `json:"title,omitempty"`
	Performer     string    `json:"performer,omitempty"`
	DurationSec   int       `json:"duration_sec,omitempty"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// UploadCache is a bbolt-backed store of uploaded audio documents.
type UploadCache struct {
	db *bbolt.DB
}

// Open opens (or creates) the cache database at path.
func Open(path string) (*UploadCache, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &UploadCache{db: db}, nil
}

// Close closes the underlying database.
func (c *UploadCache) Close() error {
	return c.db.Close()
}

// Get returns the cached upload for the canonical track URL, if any.
func (c *UploadCache) Get(trackURL string) (*CachedAudio, bool, error) {
	var entry *CachedAudio

	err := c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return nil
		}

		raw := bucket.Get([]byte(trackURL))
		if raw == nil {
			return nil
		}

		var decoded CachedAudio
		if err := json.Unmarshal(raw, &decoded); err != nil {
			// A corrupt entry behaves like a miss; the next upload rewrites it.
			return nil
		}
		entry = &decoded
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache read failed: %w", err)
	}

	return entry, entry != nil, nil
}

// Put stores an uploaded document reference under the canonical track URL.
func (c *UploadCache) Put(trackURL string, entry CachedAudio) error {
	if entry.UploadedAt.IsZero() {
		entry.UploadedAt = time.Now()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("cache bucket missing")
		}
		return bucket.Put([]byte(trackURL), raw)
	})
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}

	return nil
}

// Delete removes a cached entry. Used when Telegram rejects a stored file
// reference, which invalidates the entry.
func (c *UploadCache) Delete(trackURL string) error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(trackURL))
	})
	if err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *UploadCache) Len() (int, error) {
	var count int
	err := c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return nil
		}
		count = bucket.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cache stats failed: %w", err)
	}
	return count, nil
}
