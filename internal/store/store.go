package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/lector/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketDocument  = []byte("document")
	bucketSettings  = []byte("settings")
	bucketSynthesis = []byte("synthesis")

	allBuckets = [][]byte{bucketDocument, bucketSettings, bucketSynthesis}
)

const (
	keyCurrent      = "current"
	synthesisPrefix = "synth:"
)

// ReaderStore implements domain.Store using BoltDB.
type ReaderStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte

	now func() time.Time
}

// NewReaderStore opens the store under baseCacheDir. Audio URLs are only
// valid on the backend that produced them, so each backend URL gets its
// own database directory. An empty baseCacheDir keeps everything in memory.
func NewReaderStore(baseCacheDir, backendURL string) (*ReaderStore, error) {
	if baseCacheDir == "" {
		// Memory-only mode (no persistence)
		return &ReaderStore{cache: make(map[string][]byte), now: time.Now}, nil
	}

	dir := baseCacheDir
	if backendURL != "" {
		dir = filepath.Join(baseCacheDir, hashBackendURL(backendURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "lector.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &ReaderStore{db: db, cache: make(map[string][]byte), now: time.Now}, nil
}

func hashBackendURL(backendURL string) string {
	normalized := strings.TrimRight(strings.ToLower(backendURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

// synthesisKey identifies a synthesis by everything that changes the audio
func synthesisKey(req domain.SynthesisRequest) string {
	h := sha256.New()
	for _, part := range []string{req.Text, req.Voice, req.Rate, req.Pitch} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return synthesisPrefix + hex.EncodeToString(h.Sum(nil))
}

func (s *ReaderStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *ReaderStore) get(bucket []byte, key string, dest any) bool {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *ReaderStore) set(bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *ReaderStore) delete(bucket []byte, key string) {
	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	delete(s.cache, cacheKey)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucket); b != nil {
			b.Delete([]byte(key))
		}
		return nil
	})
}

// === Document ===

func (s *ReaderStore) GetDocument() (domain.Document, bool) {
	var doc domain.Document
	ok := s.get(bucketDocument, keyCurrent, &doc)
	return doc, ok
}

func (s *ReaderStore) SaveDocument(doc domain.Document) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = s.now()
	}
	return s.set(bucketDocument, keyCurrent, doc)
}

// === Settings ===

func (s *ReaderStore) GetSettings() (domain.Settings, bool) {
	var settings domain.Settings
	ok := s.get(bucketSettings, keyCurrent, &settings)
	return settings, ok
}

func (s *ReaderStore) SaveSettings(settings domain.Settings) error {
	return s.set(bucketSettings, keyCurrent, settings)
}

// === Synthesis cache ===

// GetSynthesis returns a cached synthesis no older than maxAge.
// maxAge <= 0 disables the age check. Expired entries are evicted.
func (s *ReaderStore) GetSynthesis(req domain.SynthesisRequest, maxAge time.Duration) (*domain.Synthesis, bool) {
	key := synthesisKey(req)
	var syn domain.Synthesis
	if !s.get(bucketSynthesis, key, &syn) {
		return nil, false
	}
	if maxAge > 0 && s.now().Sub(syn.CreatedAt) > maxAge {
		s.delete(bucketSynthesis, key)
		return nil, false
	}
	return &syn, true
}

func (s *ReaderStore) SaveSynthesis(req domain.SynthesisRequest, syn *domain.Synthesis) error {
	if syn == nil {
		return nil
	}
	entry := *syn
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	return s.set(bucketSynthesis, synthesisKey(req), entry)
}

// PruneSynthesis removes cached syntheses older than maxAge and returns
// how many were dropped.
func (s *ReaderStore) PruneSynthesis(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := s.now().Add(-maxAge)
	expired := func(data []byte) bool {
		var syn domain.Synthesis
		if err := json.Unmarshal(data, &syn); err != nil {
			return true
		}
		return syn.CreatedAt.Before(cutoff)
	}

	removed := 0
	cachePrefix := string(bucketSynthesis) + ":"
	s.mu.Lock()
	for k, v := range s.cache {
		if strings.HasPrefix(k, cachePrefix) && expired(v) {
			delete(s.cache, k)
			if s.db == nil {
				removed++
			}
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return removed
	}

	s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSynthesis)
		var stale [][]byte
		c := b.Cursor()
		for k, v := c.Seek([]byte(synthesisPrefix)); k != nil && strings.HasPrefix(string(k), synthesisPrefix); k, v = c.Next() {
			if expired(v) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed
}

// InvalidateAll wipes every bucket and the memory cache
func (s *ReaderStore) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if tx.Bucket(bucket) != nil {
				if err := tx.DeleteBucket(bucket); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}
