package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// Store is the two-tier cache. Reads check the bounded memory tier first and
// fall back to the disk tier, promoting disk hits back into memory. The disk
// tier is an optimization: a failed disk write still leaves a usable memory
// entry, and any per-entry filesystem or decryption failure heals itself by
// deleting the entry and reporting a miss.
type Store struct {
	log        zerolog.Logger
	dir        string
	defaultTTL time.Duration
	memSize    int
	memory     *expirable.LRU[string, json.RawMessage]
	cipher     *Cipher
	now        func() time.Time
	diskReads  atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithCipher enables encryption of disk payloads. A nil cipher leaves the
// disk tier in plain JSON.
func WithCipher(c *Cipher) Option {
	return func(s *Store) { s.cipher = c }
}

// WithMemorySize bounds the memory tier.
func WithMemorySize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.memSize = n
		}
	}
}

// WithDefaultTTL sets the TTL for data types without a dedicated class. It
// also governs expiry of the memory tier.
func WithDefaultTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.defaultTTL = d
		}
	}
}

// NewStore opens a cache rooted at dir, creating the directory with
// owner-only permissions if needed. An empty dir selects a subdirectory of
// the process temp directory.
func NewStore(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		log:        zerolog.Nop(),
		dir:        dir,
		defaultTTL: DefaultTTL,
		memSize:    1000,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dir == "" {
		s.dir = filepath.Join(os.TempDir(), "foxess_mcp_cache")
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("cache: create directory: %w", err)
	}
	// MkdirAll leaves permissions of a pre-existing directory untouched.
	if err := os.Chmod(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("cache: secure directory: %w", err)
	}
	s.memory = expirable.NewLRU[string, json.RawMessage](s.memSize, nil, s.defaultTTL)

	s.log.Info().
		Str("dir", s.dir).
		Int("memory_size", s.memSize).
		Bool("encrypted", s.cipher != nil).
		Msg("cache store opened")
	return s, nil
}

// Get returns the cached value for key, or ok=false on a miss. dataType
// selects the TTL class used to judge disk entries that carry no usable
// metadata.
func (s *Store) Get(key, dataType string) (json.RawMessage, bool) {
	if v, ok := s.memory.Get(key); ok {
		return v, true
	}
	v, ok := s.readDisk(key, dataType)
	if !ok {
		return nil, false
	}
	// Promote so repeated lookups skip disk I/O.
	s.memory.Add(key, v)
	return v, true
}

// Set caches value under key with the TTL class of dataType. The memory
// write alone counts as success; a disk failure is logged and swallowed.
func (s *Store) Set(key string, value any, dataType string) bool {
	return s.SetWithTTL(key, value, dataType, 0)
}

// SetWithTTL is Set with an explicit TTL overriding the data type's class.
func (s *Store) SetWithTTL(key string, value any, dataType string, ttl time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("cache value not serializable")
		return false
	}
	s.memory.Add(key, raw)
	if ttl <= 0 {
		ttl = TTLFor(dataType, s.defaultTTL)
	}
	s.writeDisk(key, raw, dataType, ttl)
	return true
}

// Delete removes key from both tiers. It reports whether anything was
// removed.
func (s *Store) Delete(key string) bool {
	inMemory := s.memory.Remove(key)
	onDisk := s.removeEntry(key)
	return inMemory || onDisk
}

// Clear drops cache entries. With an empty filter everything goes; otherwise
// only entries whose logical key contains the filter (data types are part of
// the key) are dropped. Returns the number of cleared entries.
func (s *Store) Clear(dataTypeFilter string) int {
	if dataTypeFilter == "" {
		count := s.memory.Len()
		s.memory.Purge()
		count += s.clearDisk()
		s.log.Info().Int("count", count).Msg("cache cleared")
		return count
	}

	cleared := make(map[string]struct{})
	count := 0
	for _, key := range s.memory.Keys() {
		if !strings.Contains(key, dataTypeFilter) {
			continue
		}
		s.memory.Remove(key)
		s.removeEntry(key)
		cleared[hashKey(key)] = struct{}{}
		count++
	}

	// Disk-only entries are found through their sidecars, which record the
	// logical key.
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to scan cache directory")
		return count
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".cache.meta") {
			continue
		}
		hash := strings.TrimSuffix(name, ".cache.meta")
		if _, done := cleared[hash]; done {
			continue
		}
		meta, ok := s.readMeta(filepath.Join(s.dir, name))
		if !ok || !strings.Contains(meta.CacheKey, dataTypeFilter) {
			continue
		}
		s.removeFiles(filepath.Join(s.dir, hash+".cache"))
		count++
	}

	s.log.Info().Int("count", count).Str("filter", dataTypeFilter).Msg("cache cleared")
	return count
}

// SweepExpired scans the disk tier once and deletes every expired entry.
// Meant for periodic reclamation outside the request path; readers already
// ignore expired entries.
func (s *Store) SweepExpired() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to scan cache directory")
		return 0
	}

	swept := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".cache") {
			continue
		}
		path := filepath.Join(s.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		ttl := s.defaultTTL
		age := s.now().Sub(info.ModTime())
		if meta, ok := s.readMeta(path + ".meta"); ok {
			if meta.TTL > 0 {
				ttl = time.Duration(meta.TTL) * time.Second
			}
			age = s.now().Sub(timeFromEpoch(meta.Created))
		}
		if age > ttl {
			s.removeFiles(path)
			swept++
		}
	}

	if swept > 0 {
		s.log.Info().Int("count", swept).Msg("swept expired cache entries")
	}
	return swept
}

// Stats reports the current state of both tiers.
func (s *Store) Stats() Stats {
	st := Stats{
		MemoryEntries: s.memory.Len(),
		MemoryMax:     s.memSize,
		Directory:     s.dir,
		Encrypted:     s.cipher != nil,
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return st
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".cache") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		st.DiskEntries++
		st.DiskBytes += info.Size()
	}
	return st
}

// DiskReads returns how many times the disk tier has been consulted.
func (s *Store) DiskReads() int64 {
	return s.diskReads.Load()
}

func (s *Store) readDisk(key, dataType string) (json.RawMessage, bool) {
	path := s.filePath(key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	s.diskReads.Add(1)

	if info.Size() > MaxFileSize {
		s.log.Warn().Str("key", key).Int64("size", info.Size()).Msg("cache file too large, deleting")
		s.removeEntry(key)
		return nil, false
	}

	ttl := TTLFor(dataType, s.defaultTTL)
	if meta, ok := s.readMeta(path + ".meta"); ok {
		if meta.TTL > 0 {
			ttl = time.Duration(meta.TTL) * time.Second
		}
		if s.now().Sub(timeFromEpoch(meta.Created)) > ttl {
			s.removeEntry(key)
			return nil, false
		}
		if meta.Encrypted != (s.cipher != nil) {
			s.log.Warn().Str("key", key).Msg("cache entry encryption mode drifted, deleting")
			s.removeEntry(key)
			return nil, false
		}
	} else if s.now().Sub(info.ModTime()) > ttl {
		// Missing or corrupt sidecar: judge age by file mtime.
		s.removeEntry(key)
		return nil, false
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to read cache file")
		s.removeEntry(key)
		return nil, false
	}
	if s.cipher != nil {
		plain, err := s.cipher.Decrypt(raw)
		if err != nil {
			s.log.Warn().Str("key", key).Msg("failed to decrypt cache file (key rotated?)")
			s.removeEntry(key)
			return nil, false
		}
		raw = plain
	}
	if !json.Valid(raw) {
		s.log.Warn().Str("key", key).Msg("corrupt cache payload, deleting")
		s.removeEntry(key)
		return nil, false
	}
	return raw, true
}

func (s *Store) writeDisk(key string, raw json.RawMessage, dataType string, ttl time.Duration) {
	if len(raw) > MaxFileSize {
		s.log.Warn().Str("key", key).Int("size", len(raw)).Msg("payload too large for disk cache")
		return
	}

	payload := []byte(raw)
	if s.cipher != nil {
		var err error
		payload, err = s.cipher.Encrypt(raw)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to encrypt cache payload")
			return
		}
	}

	path := s.filePath(key)
	if err := writeFileAtomic(path, payload); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to write cache file")
		s.removeEntry(key)
		return
	}

	meta := metadata{
		Created:   epochSeconds(s.now()),
		TTL:       int(ttl / time.Second),
		DataType:  dataType,
		CacheKey:  key,
		Encrypted: s.cipher != nil,
	}
	metaRaw, err := json.Marshal(meta)
	if err == nil {
		err = writeFileAtomic(path+".meta", metaRaw)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to write cache metadata")
		s.removeEntry(key)
	}
}

func (s *Store) readMeta(path string) (metadata, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return metadata{}, false
	}
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return metadata{}, false
	}
	return meta, true
}

// removeEntry deletes the payload and sidecar for a logical key.
func (s *Store) removeEntry(key string) bool {
	return s.removeFiles(s.filePath(key))
}

// removeFiles deletes a payload file and its sidecar, tolerating failures on
// either so one bad file never aborts a batch operation.
func (s *Store) removeFiles(path string) bool {
	removed := false
	for _, p := range []string{path, path + ".meta"} {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed = true
		case !os.IsNotExist(err):
			s.log.Warn().Err(err).Str("path", p).Msg("failed to delete cache file")
		}
	}
	return removed
}

func (s *Store) clearDisk() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to scan cache directory")
		return 0
	}
	count := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".cache") && !strings.HasSuffix(name, ".meta") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			continue
		}
		if strings.HasSuffix(name, ".cache") {
			count++
		}
	}
	return count
}

// filePath resolves a logical key to its payload file. Filenames are the
// SHA-256 of the key so they never leak key contents or contain unsafe
// characters.
func (s *Store) filePath(key string) string {
	return filepath.Join(s.dir, hashKey(key)+".cache")
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum)
}

// writeFileAtomic writes to a temp file and renames it into place so readers
// in other processes never observe a partial write.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func timeFromEpoch(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second)))
}
