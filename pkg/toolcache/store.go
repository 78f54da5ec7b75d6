package toolcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrConfiguration indicates an invalid or incomplete cache configuration.
var ErrConfiguration = errors.New("cache configuration error")

// Record is the persisted shape of one cache entry. One record lives in
// one JSON file under <root>/<namespace>/<key>.json; this layout is a
// public format consumed by cache-management tooling, so changes to it
// are breaking.
type Record struct {
	Timestamp  time.Time       `json:"ts"`
	Success    bool            `json:"success"`
	Result     json.RawMessage `json:"result"`
	ResultType string          `json:"result_type"`
}

// Entry describes one stored record for the management surface.
type Entry struct {
	Namespace  string    `json:"namespace"`
	Key        string    `json:"key"`
	Timestamp  time.Time `json:"ts"`
	Bytes      int64     `json:"bytes"`
	ResultType string    `json:"result_type"`
}

// Stats summarizes the store contents.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
	Expired int   `json:"expired"`
}

// Store is a whole-record read/write TTL cache rooted at a directory.
// There is no cross-process locking: concurrent misses may both perform a
// live call and the last write wins, which is the accepted trade-off for
// idempotent tools with short TTLs. A reader racing a writer either sees
// a complete record (writes go through temp file + rename) or a miss.
type Store struct {
	root  string
	types *typeRegistry
}

// NewStore opens (creating if needed) a cache store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: cache directory is required", ErrConfiguration)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{root: dir, types: newTypeRegistry()}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// RegisterType adds a reconstructor for a result-type tag. Registering an
// existing tag replaces it.
func (s *Store) RegisterType(tag string, fn Reconstructor) {
	s.types.register(tag, fn)
}

func (s *Store) recordPath(namespace, key string) string {
	return filepath.Join(s.root, namespace, key+".json")
}

// read loads a record. A missing file is a plain miss; an unreadable or
// unparseable file is treated as corruption: the file is evicted and the
// read degrades to a miss. Corruption never surfaces as an error.
func (s *Store) read(namespace, key string) (Record, bool) {
	p := s.recordPath(namespace, key)

	data, err := os.ReadFile(p)
	if err != nil {
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec.Timestamp.IsZero() {
		log.Warn().Str("namespace", namespace).Str("key", key).Msg("Evicting corrupt cache record")
		s.delete(namespace, key)
		return Record{}, false
	}
	return rec, true
}

// write persists a record atomically. Failures are logged and swallowed:
// a cache that cannot write behaves like a cache that is always cold.
func (s *Store) write(namespace, key string, rec Record) {
	dir := filepath.Join(s.root, namespace)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warn().Err(err).Str("namespace", namespace).Msg("Failed to create cache namespace")
		return
	}

	data, err := json.Marshal(rec)
	if err != nil {
		log.Warn().Err(err).Str("namespace", namespace).Str("key", key).Msg("Failed to encode cache record")
		return
	}

	tmp, err := os.CreateTemp(dir, "."+key+".tmp-")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create cache temp file")
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		log.Warn().Err(err).Msg("Failed to write cache record")
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return
	}
	if err := os.Rename(tmpName, s.recordPath(namespace, key)); err != nil {
		os.Remove(tmpName)
		log.Warn().Err(err).Msg("Failed to publish cache record")
	}
}

func (s *Store) delete(namespace, key string) {
	_ = os.Remove(s.recordPath(namespace, key))
}

// walk visits every record file as (namespace, key, info).
func (s *Store) walk(visit func(namespace, key string, info os.FileInfo)) error {
	namespaces, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}
	for _, ns := range namespaces {
		if !ns.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.root, ns.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			visit(ns.Name(), strings.TrimSuffix(name, ".json"), info)
		}
	}
	return nil
}

// Clear removes records whose "namespace/key" matches the glob pattern.
// An empty pattern removes everything. It returns the number of records
// removed.
func (s *Store) Clear(pattern string) (int, error) {
	count := 0
	err := s.walk(func(namespace, key string, _ os.FileInfo) {
		if pattern != "" {
			ok, err := path.Match(pattern, namespace+"/"+key)
			if err != nil || !ok {
				return
			}
		}
		s.delete(namespace, key)
		count++
	})
	if err != nil && !os.IsNotExist(err) {
		return count, err
	}

	log.Info().Int("removed", count).Str("pattern", pattern).Msg("Cache cleared")

	return count, nil
}

// Stats reports entry count, total bytes, and how many records would be
// expired under the given TTL.
func (s *Store) Stats(ttl time.Duration) (Stats, error) {
	var st Stats
	now := time.Now()
	err := s.walk(func(namespace, key string, info os.FileInfo) {
		st.Entries++
		st.Bytes += info.Size()
		if ttl > 0 {
			if rec, ok := s.read(namespace, key); ok && now.Sub(rec.Timestamp) >= ttl {
				st.Expired++
			}
		}
	})
	if err != nil && !os.IsNotExist(err) {
		return st, err
	}
	return st, nil
}

// ListEntries returns stored records youngest-first. A non-positive limit
// returns all entries.
func (s *Store) ListEntries(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.walk(func(namespace, key string, info os.FileInfo) {
		rec, ok := s.read(namespace, key)
		if !ok {
			return
		}
		entries = append(entries, Entry{
			Namespace:  namespace,
			Key:        key,
			Timestamp:  rec.Timestamp,
			Bytes:      info.Size(),
			ResultType: rec.ResultType,
		})
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// CleanupExpired removes records older than ttl and returns how many were
// removed.
func (s *Store) CleanupExpired(ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, fmt.Errorf("%w: cleanup TTL must be positive", ErrConfiguration)
	}

	count := 0
	now := time.Now()
	err := s.walk(func(namespace, key string, _ os.FileInfo) {
		rec, ok := s.read(namespace, key)
		if !ok {
			return
		}
		if now.Sub(rec.Timestamp) >= ttl {
			s.delete(namespace, key)
			count++
		}
	})
	if err != nil && !os.IsNotExist(err) {
		return count, err
	}

	if count > 0 {
		log.Info().Int("removed", count).Dur("ttl", ttl).Msg("Expired cache records removed")
	}
	return count, nil
}

// sanitizeToken turns an identity value into a filesystem-safe key token.
// The mapping favors inspectability: common identifier characters pass
// through, everything else becomes an underscore, and overlong values
// keep a readable prefix plus a short digest.
func sanitizeToken(value string) string {
	if value == "" {
		return "empty"
	}

	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	token := b.String()

	const maxToken = 100
	if len(token) > maxToken {
		sum := sha256.Sum256([]byte(value))
		token = token[:maxToken-17] + "-" + hex.EncodeToString(sum[:8])
	}
	return token
}

// hashToken derives a key from the full argument map. This mode trades
// inspectability for convenience and must be explicitly enabled.
func hashToken(args map[string]interface{}) string {
	data, err := json.Marshal(args)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", args))
	}
	sum := sha256.Sum256(data)
	return "args-" + hex.EncodeToString(sum[:12])
}
