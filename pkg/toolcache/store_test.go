package toolcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func putRecord(s *Store, namespace, key string, age time.Duration, result string) {
	s.write(namespace, key, Record{
		Timestamp:  time.Now().Add(-age),
		Success:    true,
		Result:     json.RawMessage(result),
		ResultType: TagString,
	})
}

func TestNewStore_RequiresDir(t *testing.T) {
	_, err := NewStore("")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestStore_WriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	putRecord(s, "fn", "key", 0, `"value"`)

	rec, ok := s.read("fn", "key")
	require.True(t, ok)
	assert.True(t, rec.Success)
	assert.Equal(t, TagString, rec.ResultType)
	assert.JSONEq(t, `"value"`, string(rec.Result))
}

func TestStore_MissingIsAMiss(t *testing.T) {
	s := newTestStore(t)

	_, ok := s.read("fn", "nope")
	assert.False(t, ok)
}

func TestStore_CorruptRecordEvictedAsMiss(t *testing.T) {
	s := newTestStore(t)

	dir := filepath.Join(s.Root(), "fn")
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, ok := s.read("fn", "bad")
	assert.False(t, ok)

	// The corrupt file is gone so the next read is a clean miss.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)

	putRecord(s, "alpha", "one", 0, `"a"`)
	putRecord(s, "alpha", "two", 0, `"b"`)
	putRecord(s, "beta", "one", 0, `"c"`)

	removed, err := s.Clear("alpha/*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok := s.read("beta", "one")
	assert.True(t, ok)

	removed, err = s.Clear("")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)

	putRecord(s, "fn", "young", 0, `"a"`)
	putRecord(s, "fn", "old", time.Hour, `"b"`)

	stats, err := s.Stats(time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 1, stats.Expired)
	assert.Greater(t, stats.Bytes, int64(0))
}

func TestStore_ListEntries_YoungestFirst(t *testing.T) {
	s := newTestStore(t)

	putRecord(s, "fn", "oldest", 3*time.Hour, `"a"`)
	putRecord(s, "fn", "middle", 2*time.Hour, `"b"`)
	putRecord(s, "fn", "youngest", time.Hour, `"c"`)

	entries, err := s.ListEntries(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "youngest", entries[0].Key)
	assert.Equal(t, "middle", entries[1].Key)
	assert.Equal(t, "oldest", entries[2].Key)

	limited, err := s.ListEntries(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "youngest", limited[0].Key)
}

func TestStore_CleanupExpired(t *testing.T) {
	s := newTestStore(t)

	putRecord(s, "fn", "young", 0, `"a"`)
	putRecord(s, "fn", "old", time.Hour, `"b"`)

	removed, err := s.CleanupExpired(time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok := s.read("fn", "young")
	assert.True(t, ok)
	_, ok = s.read("fn", "old")
	assert.False(t, ok)
}

func TestStore_CleanupExpired_RequiresTTL(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CleanupExpired(0)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"passthrough", "channel-123_x.y", "channel-123_x.y"},
		{"spaces and slashes", "a b/c", "a_b_c"},
		{"unicode", "héllo", "h_llo"},
		{"empty", "", "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeToken(tt.value))
		})
	}
}

func TestSanitizeToken_LongValuesKeepPrefixAndDigest(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "abcdefgh"
	}

	token := sanitizeToken(long)
	assert.LessOrEqual(t, len(token), 100)
	assert.Equal(t, long[:20], token[:20])

	// Same value, same token; different value, different token.
	assert.Equal(t, token, sanitizeToken(long))
	assert.NotEqual(t, token, sanitizeToken(long+"x"))
}

func TestHashToken_Deterministic(t *testing.T) {
	a := hashToken(map[string]interface{}{"x": 1, "y": "z"})
	b := hashToken(map[string]interface{}{"y": "z", "x": 1})
	assert.Equal(t, a, b)

	c := hashToken(map[string]interface{}{"x": 2, "y": "z"})
	assert.NotEqual(t, a, c)
}
