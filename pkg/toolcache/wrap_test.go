package toolcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/metatool/pkg/dispatch"
)

func countingEcho(calls *atomic.Int64) dispatch.Handler {
	return func(_ context.Context, args map[string]interface{}) (interface{}, error) {
		calls.Add(1)
		return args["text"], nil
	}
}

func TestWrap_ConfigurationErrors(t *testing.T) {
	s := newTestStore(t)
	handler := countingEcho(&atomic.Int64{})

	tests := []struct {
		name    string
		fnName  string
		handler dispatch.Handler
		opts    Options
	}{
		{"empty name", "", handler, Options{KeyParam: "text", TTL: time.Minute}},
		{"nil handler", "echo", nil, Options{KeyParam: "text", TTL: time.Minute}},
		{"zero ttl", "echo", handler, Options{KeyParam: "text"}},
		{"no key and no fallback", "echo", handler, Options{TTL: time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Wrap(tt.fnName, tt.handler, tt.opts)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestWrap_Idempotence(t *testing.T) {
	s := newTestStore(t)
	var calls atomic.Int64

	echo, err := s.Wrap("echo", countingEcho(&calls), Options{KeyParam: "text", TTL: time.Minute})
	require.NoError(t, err)

	first, err := echo(context.Background(), map[string]interface{}{"text": "a"})
	require.NoError(t, err)
	second, err := echo(context.Background(), map[string]interface{}{"text": "a"})
	require.NoError(t, err)

	assert.Equal(t, "a", first)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load(), "underlying handler must run at most once within TTL")
}

func TestWrap_DistinctIdentityValuesMiss(t *testing.T) {
	s := newTestStore(t)
	var calls atomic.Int64

	echo, err := s.Wrap("echo", countingEcho(&calls), Options{KeyParam: "text", TTL: time.Minute})
	require.NoError(t, err)

	_, err = echo(context.Background(), map[string]interface{}{"text": "a"})
	require.NoError(t, err)
	_, err = echo(context.Background(), map[string]interface{}{"text": "b"})
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load())
}

func TestWrap_TTLExpiry(t *testing.T) {
	s := newTestStore(t)
	var calls atomic.Int64

	echo, err := s.Wrap("echo", countingEcho(&calls), Options{KeyParam: "text", TTL: time.Minute})
	require.NoError(t, err)

	_, err = echo(context.Background(), map[string]interface{}{"text": "a"})
	require.NoError(t, err)

	// Backdate the record past the TTL; the next read must not reuse it.
	key := sanitizeToken("a")
	rec, ok := s.read("echo", key)
	require.True(t, ok)
	rec.Timestamp = time.Now().Add(-2 * time.Minute)
	s.write("echo", key, rec)

	_, err = echo(context.Background(), map[string]interface{}{"text": "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())

	// The expired record was replaced by a fresh one.
	rec, ok = s.read("echo", key)
	require.True(t, ok)
	assert.Less(t, time.Since(rec.Timestamp), time.Minute)
}

func TestWrap_BypassForcesLiveCallAndRewrites(t *testing.T) {
	s := newTestStore(t)
	var calls atomic.Int64
	var sawFlag atomic.Bool

	handler := func(_ context.Context, args map[string]interface{}) (interface{}, error) {
		calls.Add(1)
		if v, _ := args[BypassKey].(bool); v {
			sawFlag.Store(true)
		}
		return args["text"], nil
	}

	echo, err := s.Wrap("echo", handler, Options{KeyParam: "text", TTL: time.Minute})
	require.NoError(t, err)

	_, err = echo(context.Background(), map[string]interface{}{"text": "a"})
	require.NoError(t, err)

	_, err = echo(context.Background(), map[string]interface{}{"text": "a", BypassKey: true})
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load(), "bypass must invoke the handler regardless of freshness")
	assert.True(t, sawFlag.Load(), "bypass flag must be forwarded to the handler")

	// The fresh result was written back.
	_, ok := s.read("echo", sanitizeToken("a"))
	assert.True(t, ok)
}

func TestWrap_FailuresAreNotPersisted(t *testing.T) {
	s := newTestStore(t)

	boom, err := s.Wrap("boom", func(context.Context, map[string]interface{}) (interface{}, error) {
		return nil, fmt.Errorf("ValueError: x")
	}, Options{KeyParam: "id", TTL: time.Minute})
	require.NoError(t, err)

	_, err = boom(context.Background(), map[string]interface{}{"id": "1"})
	require.EqualError(t, err, "ValueError: x")

	stats, err := s.Stats(0)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries, "failed results must not be cached")
}

func TestWrap_CorruptRecordFallsThroughToLiveCall(t *testing.T) {
	s := newTestStore(t)
	var calls atomic.Int64

	echo, err := s.Wrap("echo", countingEcho(&calls), Options{KeyParam: "text", TTL: time.Minute})
	require.NoError(t, err)

	_, err = echo(context.Background(), map[string]interface{}{"text": "a"})
	require.NoError(t, err)

	// Poison the stored record: reconstruction will fail.
	key := sanitizeToken("a")
	rec, ok := s.read("echo", key)
	require.True(t, ok)
	rec.Result = json.RawMessage(`{"no": "string"}`)
	s.write("echo", key, rec)

	out, err := echo(context.Background(), map[string]interface{}{"text": "a"})
	require.NoError(t, err, "corruption must never surface as a caller error")
	assert.Equal(t, "a", out)
	assert.Equal(t, int64(2), calls.Load())
}

func TestWrap_HashFallback(t *testing.T) {
	s := newTestStore(t)
	var calls atomic.Int64

	h, err := s.Wrap("multi", func(_ context.Context, args map[string]interface{}) (interface{}, error) {
		calls.Add(1)
		return "ok", nil
	}, Options{TTL: time.Minute, HashFallback: true})
	require.NoError(t, err)

	args := map[string]interface{}{"a": "1", "b": "2"}
	_, err = h(context.Background(), args)
	require.NoError(t, err)
	_, err = h(context.Background(), map[string]interface{}{"b": "2", "a": "1"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load())

	// The bypass flag must not change the derived identity.
	_, err = h(context.Background(), map[string]interface{}{"a": "1", "b": "2", BypassKey: false})
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestWrap_MissingIdentityParamSkipsCaching(t *testing.T) {
	s := newTestStore(t)
	var calls atomic.Int64

	echo, err := s.Wrap("echo", countingEcho(&calls), Options{KeyParam: "text", TTL: time.Minute})
	require.NoError(t, err)

	_, err = echo(context.Background(), map[string]interface{}{"other": "x"})
	require.NoError(t, err)
	_, err = echo(context.Background(), map[string]interface{}{"other": "x"})
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load())

	stats, err := s.Stats(0)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)
}
