package coretools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/metatool/pkg/catalog"
	"github.com/harun/metatool/pkg/dispatch"
	"github.com/harun/metatool/pkg/toolcache"
)

func testDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()

	cat, err := catalog.Build(Servers())
	require.NoError(t, err)

	store, err := toolcache.NewStore(t.TempDir())
	require.NoError(t, err)

	bindings, err := Bind(store, Options{CacheTTL: time.Minute})
	require.NoError(t, err)

	disp, err := dispatch.New(cat, bindings)
	require.NoError(t, err)
	return disp
}

func TestBind_CoversEveryCatalogedTool(t *testing.T) {
	// dispatch.New fails when a cataloged tool is left unbound, so a
	// successful build is the assertion.
	testDispatcher(t)
}

func TestClockNow(t *testing.T) {
	disp := testDispatcher(t)

	result := disp.Execute(context.Background(), "clock", "now", map[string]interface{}{})
	require.True(t, result.Success, "error: %s", result.Error)

	out, ok := result.Output.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "UTC", out["timezone"])
	assert.NotEmpty(t, out["iso"])
}

func TestClockNow_UnknownTimezone(t *testing.T) {
	disp := testDispatcher(t)

	result := disp.Execute(context.Background(), "clock", "now",
		map[string]interface{}{"timezone": "Mars/Olympus"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Mars/Olympus")
}

func TestClockSleep(t *testing.T) {
	disp := testDispatcher(t)

	result := disp.Execute(context.Background(), "clock", "sleep",
		map[string]interface{}{"ms": float64(10)})
	require.True(t, result.Success, "error: %s", result.Error)

	slept, ok := result.Output.(int64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, slept, int64(10))
}

func TestClockSleep_CancelledContext(t *testing.T) {
	disp := testDispatcher(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := disp.Execute(ctx, "clock", "sleep", map[string]interface{}{"ms": float64(5000)})
	assert.False(t, result.Success)
}

func TestTextTools(t *testing.T) {
	disp := testDispatcher(t)
	ctx := context.Background()

	echo := disp.Execute(ctx, "text", "echo", map[string]interface{}{"text": "hi"})
	require.True(t, echo.Success)
	assert.Equal(t, "hi", echo.Output)

	upper := disp.Execute(ctx, "text", "upper", map[string]interface{}{"text": "hi"})
	require.True(t, upper.Success)
	assert.Equal(t, "HI", upper.Output)

	count := disp.Execute(ctx, "text", "word_count", map[string]interface{}{"text": "one two three"})
	require.True(t, count.Success)
	out, ok := count.Output.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(3), out["words"])
	assert.Equal(t, int64(13), out["chars"])
}
