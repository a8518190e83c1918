package payload

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	d, err := New(map[string]any{"component": "agentA", "cost": 12.5})
	require.NoError(t, err)
	assert.Equal(t, "agentA", d.Get("component").String())
	assert.InDelta(t, 12.5, d.Get("cost").Float(), 0)

	raw, err := New(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), raw.Get("a").Int())

	_, err = New([]byte(`{"a":`))
	require.ErrorIs(t, err, ErrInvalidJSON)

	_, err = New(make(chan int))
	require.Error(t, err)
}

func TestZeroValue(t *testing.T) {
	var d Data
	assert.True(t, d.IsZero())
	assert.True(t, d.IsObject())
	assert.Equal(t, "{}", d.String())
	assert.Empty(t, d.Keys())
	assert.False(t, d.Has("anything"))
}

func TestSetIsCopyOnWrite(t *testing.T) {
	base := MustNew(map[string]any{"a": 1})
	next, err := base.Set("b.c", "deep")
	require.NoError(t, err)

	assert.False(t, base.Has("b"), "original must not change")
	assert.Equal(t, "deep", next.Get("b.c").String())

	nested, err := base.Set("inner", MustNew(map[string]any{"x": true}))
	require.NoError(t, err)
	assert.True(t, nested.Get("inner.x").Bool())

	deleted, err := next.Delete("a")
	require.NoError(t, err)
	assert.False(t, deleted.Has("a"))
	assert.True(t, next.Has("a"))
}

func TestMerge(t *testing.T) {
	base := MustNew(map[string]any{"tool": "calc", "args": map[string]any{"x": 1}})

	t.Run("object patch replaces top-level fields", func(t *testing.T) {
		out, err := base.Merge(MustNew(map[string]any{"args": map[string]any{"y": 2}, "audited": true}))
		require.NoError(t, err)
		assert.Equal(t, "calc", out.Get("tool").String())
		assert.True(t, out.Get("audited").Bool())
		assert.False(t, out.Has("args.x"))
		assert.Equal(t, int64(2), out.Get("args.y").Int())
	})

	t.Run("keys with path characters are literal", func(t *testing.T) {
		out, err := base.Merge(MustNew(map[string]any{"a.b": 1, "q?": 2}))
		require.NoError(t, err)
		m := out.Map()
		assert.Equal(t, float64(1), m["a.b"])
		assert.Equal(t, float64(2), m["q?"])
		assert.NotContains(t, m, "a")
	})

	t.Run("any field name is kept", func(t *testing.T) {
		keep := MustNew(map[string]any{"keep": 1})
		for _, key := range []string{"", "a|b", "#", "@this", "a\\b", "\"quoted\""} {
			out, err := keep.Merge(MustNew(map[string]any{key: "v"}))
			require.NoError(t, err, key)
			assert.JSONEq(t, `{"keep":1}`, mustDelete(t, out, key), key)
			assert.Equal(t, "v", out.Map()[key], key)
		}
	})

	t.Run("field order is kept", func(t *testing.T) {
		d, err := FromJSON([]byte(`{"a":1,"b":2}`))
		require.NoError(t, err)
		p, err := FromJSON([]byte(`{"c":3,"a":0}`))
		require.NoError(t, err)
		out, err := d.Merge(p)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, out.Keys())
		assert.Equal(t, `{"a":0,"b":2,"c":3}`, out.String())
	})

	t.Run("non-object patch replaces", func(t *testing.T) {
		out, err := base.Merge(MustNew([]int{1, 2}))
		require.NoError(t, err)
		assert.JSONEq(t, `[1,2]`, out.String())
	})

	t.Run("zero patch is a no-op", func(t *testing.T) {
		out, err := base.Merge(Data{})
		require.NoError(t, err)
		assert.True(t, out.Equal(base))
	})
}

// mustDelete drops key by decoding, so the check does not depend on path syntax.
func mustDelete(t *testing.T, d Data, key string) string {
	t.Helper()
	m := d.Map()
	require.NotNil(t, m)
	delete(m, key)
	return MustNew(m).String()
}

func TestJSONRoundTrip(t *testing.T) {
	type envelope struct {
		Data Data `json:"data"`
	}
	in := envelope{Data: MustNew(map[string]any{"k": "v"})}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"k":"v"}}`, string(b))

	var out envelope
	require.NoError(t, json.Unmarshal(b, &out))
	assert.True(t, out.Data.Equal(in.Data))
}

func TestEqualIgnoresOrder(t *testing.T) {
	a, _ := FromJSON([]byte(`{"a":1,"b":2}`))
	b, _ := FromJSON([]byte(`{ "b": 2, "a": 1 }`))
	assert.True(t, a.Equal(b))
	assert.Equal(t, []string{"a", "b"}, a.Keys())
}

func TestConcurrentReaders(t *testing.T) {
	d := MustNew(map[string]any{"n": 1})
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Go(func() {
			next, err := d.Set("n", i)
			assert.NoError(t, err)
			assert.Equal(t, int64(i), next.Get("n").Int())
			assert.Equal(t, int64(1), d.Get("n").Int())
		})
	}
	wg.Wait()
}
