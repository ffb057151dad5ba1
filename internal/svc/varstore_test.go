package svc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarStoreSetGetRoundTrip(t *testing.T) {
	var v VarStore
	require.True(t, v.Set("tags", "web,frontend"))
	val, ok := v.Get("tags")
	assert.True(t, ok)
	assert.Equal(t, "web,frontend", val)
	assert.NoError(t, v.Validate())
}

func TestVarStoreSetEmptyDeletesEntry(t *testing.T) {
	var v VarStore
	require.True(t, v.Set("tags", "x"))
	before := v.Len()
	_ = before
	require.True(t, v.Set("tags", ""))
	_, ok := v.Get("tags")
	assert.False(t, ok)
	assert.Equal(t, 0, v.Len())
}

func TestVarStoreMultipleEntriesIndependent(t *testing.T) {
	var v VarStore
	require.True(t, v.Set("tags", "a"))
	require.True(t, v.Set("args", "/bin/true"))
	require.True(t, v.Set("fds", "null\tnull\tnull"))

	require.True(t, v.Set("tags", "")) // delete middle-ish entry
	_, ok := v.Get("tags")
	assert.False(t, ok)

	argv, ok := v.Get("args")
	assert.True(t, ok)
	assert.Equal(t, "/bin/true", argv)

	fds, ok := v.Get("fds")
	assert.True(t, ok)
	assert.Equal(t, "null\tnull\tnull", fds)
	assert.NoError(t, v.Validate())
}

func TestVarStoreOverwriteGrowsAndShrinks(t *testing.T) {
	var v VarStore
	require.True(t, v.Set("args", "/bin/true"))
	require.True(t, v.Set("other", "keepme"))

	require.True(t, v.Set("args", "/usr/bin/something-longer"))
	val, _ := v.Get("args")
	assert.Equal(t, "/usr/bin/something-longer", val)
	other, _ := v.Get("other")
	assert.Equal(t, "keepme", other)

	require.True(t, v.Set("args", "sh"))
	val, _ = v.Get("args")
	assert.Equal(t, "sh", val)
	other, _ = v.Get("other")
	assert.Equal(t, "keepme", other)
	assert.NoError(t, v.Validate())
}

func TestVarStoreGetOrDefault(t *testing.T) {
	var v VarStore
	assert.Equal(t, "null\tnull\tnull", v.GetOr("fds", "null\tnull\tnull"))
	require.True(t, v.Set("fds", "a\tb\tc"))
	assert.Equal(t, "a\tb\tc", v.GetOr("fds", "null\tnull\tnull"))
}

// Scenario 5 (spec.md §8 "Pool-slot overflow").
func TestPoolBackedVarStoreRejectsOversizedValue(t *testing.T) {
	v := VarStore{capacity: 32}
	require.True(t, v.Set("tags", "short"))
	before := append([]byte(nil), v.Raw()...)

	ok := v.Set("tags", "this value is definitely longer than thirty two bytes")
	assert.False(t, ok)
	assert.Equal(t, before, v.Raw())
	val, _ := v.Get("tags")
	assert.Equal(t, "short", val)
}

func TestPoolBackedVarStoreAcceptsValueWithinCapacity(t *testing.T) {
	v := VarStore{capacity: 32}
	// "tags=0123456789\0" is 16 bytes, well within 32.
	assert.True(t, v.Set("tags", "0123456789"))
}

func TestVarStoreValidateDetectsMalformedBuffer(t *testing.T) {
	v := VarStore{buf: []byte("nokey-no-equals\x00")}
	assert.Error(t, v.Validate())
}

func TestVarStoreEmptyBufferHasZeroLength(t *testing.T) {
	var v VarStore
	assert.Equal(t, 0, v.Len())
	assert.Nil(t, v.Raw())
}
