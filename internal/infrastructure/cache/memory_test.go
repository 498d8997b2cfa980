package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemorySetGet(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.Set("k", "v", time.Minute)

	got, ok := m.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", got)
}

func TestMemoryMiss(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	_, ok := m.Get("absent")
	require.False(t, ok)
}

func TestMemoryExpiry(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.Set("k", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := m.Get("k")
	require.False(t, ok)
	require.Zero(t, m.Len())
}

func TestMemoryIgnoresNonPositiveTTL(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.Set("k", "v", 0)

	_, ok := m.Get("k")
	require.False(t, ok)
	require.Zero(t, m.Len())
}

func TestMemoryOverwrite(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.Set("k", "old", time.Minute)
	m.Set("k", "new", time.Minute)

	got, _ := m.Get("k")
	require.Equal(t, "new", got)
	require.Equal(t, 1, m.Len())
}
