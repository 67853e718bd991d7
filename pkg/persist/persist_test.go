package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	m.Set(ReactionsKey, map[int64]string{1: "like"})

	var got map[int64]string
	require.True(t, m.Get(ReactionsKey, &got))
	require.Equal(t, "like", got[1])
}

func TestMemoryGetMissing(t *testing.T) {
	m := NewMemory()
	var got []string
	require.False(t, m.Get("absent", &got))
}

func TestFileSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	f, err := NewFile(dir)
	require.NoError(t, err)
	f.Set(PostsKey, []string{"a", "b"})

	reopened, err := NewFile(dir)
	require.NoError(t, err)

	var got []string
	require.True(t, reopened.Get(PostsKey, &got))
	require.Equal(t, []string{"a", "b"}, got)
}

func TestFileGetMissing(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	var got []string
	require.False(t, f.Get(PostsKey, &got))
}

func TestFileCorruptSnapshotDegrades(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PostsKey+".json"), []byte("{not json"), 0o644))

	f, err := NewFile(dir)
	require.NoError(t, err)

	var got []string
	require.False(t, f.Get(PostsKey, &got), "corrupt snapshot reads as a miss, never an error")
}

func TestFileSetOverwrites(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	f.Set(PostsKey, []int{1})
	f.Set(PostsKey, []int{2, 3})

	var got []int
	require.True(t, f.Get(PostsKey, &got))
	require.Equal(t, []int{2, 3}, got)
}

func TestFileSetUnmarshalableValueSwallowed(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	// Channels cannot be marshaled; Set must absorb that, not panic.
	f.Set(PostsKey, make(chan int))

	var got []int
	require.False(t, f.Get(PostsKey, &got))
}
