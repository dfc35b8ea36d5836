package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsilvagit/deptos/internal/model"
)

func TestSentRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	ids := model.NewIDSet("argenprop_1", "zonaprop_58127503", "https://x.com/ñandú", "日本語", "")

	require.NoError(t, s.SaveSent(ids))
	got, err := s.LoadSent()
	require.NoError(t, err)
	assert.Equal(t, ids, got)

	// Saving the same set again changes nothing.
	require.NoError(t, s.SaveSent(ids))
	again, err := s.LoadSent()
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestLoadSentMissingFile(t *testing.T) {
	got, err := New(t.TempDir()).LoadSent()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadSentCorruptFileIsBackedUp(t *testing.T) {
	s := New(t.TempDir())
	corrupt := []byte(`["argenprop_1", "argen`)
	require.NoError(t, os.WriteFile(s.SentPath(), corrupt, 0o644))

	got, err := s.LoadSent()
	require.NoError(t, err)
	assert.Empty(t, got)

	backup, err := os.ReadFile(s.SentPath() + ".bak")
	require.NoError(t, err)
	assert.Equal(t, corrupt, backup)

	_, err = os.Stat(s.SentPath())
	assert.True(t, os.IsNotExist(err))
}

func TestLoadSentWrongShape(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, os.WriteFile(s.SentPath(), []byte(`{"a": 1}`), 0o644))

	got, err := s.LoadSent()
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = os.Stat(s.SentPath() + ".bak")
	assert.True(t, os.IsNotExist(err))
}

func TestQueueRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	queue := []model.Listing{
		{ID: "argenprop_2", Price: model.Int(400000), Rooms: model.Int(2), URL: "https://a/2", Source: model.SourceArgenprop},
		{ID: "argenprop_1", Price: model.Int(300000), Expensas: model.Int(50000), Address: "7 y 45", URL: "https://a/1", Source: model.SourceArgenprop},
	}

	require.NoError(t, s.SaveQueue(queue))
	got, err := s.LoadQueue()
	require.NoError(t, err)
	assert.Equal(t, queue, got)

	require.NoError(t, s.SaveQueue(nil))
	got, err = s.LoadQueue()
	require.NoError(t, err)
	assert.Empty(t, got)

	data, err := os.ReadFile(s.QueuePath())
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestLoadQueueNotAList(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, os.WriteFile(s.QueuePath(), []byte(`{"id": "x"}`), 0o644))

	got, err := s.LoadQueue()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.SaveSent(model.NewIDSet("a")))
	require.NoError(t, s.SaveQueue(nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"sent.json", "queue.json"}, names)
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s := New(dir)
	require.NoError(t, s.SaveSent(model.NewIDSet("a")))

	got, err := s.LoadSent()
	require.NoError(t, err)
	assert.True(t, got.Has("a"))
}
