package snapshot

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-standings/internal/standings"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "standings.json"))
	require.NoError(t, err)
	return s
}

// uniformDoc builds a document whose every record carries the same wins
// value, so a reader can tell which Save produced it.
func uniformDoc(wins int) *standings.Document {
	doc := &standings.Document{}
	for i := 0; i < 15; i++ {
		doc.East = append(doc.East, standings.TeamRecord{Team: "East Team", Wins: wins, Losses: 82 - wins})
		doc.West = append(doc.West, standings.TeamRecord{Team: "West Team", Wins: wins, Losses: 82 - wins})
	}
	return doc
}

func TestNewCreatesDirectory(t *testing.T) {
	s := newTestStore(t)
	fi, err := os.Stat(s.Dir())
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	assert.Equal(t, "standings.json", s.Name())
	assert.True(t, filepath.IsAbs(s.Path()))

	_, err = New("")
	assert.Error(t, err)
}

func TestLoadBeforeSave(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load()
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	doc := uniformDoc(10)
	require.NoError(t, s.Save(doc))

	raw, err := s.Load()
	require.NoError(t, err)
	want, err := doc.MarshalIndent()
	require.NoError(t, err)
	assert.Equal(t, want, raw)

	info, err := s.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), info.Size)

	require.NoError(t, s.Save(uniformDoc(20)))
	raw, err = s.Load()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"wins": 20`)
	assert.NotContains(t, string(raw), `"wins": 10`, "full replace, no history")

	assertNoTempFiles(t, s)
}

func TestSaveFailureKeepsPreviousSnapshot(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(uniformDoc(10)))
	before, err := s.Load()
	require.NoError(t, err)

	s.write = func(string, io.Reader) error { return errors.New("disk full") }
	err = s.Save(uniformDoc(20))
	require.Error(t, err)

	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, "replace", werr.Op)
	assert.Contains(t, err.Error(), "disk full")

	after, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, before, after, "previous snapshot bytes are untouched")
	assertNoTempFiles(t, s)
}

func TestSaveIntoMissingDirectory(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.RemoveAll(s.Dir()))

	err := s.Save(uniformDoc(1))
	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, "replace", werr.Op)
}

func TestSaveIntoReadOnlyDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	s := newTestStore(t)
	require.NoError(t, s.Save(uniformDoc(10)))
	before, err := s.Load()
	require.NoError(t, err)

	require.NoError(t, os.Chmod(s.Dir(), 0o555))
	t.Cleanup(func() { _ = os.Chmod(s.Dir(), 0o755) })

	err = s.Save(uniformDoc(20))
	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, "replace", werr.Op)

	after, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assertNoTempFiles(t, s)
}

func TestSaveSetsReadableMode(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(uniformDoc(1)))
	fi, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileMode), fi.Mode().Perm())
}

func TestSaveNilDocument(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Save(nil))
}

func TestConcurrentReadersNeverSeePartialWrites(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(uniformDoc(1)))

	const cycles = 200
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < cycles; i++ {
			if err := s.Save(uniformDoc(1 + i%2)); err != nil {
				t.Errorf("save %d: %v", i, err)
				return
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				raw, err := s.Load()
				if err != nil {
					t.Errorf("load: %v", err)
					return
				}
				var doc standings.Document
				if err := json.Unmarshal(raw, &doc); err != nil {
					t.Errorf("partial document observed: %v", err)
					return
				}
				if len(doc.East) != 15 || len(doc.West) != 15 {
					t.Errorf("unexpected team counts %d/%d", len(doc.East), len(doc.West))
					return
				}
				wins := doc.East[0].Wins
				for _, rec := range append(doc.East, doc.West...) {
					if rec.Wins != wins {
						t.Errorf("document mixes cycles: %d and %d", wins, rec.Wins)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func assertNoTempFiles(t *testing.T, s *Store) {
	t.Helper()
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, s.Name(), e.Name(), "leftover temp file")
	}
}
