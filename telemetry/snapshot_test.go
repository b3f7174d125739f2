package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/pphpc/components"
)

func testGrid() *components.Grid {
	g := components.NewGrid(3, 2)
	g.Cells[0].Countdown = 4
	g.Cells[1].Agents = []components.Agent{
		{Kind: components.KindSheep, Energy: 3},
		{Kind: components.KindWolf, Energy: 17, Dir: components.DirEast},
	}
	g.Cells[5].Agents = []components.Agent{{Kind: components.KindSheep, Energy: 1}}
	return g
}

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := NewSnapshot(testGrid(), 1000, 42)
	snapshot.Bookmark = &Bookmark{
		Type:        BookmarkSheepCrash,
		Tick:        1000,
		Description: "Test bookmark",
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "snapshot file not created at %s", path)

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)

	assert.Equal(t, snapshot.Version, loaded.Version)
	assert.Equal(t, snapshot.Seed, loaded.Seed)
	assert.Equal(t, snapshot.Tick, loaded.Tick)
	assert.Equal(t, snapshot.Cells, loaded.Cells)
	require.NotNil(t, loaded.Bookmark)
	assert.Equal(t, snapshot.Bookmark.Type, loaded.Bookmark.Type)
}

func TestSnapshotGridRoundTrip(t *testing.T) {
	src := testGrid()
	g, err := NewSnapshot(src, 7, 1).Grid()
	require.NoError(t, err)

	assert.Equal(t, src.Width, g.Width)
	assert.Equal(t, src.Height, g.Height)
	for i := range src.Cells {
		assert.Equal(t, src.Cells[i].Countdown, g.Cells[i].Countdown, "cell %d", i)
		require.Len(t, g.Cells[i].Agents, len(src.Cells[i].Agents), "cell %d", i)
		for k, a := range src.Cells[i].Agents {
			// The chosen move is transient and not captured.
			assert.Equal(t, a.Kind, g.Cells[i].Agents[k].Kind)
			assert.Equal(t, a.Energy, g.Cells[i].Agents[k].Energy)
		}
	}
}

func TestSnapshotGridRejectsCorruptState(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"cell count", func(s *Snapshot) { s.Cells = s.Cells[:2] }},
		{"empty grid", func(s *Snapshot) { s.Width = 0 }},
		{"negative countdown", func(s *Snapshot) { s.Cells[0].Countdown = -1 }},
		{"unknown kind", func(s *Snapshot) { s.Cells[1].Agents[0].Kind = 9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSnapshot(testGrid(), 0, 0)
			tt.mutate(s)
			_, err := s.Grid()
			assert.Error(t, err)
		})
	}
}

func TestSnapshotFilename(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version: SnapshotVersion,
		Tick:    5000,
		Bookmark: &Bookmark{
			Type: BookmarkWolvesExtinct,
			Tick: 5000,
		},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "snapshot_5000_wolves_extinct.json"), path)

	path, err = SaveSnapshot(&Snapshot{Version: SnapshotVersion, Tick: 3000}, tmpDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "snapshot_3000.json"), path)
}

func TestLoadSnapshotRejectsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":0,"tick":3}`), 0644))

	_, err := LoadSnapshot(path)
	assert.Error(t, err)
}
