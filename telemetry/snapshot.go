package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/pphpc/components"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the complete grid state at the end of a tick.
type Snapshot struct {
	Version int    `json:"version"`
	Seed    uint64 `json:"seed"`

	Width  int `json:"width"`
	Height int `json:"height"`

	Tick int `json:"tick"`

	// Cells is row-major, like the grid.
	Cells []CellState `json:"cells"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// CellState holds one cell's grass countdown and its agents in order.
type CellState struct {
	Countdown int          `json:"countdown"`
	Agents    []AgentState `json:"agents,omitempty"`
}

// AgentState holds one agent.
type AgentState struct {
	Kind   components.Kind `json:"kind"`
	Energy int             `json:"energy"`
}

// NewSnapshot captures g. The grid must not be mutated while this runs.
func NewSnapshot(g *components.Grid, tick int, seed uint64) *Snapshot {
	s := &Snapshot{
		Version: SnapshotVersion,
		Seed:    seed,
		Width:   g.Width,
		Height:  g.Height,
		Tick:    tick,
		Cells:   make([]CellState, len(g.Cells)),
	}
	for i := range g.Cells {
		c := &g.Cells[i]
		s.Cells[i].Countdown = c.Countdown
		if len(c.Agents) == 0 {
			continue
		}
		agents := make([]AgentState, len(c.Agents))
		for k, a := range c.Agents {
			agents[k] = AgentState{Kind: a.Kind, Energy: a.Energy}
		}
		s.Cells[i].Agents = agents
	}
	return s
}

// Grid rebuilds the grid captured by the snapshot.
func (s *Snapshot) Grid() (*components.Grid, error) {
	if s.Width < 1 || s.Height < 1 {
		return nil, fmt.Errorf("snapshot grid %dx%d is empty", s.Width, s.Height)
	}
	if len(s.Cells) != s.Width*s.Height {
		return nil, fmt.Errorf("snapshot has %d cells, want %d", len(s.Cells), s.Width*s.Height)
	}
	g := components.NewGrid(s.Width, s.Height)
	for i, cs := range s.Cells {
		if cs.Countdown < 0 {
			return nil, fmt.Errorf("cell %d: negative countdown %d", i, cs.Countdown)
		}
		g.Cells[i].Countdown = cs.Countdown
		for _, a := range cs.Agents {
			if a.Kind != components.KindSheep && a.Kind != components.KindWolf {
				return nil, fmt.Errorf("cell %d: unknown agent kind %d", i, a.Kind)
			}
			g.Cells[i].Agents = append(g.Cells[i].Agents, components.Agent{Kind: a.Kind, Energy: a.Energy})
		}
	}
	return g, nil
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
