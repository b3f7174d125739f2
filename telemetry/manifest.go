package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// ManifestName is the file name of the run manifest.
const ManifestName = "run.json"

// Run statuses recorded in the manifest.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
	StatusFailed    = "failed"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// HostInfo describes the machine a run executed on.
type HostInfo struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	Platform      string `json:"platform"`
	KernelVersion string `json:"kernel_version"`
	CPUModel      string `json:"cpu_model"`
	PhysicalCores int    `json:"physical_cores"`
	LogicalCores  int    `json:"logical_cores"`
	MemoryBytes   uint64 `json:"memory_bytes"`
	GoVersion     string `json:"go_version"`
	GOMAXPROCS    int    `json:"gomaxprocs"`
}

// CollectHostInfo gathers what it can. Probes that fail on the current
// platform leave their fields empty.
func CollectHostInfo(ctx context.Context) HostInfo {
	info := HostInfo{
		OS:           runtime.GOOS,
		LogicalCores: runtime.NumCPU(),
		GoVersion:    runtime.Version(),
		GOMAXPROCS:   runtime.GOMAXPROCS(0),
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		info.KernelVersion = h.KernelVersion
	} else {
		slog.Debug("host info unavailable", "error", err)
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.PhysicalCores = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryBytes = vm.Total
	}

	return info
}

// EngineInfo records the engine settings of a run.
type EngineInfo struct {
	Strategy   string `json:"strategy"`
	Workers    int    `json:"workers"`
	BlockSize  int    `json:"block_size,omitempty"`
	Iterations int    `json:"iterations"`
	Seed       uint64 `json:"seed"`
	RNG        string `json:"rng"`
	Keying     string `json:"keying"`
}

// Manifest describes one run. It is written at start and rewritten at the end.
type Manifest struct {
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Ticks      int        `json:"ticks"`
	Engine     EngineInfo `json:"engine"`
	Host       HostInfo   `json:"host"`
}

// Finish marks the manifest as ended at the given tick.
func (m *Manifest) Finish(status string, ticks int, err error) {
	now := time.Now().UTC()
	m.FinishedAt = &now
	m.Status = status
	m.Ticks = ticks
	if err != nil {
		m.Error = err.Error()
	}
}

// WriteManifest writes m as dir/run.json.
func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", ManifestName, err)
	}
	return nil
}

// LoadManifest reads dir/run.json.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ManifestName, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}
