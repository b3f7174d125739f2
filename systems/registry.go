package systems

// Phase identifiers, in tick order.
const (
	PhaseMove      = "move"
	PhaseSettle    = "settle"
	PhaseFeed      = "feed"
	PhaseReproduce = "reproduce"
	PhaseGrow      = "grow"
	PhaseCensus    = "census"
)

// SystemInfo describes a simulation phase.
type SystemInfo struct {
	ID          string // Internal identifier (used for perf tracking and metrics labels)
	Name        string // Display name
	Description string // What this phase does
	Category    string // Grouping (e.g., "agents", "grass")
}

// SystemRegistry holds metadata about all phases.
// This centralizes phase naming so the CLI listing and perf tracker stay in sync.
type SystemRegistry struct {
	systems []SystemInfo
	byID    map[string]SystemInfo
}

// NewSystemRegistry creates a registry with all known phases.
func NewSystemRegistry() *SystemRegistry {
	reg := &SystemRegistry{
		byID: make(map[string]SystemInfo),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds all phases to the registry in tick order.
// Update this together with World.Phases.
func (r *SystemRegistry) registerDefaults() {
	r.Register(SystemInfo{ID: PhaseMove, Name: "Move", Description: "Agents lose energy, starve, and pick a direction", Category: "agents"})
	r.Register(SystemInfo{ID: PhaseSettle, Name: "Settle", Description: "Cells gather agents moving in from their neighbours", Category: "agents"})
	r.Register(SystemInfo{ID: PhaseFeed, Name: "Feed", Description: "Sheep eat grass, wolves eat sheep", Category: "agents"})
	r.Register(SystemInfo{ID: PhaseReproduce, Name: "Reproduce", Description: "Agents above threshold split their energy with a newborn", Category: "agents"})
	r.Register(SystemInfo{ID: PhaseGrow, Name: "Grow", Description: "Eaten grass counts down to regrowth", Category: "grass"})
	r.Register(SystemInfo{ID: PhaseCensus, Name: "Census", Description: "Per-worker population and energy counters", Category: "stats"})
}

// Register adds a phase to the registry.
func (r *SystemRegistry) Register(info SystemInfo) {
	r.systems = append(r.systems, info)
	r.byID[info.ID] = info
}

// Get returns phase info by ID.
func (r *SystemRegistry) Get(id string) (SystemInfo, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// GetName returns the display name for a phase ID.
// Falls back to the ID itself if not found.
func (r *SystemRegistry) GetName(id string) string {
	if info, ok := r.byID[id]; ok {
		return info.Name
	}
	return id
}

// All returns all registered phases.
func (r *SystemRegistry) All() []SystemInfo {
	return r.systems
}

// ByCategory returns phases filtered by category.
func (r *SystemRegistry) ByCategory(category string) []SystemInfo {
	var result []SystemInfo
	for _, info := range r.systems {
		if info.Category == category {
			result = append(result, info)
		}
	}
	return result
}

// IDs returns all phase IDs in registration order.
func (r *SystemRegistry) IDs() []string {
	ids := make([]string, len(r.systems))
	for i, info := range r.systems {
		ids[i] = info.ID
	}
	return ids
}
