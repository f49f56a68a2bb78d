package api

// EngineType identifies a registered capability engine.
type EngineType string

const (
	EngineAutomatedResolution EngineType = "automated-resolution"
	EngineCulturalContext     EngineType = "cultural-context"
)

// LifecycleStatus is the rollout stage of an engine.
type LifecycleStatus string

const (
	LifecycleExperimental LifecycleStatus = "experimental"
	LifecyclePilot        LifecycleStatus = "pilot"
	LifecycleActive       LifecycleStatus = "active"
	LifecycleDeprecated   LifecycleStatus = "deprecated"
	LifecycleDisabled     LifecycleStatus = "disabled"
)

// Valid reports whether s is a known lifecycle status.
func (s LifecycleStatus) Valid() bool {
	switch s {
	case LifecycleExperimental, LifecyclePilot, LifecycleActive, LifecycleDeprecated, LifecycleDisabled:
		return true
	}
	return false
}

// CapabilityLanguageProcessing is the capability an engine declares when it
// can adapt output to the customer's language and culture.
const CapabilityLanguageProcessing = "language-processing"

// Capability describes one thing an engine can do.
type Capability struct {
	Name        string   `json:"name"`
	InputKinds  []string `json:"inputKinds,omitempty"`
	OutputKinds []string `json:"outputKinds,omitempty"`
	RealTime    bool     `json:"realTime"`
	Accuracy    float64  `json:"accuracy,omitempty"`
	LatencyMS   int      `json:"latencyMs,omitempty"`
}

// EngineDescriptor is the static metadata of an engine. It is immutable after
// the engine is constructed.
type EngineDescriptor struct {
	ID           EngineType      `json:"id"`
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Capabilities []Capability    `json:"capabilities"`
	Dependencies []EngineType    `json:"dependencies,omitempty"`
	Status       LifecycleStatus `json:"status"`

	// ResourceCost is the relative cost of one execution, used by adaptive
	// mode to choose between sequential and parallel dispatch.
	ResourceCost float64 `json:"resourceCost"`
}

// HasCapability reports whether the descriptor declares the named capability.
func (d EngineDescriptor) HasCapability(name string) bool {
	for _, c := range d.Capabilities {
		if c.Name == name {
			return true
		}
	}
	return false
}
