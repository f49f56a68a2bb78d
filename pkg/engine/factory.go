package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
)

var (
	// ErrUnknownEngine is matched by errors.Is for any UnknownEngineError.
	ErrUnknownEngine = errors.New("unknown engine type")

	// ErrEngineDisabled is returned when creating an engine whose lifecycle
	// status is disabled.
	ErrEngineDisabled = errors.New("engine disabled")
)

// UnknownEngineError reports a request for an engine type that was never
// registered.
type UnknownEngineError struct {
	Type api.EngineType
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown engine type %q", e.Type)
}

// Is makes errors.Is(err, ErrUnknownEngine) true.
func (e *UnknownEngineError) Is(target error) bool {
	return target == ErrUnknownEngine
}

// Constructor builds a fresh engine instance. It must not perform I/O.
type Constructor func(desc api.EngineDescriptor, ref OrchestratorRef) (Engine, error)

type registration struct {
	desc api.EngineDescriptor
	ctor Constructor
}

// Factory is the closed registry of engine types. Registration happens at
// startup; afterwards the factory is read-only and safe for concurrent use.
type Factory struct {
	mu      sync.RWMutex
	entries map[api.EngineType]registration
	order   []api.EngineType
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{entries: make(map[api.EngineType]registration)}
}

// Register adds an engine type. The descriptor must carry a semantic version
// and a known lifecycle status, and the type must not already be registered.
func (f *Factory) Register(desc api.EngineDescriptor, ctor Constructor) error {
	if desc.ID == "" {
		return fmt.Errorf("engine descriptor id is required")
	}
	if ctor == nil {
		return fmt.Errorf("engine %s: constructor must not be nil", desc.ID)
	}
	if _, err := semver.NewVersion(desc.Version); err != nil {
		return fmt.Errorf("engine %s: invalid version %q: %w", desc.ID, desc.Version, err)
	}
	if !desc.Status.Valid() {
		return fmt.Errorf("engine %s: invalid lifecycle status %q", desc.ID, desc.Status)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.entries[desc.ID]; exists {
		return fmt.Errorf("engine %s: already registered", desc.ID)
	}
	f.entries[desc.ID] = registration{desc: desc, ctor: ctor}
	f.order = append(f.order, desc.ID)

	slog.Info("registered engine",
		"engine", desc.ID,
		"version", desc.Version,
		"status", desc.Status,
		"capabilities", len(desc.Capabilities),
	)
	return nil
}

// SetStatus overrides the lifecycle status of a registered engine.
func (f *Factory) SetStatus(typ api.EngineType, status api.LifecycleStatus) error {
	if !status.Valid() {
		return fmt.Errorf("engine %s: invalid lifecycle status %q", typ, status)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.entries[typ]
	if !ok {
		return &UnknownEngineError{Type: typ}
	}
	reg.desc.Status = status
	f.entries[typ] = reg
	return nil
}

// Verify checks that every declared dependency is registered.
func (f *Factory) Verify() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var errs []error
	for _, typ := range f.order {
		for _, dep := range f.entries[typ].desc.Dependencies {
			if _, ok := f.entries[dep]; !ok {
				errs = append(errs, fmt.Errorf("engine %s: dependency %s is not registered", typ, dep))
			}
		}
	}
	return errors.Join(errs...)
}

// Create returns a fresh engine of the given type bound to ref.
func (f *Factory) Create(typ api.EngineType, ref OrchestratorRef) (Engine, error) {
	f.mu.RLock()
	reg, ok := f.entries[typ]
	f.mu.RUnlock()
	if !ok {
		return nil, &UnknownEngineError{Type: typ}
	}
	if reg.desc.Status == api.LifecycleDisabled {
		return nil, fmt.Errorf("engine %s: %w", typ, ErrEngineDisabled)
	}
	e, err := reg.ctor(reg.desc, ref)
	if err != nil {
		return nil, fmt.Errorf("engine %s: construction failed: %w", typ, err)
	}
	return e, nil
}

// Has reports whether typ is registered.
func (f *Factory) Has(typ api.EngineType) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.entries[typ]
	return ok
}

// Descriptor returns the registered descriptor for typ.
func (f *Factory) Descriptor(typ api.EngineType) (api.EngineDescriptor, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	reg, ok := f.entries[typ]
	return reg.desc, ok
}

// EngineTypes returns the registered types in registration order.
func (f *Factory) EngineTypes() []api.EngineType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.order)
}

// Descriptors returns all registered descriptors in registration order.
func (f *Factory) Descriptors() []api.EngineDescriptor {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]api.EngineDescriptor, 0, len(f.order))
	for _, typ := range f.order {
		out = append(out, f.entries[typ].desc)
	}
	return out
}

// Factory itself satisfies OrchestratorRef.
var _ OrchestratorRef = (*Factory)(nil)
