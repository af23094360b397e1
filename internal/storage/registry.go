// Package storage identifies the containers players interact with.
//
// Optional integrations (modded chests, storage networks) are detected once
// at startup by probes. Each available integration contributes an Adapter;
// containers no adapter recognizes describe as unknown.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// KindUnknown is reported for containers no adapter recognizes.
const KindUnknown = "unknown"

// ErrUnavailable is returned by a Probe whose integration is not installed.
var ErrUnavailable = errors.New("storage integration not available")

// Descriptor identifies a storage container.
type Descriptor struct {
	Kind string `json:"storage_kind"`
	ID   string `json:"storage_id"`
}

// Adapter describes containers belonging to one integration.
type Adapter interface {
	Name() string
	// Describe returns false when container does not belong to the adapter.
	Describe(container any) (Descriptor, bool)
}

// Container is implemented by host containers that can describe themselves.
type Container interface {
	StorageKind() string
	StorageID() string
}

// Probe checks for an optional integration and builds its adapter.
type Probe func() (Adapter, error)

// Func builds an adapter from a typed describe function. Containers that
// are not a T are left to the next adapter.
func Func[T any](name string, describe func(T) Descriptor) Adapter {
	return funcAdapter[T]{name: name, describe: describe}
}

type funcAdapter[T any] struct {
	name     string
	describe func(T) Descriptor
}

func (a funcAdapter[T]) Name() string { return a.name }

func (a funcAdapter[T]) Describe(container any) (Descriptor, bool) {
	c, ok := container.(T)
	if !ok {
		return Descriptor{}, false
	}
	return a.describe(c), true
}

// containerAdapter handles anything implementing Container.
type containerAdapter struct{}

func (containerAdapter) Name() string { return "builtin" }

func (containerAdapter) Describe(container any) (Descriptor, bool) {
	c, ok := container.(Container)
	if !ok {
		return Descriptor{}, false
	}
	return Descriptor{Kind: c.StorageKind(), ID: c.StorageID()}, true
}

// Registry holds the adapters detected at startup.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
	fallback Adapter
	logger   *slog.Logger
}

// NewRegistry creates a registry with only the built-in adapter.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		fallback: containerAdapter{},
		logger:   logger.With("component", "StorageRegistry"),
	}
}

// Register adds an adapter ahead of the built-in one.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters = append(r.adapters, a)
}

// Detect runs probes and registers each available adapter. Unavailable
// integrations are skipped; any other probe failure is returned after all
// probes ran.
func (r *Registry) Detect(probes ...Probe) error {
	var errs []error
	for i, probe := range probes {
		a, err := probe()
		switch {
		case errors.Is(err, ErrUnavailable):
			r.logger.Debug("integration not present", "probe", i, "reason", err)
		case err != nil:
			errs = append(errs, fmt.Errorf("probe %d: %w", i, err))
			r.logger.Error("integration probe failed", "probe", i, "error", err)
		case a == nil:
			errs = append(errs, fmt.Errorf("probe %d returned no adapter", i))
		default:
			r.Register(a)
			r.logger.Info("integration detected", "adapter", a.Name())
		}
	}
	return errors.Join(errs...)
}

// Describe identifies container using the first adapter that accepts it.
func (r *Registry) Describe(container any) Descriptor {
	if container == nil {
		return Descriptor{Kind: KindUnknown}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.adapters {
		if d, ok := a.Describe(container); ok {
			return normalize(d)
		}
	}
	if d, ok := r.fallback.Describe(container); ok {
		return normalize(d)
	}
	return Descriptor{Kind: KindUnknown}
}

// Adapters returns registered adapter names in lookup order.
func (r *Registry) Adapters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters)+1)
	for _, a := range r.adapters {
		names = append(names, a.Name())
	}
	return append(names, r.fallback.Name())
}

func normalize(d Descriptor) Descriptor {
	if d.Kind == "" {
		d.Kind = KindUnknown
	}
	return d
}
