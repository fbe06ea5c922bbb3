package factory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// ModuleConfig selects an implementation by type and carries its raw settings.
type ModuleConfig struct {
	Type string         `json:"type" yaml:"type"`
	Conf map[string]any `json:"conf" yaml:"conf"`
}

// Factory constructs an implementation of T from raw settings.
type Factory[T any] func(map[string]any) (T, error)

// Registry stores factories keyed by module type.
type Registry[T any] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry returns an empty factory registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{factories: make(map[string]Factory[T])}
}

// Register adds a factory for the given type name.
func (r *Registry[T]) Register(name string, f Factory[T]) error {
	if f == nil {
		return fmt.Errorf("factory nil for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("factory already registered for %s", name)
	}
	r.factories[name] = f
	return nil
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered type names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Create instantiates a module from its configuration.
func (r *Registry[T]) Create(cfg ModuleConfig) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown module type %s", cfg.Type)
	}
	return f(cfg.Conf)
}

// Decode fills out from raw settings using json tags. String durations such
// as "5s" decode into time.Duration fields.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
