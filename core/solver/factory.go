package solver

import (
	"errors"
	"fmt"

	"github.com/kilianp07/caresched/core/factory"
)

// DefaultEngine is used when the configuration names none.
const DefaultEngine = "pseudobool"

// ErrUnknownEngine is returned for an unregistered engine type.
var ErrUnknownEngine = errors.New("unknown solver engine")

var engineRegistry = factory.NewRegistry[Engine]()

// RegisterEngine adds an engine factory identified by name.
func RegisterEngine(name string, f factory.Factory[Engine]) error {
	return engineRegistry.Register(name, f)
}

// NewEngine creates the engine named by cfg.Type.
func NewEngine(cfg factory.ModuleConfig) (Engine, error) {
	if cfg.Type == "" {
		cfg.Type = DefaultEngine
	}
	if !engineRegistry.Has(cfg.Type) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, cfg.Type)
	}
	return engineRegistry.Create(cfg)
}

// Engines lists registered engine names.
func Engines() []string { return engineRegistry.Names() }
