// Package factory is a small generic registry that builds modules from
// configuration. A module is named by a type string and carries a map of raw
// settings that its factory decodes into a typed struct with Decode.
//
//	engines := factory.NewRegistry[solver.Engine]()
//	_ = engines.Register("simplex", func(conf map[string]any) (solver.Engine, error) {
//		var c struct {
//			MaxNodes int `json:"max_nodes"`
//		}
//		if err := factory.Decode(conf, &c); err != nil {
//			return nil, err
//		}
//		return simplex.New(simplex.Config{MaxNodes: c.MaxNodes}), nil
//	})
//	e, err := engines.Create(factory.ModuleConfig{Type: "simplex"})
package factory
