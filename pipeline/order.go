package pipeline

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"

	"github.com/slipway-io/slipway/config"
)

// BuildOrder validates the dependency structure of a definition and
// returns the execution order: topological, with definition order
// preserved among independent stages. Duplicate names, dependencies on
// unknown stages, and cycles are all rejected here, before anything runs.
func BuildOrder(def *config.Definition) ([]string, error) {
	idx := make(map[string]int, len(def.Stages))
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for i, s := range def.Stages {
		if _, dup := idx[s.Name]; dup {
			return nil, fmt.Errorf("duplicate stage name %q", s.Name)
		}
		idx[s.Name] = i
		if err := g.AddVertex(s.Name); err != nil {
			return nil, fmt.Errorf("adding stage %q: %w", s.Name, err)
		}
	}

	for _, s := range def.Stages {
		for _, dep := range s.DependsOn {
			if dep == s.Name {
				return nil, fmt.Errorf("stage %q depends on itself", s.Name)
			}
			err := g.AddEdge(dep, s.Name)
			switch {
			case err == nil:
			case errors.Is(err, graph.ErrEdgeAlreadyExists):
				// Duplicate depends_on entry, harmless.
			case errors.Is(err, graph.ErrVertexNotFound):
				return nil, fmt.Errorf("stage %q depends on unknown stage %q", s.Name, dep)
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return nil, fmt.Errorf("dependency of stage %q on %q creates a cycle", s.Name, dep)
			default:
				return nil, fmt.Errorf("adding dependency %s -> %s: %w", dep, s.Name, err)
			}
		}
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		return idx[a] < idx[b]
	})
	if err != nil {
		return nil, fmt.Errorf("ordering stages: %w", err)
	}
	return order, nil
}
