// Package semantic supplies the precomputed query-expansion neighbors. The
// discovery of which terms are related happens outside this system; the
// engine only consumes a term-to-neighbors mapping and resolves each
// neighbor's statistics through the loaded dictionary.
package semantic

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Expander yields the neighbor terms of a query term. Implementations must
// be safe for concurrent use.
type Expander interface {
	Neighbors(term string) []string
}

// StaticExpander serves neighbors from an in-memory table loaded once from a
// JSON file of the form {"term": ["neighbor", ...], ...}.
type StaticExpander struct {
	neighbors map[string][]string
}

// LoadStatic reads the neighbor table from path.
func LoadStatic(path string) (*StaticExpander, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading expansion file %s: %w", path, err)
	}
	var table map[string][]string
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing expansion file %s: %w", path, err)
	}
	slog.Default().With("component", "semantic").Info("expansion table loaded",
		"path", path,
		"terms", len(table),
	)
	return &StaticExpander{neighbors: table}, nil
}

// NewStatic wraps an already-built neighbor table.
func NewStatic(table map[string][]string) *StaticExpander {
	return &StaticExpander{neighbors: table}
}

// Neighbors returns the neighbor terms of term, or nil when none are known.
func (e *StaticExpander) Neighbors(term string) []string {
	return e.neighbors[term]
}
