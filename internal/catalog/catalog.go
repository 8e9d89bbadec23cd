// Package catalog maps public model names to provider routes, costs and
// per-model input rules. The table starts from a built-in set and can be
// replaced from YAML on disk or in object storage without a restart.
package catalog

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/genmedia-api/internal/models"
)

// File is the YAML document shape for a model catalog.
type File struct {
	Models []Route `yaml:"models"`
}

// Options configures a Catalog.
type Options struct {
	// DefaultCost is charged for a model with no route cost and no override.
	DefaultCost int
	// CostOverrides replace route costs by model name.
	CostOverrides map[string]int
	// Routes seeds the table. Nil means the built-in routes.
	Routes []Route
}

// Catalog is the model dispatch table. Safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	routes    map[string]*Route
	overrides map[string]int
	defCost   int
}

// New creates a catalog. It panics only if the built-in table is malformed.
func New(opts Options) *Catalog {
	c := &Catalog{
		overrides: make(map[string]int, len(opts.CostOverrides)),
		defCost:   opts.DefaultCost,
	}
	for model, cost := range opts.CostOverrides {
		c.overrides[model] = cost
	}
	routes := opts.Routes
	if routes == nil {
		routes = Builtin()
	}
	if err := c.replace(routes); err != nil {
		panic(fmt.Sprintf("catalog: invalid routes: %v", err))
	}
	return c
}

// Resolve returns the route for model, which must serve kind.
func (c *Catalog) Resolve(kind models.JobKind, model string) (*Route, error) {
	c.mu.RLock()
	r, ok := c.routes[model]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, model)
	}
	if r.Kind != kind {
		return nil, fmt.Errorf("%w: %s does not generate %s", ErrUnsupportedModel, model, kind)
	}
	cp := *r
	return &cp, nil
}

// Cost returns the credit cost of one job on model. Unknown models cost the
// default, so pricing never blocks a request that routing would accept.
func (c *Catalog) Cost(model string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cost, ok := c.overrides[model]; ok {
		return cost
	}
	if r, ok := c.routes[model]; ok && r.Cost > 0 {
		return r.Cost
	}
	return c.defCost
}

// List returns every route sorted by kind then model, with effective costs.
func (c *Catalog) List() []Route {
	c.mu.RLock()
	out := make([]Route, 0, len(c.routes))
	for _, r := range c.routes {
		out = append(out, *r)
	}
	c.mu.RUnlock()

	for i := range out {
		out[i].Cost = c.Cost(out[i].Model)
	}
	slices.SortFunc(out, func(a, b Route) int {
		if k := strings.Compare(string(a.Kind), string(b.Kind)); k != 0 {
			return k
		}
		return strings.Compare(a.Model, b.Model)
	})
	return out
}

// Len returns the number of routes.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.routes)
}

// LoadFile replaces the table from a YAML file. Environment variables in the
// file are expanded before parsing.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return c.Reload(data)
}

// Reload replaces the table from YAML bytes. The current table is kept on error.
func (c *Catalog) Reload(data []byte) error {
	f, err := Parse(data)
	if err != nil {
		return err
	}
	return c.replace(f.Models)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	if len(f.Models) == 0 {
		return nil, fmt.Errorf("catalog: at least one model is required")
	}
	return &f, nil
}

func (c *Catalog) replace(routes []Route) error {
	next := make(map[string]*Route, len(routes))
	for i := range routes {
		r := routes[i]
		if err := r.check(); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		if _, dup := next[r.Model]; dup {
			return fmt.Errorf("catalog: duplicate model %s", r.Model)
		}
		next[r.Model] = &r
	}

	c.mu.Lock()
	c.routes = next
	c.mu.Unlock()
	return nil
}
