package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"golang.org/x/sync/errgroup"
)

// ErrPipelineNotFound is wrapped when a name was never registered.
var ErrPipelineNotFound = errors.New("pipeline not found in cache")

type cache struct {
	mu      *sync.RWMutex
	backend gpu.Backend

	recipes map[string]gpu.PipelineRecipe
	built   map[string]gpu.Pipeline
}

// Cache maps pipeline names to built pipelines. It keeps every recipe so the
// whole set can be rebuilt after a surface change or a shader reload.
// Lookups are safe from any goroutine; Register, RebuildAll, InvalidateAll and
// Destroy must only run while no frame is recording.
type Cache interface {
	// Register validates and builds recipes, caching them by name. Names that are
	// already registered are skipped to avoid duplicate GPU resource creation;
	// use Replace to change a registered recipe.
	//
	// Parameters:
	//   - recipes: the recipes to register
	//
	// Returns:
	//   - error: an error if validation or pipeline creation fails
	Register(recipes ...gpu.PipelineRecipe) error

	// Replace swaps in new recipes for their names, registering names not seen
	// before. Nothing is built: the next RebuildAll (or a Get of a new name)
	// builds from the replaced recipes, which is how edited shaders are reloaded.
	//
	// Parameters:
	//   - recipes: the recipes to store
	//
	// Returns:
	//   - error: a validation failure, in which case no recipe is replaced
	Replace(recipes ...gpu.PipelineRecipe) error

	// Get returns the pipeline built for name, building it first if it was invalidated.
	//
	// Parameters:
	//   - name: the recipe name
	//
	// Returns:
	//   - gpu.Pipeline: the pipeline
	//   - error: ErrPipelineNotFound, or a build failure
	Get(name string) (gpu.Pipeline, error)

	// MustGet is Get for callers that cannot proceed without the pipeline. A
	// missing pipeline is fatal: the available names are logged and nil is
	// returned if the fatal handler returns.
	MustGet(name string) gpu.Pipeline

	// RebuildAll rebuilds every registered recipe concurrently. On failure the
	// previously built pipelines stay in place.
	//
	// Returns:
	//   - error: the first build failure
	RebuildAll() error

	// InvalidateAll destroys every built pipeline but keeps the recipes; the
	// next Get rebuilds lazily.
	InvalidateAll()

	// Names returns the registered recipe names, sorted.
	Names() []string

	// Recipe returns the recipe registered under name.
	Recipe(name string) (gpu.PipelineRecipe, bool)

	// Destroy releases every built pipeline and forgets all recipes.
	Destroy()
}

var _ Cache = &cache{}

// NewCache creates an empty cache building against backend.
//
// Parameters:
//   - backend: the device pipelines are built on
//
// Returns:
//   - Cache: the cache
func NewCache(backend gpu.Backend) Cache {
	return &cache{
		mu:      &sync.RWMutex{},
		backend: backend,
		recipes: make(map[string]gpu.PipelineRecipe),
		built:   make(map[string]gpu.Pipeline),
	}
}

func (c *cache) Register(recipes ...gpu.PipelineRecipe) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range recipes {
		if _, exists := c.recipes[r.Name]; exists {
			continue
		}
		p, err := c.backend.CreatePipeline(r)
		if err != nil {
			return fmt.Errorf("build pipeline %q: %w", r.Name, err)
		}
		c.recipes[r.Name] = r
		c.built[r.Name] = p
	}
	return nil
}

func (c *cache) Replace(recipes ...gpu.PipelineRecipe) error {
	for _, r := range recipes {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("replace pipeline %q: %w", r.Name, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range recipes {
		c.recipes[r.Name] = r
	}
	return nil
}

func (c *cache) Get(name string) (gpu.Pipeline, error) {
	c.mu.RLock()
	p, ok := c.built[name]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.built[name]; ok {
		return p, nil
	}
	r, ok := c.recipes[name]
	if !ok {
		return nil, fmt.Errorf("render pipeline %q: %w", name, ErrPipelineNotFound)
	}
	p, err := c.backend.CreatePipeline(r)
	if err != nil {
		return nil, fmt.Errorf("build pipeline %q: %w", name, err)
	}
	c.built[name] = p
	return p, nil
}

func (c *cache) MustGet(name string) gpu.Pipeline {
	p, err := c.Get(name)
	if err != nil {
		common.Fatal(err, slog.Any("available", c.Names()))
		return nil
	}
	return p
}

func (c *cache) RebuildAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := c.sortedNames()
	fresh := make([]gpu.Pipeline, len(names))

	var g errgroup.Group
	for i, name := range names {
		recipe := c.recipes[name]
		g.Go(func() error {
			p, err := c.backend.CreatePipeline(recipe)
			if err != nil {
				return fmt.Errorf("rebuild pipeline %q: %w", recipe.Name, err)
			}
			fresh[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, p := range fresh {
			if p != nil {
				p.Destroy()
			}
		}
		return err
	}

	for i, name := range names {
		if old, ok := c.built[name]; ok {
			old.Destroy()
		}
		c.built[name] = fresh[i]
	}
	common.Logger().Info("pipelines rebuilt", slog.Int("count", len(names)))
	return nil
}

func (c *cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, p := range c.built {
		p.Destroy()
		delete(c.built, name)
	}
}

func (c *cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedNames()
}

func (c *cache) sortedNames() []string {
	names := make([]string, 0, len(c.recipes))
	for name := range c.recipes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *cache) Recipe(name string) (gpu.PipelineRecipe, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.recipes[name]
	return r, ok
}

func (c *cache) Destroy() {
	c.InvalidateAll()
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.recipes)
}
