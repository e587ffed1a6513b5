// Package scene is the read-only per-frame view the renderer draws from, plus
// a reference store that produces it.
package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/light"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

// MeshRenderer is the render state of one item: which pipeline draws it, the
// geometry, and the material bindings.
type MeshRenderer struct {
	Pipeline string
	Mesh     gpu.Mesh
	Bindings []gpu.DescriptorSet
	Visible  bool
}

// Item is one drawable in a frame.
type Item struct {
	ID        uint64
	Transform common.Mat4
	Renderer  MeshRenderer
}

// Group is a batch of items sharing a pipeline.
type Group struct {
	Pipeline string
	Items    []Item
}

// VisibilityFunc decides whether an item is drawn this frame.
type VisibilityFunc func(item *Item) bool

// Snapshot is the frame's view of the scene. Everything reachable from it is
// read-only until Release, and the store it came from does not change in between.
type Snapshot struct {
	Groups   []Group
	Camera   camera.GPUCameraUniform
	Lighting light.GPULightingUniform

	sizes   []int
	visible VisibilityFunc
	release func()
}

// Sizes returns the item count of each group, in group order.
func (s *Snapshot) Sizes() []int {
	return s.sizes
}

// Total returns the number of items across all groups.
func (s *Snapshot) Total() int {
	n := 0
	for _, v := range s.sizes {
		n += v
	}
	return n
}

// Item returns item local of group.
func (s *Snapshot) Item(group, local int) *Item {
	return &s.Groups[group].Items[local]
}

// Transform returns the model matrix of item local of group.
func (s *Snapshot) Transform(group, local int) common.Mat4 {
	return s.Groups[group].Items[local].Transform
}

// Visible reports whether item should be drawn, combining its own flag with the
// store's visibility predicate.
func (s *Snapshot) Visible(item *Item) bool {
	if !item.Renderer.Visible {
		return false
	}
	return s.visible == nil || s.visible(item)
}

// Release ends the read window. Safe to call more than once.
func (s *Snapshot) Release() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

// NewSnapshot builds a Snapshot over groups that is not backed by a store.
// Hosts with their own scene representation use it to implement Source.
//
// Parameters:
//   - groups: the item groups, in draw order
//   - release: called once by Release, may be nil
//
// Returns:
//   - *Snapshot: the snapshot
func NewSnapshot(groups []Group, release func()) *Snapshot {
	s := &Snapshot{Groups: groups, release: release, sizes: make([]int, len(groups))}
	for i, g := range groups {
		s.sizes[i] = len(g.Items)
	}
	return s
}

// Source produces one Snapshot per frame.
type Source interface {
	// Snapshot captures the current frame's items, camera and lighting.
	//
	// Returns:
	//   - *Snapshot: the snapshot; the caller must Release it
	Snapshot() *Snapshot
}

type location struct {
	group int
	index int
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.RWMutex

	name   string
	groups []Group
	byName map[string]int
	index  map[uint64]location
	nextID uint64

	cam      camera.Camera
	lighting *light.Lighting
	visible  VisibilityFunc
}

// Scene is a Source backed by an in-memory store grouping items by pipeline.
// Mutations block while a snapshot is held.
type Scene interface {
	Source

	// Name returns the scene name.
	Name() string

	// Add inserts an item and returns its ID.
	//
	// Parameters:
	//   - transform: the model matrix
	//   - r: the render state
	//
	// Returns:
	//   - uint64: the new item's ID
	Add(transform common.Mat4, r MeshRenderer) uint64

	// Remove deletes the item with id. The last item of its group takes its place.
	Remove(id uint64)

	// Update replaces the transform of item id.
	//
	// Returns:
	//   - bool: false if no such item exists
	Update(id uint64, transform common.Mat4) bool

	// SetVisible toggles the item's own visibility flag.
	SetVisible(id uint64, visible bool) bool

	// Count returns the number of items.
	Count() int

	// Camera returns the camera snapshots are taken with.
	Camera() camera.Camera

	// Lighting returns the light set snapshots are taken with.
	Lighting() *light.Lighting

	// SetVisibility installs the per-item visibility predicate, nil to draw everything visible.
	SetVisibility(fn VisibilityFunc)
}

var _ Scene = &scene{}

// NewScene creates an empty scene with a default camera and no lights.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:       &sync.RWMutex{},
		name:     name,
		byName:   make(map[string]int),
		index:    make(map[uint64]location),
		nextID:   1,
		cam:      camera.NewCamera(),
		lighting: light.NewLighting([3]float32{0.1, 0.1, 0.1}),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Add(transform common.Mat4, r MeshRenderer) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byName[r.Pipeline]
	if !ok {
		g = len(s.groups)
		s.groups = append(s.groups, Group{Pipeline: r.Pipeline})
		s.byName[r.Pipeline] = g
	}

	id := s.nextID
	s.nextID++
	s.groups[g].Items = append(s.groups[g].Items, Item{ID: id, Transform: transform, Renderer: r})
	s.index[id] = location{group: g, index: len(s.groups[g].Items) - 1}
	return id
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.index[id]
	if !ok {
		return
	}
	delete(s.index, id)

	items := s.groups[loc.group].Items
	last := len(items) - 1
	if loc.index != last {
		items[loc.index] = items[last]
		s.index[items[loc.index].ID] = loc
	}
	s.groups[loc.group].Items = items[:last]
}

func (s *scene) Update(id uint64, transform common.Mat4) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.index[id]
	if !ok {
		return false
	}
	s.groups[loc.group].Items[loc.index].Transform = transform
	return true
}

func (s *scene) SetVisible(id uint64, visible bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.index[id]
	if !ok {
		return false
	}
	s.groups[loc.group].Items[loc.index].Renderer.Visible = visible
	return true
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

func (s *scene) Camera() camera.Camera {
	return s.cam
}

func (s *scene) Lighting() *light.Lighting {
	return s.lighting
}

func (s *scene) SetVisibility(fn VisibilityFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = fn
}

// Snapshot read-locks the store; it stays locked until the snapshot is released.
func (s *scene) Snapshot() *Snapshot {
	s.mu.RLock()
	snap := NewSnapshot(s.groups, s.mu.RUnlock)
	snap.visible = s.visible
	snap.Camera = s.cam.Uniform()
	snap.Lighting = s.lighting.Uniform()
	return snap
}
