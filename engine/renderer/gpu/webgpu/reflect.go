package webgpu

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// bindingDecl matches group, binding, optional address space, name and type in
// declarations like `@group(0) @binding(0) var<uniform> camera: Camera;`.
var bindingDecl = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

// ReflectBindGroups derives bind group layout descriptors from the resource
// declarations in WGSL source. Every entry gets the given visibility.
//
// Parameters:
//   - source: WGSL source
//   - visibility: the stage(s) the declarations are visible to
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group, entries sorted by binding
func ReflectBindGroups(source string, visibility wgpu.ShaderStage) map[int]wgpu.BindGroupLayoutDescriptor {
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	for _, m := range bindingDecl.FindAllStringSubmatch(stripComments(source), -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		entry := bindingEntry(uint32(binding), visibility, strings.TrimSpace(m[3]), strings.TrimSpace(m[5]))
		groups[group] = append(groups[group], entry)
	}

	out := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		slices.SortFunc(entries, func(a, b wgpu.BindGroupLayoutEntry) int {
			return int(a.Binding) - int(b.Binding)
		})
		out[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return out
}

// ReflectRecipes reflects the vertex and fragment stages of every WGSL recipe.
// SPIR-V recipes are skipped. The results are meant for WithBindGroupLayouts.
//
// Parameters:
//   - recipes: the recipes whose shaders share the pipeline layout
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: vertex stage declarations
//   - map[int]wgpu.BindGroupLayoutDescriptor: fragment stage declarations
func ReflectRecipes(recipes ...gpu.PipelineRecipe) (vertex, fragment map[int]wgpu.BindGroupLayoutDescriptor) {
	vertex = make(map[int]wgpu.BindGroupLayoutDescriptor)
	fragment = make(map[int]wgpu.BindGroupLayoutDescriptor)
	for _, r := range recipes {
		if r.Format != gpu.ShaderWGSL {
			continue
		}
		absorb(vertex, ReflectBindGroups(string(r.Vertex.Code), wgpu.ShaderStageVertex))
		absorb(fragment, ReflectBindGroups(string(r.Fragment.Code), wgpu.ShaderStageFragment))
	}
	return vertex, fragment
}

// absorb adds the bindings of src missing from dst. The first declaration of a
// binding wins.
func absorb(dst, src map[int]wgpu.BindGroupLayoutDescriptor) {
	for g, desc := range src {
		existing := dst[g]
		for _, e := range desc.Entries {
			if !slices.ContainsFunc(existing.Entries, func(x wgpu.BindGroupLayoutEntry) bool { return x.Binding == e.Binding }) {
				existing.Entries = append(existing.Entries, e)
			}
		}
		slices.SortFunc(existing.Entries, func(a, b wgpu.BindGroupLayoutEntry) int {
			return int(a.Binding) - int(b.Binding)
		})
		dst[g] = existing
	}
}

func bindingEntry(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: visibility}

	switch {
	case addressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case strings.HasPrefix(addressSpace, "storage"):
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(addressSpace, "read_write") {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case typeName == "sampler_comparison":
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case strings.HasPrefix(typeName, "texture_depth_"):
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case strings.HasPrefix(typeName, "texture_"):
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		entry.Texture.Multisampled = strings.HasPrefix(typeName, "texture_multisampled")
	}
	return entry
}

// stripComments removes line comments and (nested) block comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch source[i : i+2] {
			case "/*":
				depth++
				i++
				continue
			case "*/":
				if depth > 0 {
					depth--
				}
				i++
				continue
			case "//":
				if depth == 0 {
					for i < len(source) && source[i] != '\n' {
						i++
					}
					if i < len(source) {
						sb.WriteByte('\n')
					}
					continue
				}
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
