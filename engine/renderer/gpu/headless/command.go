package headless

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
)

// Op identifies a recorded command.
type Op int

const (
	OpBeginRenderPass Op = iota
	OpEndRenderPass
	OpBindPipeline
	OpBindDescriptorSets
	OpBindVertexBuffers
	OpBindIndexBuffer
	OpSetViewport
	OpSetScissor
	OpDraw
	OpDrawIndexed
	OpBarrier
)

var opNames = [...]string{
	OpBeginRenderPass:    "begin_render_pass",
	OpEndRenderPass:      "end_render_pass",
	OpBindPipeline:       "bind_pipeline",
	OpBindDescriptorSets: "bind_descriptor_sets",
	OpBindVertexBuffers:  "bind_vertex_buffers",
	OpBindIndexBuffer:    "bind_index_buffer",
	OpSetViewport:        "set_viewport",
	OpSetScissor:         "set_scissor",
	OpDraw:               "draw",
	OpDrawIndexed:        "draw_indexed",
	OpBarrier:            "barrier",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Command is one entry in a command buffer log. Only the fields relevant to
// Op are populated.
type Command struct {
	Op       Op
	Pipeline string

	// Count is the vertex or index count of a draw, or the number of bound sets/buffers.
	Count         uint32
	Instances     uint32
	First         uint32
	VertexOffset  int32
	FirstInstance uint32

	Image    uint32
	Extent   gpu.Extent2D
	Viewport gpu.Viewport
	Scissor  gpu.Rect2D
	Barrier  gpu.Barrier

	// Fragment is the position of the fragment buffer this command was merged
	// from, or -1 when it was recorded directly into the primary.
	Fragment int
}

func (c Command) String() string {
	switch c.Op {
	case OpDraw, OpDrawIndexed:
		return fmt.Sprintf("%s(%s count=%d instances=%d first_instance=%d frag=%d)",
			c.Op, c.Pipeline, c.Count, c.Instances, c.FirstInstance, c.Fragment)
	case OpBindPipeline:
		return fmt.Sprintf("%s(%s frag=%d)", c.Op, c.Pipeline, c.Fragment)
	default:
		return fmt.Sprintf("%s(frag=%d)", c.Op, c.Fragment)
	}
}

// IsDraw reports whether the command is a draw call.
func (c Command) IsDraw() bool {
	return c.Op == OpDraw || c.Op == OpDrawIndexed
}
