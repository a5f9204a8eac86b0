package machine

import (
	"sync"

	"github.com/ritzau/flow-editor/pkg/model"
)

// Canvas is the live handle to the rendering surface
type Canvas interface {
	ScreenToFlowPosition(p model.XYPosition) model.XYPosition
	Viewport() model.Viewport
}

// ViewportCanvas is a Canvas driven by viewport reports from a remote
// rendering surface. Safe for concurrent use.
type ViewportCanvas struct {
	mu sync.RWMutex
	vp model.Viewport
}

// NewViewportCanvas creates a canvas with the given initial viewport
func NewViewportCanvas(vp model.Viewport) *ViewportCanvas {
	return &ViewportCanvas{vp: vp}
}

// SetViewport records a pan or zoom
func (c *ViewportCanvas) SetViewport(vp model.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vp = vp
}

func (c *ViewportCanvas) Viewport() model.Viewport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vp
}

func (c *ViewportCanvas) ScreenToFlowPosition(p model.XYPosition) model.XYPosition {
	return c.Viewport().ScreenToFlowPosition(p)
}
