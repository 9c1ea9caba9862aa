package render

import (
	"html/template"
	"sync"

	"github.com/rubiojr/carefinder/pkg/provider"
)

// RendererRegistry holds the provider renderers plus a fallback used when no
// specific renderer claims a provider.
type RendererRegistry struct {
	mu              sync.RWMutex
	renderers       []ProviderRenderer
	defaultRenderer ProviderRenderer
}

// NewRendererRegistry creates an empty registry with a default fallback renderer.
func NewRendererRegistry() *RendererRegistry {
	return &RendererRegistry{
		renderers:       make([]ProviderRenderer, 0),
		defaultRenderer: NewDefaultRenderer(),
	}
}

// GetGlobalRegistry builds a registry from all auto-registered renderers.
// Each call returns a fresh registry snapshot (registration happens via init()).
func GetGlobalRegistry() *RendererRegistry {
	reg := NewRendererRegistry()
	for _, r := range GetRegisteredRenderers() {
		reg.Register(r)
	}
	return reg
}

func (r *RendererRegistry) Register(renderer ProviderRenderer) {
	if renderer == nil {
		return
	}
	r.mu.Lock()
	r.renderers = append(r.renderers, renderer)
	r.mu.Unlock()
}

// Render selects the first renderer whose CanRender returns true.
// Falls back to the default renderer if none match.
func (r *RendererRegistry) Render(p provider.Provider) template.HTML {
	if renderer := r.GetRenderer(p); renderer != nil {
		return renderer.Render(p)
	}

	r.mu.RLock()
	def := r.defaultRenderer
	r.mu.RUnlock()
	if def != nil {
		return def.Render(p)
	}
	return template.HTML("<!-- no renderer available -->")
}

// GetRenderer returns the first matching renderer, or nil.
func (r *RendererRegistry) GetRenderer(p provider.Provider) ProviderRenderer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, renderer := range r.renderers {
		if renderer.CanRender(p) {
			return renderer
		}
	}
	return nil
}

// ListRendererTypes returns the provider types handled by registered renderers.
func (r *RendererRegistry) ListRendererTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.renderers))
	seen := make(map[string]struct{})
	for _, ren := range r.renderers {
		t := ren.ProviderType()
		if t == "" {
			continue
		}
		if _, exists := seen[t]; !exists {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func (r *RendererRegistry) SetDefaultRenderer(pr ProviderRenderer) {
	r.mu.Lock()
	r.defaultRenderer = pr
	r.mu.Unlock()
}
