// Package render turns providers into result cards for the server rendered
// search page. Renderers are picked by provider type; anything unclaimed gets
// the default card.
package render

import (
	"html"
	"html/template"

	"github.com/rubiojr/carefinder/pkg/provider"
)

// Service renders providers to HTML. It is safe for concurrent use.
type Service struct {
	registry *RendererRegistry
}

// NewService creates a Service over reg. A nil registry renders every
// provider as an escaped name only.
func NewService(reg *RendererRegistry) *Service {
	return &Service{registry: reg}
}

// New is an alias for NewService for brevity in call sites.
func New(reg *RendererRegistry) *Service {
	return NewService(reg)
}

// Render returns the card for p and its contact links.
func (s *Service) Render(p provider.Provider) (template.HTML, []Link) {
	var rendered template.HTML
	if s.registry != nil {
		rendered = s.registry.Render(p)
	} else {
		rendered = template.HTML("<article class=\"provider-card\">" + html.EscapeString(p.Name) + "</article>")
	}
	return rendered, ContactLinks(p)
}

// RenderAll renders providers in order.
func (s *Service) RenderAll(ps []provider.Provider) []template.HTML {
	out := make([]template.HTML, 0, len(ps))
	for _, p := range ps {
		card, _ := s.Render(p)
		out = append(out, card)
	}
	return out
}
