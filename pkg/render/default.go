package render

import (
	"html/template"
	"strings"

	"github.com/rubiojr/carefinder/pkg/provider"
)

// defaultTemplate is the card used when no specific renderer claims a
// provider.
var defaultTemplate = `
<article class="provider-card" data-id="{{.Provider.ID}}">
  <header class="pc-header">
    <h3 class="pc-name">{{.Provider.Name}}</h3>
    {{with .Provider.Type}}<span class="pc-type">{{.}}</span>{{end}}
  </header>
  <div class="pc-body">
    <p class="pc-place">{{.Provider.Region}}{{with .Provider.Ward}} &middot; {{.}}{{end}}</p>
    {{with .Provider.Address}}<p class="pc-address">{{.}}</p>{{end}}
    <p class="pc-price">{{formatPrice .Provider}}</p>
    {{with stars .Provider.Rating}}<p class="pc-rating" title="{{$.Provider.Rating}}">{{.}}</p>{{end}}
    {{with formatDistance .Provider.Distance}}<p class="pc-distance">{{.}}</p>{{end}}
    {{if .Provider.AgeRanges}}<p class="pc-ages">Ages: {{join .Provider.AgeRanges ", "}}</p>{{end}}
    {{if .Provider.Vacancies}}<p class="pc-vacancies">Openings: {{join .Provider.Vacancies ", "}}</p>{{end}}
    <p class="pc-badges">
      {{if .Provider.CWELCC}}<span class="badge">CWELCC</span>{{end}}
      {{if .Provider.Subsidy}}<span class="badge">Fee subsidy</span>{{end}}
    </p>
    {{with .Provider.Description}}<p class="pc-description">{{truncate . 240}}</p>{{end}}
  </div>
  {{if .Links}}
  <footer class="pc-links">
    {{range .Links}}<a class="pc-{{.Kind}}" href="{{.Href}}" rel="noopener noreferrer">{{.Label}}</a>{{end}}
  </footer>
  {{end}}
</article>
`

// DefaultRenderer renders any provider.
type DefaultRenderer struct {
	tmpl *template.Template
}

func NewDefaultRenderer() *DefaultRenderer {
	return &DefaultRenderer{tmpl: mustCard("default_renderer", defaultTemplate)}
}

func (r *DefaultRenderer) Render(p provider.Provider) template.HTML {
	return execute(r.tmpl, p)
}

// CanRender always returns true (catch-all fallback).
func (r *DefaultRenderer) CanRender(p provider.Provider) bool { return true }

func (r *DefaultRenderer) ProviderType() string { return "" }

func mustCard(name, text string) *template.Template {
	t, err := template.New(name).Funcs(GetTemplateFuncs()).Parse(text)
	if err != nil {
		// Keep a minimal card rather than panicking downstream.
		fallback, _ := template.New("fallback").Parse("<article class=\"provider-card\">{{.Provider.Name}}</article>")
		return fallback
	}
	return t
}

func execute(t *template.Template, p provider.Provider) template.HTML {
	data := TemplateData{
		Provider: p,
		Links:    ContactLinks(p),
	}
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return template.HTML("<!-- provider renderer error -->")
	}
	return template.HTML(buf.String())
}
