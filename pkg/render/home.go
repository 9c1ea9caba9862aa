package render

import (
	"html/template"
	"strings"

	"github.com/rubiojr/carefinder/pkg/provider"
)

func init() {
	RegisterRenderer(NewHomeRenderer())
}

// Home childcare operators are people, not organizations: no street address
// is shown and contact goes through the listed phone or email.
var homeTemplate = `
<article class="provider-card provider-home" data-id="{{.Provider.ID}}">
  <header class="pc-header">
    <h3 class="pc-name">{{.Provider.Name}}</h3>
    <span class="pc-type">Home child care</span>
  </header>
  <div class="pc-body">
    <p class="pc-place">{{.Provider.Region}}{{with .Provider.Ward}} &middot; {{.}}{{end}}</p>
    <p class="pc-price">{{formatPrice .Provider}}</p>
    {{with stars .Provider.Rating}}<p class="pc-rating">{{.}}</p>{{end}}
    {{if .Provider.Vacancies}}<p class="pc-vacancies">Openings: {{join .Provider.Vacancies ", "}}</p>{{end}}
    <p class="pc-badges">
      {{if .Provider.CWELCC}}<span class="badge">CWELCC</span>{{end}}
      {{if .Provider.Subsidy}}<span class="badge">Fee subsidy</span>{{end}}
    </p>
  </div>
  {{if .Links}}
  <footer class="pc-links">
    {{range .Links}}{{if ne .Kind "website"}}<a class="pc-{{.Kind}}" href="{{.Href}}">{{.Label}}</a>{{end}}{{end}}
  </footer>
  {{end}}
</article>
`

type HomeRenderer struct {
	tmpl *template.Template
}

func NewHomeRenderer() *HomeRenderer {
	return &HomeRenderer{tmpl: mustCard("home_renderer", homeTemplate)}
}

func (r *HomeRenderer) Render(p provider.Provider) template.HTML {
	return execute(r.tmpl, p)
}

func (r *HomeRenderer) CanRender(p provider.Provider) bool {
	return strings.EqualFold(strings.TrimSpace(p.Type), r.ProviderType())
}

func (r *HomeRenderer) ProviderType() string { return "Home" }
