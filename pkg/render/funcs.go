package render

import (
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rubiojr/carefinder/pkg/provider"
)

// ProviderRenderer turns a provider into a result card. Implementations decide
// if they handle a provider (usually by its type) and return trusted HTML.
type ProviderRenderer interface {
	Render(p provider.Provider) template.HTML
	CanRender(p provider.Provider) bool
	ProviderType() string
}

type TemplateData struct {
	Provider provider.Provider
	Links    []Link
}

// Link is a way to reach a provider. Href is only ever built from an
// http(s), mailto or tel scheme.
type Link struct {
	Kind  string
	Label string
	Href  template.URL
}

var globalRenderers []ProviderRenderer

func RegisterRenderer(renderer ProviderRenderer) {
	if renderer == nil {
		return
	}
	globalRenderers = append(globalRenderers, renderer)
}

func GetRegisteredRenderers() []ProviderRenderer {
	out := make([]ProviderRenderer, len(globalRenderers))
	copy(out, globalRenderers)
	return out
}

// ContactLinks lists the website, email and phone of p, skipping blanks.
func ContactLinks(p provider.Provider) []Link {
	var links []Link
	if w := strings.TrimSpace(p.Website); w != "" {
		href := w
		if !strings.HasPrefix(w, "http://") && !strings.HasPrefix(w, "https://") {
			href = "https://" + w
		}
		links = append(links, Link{Kind: "website", Label: strings.TrimRight(w, "/"), Href: template.URL(href)})
	}
	if e := strings.TrimSpace(p.Email); e != "" {
		links = append(links, Link{Kind: "email", Label: e, Href: template.URL("mailto:" + e)})
	}
	if ph := strings.TrimSpace(p.Phone); ph != "" {
		links = append(links, Link{Kind: "phone", Label: ph, Href: template.URL("tel:" + strings.NewReplacer(" ", "", "(", "", ")", "", "-", "").Replace(ph))})
	}
	return links
}

// FormatPrice shows the published price, or a placeholder when the provider
// does not publish one.
func FormatPrice(p provider.Provider) string {
	if p.PriceValue() == 0 {
		if strings.TrimSpace(p.Price) != "" {
			return p.Price
		}
		return "Contact for pricing"
	}
	return p.Price
}

// Stars renders a 0-5 rating as filled and empty stars.
func Stars(rating float64) string {
	if rating <= 0 {
		return ""
	}
	full := min(int(rating+0.5), 5)
	return strings.Repeat("★", full) + strings.Repeat("☆", 5-full)
}

// FormatDistance prints km with one decimal, nothing when unknown.
func FormatDistance(km float64) string {
	if km <= 0 {
		return ""
	}
	return fmt.Sprintf("%.1f km", km)
}

func GetTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatPrice":    FormatPrice,
		"formatDistance": FormatDistance,
		"stars":          Stars,

		"truncate": func(s string, length int) string {
			if len(s) <= length {
				return s
			}
			if length <= 3 {
				return s[:length]
			}
			return s[:length-3] + "..."
		},

		// String helpers
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"title": cases.Title(language.English).String,
		"join":  strings.Join,
		"trim":  strings.TrimSpace,
	}
}
