package web

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/rubiojr/carefinder/pkg/query"
	"github.com/rubiojr/carefinder/pkg/render"
	"github.com/rubiojr/carefinder/pkg/results"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var StaticFS embed.FS

var pageTemplates = template.Must(
	template.New("pages").Funcs(render.GetTemplateFuncs()).ParseFS(templatesFS, "templates/*.html"),
)

// PageData is everything the search page shows.
type PageData struct {
	Title     string
	Version   string
	BasePath  string
	URL       string
	SignInURL string

	Spec     query.Spec
	Decision tiering.Decision
	Page     results.Page
	Cards    []template.HTML

	TotalPages int
	PrevURL    string
	NextURL    string

	Fallback bool
	Error    string

	PriceBands []Option
	SortKeys   []Option
	SortOrders []Option
}

// Option is one entry of a select box.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// SearchPage renders the search page.
func SearchPage(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pageTemplates.ExecuteTemplate(w, "search.html", data)
	})
}

func priceBandOptions(selected query.PriceBand) []Option {
	bands := []struct {
		band  query.PriceBand
		label string
	}{
		{query.PriceAny, "Any price"},
		{query.PriceLow, "Up to $1,200"},
		{query.PriceMedium, "$1,201 to $1,800"},
		{query.PriceHigh, "Over $1,800"},
	}
	out := make([]Option, 0, len(bands))
	for _, b := range bands {
		out = append(out, Option{Value: string(b.band), Label: b.label, Selected: b.band == selected})
	}
	return out
}

func sortKeyOptions(selected query.SortKey) []Option {
	keys := []query.SortKey{query.SortName, query.SortRating, query.SortPrice, query.SortDistance}
	out := make([]Option, 0, len(keys))
	for _, k := range keys {
		out = append(out, Option{Value: string(k), Label: "Sort by " + string(k), Selected: k == selected})
	}
	return out
}

func sortOrderOptions(selected query.SortOrder) []Option {
	return []Option{
		{Value: string(query.Asc), Label: "Ascending", Selected: selected == query.Asc},
		{Value: string(query.Desc), Label: "Descending", Selected: selected == query.Desc},
	}
}
