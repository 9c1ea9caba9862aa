// Package results turns a page of providers returned by the search backend
// into what is shown: sorted client side and truncated to the visitor's tier.
package results

import (
	"cmp"
	"slices"

	"golang.org/x/text/cases"

	"github.com/rubiojr/carefinder/pkg/provider"
	"github.com/rubiojr/carefinder/pkg/query"
	"github.com/rubiojr/carefinder/pkg/tiering"
)

// Page is the post-processed, render ready result list.
type Page struct {
	Items  []provider.Provider `json:"items"`
	Total  int                 `json:"total"`
	Shown  int                 `json:"shown"`
	Hidden int                 `json:"hidden"`
	Banner tiering.Banner      `json:"banner"`
}

// Process sorts items by the query's sort key and order and truncates them to
// the decision's page size. total is the count reported by the server.
func Process(items []provider.Provider, total int, spec query.Spec, d tiering.Decision) Page {
	sorted := Sort(items, spec.SortKey, spec.SortOrder)
	if d.PageSize > 0 && len(sorted) > d.PageSize {
		sorted = sorted[:d.PageSize]
	}
	if total < len(sorted) {
		total = len(sorted)
	}

	banner := d.Banner(total)
	p := Page{
		Items:  sorted,
		Total:  total,
		Shown:  len(sorted),
		Banner: banner,
	}
	if banner.Show {
		p.Hidden = banner.Hidden
	}
	return p
}

// Sort returns a stably sorted copy of items. Providers that compare equal
// keep their relative order in both directions.
func Sort(items []provider.Provider, key query.SortKey, order query.SortOrder) []provider.Provider {
	out := slices.Clone(items)
	compare := comparator(key)
	slices.SortStableFunc(out, func(a, b provider.Provider) int {
		c := compare(a, b)
		if order == query.Desc {
			return -c
		}
		return c
	})
	return out
}

func comparator(key query.SortKey) func(a, b provider.Provider) int {
	switch key {
	case query.SortRating:
		return func(a, b provider.Provider) int { return cmp.Compare(a.Rating, b.Rating) }
	case query.SortDistance:
		return func(a, b provider.Provider) int { return cmp.Compare(a.Distance, b.Distance) }
	case query.SortPrice:
		return func(a, b provider.Provider) int { return cmp.Compare(a.PriceValue(), b.PriceValue()) }
	}

	// A Caser keeps state between calls, so each sort gets its own.
	fold := cases.Fold()
	return func(a, b provider.Provider) int {
		return cmp.Compare(fold.String(a.Name), fold.String(b.Name))
	}
}
