package executor

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/rubiojr/carefinder/pkg/provider"
)

//go:embed fallback.json
var bundledProviders []byte

// Fallback serves searches from a static provider list when the search API
// cannot be reached.
type Fallback struct {
	providers []provider.Provider
}

func NewFallback(providers []provider.Provider) *Fallback {
	return &Fallback{providers: providers}
}

// BundledFallback returns the dataset compiled into the binary.
func BundledFallback() (*Fallback, error) {
	ps, err := provider.Load(bytes.NewReader(bundledProviders), provider.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("loading bundled dataset: %w", err)
	}
	return NewFallback(ps), nil
}

// LoadFallback reads a JSON or YAML provider list from path, optionally
// zstd compressed.
func LoadFallback(path string) (*Fallback, error) {
	ps, err := provider.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading fallback dataset: %w", err)
	}
	return NewFallback(ps), nil
}

func (f *Fallback) Len() int {
	return len(f.providers)
}

// Search filters the dataset with the same parameters the search API takes.
// Free text is matched fuzzily, best matches first.
func (f *Fallback) Search(params url.Values) (*Response, error) {
	filter, err := ParseFilter(params)
	if err != nil {
		return nil, err
	}

	var matched []provider.Provider
	for _, p := range f.providers {
		if filter.Match(p) {
			matched = append(matched, p)
		}
	}

	if filter.Text != "" {
		hits := fuzzy.FindFrom(strings.ToLower(filter.Text), searchSource(matched))
		ranked := make([]provider.Provider, 0, len(hits))
		for _, hit := range hits {
			ranked = append(ranked, matched[hit.Index])
		}
		matched = ranked
	}

	return filter.Paginate(matched), nil
}

type searchSource []provider.Provider

func (s searchSource) String(i int) string {
	p := s[i]
	return strings.ToLower(p.Name + " " + p.Type + " " + p.Ward)
}

func (s searchSource) Len() int {
	return len(s)
}
