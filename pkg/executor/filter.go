package executor

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rubiojr/carefinder/pkg/provider"
	"github.com/rubiojr/carefinder/pkg/query"
)

// DefaultLimit is used when a request carries no usable limit.
const DefaultLimit = 15

// Filter is the server side reading of the remote search parameters. Both the
// sqlite index and the bundled fallback dataset evaluate it.
type Filter struct {
	Text         string
	Region       string
	Ward         string
	PriceMin     int
	PriceMax     int
	Types        *regexp.Regexp
	AgeRanges    []string
	ProgramAges  []string
	Availability string
	CWELCC       bool
	Subsidy      bool
	Page         int
	Limit        int
}

// ParseFilter reads remote search parameters. Only a types pattern that does
// not compile is an error; other malformed values fall back to defaults.
func ParseFilter(v url.Values) (Filter, error) {
	f := Filter{
		Text:         strings.TrimSpace(v.Get(query.ParamText)),
		Region:       strings.TrimSpace(v.Get(query.ParamRegion)),
		Ward:         strings.TrimSpace(v.Get(query.ParamWard)),
		PriceMin:     atoiOr(v.Get(ParamPriceMin), 0),
		PriceMax:     atoiOr(v.Get(ParamPriceMax), 0),
		AgeRanges:    query.NewSet(v[query.ParamAgeRange]...),
		ProgramAges:  query.NewSet(v[query.ParamProgramAges]...),
		Availability: strings.ToLower(strings.TrimSpace(v.Get(query.ParamAvailability))),
		CWELCC:       v.Get(query.ParamCWELCC) == "true",
		Subsidy:      v.Get(query.ParamSubsidy) == "true",
		Page:         atoiOr(v.Get(query.ParamPage), 1),
		Limit:        atoiOr(v.Get(ParamLimit), DefaultLimit),
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	f.Limit = min(f.Limit, AllResultsLimit)

	if pattern := v.Get(query.ParamTypes); pattern != "" {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid types pattern %q: %w", pattern, err)
		}
		f.Types = re
	}
	return f, nil
}

// Offset is the index of the first item of the requested page, or -1 when the
// page lies past anything addressable.
func (f Filter) Offset() int {
	limit := max(f.Limit, 1)
	if f.Page <= 1 {
		return 0
	}
	if f.Page-1 > (math.MaxInt-limit)/limit {
		return -1
	}
	return (f.Page - 1) * limit
}

// Match evaluates every criterion except the free text term, which each
// backend matches its own way.
func (f Filter) Match(p provider.Provider) bool {
	if f.Region != "" && !strings.EqualFold(f.Region, p.Region) {
		return false
	}
	if f.Ward != "" && !strings.EqualFold(f.Ward, p.Ward) {
		return false
	}
	if f.PriceMin > 0 || f.PriceMax > 0 {
		price := p.PriceValue()
		// Unpublished prices never match a price filter.
		if price == 0 || price < f.PriceMin || (f.PriceMax > 0 && price > f.PriceMax) {
			return false
		}
	}
	if f.Types != nil && !f.Types.MatchString(p.Type) {
		return false
	}
	if len(f.AgeRanges) > 0 && !overlaps(f.AgeRanges, p.AgeRanges) {
		return false
	}
	if len(f.ProgramAges) > 0 && !overlaps(f.ProgramAges, p.ProgramAges) {
		return false
	}
	if f.Availability == query.AvailabilityYes && !p.HasVacancyIn(f.AgeRanges) {
		return false
	}
	if f.CWELCC && !p.CWELCC {
		return false
	}
	if f.Subsidy && !p.Subsidy {
		return false
	}
	return true
}

// Paginate slices the matching providers into the requested page.
func (f Filter) Paginate(matched []provider.Provider) *Response {
	total := len(matched)
	resp := &Response{
		CurrentPage: f.Page,
		TotalCount:  total,
		TotalPages:  (total + f.Limit - 1) / f.Limit,
	}
	if off := f.Offset(); off >= 0 && off < total {
		resp.Items = matched[off:min(off+f.Limit, total)]
	}
	return resp
}

func overlaps(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(w, h) {
				return true
			}
		}
	}
	return false
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
