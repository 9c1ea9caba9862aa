package query

import (
	"net/url"
	"strconv"
	"strings"
)

// URL parameter names. Every parameter is optional; absence means default.
const (
	ParamText         = "q"
	ParamRegion       = "region"
	ParamWard         = "ward"
	ParamPriceRange   = "priceRange"
	ParamTypes        = "types"
	ParamAgeRange     = "ageRange"
	ParamProgramAges  = "programAges"
	ParamAvailability = "availability"
	ParamCWELCC       = "cwelcc"
	ParamSubsidy      = "subsidy"
	ParamSortBy       = "sortBy"
	ParamSortOrder    = "sortOrder"
	ParamPage         = "page"
)

// Encode projects a Spec onto its shareable parameter map. Default valued
// fields are omitted to keep links short.
func Encode(s Spec) url.Values {
	s = s.Normalize()
	v := url.Values{}

	if s.Text != "" {
		v.Set(ParamText, s.Text)
	}
	if s.Region != "" {
		v.Set(ParamRegion, s.Region)
	}
	if s.Ward != "" {
		v.Set(ParamWard, s.Ward)
	}
	if s.PriceBand != PriceAny {
		v.Set(ParamPriceRange, string(s.PriceBand))
	}
	setList(v, ParamTypes, s.Types)
	setList(v, ParamAgeRange, s.AgeRanges)
	setList(v, ParamProgramAges, s.ProgramAges)
	setList(v, ParamAvailability, s.Availability)
	if s.CWELCCOnly {
		v.Set(ParamCWELCC, "true")
	}
	if s.SubsidyOnly {
		v.Set(ParamSubsidy, "true")
	}
	if s.SortKey != SortName {
		v.Set(ParamSortBy, string(s.SortKey))
	}
	if s.SortOrder != Asc {
		v.Set(ParamSortOrder, string(s.SortOrder))
	}
	if s.Page > 1 {
		v.Set(ParamPage, strconv.Itoa(s.Page))
	}

	return v
}

// Decode rebuilds a Spec from a parameter map. It never fails: malformed or
// unknown values fall back to the field default.
func Decode(v url.Values) Spec {
	s := Default()

	s.Text = v.Get(ParamText)
	s.Region = v.Get(ParamRegion)
	s.Ward = v.Get(ParamWard)
	s.PriceBand = ParsePriceBand(v.Get(ParamPriceRange))
	s.Types = NewSet(v[ParamTypes]...)
	s.AgeRanges = NewSet(v[ParamAgeRange]...)
	s.ProgramAges = NewSet(v[ParamProgramAges]...)
	s.Availability = Set(v[ParamAvailability])
	s.CWELCCOnly = parseFlag(v.Get(ParamCWELCC))
	s.SubsidyOnly = parseFlag(v.Get(ParamSubsidy))
	s.SortKey = ParseSortKey(v.Get(ParamSortBy))
	s.SortOrder = ParseSortOrder(v.Get(ParamSortOrder))

	if raw := v.Get(ParamPage); raw != "" {
		if page, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && page > 0 {
			s.Page = page
		}
	}

	return s.Normalize()
}

// DecodeQuery decodes a raw query string, or a full URL/path carrying one.
// Unparseable input decodes to the default Spec.
func DecodeQuery(raw string) Spec {
	return Decode(ParseParams(raw))
}

// ParseParams extracts the parameter map from a raw query string or a URL.
func ParseParams(raw string) url.Values {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[i+1:]
	} else if strings.HasPrefix(raw, "/") || strings.Contains(raw, "://") {
		// A path or URL without a query.
		return url.Values{}
	}
	// ParseQuery keeps every pair it could parse, malformed ones are dropped.
	v, _ := url.ParseQuery(raw)
	return v
}

// ParamsEqual compares two parameter maps as sets of key/value pairs. Order of
// keys and repeated values do not matter; empty values count as absent.
func ParamsEqual(a, b url.Values) bool {
	pa, pb := pairs(a), pairs(b)
	if len(pa) != len(pb) {
		return false
	}
	for p := range pa {
		if _, ok := pb[p]; !ok {
			return false
		}
	}
	return true
}

// Path renders the search path for a Spec, e.g. "/search?priceRange=high".
func Path(base string, s Spec) string {
	enc := Encode(s).Encode()
	if enc == "" {
		return base
	}
	return base + "?" + enc
}

type pair struct{ key, value string }

func pairs(v url.Values) map[pair]struct{} {
	out := make(map[pair]struct{})
	for key, values := range v {
		for _, value := range values {
			if value == "" {
				continue
			}
			out[pair{key, value}] = struct{}{}
		}
	}
	return out
}

func setList(v url.Values, key string, s Set) {
	if len(s) > 0 {
		v.Set(key, s.String())
	}
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// unescapeResidual decodes percent escapes left over by double encoding. It
// stops at the first value that does not decode, which keeps literal '%'.
func unescapeResidual(v string) string {
	for i := 0; i < 3 && strings.Contains(v, "%"); i++ {
		dec, err := url.PathUnescape(v)
		if err != nil || dec == v {
			break
		}
		v = dec
	}
	return v
}
