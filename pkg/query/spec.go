// Package query holds the canonical representation of a provider search: what
// the user is looking for, how it is ordered and which page is shown. It also
// owns the URL projection of that state (codec.go) and the rule deciding when a
// change must send the user back to the first page (reset.go).
//
// Everything in this package is pure data and pure functions. Specs are values;
// mutations return new values and never share set backing arrays with their
// input.
package query

import (
	"slices"
	"sort"
	"strings"
)

// PriceBand is a coarse monthly fee filter. It is mutually exclusive with
// explicit numeric bounds: the band is the only way a Spec expresses price.
type PriceBand string

const (
	PriceAny    PriceBand = ""
	PriceLow    PriceBand = "low"
	PriceMedium PriceBand = "medium"
	PriceHigh   PriceBand = "high"
)

// Bounds returns the inclusive fee range for the band. A zero value means the
// side is unbounded.
func (b PriceBand) Bounds() (min, max int) {
	switch b {
	case PriceLow:
		return 0, 1200
	case PriceMedium:
		return 1201, 1800
	case PriceHigh:
		return 1801, 0
	}
	return 0, 0
}

// ParsePriceBand returns PriceAny for anything that is not a known band.
func ParsePriceBand(s string) PriceBand {
	switch b := PriceBand(strings.ToLower(strings.TrimSpace(s))); b {
	case PriceLow, PriceMedium, PriceHigh:
		return b
	}
	return PriceAny
}

type SortKey string

const (
	SortName     SortKey = "name"
	SortRating   SortKey = "rating"
	SortPrice    SortKey = "price"
	SortDistance SortKey = "distance"
)

// ParseSortKey returns SortName for unknown keys.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortName, SortRating, SortPrice, SortDistance:
		return k
	}
	return SortName
}

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ParseSortOrder returns Asc for unknown orders.
func ParseSortOrder(s string) SortOrder {
	if SortOrder(strings.ToLower(strings.TrimSpace(s))) == Desc {
		return Desc
	}
	return Asc
}

// Availability values. A Spec carries at most one of them.
const (
	AvailabilityYes = "yes"
	AvailabilityNo  = "no"
)

// Set is an unordered, duplicate free collection of filter values. Normalized
// sets are sorted so two equal sets are also equal slices.
type Set []string

// NewSet builds a normalized set. Items are trimmed, comma separated items are
// split and empty items are dropped.
func NewSet(items ...string) Set {
	var out Set
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" || slices.Contains(out, part) {
				continue
			}
			out = append(out, part)
		}
	}
	sort.Strings(out)
	return out
}

// Contains reports whether v is a member of the set.
func (s Set) Contains(v string) bool {
	return slices.Contains(s, v)
}

// Equal compares two sets regardless of order.
func (s Set) Equal(o Set) bool {
	return slices.Equal(NewSet(s...), NewSet(o...))
}

// Toggle returns a new set with v added when absent or removed when present.
func (s Set) Toggle(v string) Set {
	if s.Contains(v) {
		out := make(Set, 0, len(s))
		for _, item := range s {
			if item != v {
				out = append(out, item)
			}
		}
		return NewSet(out...)
	}
	return NewSet(append(slices.Clone(s), v)...)
}

// String joins the set the way it travels on the wire.
func (s Set) String() string {
	return strings.Join(NewSet(s...), ",")
}

// Spec is the single source of truth for what to search for.
type Spec struct {
	// Text is the committed free text term. Empty means no text filter.
	Text string `json:"text,omitempty"`

	// Region and Ward narrow the search geographically. Ward is only
	// meaningful when Region is set.
	Region string `json:"region,omitempty"`
	Ward   string `json:"ward,omitempty"`

	PriceBand PriceBand `json:"priceBand,omitempty"`

	Types       Set `json:"types,omitempty"`
	AgeRanges   Set `json:"ageRanges,omitempty"`
	ProgramAges Set `json:"programAges,omitempty"`

	// Availability holds at most one of "yes"/"no" and is only allowed when
	// AgeRanges is not empty.
	Availability Set `json:"availability,omitempty"`

	CWELCCOnly  bool `json:"cwelccOnly,omitempty"`
	SubsidyOnly bool `json:"subsidyOnly,omitempty"`

	SortKey   SortKey   `json:"sortKey"`
	SortOrder SortOrder `json:"sortOrder"`

	// Page is 1-based.
	Page int `json:"page"`
}

// Default returns the Spec of an empty search page.
func Default() Spec {
	return Spec{
		SortKey:   SortName,
		SortOrder: Asc,
		Page:      1,
	}
}

// Normalize returns a copy of s that satisfies every field invariant. Decode
// and every mutation go through it, so reachable Specs are always normalized.
func (s Spec) Normalize() Spec {
	s.Region = normalizePlace(s.Region)
	s.Ward = normalizePlace(s.Ward)
	if s.Region == "" {
		s.Ward = ""
	}
	s.PriceBand = ParsePriceBand(string(s.PriceBand))
	s.Types = NewSet(s.Types...)
	s.AgeRanges = NewSet(s.AgeRanges...)
	s.ProgramAges = NewSet(s.ProgramAges...)
	s.Availability = normalizeAvailability(s.Availability, len(s.AgeRanges) > 0)
	s.SortKey = ParseSortKey(string(s.SortKey))
	s.SortOrder = ParseSortOrder(string(s.SortOrder))
	if s.Page < 1 {
		s.Page = 1
	}
	return s
}

// Equal compares two specs field by field, sets as sets.
func (s Spec) Equal(o Spec) bool {
	return len(s.DiffFields(o)) == 0
}

// SameFilters compares every field except Page.
func (s Spec) SameFilters(o Spec) bool {
	for _, f := range s.DiffFields(o) {
		if f != FieldPage {
			return false
		}
	}
	return true
}

// Field names a Spec field. The values match the URL parameter names.
type Field string

const (
	FieldText         Field = ParamText
	FieldRegion       Field = ParamRegion
	FieldWard         Field = ParamWard
	FieldPriceBand    Field = ParamPriceRange
	FieldTypes        Field = ParamTypes
	FieldAgeRanges    Field = ParamAgeRange
	FieldProgramAges  Field = ParamProgramAges
	FieldAvailability Field = ParamAvailability
	FieldCWELCC       Field = ParamCWELCC
	FieldSubsidy      Field = ParamSubsidy
	FieldSortKey      Field = ParamSortBy
	FieldSortOrder    Field = ParamSortOrder
	FieldPage         Field = ParamPage
)

// DiffFields lists the fields whose values differ between s and o.
func (s Spec) DiffFields(o Spec) []Field {
	var diff []Field
	if s.Text != o.Text {
		diff = append(diff, FieldText)
	}
	if s.Region != o.Region {
		diff = append(diff, FieldRegion)
	}
	if s.Ward != o.Ward {
		diff = append(diff, FieldWard)
	}
	if s.PriceBand != o.PriceBand {
		diff = append(diff, FieldPriceBand)
	}
	if !s.Types.Equal(o.Types) {
		diff = append(diff, FieldTypes)
	}
	if !s.AgeRanges.Equal(o.AgeRanges) {
		diff = append(diff, FieldAgeRanges)
	}
	if !s.ProgramAges.Equal(o.ProgramAges) {
		diff = append(diff, FieldProgramAges)
	}
	if !s.Availability.Equal(o.Availability) {
		diff = append(diff, FieldAvailability)
	}
	if s.CWELCCOnly != o.CWELCCOnly {
		diff = append(diff, FieldCWELCC)
	}
	if s.SubsidyOnly != o.SubsidyOnly {
		diff = append(diff, FieldSubsidy)
	}
	if s.SortKey != o.SortKey {
		diff = append(diff, FieldSortKey)
	}
	if s.SortOrder != o.SortOrder {
		diff = append(diff, FieldSortOrder)
	}
	if s.Page != o.Page {
		diff = append(diff, FieldPage)
	}
	return diff
}

// normalizePlace turns form-encoded leftovers into plain text: '+' becomes a
// space, residual percent escapes are decoded and whitespace collapses.
func normalizePlace(v string) string {
	v = unescapeResidual(v)
	v = strings.ReplaceAll(v, "+", " ")
	return strings.Join(strings.Fields(v), " ")
}

// normalizeAvailability keeps the first valid availability value, in input
// order, and drops it entirely when no age range is selected.
func normalizeAvailability(values []string, hasAgeRanges bool) Set {
	if !hasAgeRanges {
		return nil
	}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			switch p := strings.ToLower(strings.TrimSpace(part)); p {
			case AvailabilityYes, AvailabilityNo:
				return Set{p}
			}
		}
	}
	return nil
}
