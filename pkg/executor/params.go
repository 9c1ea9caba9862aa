package executor

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rubiojr/carefinder/pkg/query"
)

// Remote search parameter names. They differ from the shareable URL: price
// travels as bounds, types as a regular expression and the page size as limit.
const (
	ParamPriceMin = "priceMin"
	ParamPriceMax = "priceMax"
	ParamLimit    = "limit"
)

// AllResultsLimit is the page size of the single page map feed.
const AllResultsLimit = 1000

// RemoteParams projects a spec onto the remote search API parameters. Sort
// order is applied client side and is never sent.
func RemoteParams(s query.Spec, pageSize int) url.Values {
	s = s.Normalize()
	v := url.Values{}

	if s.Text != "" {
		v.Set(query.ParamText, s.Text)
	}
	if s.Region != "" {
		v.Set(query.ParamRegion, s.Region)
	}
	if s.Ward != "" {
		v.Set(query.ParamWard, s.Ward)
	}
	lo, hi := s.PriceBand.Bounds()
	if lo > 0 {
		v.Set(ParamPriceMin, strconv.Itoa(lo))
	}
	if hi > 0 {
		v.Set(ParamPriceMax, strconv.Itoa(hi))
	}
	if len(s.Types) > 0 {
		v.Set(query.ParamTypes, TypesPattern(s.Types))
	}
	if len(s.AgeRanges) > 0 {
		v.Set(query.ParamAgeRange, s.AgeRanges.String())
	}
	if len(s.ProgramAges) > 0 {
		v.Set(query.ParamProgramAges, s.ProgramAges.String())
	}
	if len(s.Availability) > 0 {
		v.Set(query.ParamAvailability, s.Availability.String())
	}
	if s.CWELCCOnly {
		v.Set(query.ParamCWELCC, "true")
	}
	if s.SubsidyOnly {
		v.Set(query.ParamSubsidy, "true")
	}
	v.Set(query.ParamPage, strconv.Itoa(s.Page))
	v.Set(ParamLimit, strconv.Itoa(pageSize))
	return v
}

// CacheKey identifies a remote request. Two specs differing only in sort
// order share a key.
func CacheKey(s query.Spec, pageSize int) string {
	return RemoteParams(s, pageSize).Encode()
}

// TypesPattern builds the anchored alternation the search API expects for a
// set of provider types, e.g. ^(?:Centre|Home)$.
func TypesPattern(types query.Set) string {
	quoted := make([]string, 0, len(types))
	for _, t := range query.NewSet(types...) {
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	return "^(?:" + strings.Join(quoted, "|") + ")$"
}
