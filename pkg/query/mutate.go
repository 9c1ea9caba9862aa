package query

import "slices"

// Mutation is a user action applied to a Spec. Mutations carry the coupling
// rules between fields that are defined in terms of user intent (clearing a
// region, picking the first age range). Rules that depend on what the previous
// settled state was live in the sync controller.
type Mutation func(Spec) Spec

// Apply runs the mutations in order and normalizes the result.
func (s Spec) Apply(muts ...Mutation) Spec {
	s = s.clone()
	for _, m := range muts {
		if m != nil {
			s = m(s)
		}
	}
	return s.Normalize()
}

func (s Spec) clone() Spec {
	s.Types = slices.Clone(s.Types)
	s.AgeRanges = slices.Clone(s.AgeRanges)
	s.ProgramAges = slices.Clone(s.ProgramAges)
	s.Availability = slices.Clone(s.Availability)
	return s
}

func SetText(text string) Mutation {
	return func(s Spec) Spec {
		s.Text = text
		return s
	}
}

// SetRegion selects a region. Clearing the region clears the ward too.
func SetRegion(region string) Mutation {
	return func(s Spec) Spec {
		s.Region = normalizePlace(region)
		if s.Region == "" {
			s.Ward = ""
		}
		return s
	}
}

func SetWard(ward string) Mutation {
	return func(s Spec) Spec {
		s.Ward = ward
		return s
	}
}

func SetPriceBand(b PriceBand) Mutation {
	return func(s Spec) Spec {
		s.PriceBand = b
		return s
	}
}

func SetTypes(types ...string) Mutation {
	return func(s Spec) Spec {
		s.Types = NewSet(types...)
		return s
	}
}

func ToggleType(t string) Mutation {
	return func(s Spec) Spec {
		s.Types = s.Types.Toggle(t)
		return s
	}
}

// SetAgeRanges replaces the age range selection. An empty selection clears
// availability; the first selection defaults availability to "no".
func SetAgeRanges(ranges ...string) Mutation {
	return func(s Spec) Spec {
		return withAgeRanges(s, NewSet(ranges...))
	}
}

func ToggleAgeRange(r string) Mutation {
	return func(s Spec) Spec {
		return withAgeRanges(s, s.AgeRanges.Toggle(r))
	}
}

func withAgeRanges(s Spec, ranges Set) Spec {
	first := len(s.AgeRanges) == 0 && len(ranges) > 0
	s.AgeRanges = ranges
	switch {
	case len(ranges) == 0:
		s.Availability = nil
	case first && len(s.Availability) == 0:
		s.Availability = Set{AvailabilityNo}
	}
	return s
}

func SetProgramAges(ages ...string) Mutation {
	return func(s Spec) Spec {
		s.ProgramAges = NewSet(ages...)
		return s
	}
}

func ToggleProgramAge(a string) Mutation {
	return func(s Spec) Spec {
		s.ProgramAges = s.ProgramAges.Toggle(a)
		return s
	}
}

// SetAvailability picks "yes", "no" or "" (no preference). It is a no-op while
// no age range is selected.
func SetAvailability(v string) Mutation {
	return func(s Spec) Spec {
		if len(s.AgeRanges) == 0 {
			s.Availability = nil
			return s
		}
		if v == "" {
			s.Availability = nil
			return s
		}
		s.Availability = normalizeAvailability([]string{v}, true)
		return s
	}
}

func SetCWELCCOnly(on bool) Mutation {
	return func(s Spec) Spec {
		s.CWELCCOnly = on
		return s
	}
}

func SetSubsidyOnly(on bool) Mutation {
	return func(s Spec) Spec {
		s.SubsidyOnly = on
		return s
	}
}

func SetSort(key SortKey, order SortOrder) Mutation {
	return func(s Spec) Spec {
		s.SortKey = key
		s.SortOrder = order
		return s
	}
}

func SetPage(page int) Mutation {
	return func(s Spec) Spec {
		s.Page = page
		return s
	}
}

// ClearFilters drops every filter but keeps the sort preference.
func ClearFilters() Mutation {
	return func(s Spec) Spec {
		d := Default()
		d.SortKey = s.SortKey
		d.SortOrder = s.SortOrder
		return d
	}
}
