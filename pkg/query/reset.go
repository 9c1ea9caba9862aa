package query

// ResetPolicy sends the user back to page 1 when a filter or sort field
// changed since the previous settle. Moving between pages alone never resets.
type ResetPolicy struct {
	snapshot Spec
	primed   bool
}

func NewResetPolicy() *ResetPolicy {
	return &ResetPolicy{}
}

// Prime records s as the settled state without touching its page. It is used
// when state is restored from a URL, where the page is authoritative.
func (p *ResetPolicy) Prime(s Spec) {
	p.snapshot = s.clone()
	p.primed = true
}

// Settle compares s with the previous settled state and returns s with the
// page reset when needed. The returned value becomes the new snapshot.
func (p *ResetPolicy) Settle(s Spec) Spec {
	if p.primed && s.Page > 1 && !p.snapshot.SameFilters(s) {
		s.Page = 1
	}
	p.Prime(s)
	return s
}
