package types

type ResolutionStatus string

const (
	StatusResolved   ResolutionStatus = "resolved"
	StatusUnresolved ResolutionStatus = "unresolved"
)

// TermResult is the outcome of resolving one term. An unresolved term is not
// an error: it carries no matches and a Reason.
type TermResult struct {
	Term    Term             `json:"term"`
	Status  ResolutionStatus `json:"status"`
	Reason  string           `json:"reason,omitempty"`
	Matches []EnrichedMatch  `json:"matches"`
}

func (res TermResult) Resolved() bool {
	return res.Status == StatusResolved
}

type ResultSet []TermResult

func (set ResultSet) Unresolved() []Term {
	var terms []Term
	for _, res := range set {
		if !res.Resolved() {
			terms = append(terms, res.Term)
		}
	}
	return terms
}

func (set ResultSet) MatchCount() int {
	count := 0
	for _, res := range set {
		count += len(res.Matches)
	}
	return count
}
