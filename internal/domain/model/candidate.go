package model

// CandidateReference is one reference string pulled out of a narration.
// Priority 1 is the most trustworthy extraction rule.
type CandidateReference struct {
	Ref      string `json:"ref"`
	Method   string `json:"method"`
	Priority int    `json:"priority"`
}
