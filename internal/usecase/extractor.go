// File: internal/usecase/extractor.go
package usecase

import (
	"regexp"
	"sort"
	"strings"

	"chat-subscription-payments/internal/domain/model"
)

// Extraction method labels. They end up in match_method, prefixed by tier.
const (
	MethodBankContent          = "bank_content_format"
	MethodBankDescription      = "bank_description_format"
	MethodCodeField            = "code_field"
	MethodContentStandard      = "content_standard"
	MethodDescriptionStandard  = "description_standard"
	MethodContentLoose         = "content_loose"
	MethodDescriptionLoose     = "description_loose"
	MethodContentPart          = "content_part"
	MethodDescriptionPart      = "description_part"
	MethodTransactionReference = "transaction_reference_field"
	MethodReferenceCodeField   = "reference_code_field"

	MethodUnknown = "unknown"
)

var (
	bankFormatRe = regexp.MustCompile(`-?TXN[A-Za-z0-9]+`)
	standardRe   = regexp.MustCompile(`TXN-?\d+-?[A-Za-z0-9]{8}`)
	looseRe      = regexp.MustCompile(`TXN[A-Za-z0-9-]*`)
	tokenSplitRe = regexp.MustCompile(`[-\s]`)
)

// ExtractReferences turns bank narration into ranked candidates. It is a
// pure function: the same payload always yields the same list.
func ExtractReferences(p *model.WebhookPayload) []model.CandidateReference {
	c := candidateSet{seen: map[string]struct{}{}}

	if m := bankFormatRe.FindString(p.Content); m != "" {
		c.add(strings.TrimPrefix(m, "-"), MethodBankContent, 1)
	}
	if m := bankFormatRe.FindString(p.Description); m != "" {
		c.add(strings.TrimPrefix(m, "-"), MethodBankDescription, 1)
	}
	if strings.Contains(p.Code, ReferencePrefix) {
		c.add(p.Code, MethodCodeField, 1)
	}

	c.add(standardRe.FindString(p.Content), MethodContentStandard, 2)
	c.add(standardRe.FindString(p.Description), MethodDescriptionStandard, 2)

	c.add(looseRe.FindString(p.Content), MethodContentLoose, 3)
	c.add(looseRe.FindString(p.Description), MethodDescriptionLoose, 3)

	for _, part := range tokenSplitRe.Split(p.Content, -1) {
		if strings.Contains(part, ReferencePrefix) {
			c.add(part, MethodContentPart, 4)
		}
	}
	for _, part := range tokenSplitRe.Split(p.Description, -1) {
		if strings.Contains(part, ReferencePrefix) {
			c.add(part, MethodDescriptionPart, 4)
		}
	}

	c.add(p.TransactionReference, MethodTransactionReference, 5)
	c.add(p.ReferenceCode, MethodReferenceCodeField, 5)

	sort.SliceStable(c.out, func(i, j int) bool { return c.out[i].Priority < c.out[j].Priority })
	return c.out
}

// PrimaryMethod is the method of the best candidate, "unknown" when none.
func PrimaryMethod(cands []model.CandidateReference) string {
	if len(cands) == 0 {
		return MethodUnknown
	}
	return cands[0].Method
}

type candidateSet struct {
	seen map[string]struct{}
	out  []model.CandidateReference
}

// add keeps the first occurrence of every ref.
func (c *candidateSet) add(ref, method string, priority int) {
	if ref == "" {
		return
	}
	if _, dup := c.seen[ref]; dup {
		return
	}
	c.seen[ref] = struct{}{}
	c.out = append(c.out, model.CandidateReference{Ref: ref, Method: method, Priority: priority})
}
