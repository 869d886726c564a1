package entity

import (
	"regexp"
	"strings"
)

var (
	addressPattern = regexp.MustCompile(`\b\d{1,6}\s+\w+(?:\s\w+)*(?:\s(?:Avenue|Ave|Street|St|Boulevard|Blvd|Road|Rd|Lane|Ln|Drive|Dr|Court|Ct|Circle|Cir|Parkway|Pkwy|Place|Pl))?(?:\s(?:Apt|Suite|Unit)\s?\d+)?(?:,\s*\w+){1,3},?\s+[A-Z]{2}\s+\d{5}\b`)
	namePattern    = regexp.MustCompile(`\b[A-Z][a-z]+\s[A-Z][a-z]+\b`)
	emailPattern   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern   = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)
)

// productTerms are first tokens that mark a "Firstname Lastname" lookalike as
// a product label rather than a person. Matched case-sensitively.
var productTerms = map[string]struct{}{
	"Product":  {},
	"Model":    {},
	"Item":     {},
	"Brand":    {},
	"Type":     {},
	"Category": {},
}

// IsPersonName reports whether a two-token name match survives the product
// term filter.
func IsPersonName(name string) bool {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return false
	}
	_, excluded := productTerms[fields[0]]
	return !excluded
}

// StripPhones removes every phone match from text and collapses the remaining
// whitespace. The result is empty when nothing but phones and spaces remained.
func StripPhones(text string) string {
	return collapseSpace(phonePattern.ReplaceAllString(text, ""))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
