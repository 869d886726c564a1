// Package entity scans exported tables for personally identifiable values and
// aggregates the matches into corpus-wide indexes with cell-level provenance.
package entity

import (
	"pii-harvester/tabular"
)

type Kind string

const (
	KindAddress Kind = "address"
	KindName    Kind = "name"
	KindEmail   Kind = "email"
	KindPhone   Kind = "phone"
)

// Kinds lists every entity kind in report order.
var Kinds = []Kind{KindAddress, KindName, KindEmail, KindPhone}

// Occurrence is one cell position at which a value was found. Row is the
// 0-based data row (the header is not counted), Column the 0-based column.
type Occurrence struct {
	Source string
	Row    int
	Column int
}

// CellMatch is a value matched inside a single cell plus the side data the
// scanner collected from the same cell.
type CellMatch struct {
	Value   string
	Emails  []string
	Names   []string
	Message string
}

// Match is a CellMatch placed at its position.
type Match struct {
	CellMatch
	Occurrence
}

// Scanner finds the values of one entity kind in a cell. Implementations are
// stateless; the same text always yields the same matches.
type Scanner interface {
	Kind() Kind
	ScanCell(text string) []CellMatch
}

type AddressScanner struct{}

func (AddressScanner) Kind() Kind { return KindAddress }

func (AddressScanner) ScanCell(text string) []CellMatch {
	found := addressPattern.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}
	out := make([]CellMatch, 0, len(found))
	for _, v := range found {
		out = append(out, CellMatch{Value: v})
	}
	return out
}

// NameScanner matches "Firstname Lastname" pairs, drops product labels and
// attaches every email found in the same cell.
type NameScanner struct{}

func (NameScanner) Kind() Kind { return KindName }

func (NameScanner) ScanCell(text string) []CellMatch {
	found := namePattern.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}
	emails := emailPattern.FindAllString(text, -1)
	var out []CellMatch
	for _, v := range found {
		if !IsPersonName(v) {
			continue
		}
		out = append(out, CellMatch{Value: v, Emails: emails})
	}
	return out
}

type EmailScanner struct{}

func (EmailScanner) Kind() Kind { return KindEmail }

func (EmailScanner) ScanCell(text string) []CellMatch {
	found := emailPattern.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}
	out := make([]CellMatch, 0, len(found))
	for _, v := range found {
		out = append(out, CellMatch{Value: v})
	}
	return out
}

// PhoneScanner matches North American style numbers. Each match carries the
// name-pattern matches of the cell (without the product filter) and the cell
// text with all numbers removed.
type PhoneScanner struct{}

func (PhoneScanner) Kind() Kind { return KindPhone }

func (PhoneScanner) ScanCell(text string) []CellMatch {
	found := phonePattern.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}
	names := namePattern.FindAllString(text, -1)
	message := StripPhones(text)
	out := make([]CellMatch, 0, len(found))
	for _, v := range found {
		out = append(out, CellMatch{Value: v, Names: names, Message: message})
	}
	return out
}

// ScanTable runs s over every data cell of t in row-major order.
func ScanTable(s Scanner, t *tabular.Table) []Match {
	if t == nil {
		return nil
	}
	var out []Match
	for r, row := range t.Rows {
		for c, cell := range row {
			if cell == "" {
				continue
			}
			for _, cm := range s.ScanCell(cell) {
				out = append(out, Match{
					CellMatch:  cm,
					Occurrence: Occurrence{Source: t.Source, Row: r, Column: c},
				})
			}
		}
	}
	return out
}

// Extractor runs the address, name, email and phone scanners over a table.
type Extractor struct {
	Addresses Scanner
	Names     Scanner
	Emails    Scanner
	Phones    Scanner
}

func NewExtractor() *Extractor {
	return &Extractor{
		Addresses: AddressScanner{},
		Names:     NameScanner{},
		Emails:    EmailScanner{},
		Phones:    PhoneScanner{},
	}
}

// Extract returns a fresh corpus holding only the matches of t.
func (e *Extractor) Extract(t *tabular.Table) *Corpus {
	c := NewCorpus()
	for _, m := range ScanTable(e.Addresses, t) {
		c.Addresses.Add(m)
	}
	for _, m := range ScanTable(e.Names, t) {
		c.Names.Add(m)
	}
	for _, m := range ScanTable(e.Emails, t) {
		c.Emails.Add(m)
	}
	for _, m := range ScanTable(e.Phones, t) {
		c.Phones.Add(m)
	}
	return c
}
