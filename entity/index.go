package entity

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Order selects how an index's records are listed in a report.
type Order string

const (
	// OrderFirstSeen lists records in the order their values were first added.
	OrderFirstSeen Order = "first_seen"
	// OrderOccurrences lists records by descending total; ties keep first-seen order.
	OrderOccurrences Order = "occurrences"
)

func (o *Order) UnmarshalText(b []byte) error {
	switch v := Order(strings.ToLower(strings.TrimSpace(string(b)))); v {
	case "":
		*o = ""
	case OrderFirstSeen, OrderOccurrences:
		*o = v
	default:
		return fmt.Errorf("unknown order %q (want %q or %q)", string(b), OrderFirstSeen, OrderOccurrences)
	}
	return nil
}

// Record is everything known about one distinct value. Values are keyed by
// exact string equality.
type Record struct {
	Value string
	Total int

	sources     []string
	occurrences map[string][]Occurrence

	Emails   mapset.Set[string]
	Names    mapset.Set[string]
	Messages mapset.Set[string]
}

func NewRecord(value string) *Record {
	return &Record{
		Value:       value,
		occurrences: make(map[string][]Occurrence),
		Emails:      mapset.NewThreadUnsafeSet[string](),
		Names:       mapset.NewThreadUnsafeSet[string](),
		Messages:    mapset.NewThreadUnsafeSet[string](),
	}
}

// Sources lists the files the value was seen in, first-seen first.
func (r *Record) Sources() []string {
	out := make([]string, len(r.sources))
	copy(out, r.sources)
	return out
}

// Occurrences returns the positions recorded for one source file.
func (r *Record) Occurrences(source string) []Occurrence {
	return r.occurrences[source]
}

func (r *Record) appendOccurrences(source string, occ ...Occurrence) {
	if len(occ) == 0 {
		return
	}
	if _, ok := r.occurrences[source]; !ok {
		r.sources = append(r.sources, source)
	}
	r.occurrences[source] = append(r.occurrences[source], occ...)
	r.Total += len(occ)
}

func (r *Record) add(m Match) {
	r.appendOccurrences(m.Source, m.Occurrence)
	r.Emails.Append(m.Emails...)
	r.Names.Append(m.Names...)
	if m.Message != "" {
		r.Messages.Add(m.Message)
	}
}

func (r *Record) merge(other *Record) {
	for _, src := range other.sources {
		r.appendOccurrences(src, other.occurrences[src]...)
	}
	r.Emails = r.Emails.Union(other.Emails)
	r.Names = r.Names.Union(other.Names)
	r.Messages = r.Messages.Union(other.Messages)
}

// Index maps each distinct value of one entity kind to its record.
type Index struct {
	Kind Kind

	order   []string
	records map[string]*Record
}

func NewIndex(kind Kind) *Index {
	return &Index{
		Kind:    kind,
		records: make(map[string]*Record),
	}
}

func (ix *Index) record(value string) *Record {
	rec, ok := ix.records[value]
	if !ok {
		rec = NewRecord(value)
		ix.records[value] = rec
		ix.order = append(ix.order, value)
	}
	return rec
}

func (ix *Index) Add(m Match) {
	ix.record(m.Value).add(m)
}

// Merge folds other into ix and returns ix. Occurrence lists are appended per
// source, side sets are unioned. other is left untouched.
func (ix *Index) Merge(other *Index) *Index {
	if other == nil {
		return ix
	}
	for _, v := range other.order {
		ix.record(v).merge(other.records[v])
	}
	return ix
}

func (ix *Index) Get(value string) (*Record, bool) {
	rec, ok := ix.records[value]
	return rec, ok
}

func (ix *Index) Len() int { return len(ix.order) }

// Total is the sum of all record totals.
func (ix *Index) Total() int {
	n := 0
	for _, rec := range ix.records {
		n += rec.Total
	}
	return n
}

// Records lists records in first-seen order.
func (ix *Index) Records() []*Record {
	out := make([]*Record, 0, len(ix.order))
	for _, v := range ix.order {
		out = append(out, ix.records[v])
	}
	return out
}

func (ix *Index) Ordered(o Order) []*Record {
	out := ix.Records()
	if o == OrderOccurrences {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Total > out[j].Total
		})
	}
	return out
}

// SortedSet returns the members of s in lexical order.
func SortedSet(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}

// Corpus holds one index per entity kind.
type Corpus struct {
	Addresses *Index
	Names     *Index
	Emails    *Index
	Phones    *Index
}

func NewCorpus() *Corpus {
	return &Corpus{
		Addresses: NewIndex(KindAddress),
		Names:     NewIndex(KindName),
		Emails:    NewIndex(KindEmail),
		Phones:    NewIndex(KindPhone),
	}
}

// Merge folds other into c kind by kind and returns c.
func (c *Corpus) Merge(other *Corpus) *Corpus {
	if other == nil {
		return c
	}
	c.Addresses.Merge(other.Addresses)
	c.Names.Merge(other.Names)
	c.Emails.Merge(other.Emails)
	c.Phones.Merge(other.Phones)
	return c
}

// Index returns the index for kind, or nil for an unknown kind.
func (c *Corpus) Index(kind Kind) *Index {
	switch kind {
	case KindAddress:
		return c.Addresses
	case KindName:
		return c.Names
	case KindEmail:
		return c.Emails
	case KindPhone:
		return c.Phones
	default:
		return nil
	}
}
