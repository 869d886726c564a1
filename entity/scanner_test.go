package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pii-harvester/tabular"
)

func values(ms []CellMatch) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Value)
	}
	return out
}

func TestAddressScanner(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"full street address", "123 Main Street, Springfield, IL 62704", []string{"123 Main Street, Springfield, IL 62704"}},
		{"with unit", "Ship to 42 Oak Ave Apt 5, Portland, OR 97201 today", []string{"42 Oak Ave Apt 5, Portland, OR 97201"}},
		{"no postal code", "123 Main Street, Springfield, IL", nil},
		{"no locality", "123 Main Street IL 62704", nil},
		{"plain text", "nothing to see here", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := values(AddressScanner{}.ScanCell(tt.in))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNameScanner(t *testing.T) {
	got := NameScanner{}.ScanCell("Contact: John Smith today")
	require.Len(t, got, 1)
	assert.Equal(t, "John Smith", got[0].Value)
	assert.Empty(t, got[0].Emails)

	assert.Empty(t, NameScanner{}.ScanCell("Product Category"))
	assert.Empty(t, NameScanner{}.ScanCell("john smith"))
	// case-sensitive exclusion
	assert.Equal(t, []string{"Products Team"}, values(NameScanner{}.ScanCell("Products Team")))
}

func TestNameScanner_CollectsSameCellEmails(t *testing.T) {
	got := NameScanner{}.ScanCell("Jane Doe <jane.doe@example.org>, cc ops@example.net")
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Doe", got[0].Value)
	assert.Equal(t, []string{"jane.doe@example.org", "ops@example.net"}, got[0].Emails)
}

func TestEmailScanner(t *testing.T) {
	assert.Equal(t, []string{"a.b@example.com"}, values(EmailScanner{}.ScanCell("reach me at a.b@example.com")))
	assert.Empty(t, EmailScanner{}.ScanCell("user@localhost"))
	assert.Empty(t, EmailScanner{}.ScanCell("x@example.c"))
}

func TestPhoneScanner(t *testing.T) {
	got := PhoneScanner{}.ScanCell("Call 555-123-4567 now")
	require.Len(t, got, 1)
	assert.Equal(t, "555-123-4567", got[0].Value)
	assert.Equal(t, "Call now", got[0].Message)
	assert.Empty(t, got[0].Names)
}

func TestPhoneScanner_Separators(t *testing.T) {
	for _, in := range []string{"555.123.4567", "555 123 4567", "5551234567", "1-555-123-4567", "555-123 4567"} {
		got := PhoneScanner{}.ScanCell(in)
		require.Len(t, got, 1, in)
		assert.Equal(t, in, got[0].Value)
		assert.Empty(t, got[0].Message, in)
	}
}

func TestPhoneScanner_NamesAndSharedMessage(t *testing.T) {
	got := PhoneScanner{}.ScanCell("Bob Jones 555-123-4567 or 555-765-4321")
	require.Len(t, got, 2)
	for _, m := range got {
		assert.Equal(t, []string{"Bob Jones"}, m.Names)
		assert.Equal(t, "Bob Jones or", m.Message)
	}
}

func TestScanTable_PositionsSkipHeader(t *testing.T) {
	tbl := &tabular.Table{
		Source: "abc_people.csv",
		Header: []string{"Full Name", "phone"},
		Rows: [][]string{
			{"Alice Brown", ""},
			{"", "Alice Brown 555-000-1111"},
		},
	}
	got := ScanTable(NameScanner{}, tbl)
	require.Len(t, got, 2)
	assert.Equal(t, Occurrence{Source: "abc_people.csv", Row: 0, Column: 0}, got[0].Occurrence)
	assert.Equal(t, Occurrence{Source: "abc_people.csv", Row: 1, Column: 1}, got[1].Occurrence)
}

func TestScanTable_DoesNotMutate(t *testing.T) {
	tbl := &tabular.Table{
		Source: "s.csv",
		Header: []string{"c"},
		Rows:   [][]string{{"Call 555-123-4567 now"}},
	}
	_ = ScanTable(PhoneScanner{}, tbl)
	assert.Equal(t, "Call 555-123-4567 now", tbl.Rows[0][0])
}

func TestExtractor_Extract(t *testing.T) {
	tbl := &tabular.Table{
		Source: "id_contacts.csv",
		Header: []string{"who", "where", "how"},
		Rows: [][]string{
			{"John Smith john@example.com", "123 Main Street, Springfield, IL 62704", "Call 555-123-4567 now"},
			{"John Smith", "", "555-123-4567"},
		},
	}
	c := NewExtractor().Extract(tbl)

	name, ok := c.Names.Get("John Smith")
	require.True(t, ok)
	assert.Equal(t, 2, name.Total)
	assert.Equal(t, []string{"john@example.com"}, SortedSet(name.Emails))

	addr, ok := c.Addresses.Get("123 Main Street, Springfield, IL 62704")
	require.True(t, ok)
	assert.Equal(t, 1, addr.Total)

	phone, ok := c.Phones.Get("555-123-4567")
	require.True(t, ok)
	assert.Equal(t, 2, phone.Total)
	assert.Equal(t, []string{"Call now"}, SortedSet(phone.Messages))

	email, ok := c.Emails.Get("john@example.com")
	require.True(t, ok)
	assert.Equal(t, []Occurrence{{Source: "id_contacts.csv", Row: 0, Column: 0}}, email.Occurrences("id_contacts.csv"))
}
