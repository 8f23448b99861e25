package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCard(t *testing.T) {
	tests := []struct {
		name string
		text string
		want CardFields
	}{
		{
			name: "full card",
			text: "Jane Doe\nCEO\nAcme Corp\njane@acme.com\n+1-555-0100",
			want: CardFields{Name: "Jane Doe", Title: "CEO", Company: "Acme Corp", Email: "jane@acme.com", Phone: "+1-555-0100", Avatar: "JD"},
		},
		{
			name: "single line",
			text: "Acme Corp",
			want: CardFields{Name: "Acme Corp", Avatar: "AC"},
		},
		{
			name: "email on first line consumes it",
			text: "jane@acme.com\nCEO",
			want: CardFields{Email: "jane@acme.com", Title: "CEO"},
		},
		{
			name: "blank lines do not count as positions",
			text: "\n\n  Jane Doe  \n\n\tCEO\r\n\nAcme Corp\n",
			want: CardFields{Name: "Jane Doe", Title: "CEO", Company: "Acme Corp", Avatar: "JD"},
		},
		{
			name: "phone-shaped title is taken as phone",
			text: "Jane Doe\n(555) 123-4567\nAcme Corp",
			want: CardFields{Name: "Jane Doe", Phone: "(555) 123-4567", Company: "Acme Corp", Avatar: "JD"},
		},
		{
			name: "first phone wins",
			text: "Jane Doe\nCEO\nAcme\n+1 555 0100 11\n+44 20 7946 0000",
			want: CardFields{Name: "Jane Doe", Title: "CEO", Company: "Acme", Phone: "+1 555 0100 11", Avatar: "JD"},
		},
		{
			name: "second email falls through to position",
			text: "Jane Doe\njane@acme.com\nsales@acme.com",
			want: CardFields{Name: "Jane Doe", Email: "jane@acme.com", Avatar: "JD"},
		},
		{
			name: "second email on title line becomes title",
			text: "jane@acme.com\nsales@acme.com",
			want: CardFields{Email: "jane@acme.com", Title: "sales@acme.com"},
		},
		{
			name: "ten digits exactly without plus or paren is not a phone",
			text: "Jane Doe\n5550100123",
			want: CardFields{Name: "Jane Doe", Title: "5550100123", Avatar: "JD"},
		},
		{
			name: "nbsp-grouped digits are a phone",
			text: "Jane Doe\nCEO\nAcme\n+1\u00a0555\u00a0010\u00a00100",
			want: CardFields{Name: "Jane Doe", Title: "CEO", Company: "Acme", Phone: "+1\u00a0555\u00a0010\u00a00100", Avatar: "JD"},
		},
		{
			name: "nbsp-grouped digits are not a company",
			text: "Jane Doe\nCEO\n555\u00a0010\u00a00100",
			want: CardFields{Name: "Jane Doe", Title: "CEO", Phone: "555\u00a0010\u00a00100", Avatar: "JD"},
		},
		{
			name: "lines beyond the third are ignored",
			text: "Jane Doe\nCEO\nAcme\nSuite 100\nSpringfield",
			want: CardFields{Name: "Jane Doe", Title: "CEO", Company: "Acme", Avatar: "JD"},
		},
		{
			name: "empty input",
			text: "",
			want: CardFields{},
		},
		{
			name: "whitespace only",
			text: " \n\t\n ",
			want: CardFields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCard(tt.text))
		})
	}
}

func TestParseCard_Deterministic(t *testing.T) {
	text := "Jane Doe\nCEO\nAcme Corp\njane@acme.com\n+1-555-0100"
	first := ParseCard(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ParseCard(text))
	}
}

func TestParseCard_SingleLineSetsOnlyName(t *testing.T) {
	for _, line := range []string{"Jane", "Dr. Jane Q. Doe", "ACME", "x"} {
		got := ParseCard(line)
		assert.Equal(t, line, got.Name)
		assert.Empty(t, got.Title)
		assert.Empty(t, got.Company)
		assert.Empty(t, got.Email)
		assert.Empty(t, got.Phone)
	}
}

func TestAvatar(t *testing.T) {
	tests := map[string]string{
		"Jane Doe":        "JD",
		"jane doe":        "JD",
		"Jane Quinn Doe":  "JQ",
		"Jane":            "J",
		"  Jane   Doe  ":  "JD",
		"":                "",
		"élodie durand":   "ÉD",
		"Unknown Contact": "UC",
	}
	for name, want := range tests {
		assert.Equal(t, want, Avatar(name), "Avatar(%q)", name)
		assert.Equal(t, Avatar(name), Avatar(name))
	}
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "JQD", Initials("Jane Quinn Doe"))
	assert.Equal(t, "JD", Initials("  jane   doe "))
	assert.Equal(t, "ÉDM", Initials("élodie durand martin"))
	assert.Equal(t, "", Initials(""))
}
