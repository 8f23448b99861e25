package core

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// phoneShape matches a run of at least ten phone-ish characters anywhere in
// a line. Separators include Unicode spaces such as NBSP, which OCR output
// often puts between digit groups.
var phoneShape = regexp.MustCompile(`[+\-()\d\s\v\p{Zs}\x{FEFF}\x{2028}\x{2029}]{10,}`)

const maxAvatarLength = 2

// CardFields are the contact fields guessed from one block of OCR text.
// Unresolved fields are empty strings.
type CardFields struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Avatar  string `json:"avatar"`
}

// ParseCard assigns at most one field per non-blank line, trying in order:
// email, phone, then name/title/company by line position (0, 1, 2).
// Positions count non-blank lines only. A title line that happens to look
// like a phone number is taken as the phone.
func ParseCard(text string) CardFields {
	var f CardFields

	index := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.Contains(line, "@") && f.Email == "":
			f.Email = line
		case looksLikePhone(line) && f.Phone == "":
			f.Phone = line
		case index == 0 && f.Name == "":
			f.Name = line
		case index == 1 && f.Title == "":
			f.Title = line
		case index == 2 && f.Company == "" && !strings.Contains(line, "@") && !phoneShape.MatchString(line):
			f.Company = line
		}
		index++
	}

	f.Avatar = Avatar(f.Name)
	return f
}

func looksLikePhone(line string) bool {
	if !phoneShape.MatchString(line) {
		return false
	}
	return strings.ContainsAny(line, "+(") || utf8.RuneCountInString(line) > 10
}

// Avatar returns the uppercase initials of name, at most two characters.
func Avatar(name string) string {
	upper := []rune(Initials(name))
	if len(upper) > maxAvatarLength {
		upper = upper[:maxAvatarLength]
	}
	return string(upper)
}

// Initials returns the uppercase first character of every word in name.
func Initials(name string) string {
	var initials strings.Builder
	for _, word := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(word)
		initials.WriteRune(r)
	}
	return strings.ToUpper(initials.String())
}
