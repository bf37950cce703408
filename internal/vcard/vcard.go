// Package vcard translates between vCard wire text and partial contact
// records. Parsing is tolerant: unrecognized lines are skipped, absent
// fields stay absent, and incomplete cards are dropped rather than
// reported as errors.
package vcard

import (
	"fmt"
	"strings"

	"github.com/samber/mo"
)

// PartialContact holds the fields recognized in one parsed card. Each
// field records whether it was present in the wire text at all, which
// downstream merge logic depends on; absent is not the same as empty.
type PartialContact struct {
	UID         mo.Option[string]
	FirstName   mo.Option[string]
	LastName    mo.Option[string]
	MiddleName  mo.Option[string]
	Suffix      mo.Option[string]
	DisplayName mo.Option[string]
	Email       mo.Option[string]
	Phone       mo.Option[string]
	Notes       mo.Option[string]
}

// Updates carries the fields Update should rewrite. Absent fields leave
// the card untouched.
type Updates struct {
	FirstName mo.Option[string]
	LastName  mo.Option[string]
	Email     mo.Option[string]
	Phone     mo.Option[string]
	Notes     mo.Option[string]
}

// Split extracts individual card texts from a blob containing zero or
// more BEGIN:VCARD/END:VCARD blocks. A card whose END:VCARD never arrives
// is dropped. Folded lines are left folded; only whole-card extraction
// happens here.
func Split(text string) []string {
	var cards []string
	var current []string
	inCard := false

	for _, line := range splitLines(text) {
		trimmed := strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(trimmed, "BEGIN:VCARD"):
			inCard = true
			current = []string{trimmed}
		case strings.HasPrefix(trimmed, "END:VCARD"):
			if inCard {
				current = append(current, trimmed)
				cards = append(cards, strings.Join(current, "\r\n"))
			}
			inCard = false
			current = nil
		default:
			if inCard {
				current = append(current, line)
			}
		}
	}
	return cards
}

// Parse splits and decodes every complete card in the blob.
func Parse(text string) []PartialContact {
	var contacts []PartialContact
	for _, card := range Split(text) {
		contacts = append(contacts, parseCard(card))
	}
	return contacts
}

func parseCard(card string) PartialContact {
	var c PartialContact
	sawEmail := false
	sawPhone := false

	for _, line := range Unfold(card) {
		name, value, ok := splitProperty(line)
		if !ok {
			continue
		}
		switch name {
		case "UID":
			c.UID = mo.Some(value)
		case "N":
			parseName(&c, value)
		case "FN":
			c.DisplayName = mo.Some(value)
		case "EMAIL":
			if !sawEmail {
				c.Email = mo.Some(value)
				sawEmail = true
			}
		case "TEL":
			if !sawPhone {
				c.Phone = mo.Some(value)
				sawPhone = true
			}
		case "NOTE":
			c.Notes = mo.Some(unescape(value))
		}
	}
	return c
}

// parseName decodes the structured N property: family, given, middle
// name(s) space-joined into one field, then suffix.
func parseName(c *PartialContact, value string) {
	parts := splitEscaped(value, ';')
	if len(parts) > 0 && parts[0] != "" {
		c.LastName = mo.Some(unescape(parts[0]))
	}
	if len(parts) > 1 && parts[1] != "" {
		c.FirstName = mo.Some(unescape(parts[1]))
	}
	if len(parts) > 2 && parts[2] != "" {
		middles := splitEscaped(parts[2], ',')
		for i := range middles {
			middles[i] = unescape(middles[i])
		}
		c.MiddleName = mo.Some(strings.Join(middles, " "))
	}
	if len(parts) > 3 && parts[3] != "" {
		c.Suffix = mo.Some(unescape(parts[3]))
	}
}

// Generate emits a minimal vCard for a brand-new contact.
func Generate(contactID, firstName, lastName string) string {
	var sb strings.Builder
	sb.WriteString("BEGIN:VCARD\r\n")
	sb.WriteString("VERSION:4.0\r\n")
	sb.WriteString(fmt.Sprintf("N:%s;%s;\r\n", Escape(lastName), Escape(firstName)))
	// The trailing space is retained when lastName is absent.
	sb.WriteString(fmt.Sprintf("FN:%s %s\r\n", Escape(firstName), Escape(lastName)))
	sb.WriteString(fmt.Sprintf("UID:%s\r\n", contactID))
	sb.WriteString("END:VCARD\r\n")
	return sb.String()
}

// Update rewrites fields of an existing card textually, preserving line
// order and all untouched lines verbatim. Name updates rewrite the N and
// FN lines in place keeping other N subfields; email, phone, and notes
// rewrite the matching line when one exists (keeping any TYPE parameter
// already present) or append a new TYPE=HOME line when none does.
func Update(cardText string, u Updates) string {
	lines := splitLines(cardText)
	endsWithNewline := strings.HasSuffix(cardText, "\n")

	first, hasFirst := u.FirstName.Get()
	last, hasLast := u.LastName.Get()
	if hasFirst || hasLast {
		lines = updateNameLines(lines, first, hasFirst, last, hasLast)
	}

	type fieldUpdate struct {
		prop  string
		value mo.Option[string]
	}
	for _, fu := range []fieldUpdate{
		{"EMAIL", u.Email},
		{"TEL", u.Phone},
		{"NOTE", u.Notes},
	} {
		value, ok := fu.value.Get()
		if !ok {
			continue
		}
		lines = updatePropertyLine(lines, fu.prop, Escape(value))
	}

	out := strings.Join(lines, "\r\n")
	if endsWithNewline && !strings.HasSuffix(out, "\n") {
		out += "\r\n"
	}
	return out
}

func updateNameLines(lines []string, first string, hasFirst bool, last string, hasLast bool) []string {
	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\r")
		name, value, ok := splitProperty(trimmed)
		if !ok {
			continue
		}
		switch name {
		case "N":
			parts := splitEscaped(value, ';')
			for len(parts) < 2 {
				parts = append(parts, "")
			}
			if hasLast {
				parts[0] = Escape(last)
			}
			if hasFirst {
				parts[1] = Escape(first)
			}
			prefix := trimmed[:strings.Index(trimmed, ":")]
			lines[i] = prefix + ":" + strings.Join(parts, ";")
		case "FN":
			fn := first
			if !hasFirst || !hasLast {
				// Keep the half that is not being replaced.
				curFirst, curLast := splitDisplayName(value)
				if !hasFirst {
					fn = curFirst
				}
				if hasLast {
					curLast = last
				}
				lines[i] = "FN:" + fn + " " + curLast
				continue
			}
			lines[i] = "FN:" + fn + " " + last
		}
	}
	return lines
}

func splitDisplayName(fn string) (first, last string) {
	idx := strings.IndexByte(fn, ' ')
	if idx < 0 {
		return fn, ""
	}
	return fn[:idx], fn[idx+1:]
}

// updatePropertyLine rewrites the first line carrying prop, keeping its
// parameters, or appends a TYPE=HOME line before END:VCARD.
func updatePropertyLine(lines []string, prop, escaped string) []string {
	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\r")
		name, _, ok := splitProperty(trimmed)
		if !ok || name != prop {
			continue
		}
		colon := strings.Index(trimmed, ":")
		lines[i] = trimmed[:colon+1] + escaped
		return lines
	}

	newLine := prop + ";TYPE=HOME:" + escaped
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimRight(line, "\r"), "END:VCARD") {
			out := append([]string{}, lines[:i]...)
			out = append(out, newLine)
			return append(out, lines[i:]...)
		}
	}
	return append(lines, newLine)
}

// Unfold merges continuation lines: a line starting with a single leading
// space (or tab) is appended, without that character, to the previous
// logical line.
func Unfold(text string) []string {
	var lines []string
	for _, raw := range splitLines(text) {
		raw = strings.TrimRight(raw, "\r")
		if len(lines) > 0 && (strings.HasPrefix(raw, " ") || strings.HasPrefix(raw, "\t")) {
			lines[len(lines)-1] += raw[1:]
			continue
		}
		lines = append(lines, raw)
	}
	return lines
}

// splitProperty separates a content line into its property name (before
// any parameters) and value.
func splitProperty(line string) (name, value string, ok bool) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return "", "", false
	}
	name = line[:colon]
	if semi := strings.IndexByte(name, ';'); semi >= 0 {
		name = name[:semi]
	}
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return "", "", false
	}
	return name, line[colon+1:], true
}

// Escape backslash-escapes literal commas and newlines in a field value.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// unescape decodes \n to newline and \, to comma, dropping stray \r.
func unescape(s string) string {
	s = strings.ReplaceAll(s, "\\n", "\n")
	s = strings.ReplaceAll(s, "\\N", "\n")
	s = strings.ReplaceAll(s, "\\,", ",")
	return strings.ReplaceAll(s, "\r", "")
}

// splitEscaped splits on sep, honoring backslash escapes.
func splitEscaped(s string, sep byte) []string {
	var parts []string
	var current strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			current.WriteByte('\\')
			current.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == sep:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	if escaped {
		current.WriteByte('\\')
	}
	parts = append(parts, current.String())
	return parts
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}
