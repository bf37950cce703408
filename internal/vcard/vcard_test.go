package vcard

import (
	"strings"
	"testing"

	"github.com/samber/mo"
)

func some(s string) mo.Option[string] { return mo.Some(s) }

func TestSplitDropsIncompleteCard(t *testing.T) {
	input := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:4.0",
		"FN:Truncated Person",
		// no END:VCARD; stream restarts
		"BEGIN:VCARD",
		"VERSION:4.0",
		"FN:Complete Person",
		"UID:abc-123",
		"END:VCARD",
	}, "\r\n")

	cards := Split(input)
	if len(cards) != 1 {
		t.Fatalf("Split() returned %d cards, want 1", len(cards))
	}
	if !strings.Contains(cards[0], "FN:Complete Person") {
		t.Errorf("surviving card should be the complete one, got:\n%s", cards[0])
	}
}

func TestSplitEmptyInput(t *testing.T) {
	if cards := Split(""); len(cards) != 0 {
		t.Errorf("Split(\"\") returned %d cards, want 0", len(cards))
	}
}

func TestSplitLeavesFoldingIntact(t *testing.T) {
	input := "BEGIN:VCARD\r\nNOTE:line one\r\n  folded\r\nEND:VCARD\r\n"
	cards := Split(input)
	if len(cards) != 1 {
		t.Fatalf("Split() returned %d cards, want 1", len(cards))
	}
	if !strings.Contains(cards[0], "\r\n  folded") {
		t.Error("Split() must not unfold continuation lines")
	}
}

func TestParseFoldedPhotoStaysOneCard(t *testing.T) {
	input := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:4.0",
		"PHOTO;VALUE=URI:data:image/jpeg;base64,AAAABBBBCCCC",
		" DDDDEEEEFFFF",
		" GGGGHHHH",
		"UID:photo-card",
		"FN:Pat Photo",
		"END:VCARD",
	}, "\r\n")

	contacts := Parse(input)
	if len(contacts) != 1 {
		t.Fatalf("Parse() returned %d contacts, want 1", len(contacts))
	}
	if uid := contacts[0].UID.OrElse(""); uid != "photo-card" {
		t.Errorf("UID = %q, want photo-card", uid)
	}

	unfolded := Unfold(input)
	for _, line := range unfolded {
		if strings.HasPrefix(line, "PHOTO") {
			if !strings.HasSuffix(line, "DDDDEEEEFFFFGGGGHHHH") {
				t.Errorf("folded PHOTO not joined into one logical line: %q", line)
			}
			return
		}
	}
	t.Fatal("PHOTO line not found after unfolding")
}

func TestParseRecognizedProperties(t *testing.T) {
	input := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:4.0",
		"UID:u-1",
		"N:Doe;Jane;Marie,Anne;Jr.",
		"FN:Jane Doe",
		"EMAIL;TYPE=WORK:jane@example.com",
		"EMAIL:second@example.com",
		"TEL;TYPE=CELL:+15550001111",
		"TEL:+15559998888",
		"NOTE:First line\\nsecond\\, with comma",
		"X-UNKNOWN:ignored",
		"END:VCARD",
	}, "\r\n")

	contacts := Parse(input)
	if len(contacts) != 1 {
		t.Fatalf("Parse() returned %d contacts, want 1", len(contacts))
	}
	c := contacts[0]

	if got := c.LastName.OrElse(""); got != "Doe" {
		t.Errorf("LastName = %q, want Doe", got)
	}
	if got := c.FirstName.OrElse(""); got != "Jane" {
		t.Errorf("FirstName = %q, want Jane", got)
	}
	if got := c.MiddleName.OrElse(""); got != "Marie Anne" {
		t.Errorf("MiddleName = %q, want \"Marie Anne\"", got)
	}
	if got := c.Suffix.OrElse(""); got != "Jr." {
		t.Errorf("Suffix = %q, want Jr.", got)
	}
	if got := c.Email.OrElse(""); got != "jane@example.com" {
		t.Errorf("Email = %q, want first occurrence", got)
	}
	if got := c.Phone.OrElse(""); got != "+15550001111" {
		t.Errorf("Phone = %q, want first occurrence", got)
	}
	if got := c.Notes.OrElse(""); got != "First line\nsecond, with comma" {
		t.Errorf("Notes = %q", got)
	}
}

func TestParseAbsentFieldsStayAbsent(t *testing.T) {
	input := "BEGIN:VCARD\r\nVERSION:4.0\r\nFN:Solo\r\nEND:VCARD\r\n"
	contacts := Parse(input)
	if len(contacts) != 1 {
		t.Fatalf("Parse() returned %d contacts, want 1", len(contacts))
	}
	c := contacts[0]

	if c.UID.IsPresent() {
		t.Error("UID must stay absent, never fabricated by the parser")
	}
	if c.Email.IsPresent() || c.Phone.IsPresent() || c.Notes.IsPresent() {
		t.Error("absent optional fields must not be defaulted")
	}
}

func TestParseEmptyNotePresent(t *testing.T) {
	input := "BEGIN:VCARD\r\nNOTE:\r\nEND:VCARD\r\n"
	contacts := Parse(input)
	if len(contacts) != 1 {
		t.Fatalf("Parse() returned %d contacts, want 1", len(contacts))
	}
	notes, present := contacts[0].Notes.Get()
	if !present {
		t.Fatal("empty NOTE should still be present")
	}
	if notes != "" {
		t.Errorf("Notes = %q, want empty string", notes)
	}
}

func TestGenerate(t *testing.T) {
	card := Generate("id-42", "Ada", "Lovelace")
	want := "BEGIN:VCARD\r\nVERSION:4.0\r\nN:Lovelace;Ada;\r\nFN:Ada Lovelace\r\nUID:id-42\r\nEND:VCARD\r\n"
	if card != want {
		t.Errorf("Generate() =\n%q\nwant\n%q", card, want)
	}
}

func TestGenerateNoLastName(t *testing.T) {
	card := Generate("id-7", "Cher", "")
	if !strings.Contains(card, "FN:Cher \r\n") {
		t.Errorf("trailing space must be retained when lastName is absent:\n%q", card)
	}
	if !strings.Contains(card, "N:;Cher;\r\n") {
		t.Errorf("N line wrong:\n%q", card)
	}
}

func TestGenerateEscapesCommas(t *testing.T) {
	card := Generate("id-9", "Anna", "Smith, PhD")
	if !strings.Contains(card, "N:Smith\\, PhD;Anna;") {
		t.Errorf("comma not escaped in N line:\n%q", card)
	}
	if !strings.Contains(card, "FN:Anna Smith\\, PhD\r\n") {
		t.Errorf("comma not escaped in FN line:\n%q", card)
	}
}

func TestUpdateRewritesNameInPlace(t *testing.T) {
	card := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:4.0",
		"N:Old;Name;Middle;Sr.",
		"FN:Name Old",
		"UID:u-5",
		"END:VCARD",
	}, "\r\n")

	updated := Update(card, Updates{
		FirstName: some("New"),
		LastName:  some("Fresh"),
	})

	lines := strings.Split(updated, "\r\n")
	if lines[2] != "N:Fresh;New;Middle;Sr." {
		t.Errorf("N line = %q, other subfields must be preserved", lines[2])
	}
	if lines[3] != "FN:New Fresh" {
		t.Errorf("FN line = %q", lines[3])
	}
	if lines[4] != "UID:u-5" {
		t.Errorf("untouched lines must survive verbatim, got %q", lines[4])
	}
}

func TestUpdateRewritesExistingEmailKeepingType(t *testing.T) {
	card := "BEGIN:VCARD\r\nEMAIL;TYPE=WORK:old@example.com\r\nEND:VCARD"
	updated := Update(card, Updates{Email: some("new@example.com")})
	if !strings.Contains(updated, "EMAIL;TYPE=WORK:new@example.com") {
		t.Errorf("TYPE parameter must be preserved:\n%s", updated)
	}
}

func TestUpdateAppendsMissingPhone(t *testing.T) {
	card := "BEGIN:VCARD\r\nFN:Someone\r\nEND:VCARD"
	updated := Update(card, Updates{Phone: some("+15550002222")})
	lines := strings.Split(updated, "\r\n")
	if lines[2] != "TEL;TYPE=HOME:+15550002222" {
		t.Errorf("appended line = %q, want TEL;TYPE=HOME before END:VCARD", lines[2])
	}
	if lines[3] != "END:VCARD" {
		t.Errorf("END:VCARD must remain last, got %q", lines[3])
	}
}

func TestUpdatePreservesLineOrder(t *testing.T) {
	card := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:4.0",
		"X-CUSTOM:keep me",
		"TEL:+15550000000",
		"ORG:Acme",
		"END:VCARD",
	}, "\r\n")

	updated := Update(card, Updates{Phone: some("+15551234567")})
	want := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:4.0",
		"X-CUSTOM:keep me",
		"TEL:+15551234567",
		"ORG:Acme",
		"END:VCARD",
	}, "\r\n")
	if updated != want {
		t.Errorf("Update() =\n%s\nwant\n%s", updated, want)
	}
}
