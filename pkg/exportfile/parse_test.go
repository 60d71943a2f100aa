package exportfile

import (
	"strings"
	"testing"
)

func TestParse_KeyValueLines(t *testing.T) {
	in := strings.Join([]string{
		"Assembly Job Export v2",
		"WO#|12345-1",
		"Quote#|Q-9912",
		"Customer|Acme Boards",
		"Status|Active",
		"Credit Hold|NO",
		"Order Date|07/14/2026||",
		"Notes|packs: 2|3|4",
	}, "\n")

	fields, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if got := fields.Get(KeyWorkOrder); got != "12345-1" {
		t.Fatalf("WO#: got %q", got)
	}
	if got := fields.Get(KeyOrderDate); got != "07/14/2026" {
		t.Fatalf("trailing delimiters not stripped: got %q", got)
	}
	// Only the first delimiter splits; the rest belongs to the value.
	if got := fields.Get("Notes"); got != "packs: 2|3|4" {
		t.Fatalf("Notes: got %q", got)
	}
	if _, ok := fields["Assembly Job Export v2"]; ok {
		t.Fatalf("delimiterless header line should be skipped")
	}
}

func TestParse_DuplicateKeysKeepLast(t *testing.T) {
	fields, err := Parse(strings.NewReader("Status|Hold\nStatus|Active\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := fields.Get(KeyStatus); got != "Active" {
		t.Fatalf("Status: got %q want %q", got, "Active")
	}
}

func TestParse_InvalidUTF8Dropped(t *testing.T) {
	in := "Customer|Acme \xff\xfeBoards\n"
	fields, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := fields.Get(KeyCustomer); got != "Acme Boards" {
		t.Fatalf("Customer: got %q", got)
	}
}

func TestFields_OnHold(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"YES", true},
		{"yes", true},
		{" YES ", true},
		{"NO", false},
		{"", false},
	}
	for _, tc := range cases {
		f := Fields{KeyCreditHold: tc.value}
		if got := f.OnHold(); got != tc.want {
			t.Fatalf("OnHold(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}
