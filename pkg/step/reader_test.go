package step

import (
	"io"
	"strings"
	"testing"
)

func readAll(t *testing.T, src string) []Entry {
	t.Helper()
	r := NewReader(strings.NewReader(src))
	var entries []Entry
	for {
		e, err := r.Next()
		if err == io.EOF {
			return entries
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		entries = append(entries, e)
	}
}

func TestReader_SimpleFile(t *testing.T) {
	src := `ISO-10303-21;
HEADER;
FILE_DESCRIPTION((''),'2;1');
ENDSEC;
DATA;
#1=CARTESIAN_POINT('',(0.,0.,0.));
#2=DIRECTION('',(0.,0.,1.));
ENDSEC;
END-ISO-10303-21;
`
	entries := readAll(t, src)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].Id != 1 || entries[0].Definition != "CARTESIAN_POINT('',(0.,0.,0.))" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Id != 2 {
		t.Errorf("entries[1].Id = %d, want 2", entries[1].Id)
	}
}

func TestReader_MultilineEntryCollapsesWhitespace(t *testing.T) {
	src := "ISO-10303-21;HEADER;ENDSEC;DATA;\n#1 = IFCFOO('FOO',\n  #2);\nENDSEC;END-ISO-10303-21;"
	entries := readAll(t, src)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	want := "IFCFOO('FOO', #2)"
	if entries[0].Definition != want {
		t.Errorf("Definition = %q, want %q", entries[0].Definition, want)
	}
}

func TestReader_CommentsIgnored(t *testing.T) {
	src := "ISO-10303-21;HEADER;/* a header comment */ENDSEC;DATA;#1=FOO(/*inline*/#2);ENDSEC;END-ISO-10303-21;"
	entries := readAll(t, src)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(entries), entries)
	}
	want := "FOO( #2)"
	if entries[0].Definition != want {
		t.Errorf("Definition = %q, want %q", entries[0].Definition, want)
	}
}

func TestReader_NoDataSectionIsError(t *testing.T) {
	r := NewReader(strings.NewReader("ISO-10303-21;HEADER;"))
	_, err := r.Next()
	if err == nil {
		t.Fatal("expected an error for missing DATA section")
	}
}

func TestReader_EmptyDataSection(t *testing.T) {
	src := "ISO-10303-21;HEADER;ENDSEC;DATA;ENDSEC;END-ISO-10303-21;"
	entries := readAll(t, src)
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}
