package stepmap

import (
	"encoding/json"
	"testing"
)

func TestEncodeVLQ_NonEmptyForEveryValue(t *testing.T) {
	tests := []int{0, 1, -1, 15, -15, 16, -16, 1000, -1000}
	for _, n := range tests {
		encoded := encodeVLQ(n)
		if encoded == "" {
			t.Errorf("encodeVLQ(%d) produced empty string", n)
		}
	}
}

func TestIndex_AssignsStableFirstSeenOrder(t *testing.T) {
	idx := newIndex()
	if got := idx.indexOf("a"); got != 0 {
		t.Errorf("first indexOf = %d, want 0", got)
	}
	if got := idx.indexOf("b"); got != 1 {
		t.Errorf("second distinct indexOf = %d, want 1", got)
	}
	if got := idx.indexOf("a"); got != 0 {
		t.Errorf("repeat indexOf = %d, want 0 (stable)", got)
	}
	if len(idx.values) != 2 {
		t.Errorf("len(values) = %d, want 2", len(idx.values))
	}
}

func TestBuilder_EncodeProducesValidJSON(t *testing.T) {
	b := NewBuilder("merged.stp")
	b.AddMapping(1, "", 1, "1")
	b.AddMapping(2, "", 2, "2")
	b.AddMapping(10, "part.step", 14, "26")
	b.AddMapping(11, "part.step", 20, "34")

	data, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	var sm sourceMapV3
	if err := json.Unmarshal(data, &sm); err != nil {
		t.Fatalf("Encode() produced invalid JSON: %v", err)
	}
	if sm.Version != 3 {
		t.Errorf("Version = %d, want 3", sm.Version)
	}
	if sm.File != "merged.stp" {
		t.Errorf("File = %q, want merged.stp", sm.File)
	}
	if len(sm.Sources) != 2 {
		t.Errorf("Sources = %v, want 2 distinct entries", sm.Sources)
	}
	if sm.Mappings == "" {
		t.Error("Mappings should not be empty")
	}
}

func TestBuilder_EncodeThenParseRoundTrips(t *testing.T) {
	b := NewBuilder("merged.stp")
	b.AddMapping(1, "", 1, "1")
	b.AddMapping(5, "part.step", 14, "26")
	b.AddMapping(6, "part.step", 20, "34")
	b.AddMapping(9, "other.step", 3, "50")

	data, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	c, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	tests := []struct {
		genLine    int
		wantFile   string
		wantSource int
		wantName   string
	}{
		{1, "", 1, "1"},
		{5, "part.step", 14, "26"},
		{6, "part.step", 20, "34"},
		{9, "other.step", 3, "50"},
	}
	for _, tt := range tests {
		file, line, name, ok := c.Source(tt.genLine)
		if !ok {
			t.Errorf("Source(%d) not found", tt.genLine)
			continue
		}
		if file != tt.wantFile || line != tt.wantSource || name != tt.wantName {
			t.Errorf("Source(%d) = (%q, %d, %q), want (%q, %d, %q)",
				tt.genLine, file, line, name, tt.wantFile, tt.wantSource, tt.wantName)
		}
	}
}

func TestBuilder_NoMappingsEncodesEmpty(t *testing.T) {
	b := NewBuilder("merged.stp")
	data, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	var sm sourceMapV3
	if err := json.Unmarshal(data, &sm); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sm.Mappings != "" {
		t.Errorf("Mappings = %q, want empty", sm.Mappings)
	}
}
