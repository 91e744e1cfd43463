package step

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWriter_EmitsPrologueBodyAndEndsec(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{
		ImplementationLevel: "2;1",
		Filename:            "merged.step",
		Schemas:             []string{"CONFIG_CONTROL_DESIGN"},
		Now:                 time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	if err := w.WriteEntry(Entry{Id: 1, Definition: "CARTESIAN_POINT('',(0.,0.,0.))"}); err != nil {
		t.Fatalf("WriteEntry() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "ISO-10303-21;\n") {
		t.Errorf("missing ISO prologue: %q", out)
	}
	if !strings.Contains(out, "#1=CARTESIAN_POINT('',(0.,0.,0.));\n") {
		t.Errorf("missing entry line: %q", out)
	}
	if !strings.HasSuffix(out, "ENDSEC;\nEND-ISO-10303-21;\n") {
		t.Errorf("missing suffix: %q", out)
	}
}

func TestWriter_CloseIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{ImplementationLevel: "2;1", Schemas: []string{"S"}})
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close() error: %v", err)
	}
	first := buf.String()
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if buf.String() != first {
		t.Errorf("second Close() wrote more output")
	}
}

func TestWriter_WriteAfterClosePanics(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{ImplementationLevel: "2;1", Schemas: []string{"S"}})
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic writing after Close")
		}
	}()
	_ = w.WriteEntry(Entry{Id: 1, Definition: "FOO()"})
}

func TestWriter_MultipleSchemas(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterOptions{
		ImplementationLevel: "2;1",
		Schemas:             []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	w.Close()
	if !strings.Contains(buf.String(), "FILE_SCHEMA(('A'),('B'));") {
		t.Errorf("missing multi-schema FILE_SCHEMA line: %q", buf.String())
	}
}
