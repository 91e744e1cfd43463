package stepio

import (
	"strings"
	"testing"
)

func TestBuffer_GrowAccumulatesText(t *testing.T) {
	src := strings.Repeat("x", 10000)
	buf := NewBuffer(strings.NewReader(src))

	for buf.Len() < len(src) && !buf.AtEOF() {
		if err := buf.Grow(); err != nil {
			t.Fatalf("Grow() error: %v", err)
		}
	}

	if buf.Text() != src {
		t.Fatalf("Text() length = %d, want %d", len(buf.Text()), len(src))
	}
}

func TestBuffer_ConsumeAdvances(t *testing.T) {
	buf := NewBuffer(strings.NewReader("abcdef"))
	if err := buf.Grow(); err != nil {
		t.Fatalf("Grow() error: %v", err)
	}
	buf.Consume(3)
	if got := buf.Text(); got != "def" {
		t.Fatalf("Text() after Consume(3) = %q, want %q", got, "def")
	}
}

func TestBuffer_MultibyteUTF8NotSplit(t *testing.T) {
	src := strings.Repeat("é", 100) // 2-byte UTF-8 sequences
	buf := NewBuffer(strings.NewReader(src))
	for !buf.AtEOF() {
		if err := buf.Grow(); err != nil {
			t.Fatalf("Grow() error: %v", err)
		}
	}
	if buf.Text() != src {
		t.Fatalf("Text() = %q, want %q", buf.Text(), src)
	}
}

func TestBuffer_GrowAtEOFReturnsEndOfInput(t *testing.T) {
	buf := NewBuffer(strings.NewReader(""))
	err := buf.Grow()
	if err == nil {
		t.Fatal("expected an error growing an already-exhausted empty reader")
	}
	serr, ok := err.(*Error)
	if !ok || serr.Kind != KindEndOfInput {
		t.Fatalf("Grow() error = %v, want KindEndOfInput", err)
	}
}
