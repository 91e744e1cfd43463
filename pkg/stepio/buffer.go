package stepio

import (
	"io"
	"unicode/utf8"
)

// defaultCapacity is the buffer's starting capacity; it doubles on Grow.
const defaultCapacity = 4096

// Buffer is a growable byte buffer over a blocking io.Reader. It exposes
// the longest UTF-8-valid prefix of what it has read as text, tracks how
// much of that prefix a caller has consumed, and refills by doubling its
// capacity when more room is needed. No byte is ever handed to a caller
// (via Text) more than once: Consume permanently discards a prefix.
type Buffer struct {
	r        io.Reader
	data     []byte // data[0:filled] holds bytes read but not yet consumed
	filled   int
	validLen int // length of data[0:filled] that is valid UTF-8
	eof      bool
}

// NewBuffer wraps r in a Buffer with the default starting capacity.
func NewBuffer(r io.Reader) *Buffer {
	return &Buffer{r: r, data: make([]byte, defaultCapacity)}
}

// Text returns the validated UTF-8 prefix of the buffered bytes not yet
// consumed. The returned string is a copy; later calls to Consume or
// Grow do not change it.
func (b *Buffer) Text() string {
	return string(b.data[:b.validLen])
}

// Len reports the number of valid, unconsumed bytes currently buffered.
func (b *Buffer) Len() int {
	return b.validLen
}

// AtEOF reports whether the underlying reader has signaled end-of-input
// and every buffered byte has been validated (no incomplete trailing rune
// is being held back).
func (b *Buffer) AtEOF() bool {
	return b.eof && b.validLen == b.filled
}

// Consume permanently discards the first n bytes of the valid prefix,
// shifting remaining bytes to the front of the buffer.
func (b *Buffer) Consume(n int) {
	if n <= 0 {
		return
	}
	if n > b.filled {
		n = b.filled
	}
	copy(b.data, b.data[n:b.filled])
	b.filled -= n
	b.validLen -= n
	if b.validLen < 0 {
		b.validLen = 0
	}
}

// Grow doubles the buffer's capacity (if needed to make room) and
// refills it from the underlying reader. It reads until either the
// destination is full or the reader signals end-of-input, holding back
// any incomplete trailing UTF-8 sequence for re-validation on the next
// call. Grow returns a stepio.Error of KindEndOfInput if the caller
// already has the entirety of the reader buffered and still wants more,
// or KindIoRead if the underlying reader fails outright.
func (b *Buffer) Grow() error {
	if b.AtEOF() {
		return New(KindEndOfInput, "no more input available")
	}
	if b.filled == len(b.data) {
		grown := make([]byte, len(b.data)*2)
		copy(grown, b.data[:b.filled])
		b.data = grown
	}

	if !b.eof {
		for b.filled < len(b.data) {
			n, err := b.r.Read(b.data[b.filled:])
			b.filled += n
			if err == io.EOF {
				b.eof = true
				break
			}
			if err != nil {
				return Wrap(KindIoRead, err, "reading STEP input")
			}
			if n == 0 {
				b.eof = true
				break
			}
		}
	}

	b.revalidate()
	return nil
}

// revalidate recomputes validLen: the longest prefix of data[0:filled]
// that is well-formed UTF-8, holding back an incomplete trailing
// multi-byte sequence so it can be completed by a later refill.
func (b *Buffer) revalidate() {
	data := b.data[:b.filled]
	valid := 0
	for valid < len(data) {
		r, size := utf8.DecodeRune(data[valid:])
		if r == utf8.RuneError && size <= 1 {
			// Either a genuinely invalid byte, or an incomplete
			// sequence at the very end of the buffered bytes.
			if b.eof || !incompleteAtEnd(data[valid:]) {
				// A real decoding error: stop validating here.
				break
			}
			// Incomplete trailing sequence, more bytes may arrive.
			break
		}
		valid += size
	}
	b.validLen = valid
}

// incompleteAtEnd reports whether buf looks like the start of a
// multi-byte UTF-8 sequence that has been truncated by the end of the
// buffered data (as opposed to being genuinely malformed).
func incompleteAtEnd(buf []byte) bool {
	if len(buf) == 0 || len(buf) >= utf8.UTFMax {
		return false
	}
	first := buf[0]
	var want int
	switch {
	case first&0x80 == 0x00:
		want = 1
	case first&0xE0 == 0xC0:
		want = 2
	case first&0xF0 == 0xE0:
		want = 3
	case first&0xF8 == 0xF0:
		want = 4
	default:
		return false
	}
	return want > len(buf)
}
