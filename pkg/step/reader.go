package step

import (
	"io"
	"strconv"
	"strings"

	"github.com/stepworks/stepmerger/pkg/stepio"
)

type readerState int

const (
	stateStart readerState = iota
	stateExpectStartTag
	stateExpectSemiAfterStart
	stateSeekData
	stateExpectSemiAfterData
	stateBody
	stateDone
)

// Reader drives a stepio.Buffer + stepio.TokenStream to emit a lazy,
// non-restartable sequence of Entry values. It never retains entries:
// memory is bounded by the current buffer and the in-flight definition
// string being assembled.
type Reader struct {
	ts    *stepio.TokenStream
	state readerState
}

// NewReader constructs a Reader over r. Construction does not read
// anything yet; the ISO-10303-21 prologue and HEADER section are
// consumed lazily on the first call to Next.
func NewReader(r io.Reader) *Reader {
	buf := stepio.NewBuffer(r)
	return &Reader{ts: stepio.NewTokenStream(buf), state: stateStart}
}

// Next returns the next Entry in the file, or io.EOF once the DATA
// section's ENDSEC; has been consumed. Any other returned error is a
// *stepio.Error describing the structural violation.
func (r *Reader) Next() (Entry, error) {
	if r.state == stateStart {
		if err := r.consumePrologue(); err != nil {
			return Entry{}, err
		}
	}
	if r.state == stateDone {
		return Entry{}, io.EOF
	}
	return r.nextBodyEntry()
}

// consumePrologue consumes "ISO-10303-21 ;", then discards tokens
// (the opaque HEADER section) until a Data keyword followed by ";".
func (r *Reader) consumePrologue() error {
	r.state = stateExpectStartTag
	tok, err := r.nextSignificant()
	if err != nil {
		if err == io.EOF {
			return stepio.New(stepio.KindNoDataSection, "input ended before ISO-10303-21;")
		}
		return err
	}
	if tok.Kind != stepio.TokStartTag {
		return unexpected("StartTag", tok)
	}

	r.state = stateExpectSemiAfterStart
	tok, err = r.nextSignificant()
	if err != nil {
		return eofToNoData(err)
	}
	if tok.Kind != stepio.TokSem {
		return unexpected("Sem", tok)
	}

	r.state = stateSeekData
	for {
		tok, err = r.nextSignificant()
		if err != nil {
			return eofToNoData(err)
		}
		if tok.Kind == stepio.TokData {
			break
		}
	}

	r.state = stateExpectSemiAfterData
	tok, err = r.nextSignificant()
	if err != nil {
		return eofToNoData(err)
	}
	if tok.Kind != stepio.TokSem {
		return unexpected("Sem", tok)
	}

	r.state = stateBody
	return nil
}

func eofToNoData(err error) error {
	if err == io.EOF {
		return stepio.New(stepio.KindNoDataSection, "input ended before DATA;")
	}
	return err
}

// eofInData maps an io.EOF met after DATA; has been consumed to the same
// error nextBodyEntry reports for input that ends inside the DATA section.
func eofInData(err error) error {
	if err == io.EOF {
		return stepio.New(stepio.KindUnexpectedToken, "input ended inside the DATA section")
	}
	return err
}

// nextSignificant returns the next token that is not Whitespace or
// Comment.
func (r *Reader) nextSignificant() (stepio.Token, error) {
	for {
		tok, err := r.ts.Next()
		if err != nil {
			return stepio.Token{}, err
		}
		if tok.Kind == stepio.TokWhitespace || tok.Kind == stepio.TokComment {
			continue
		}
		return tok, nil
	}
}

func (r *Reader) nextBodyEntry() (Entry, error) {
	tok, err := r.nextSignificant()
	if err != nil {
		if err == io.EOF {
			return Entry{}, stepio.New(stepio.KindUnexpectedToken, "input ended inside the DATA section")
		}
		return Entry{}, err
	}

	switch tok.Kind {
	case stepio.TokEndsec:
		semi, err := r.nextSignificant()
		if err != nil {
			return Entry{}, eofInData(err)
		}
		if semi.Kind != stepio.TokSem {
			return Entry{}, unexpected("Sem", semi)
		}
		r.state = stateDone
		return Entry{}, io.EOF
	case stepio.TokReference:
		return r.readEntryBody(tok.Ref)
	default:
		return Entry{}, unexpected("Reference or Endsec", tok)
	}
}

func (r *Reader) readEntryBody(id uint64) (Entry, error) {
	eq, err := r.nextSignificant()
	if err != nil {
		return Entry{}, eofInData(err)
	}
	if eq.Kind != stepio.TokEq {
		return Entry{}, unexpected("Eq", eq)
	}

	var sb strings.Builder
	pendingSpace := false
	for {
		tok, err := r.ts.Next()
		if err != nil {
			return Entry{}, eofInData(err)
		}
		if tok.Kind == stepio.TokSem {
			break
		}
		switch tok.Kind {
		case stepio.TokWhitespace, stepio.TokComment:
			pendingSpace = true
			continue
		case stepio.TokString:
			flushSpace(&sb, &pendingSpace)
			sb.WriteByte('\'')
			sb.WriteString(tok.Text)
			sb.WriteByte('\'')
		case stepio.TokReference:
			flushSpace(&sb, &pendingSpace)
			sb.WriteByte('#')
			sb.WriteString(strconv.FormatUint(tok.Ref, 10))
		case stepio.TokEq:
			flushSpace(&sb, &pendingSpace)
			sb.WriteByte('=')
		case stepio.TokDefinition:
			flushSpace(&sb, &pendingSpace)
			sb.WriteString(tok.Text)
		default:
			return Entry{}, unexpected("entry body content", tok)
		}
	}

	return Entry{Id: id, Definition: sb.String()}, nil
}

func flushSpace(sb *strings.Builder, pending *bool) {
	if *pending && sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	*pending = false
}

func unexpected(expected string, got stepio.Token) error {
	return stepio.New(stepio.KindUnexpectedToken, "expected %s, got %s", expected, got.Kind)
}
