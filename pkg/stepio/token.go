package stepio

import (
	"io"
	"strconv"
	"strings"
)

// TokenKind enumerates the closed STEP token set of spec §4.2.
type TokenKind int

const (
	TokStartTag TokenKind = iota
	TokEndTag
	TokHeader
	TokData
	TokEndsec
	TokSem
	TokEq
	TokReference
	TokString
	TokComment
	TokWhitespace
	TokDefinition
)

func (k TokenKind) String() string {
	switch k {
	case TokStartTag:
		return "StartTag"
	case TokEndTag:
		return "EndTag"
	case TokHeader:
		return "Header"
	case TokData:
		return "Data"
	case TokEndsec:
		return "Endsec"
	case TokSem:
		return "Sem"
	case TokEq:
		return "Eq"
	case TokReference:
		return "Reference"
	case TokString:
		return "String"
	case TokComment:
		return "Comment"
	case TokWhitespace:
		return "Whitespace"
	case TokDefinition:
		return "Definition"
	default:
		return "Unknown"
	}
}

// Token is a single lexical unit produced by the token stream. Text holds
// the decoded payload for String/Comment/Definition tokens (for String,
// the bytes between the quotes; for Comment, the bytes between /* and
// */); Ref holds the parsed value for Reference tokens.
type Token struct {
	Kind TokenKind
	Text string
	Ref  uint64
}

const whitespaceChars = " \t\r\n\f"

// TokenStream lexes the validated UTF-8 prefix of a Buffer into Tokens,
// growing the buffer on demand when the current prefix ends mid-token.
// It never re-observes a byte once Next has returned it as part of a
// token: each call to Next consumes exactly the bytes of the token it
// returns.
type TokenStream struct {
	buf       *Buffer
	absOffset int64
}

// NewTokenStream creates a TokenStream over buf.
func NewTokenStream(buf *Buffer) *TokenStream {
	return &TokenStream{buf: buf}
}

// Offset reports the total number of bytes consumed from the underlying
// buffer by tokens already returned.
func (ts *TokenStream) Offset() int64 { return ts.absOffset }

// Next returns the next token, growing the buffer as needed. It returns
// io.EOF once the buffer is exhausted and at end-of-input with no
// partial token pending.
func (ts *TokenStream) Next() (Token, error) {
	for {
		text := ts.buf.Text()
		atEOF := ts.buf.AtEOF()

		tok, n, needMore, err := scan(text, atEOF)
		if err != nil {
			if se, ok := err.(*Error); ok && se.Offset < 0 {
				se.Offset = ts.absOffset
			}
			return Token{}, err
		}
		if needMore {
			if growErr := ts.buf.Grow(); growErr != nil {
				if se, ok := growErr.(*Error); ok && se.Kind == KindEndOfInput {
					// The buffer cannot grow further: whatever
					// partial token is pending is truncated input.
					return Token{}, NewAt(KindParsingToken, ts.absOffset, "truncated token at end of input")
				}
				return Token{}, growErr
			}
			continue
		}
		if n == 0 {
			// Nothing left to lex and at end-of-input.
			return Token{}, io.EOF
		}
		ts.buf.Consume(n)
		ts.absOffset += int64(n)
		return tok, nil
	}
}

// scan attempts to lex a single token from the head of text. It returns
// n (the byte length of the recognized token) and a token when one was
// recognized; it returns needMore=true when text is not yet sufficient
// to decide (and is not atEOF, so more input may resolve it); it returns
// a non-nil error for structural lexical failures.
func scan(text string, atEOF bool) (tok Token, n int, needMore bool, err error) {
	if len(text) == 0 {
		if atEOF {
			return Token{}, 0, false, nil
		}
		return Token{}, 0, true, nil
	}

	c := text[0]
	switch {
	case isWhitespace(c):
		return scanWhitespace(text, atEOF)
	case c == '\'':
		return scanString(text, atEOF)
	case c == '/':
		return scanComment(text, atEOF)
	case c == ';':
		return Token{Kind: TokSem}, 1, false, nil
	case c == '=':
		return Token{Kind: TokEq}, 1, false, nil
	case c == '#':
		return scanReference(text, atEOF)
	default:
		return scanIdentifierLike(text, atEOF)
	}
}

func isWhitespace(c byte) bool {
	return strings.IndexByte(whitespaceChars, c) >= 0
}

func isStopByte(c byte) bool {
	return isWhitespace(c) || c == ';' || c == '=' || c == '/' || c == '\'' || c == '#'
}

func scanWhitespace(text string, atEOF bool) (Token, int, bool, error) {
	i := 0
	for i < len(text) && isWhitespace(text[i]) {
		i++
	}
	if i == len(text) && !atEOF {
		return Token{}, 0, true, nil
	}
	return Token{Kind: TokWhitespace, Text: text[:i]}, i, false, nil
}

func scanString(text string, atEOF bool) (Token, int, bool, error) {
	// text[0] == '\''
	closeIdx := strings.IndexByte(text[1:], '\'')
	if closeIdx < 0 {
		if atEOF {
			return Token{}, 0, false, New(KindParsingToken, "unterminated string literal")
		}
		return Token{}, 0, true, nil
	}
	body := text[1 : 1+closeIdx]
	n := 1 + closeIdx + 1
	return Token{Kind: TokString, Text: body}, n, false, nil
}

func scanComment(text string, atEOF bool) (Token, int, bool, error) {
	// text[0] == '/'
	if len(text) < 2 {
		if atEOF {
			return Token{}, 0, false, New(KindParsingToken, "stray '/' outside comment")
		}
		return Token{}, 0, true, nil
	}
	if text[1] != '*' {
		return Token{}, 0, false, New(KindParsingToken, "stray '/' outside comment")
	}
	endIdx := strings.Index(text[2:], "*/")
	if endIdx < 0 {
		if atEOF {
			return Token{}, 0, false, New(KindParsingToken, "unterminated block comment")
		}
		return Token{}, 0, true, nil
	}
	body := text[2 : 2+endIdx]
	n := 2 + endIdx + 2
	return Token{Kind: TokComment, Text: body}, n, false, nil
}

func scanReference(text string, atEOF bool) (Token, int, bool, error) {
	// text[0] == '#'
	i := 1
	for i < len(text) && isWhitespace(text[i]) {
		i++
	}
	if i == len(text) {
		if atEOF {
			return Token{}, 0, false, New(KindParsingToken, "'#' not followed by a number")
		}
		return Token{}, 0, true, nil
	}
	start := i
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	if start == i {
		return Token{}, 0, false, New(KindParsingToken, "'#' not followed by a number")
	}
	if i == len(text) && !atEOF {
		// The digit run might continue in the next refill.
		return Token{}, 0, true, nil
	}
	digits := text[start:i]
	val, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return Token{}, 0, false, New(KindInvalidNumber, "invalid reference number %q", digits)
	}
	if val < 1 {
		return Token{}, 0, false, New(KindInvalidNumber, "reference id must be >= 1, got %d", val)
	}
	return Token{Kind: TokReference, Ref: val}, i, false, nil
}

func scanIdentifierLike(text string, atEOF bool) (Token, int, bool, error) {
	i := 0
	for i < len(text) && !isStopByte(text[i]) {
		i++
	}
	if i == len(text) && !atEOF {
		return Token{}, 0, true, nil
	}
	run := text[:i]
	switch run {
	case "ISO-10303-21":
		return Token{Kind: TokStartTag, Text: run}, i, false, nil
	case "END-ISO-10303-21":
		return Token{Kind: TokEndTag, Text: run}, i, false, nil
	case "HEADER":
		return Token{Kind: TokHeader, Text: run}, i, false, nil
	case "DATA":
		return Token{Kind: TokData, Text: run}, i, false, nil
	case "ENDSEC":
		return Token{Kind: TokEndsec, Text: run}, i, false, nil
	default:
		return Token{Kind: TokDefinition, Text: run}, i, false, nil
	}
}
