// Package step implements the STEP entry data model, the streaming entry
// reader, and the entry writer: the textual unit of a STEP exchange file
// is a single `#id = definition;` record, and this package is the only
// place that knows how to extract, rewrite, and re-emit one.
package step

import (
	"strconv"
	"strings"
)

// Entry is a single `#id = definition;` record from a STEP DATA section.
// Definition holds the text between '=' and the terminating ';', with
// interior whitespace/comment runs already collapsed to a single space
// by the entry reader. Id is always > 0.
type Entry struct {
	Id         uint64
	Definition string
}

// scanState drives the three-state reference scanner of spec §4.4.
type scanState int

const (
	stateInDefinition scanState = iota
	stateInReference
	stateInString
)

// GetReferences returns, in textual order, every #N reference in the
// entry's definition, excluding occurrences equal to the entry's own id.
// A '#' inside a single-quoted string is inert: it never starts a
// reference.
func (e Entry) GetReferences() []uint64 {
	refs := make([]uint64, 0, 4)
	state := stateInDefinition
	def := e.Definition
	var digits strings.Builder

	flush := func() {
		if digits.Len() == 0 {
			return
		}
		v, err := strconv.ParseUint(digits.String(), 10, 64)
		digits.Reset()
		if err != nil {
			return
		}
		if v != e.Id {
			refs = append(refs, v)
		}
	}

	for i := 0; i < len(def); i++ {
		c := def[i]
		switch state {
		case stateInString:
			if c == '\'' {
				state = stateInDefinition
			}
		case stateInReference:
			if c >= '0' && c <= '9' {
				digits.WriteByte(c)
				continue
			}
			flush()
			state = stateInDefinition
			// Reprocess c under stateInDefinition below.
			i--
		case stateInDefinition:
			switch c {
			case '\'':
				state = stateInString
			case '#':
				state = stateInReference
			}
		}
	}
	if state == stateInReference {
		flush()
	}
	return refs
}

// UpdateReferences applies f to the entry's own id and to every #N
// occurrence in its definition, returning a new Entry. f MUST be
// strictly monotone: callers rely on that to keep ids unique after
// renumbering, but UpdateReferences itself does not verify monotonicity.
func (e Entry) UpdateReferences(f func(uint64) uint64) Entry {
	var out strings.Builder
	out.Grow(len(e.Definition))

	state := stateInDefinition
	def := e.Definition
	digitsStart := -1

	flush := func(end int) {
		if digitsStart < 0 {
			return
		}
		v, err := strconv.ParseUint(def[digitsStart:end], 10, 64)
		if err != nil {
			out.WriteString(def[digitsStart:end])
		} else {
			out.WriteString(strconv.FormatUint(f(v), 10))
		}
		digitsStart = -1
	}

	for i := 0; i < len(def); i++ {
		c := def[i]
		switch state {
		case stateInString:
			out.WriteByte(c)
			if c == '\'' {
				state = stateInDefinition
			}
		case stateInReference:
			if c >= '0' && c <= '9' {
				if digitsStart < 0 {
					digitsStart = i
				}
				continue
			}
			flush(i)
			state = stateInDefinition
			i--
		case stateInDefinition:
			switch c {
			case '\'':
				state = stateInString
				out.WriteByte(c)
			case '#':
				state = stateInReference
				out.WriteByte('#')
			default:
				out.WriteByte(c)
			}
		}
	}
	if state == stateInReference {
		flush(len(def))
	}

	return Entry{Id: f(e.Id), Definition: out.String()}
}

// Keyword returns the leading run of uppercase letters and underscores
// in the definition after trimming leading whitespace, e.g.
// "PRODUCT_DEFINITION" for a definition starting
// "PRODUCT_DEFINITION('',..." . It returns "" if the definition does not
// start with such a run.
func (e Entry) Keyword() string {
	def := strings.TrimLeft(e.Definition, whitespaceSet)
	i := 0
	for i < len(def) {
		c := def[i]
		if (c >= 'A' && c <= 'Z') || c == '_' {
			i++
			continue
		}
		break
	}
	return def[:i]
}

const whitespaceSet = " \t\r\n\f"
