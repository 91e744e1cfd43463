package step

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/stepworks/stepmerger/pkg/stepio"
)

// WriterOptions configures the fixed HEADER block emitted by a Writer.
type WriterOptions struct {
	// ImplementationLevel is the second FILE_DESCRIPTION argument, e.g. "2;1".
	ImplementationLevel string
	// Filename is the first FILE_NAME argument.
	Filename string
	// Schemas populates the list-of-lists FILE_SCHEMA argument, one
	// schema identifier string per element.
	Schemas []string
	// Now overrides the FILE_NAME timestamp; if zero, time.Now() is used.
	// Exposed for deterministic tests.
	Now time.Time
}

// Writer is a scoped resource over a byte sink: construction writes the
// ISO header and opens the DATA block; Close finalizes the file by
// writing ENDSEC; END-ISO-10303-21; and flushing. Close is idempotent
// and safe to call multiple times, including from a defer on every exit
// path (the spec requires the output to be a syntactically closed STEP
// file even after a mid-merge failure).
type Writer struct {
	w         *bufio.Writer
	finalized bool
	writeErr  error
}

// NewWriter constructs a Writer, writing the ISO-10303-21 prologue and
// HEADER block and opening DATA; immediately.
func NewWriter(sink io.Writer, opts WriterOptions) (*Writer, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	bw := bufio.NewWriter(sink)
	wr := &Writer{w: bw}

	wr.writeString("ISO-10303-21;\n\n")
	wr.writeString("HEADER;\n")
	wr.writeString("FILE_DESCRIPTION((''), '" + opts.ImplementationLevel + "');\n")
	wr.writeString(fmt.Sprintf(
		"FILE_NAME('%s', '%s', (''), (''), 'step-merger', '', '');\n",
		opts.Filename, opts.Now.Format(time.RFC3339)))
	wr.writeString("FILE_SCHEMA(" + schemaList(opts.Schemas) + ");\n")
	wr.writeString("ENDSEC;\n\n")
	wr.writeString("DATA;\n")

	if wr.writeErr != nil {
		return nil, stepio.Wrap(stepio.KindIoWrite, wr.writeErr, "writing STEP header")
	}
	return wr, nil
}

func schemaList(schemas []string) string {
	parts := make([]string, len(schemas))
	for i, s := range schemas {
		parts[i] = "('" + s + "')"
	}
	return strings.Join(parts, ",")
}

func (wr *Writer) writeString(s string) {
	if wr.writeErr != nil {
		return
	}
	_, wr.writeErr = wr.w.WriteString(s)
}

// WriteEntry emits exactly "#<id>=<definition>;\n". Calling WriteEntry
// after Close is a programming error and panics, matching the spec's
// "writes after finalization are a programming error".
func (wr *Writer) WriteEntry(e Entry) error {
	if wr.finalized {
		panic("step: WriteEntry called after Writer.Close")
	}
	if wr.writeErr != nil {
		return stepio.Wrap(stepio.KindIoWrite, wr.writeErr, "writer already failed")
	}
	wr.writeString("#")
	wr.writeString(fmt.Sprintf("%d", e.Id))
	wr.writeString("=")
	wr.writeString(e.Definition)
	wr.writeString(";\n")
	if wr.writeErr != nil {
		return stepio.Wrap(stepio.KindIoWrite, wr.writeErr, "writing entry #%d", e.Id)
	}
	return nil
}

// Close finalizes the writer: ENDSEC; END-ISO-10303-21; then flushes.
// It is idempotent; the second and later calls are no-ops returning nil,
// even if the first call returned an error.
func (wr *Writer) Close() error {
	if wr.finalized {
		return nil
	}
	wr.finalized = true
	wr.writeString("ENDSEC;\n")
	wr.writeString("END-ISO-10303-21;\n")
	if wr.writeErr != nil {
		return stepio.Wrap(stepio.KindIoWrite, wr.writeErr, "finalizing STEP output")
	}
	if err := wr.w.Flush(); err != nil {
		wr.writeErr = err
		return stepio.Wrap(stepio.KindIoWrite, err, "flushing STEP output")
	}
	return nil
}
