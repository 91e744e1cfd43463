// Package stepmap builds and reads the source map for a merge: for every
// entry imported from a referenced file into a merged STEP file's DATA;
// block, it records which source file and pre-rewrite id produced it. Grounded on
// pkg/sourcemap/generator.go, which builds the same kind of position
// mapping for Dingo-to-Go transpilation but leaves the Source Map v3
// `mappings` field as a TODO; this package finishes that VLQ encoding for
// the merge domain.
package stepmap

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// base64VLQ is the alphabet used by the Source Map v3 `mappings` field.
const base64VLQ = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Mapping is a single recorded correspondence between an entry in the
// merged output and the source entry it came from.
type Mapping struct {
	// GenLine is the entry's 1-based position within the merged file's
	// DATA; block (spec §6 guarantees one entry per line).
	GenLine int
	// SourceFile is the originating file's link string, empty for
	// entries that originate in the root assembly itself.
	SourceFile string
	// SourceLine is the entry's pre-rewrite id in its originating file.
	SourceLine int
	// Name is the entry's post-rewrite id, stringified.
	Name string
}

// Builder accumulates Mappings during a merge and encodes them into a
// Source Map v3 document.
type Builder struct {
	file     string
	mappings []Mapping
}

// NewBuilder creates a Builder for a merge whose output file is named file.
func NewBuilder(file string) *Builder {
	return &Builder{file: file}
}

// AddMapping records that genLine in the merged output came from id
// sourceLine of sourceFile, and was rewritten to name.
func (b *Builder) AddMapping(genLine int, sourceFile string, sourceLine int, name string) {
	b.mappings = append(b.mappings, Mapping{
		GenLine:    genLine,
		SourceFile: sourceFile,
		SourceLine: sourceLine,
		Name:       name,
	})
}

// sourceMapV3 mirrors the Source Map v3 JSON schema.
type sourceMapV3 struct {
	Version  int      `json:"version"`
	File     string   `json:"file"`
	Sources  []string `json:"sources"`
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

// Encode produces the Builder's Source Map v3 JSON document, VLQ-encoding
// the mappings field.
func (b *Builder) Encode() ([]byte, error) {
	sorted := make([]Mapping, len(b.mappings))
	copy(sorted, b.mappings)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].GenLine < sorted[j].GenLine })

	sources := newIndex()
	names := newIndex()
	for _, m := range sorted {
		sources.indexOf(m.SourceFile)
		names.indexOf(m.Name)
	}

	maxLine := 0
	for _, m := range sorted {
		if m.GenLine > maxLine {
			maxLine = m.GenLine
		}
	}

	var sb strings.Builder
	prevSourceIndex, prevSourceLine, prevNameIndex := 0, 0, 0
	byLine := make(map[int][]Mapping, len(sorted))
	for _, m := range sorted {
		byLine[m.GenLine] = append(byLine[m.GenLine], m)
	}

	for line := 1; line <= maxLine; line++ {
		if line > 1 {
			sb.WriteByte(';')
		}
		segs := byLine[line]
		for i, m := range segs {
			if i > 0 {
				sb.WriteByte(',')
			}
			sourceIndex := sources.indexOf(m.SourceFile)
			nameIndex := names.indexOf(m.Name)

			sb.WriteString(encodeVLQ(0)) // genColumn, always 0: one entry per line
			sb.WriteString(encodeVLQ(sourceIndex - prevSourceIndex))
			sb.WriteString(encodeVLQ(m.SourceLine - prevSourceLine))
			sb.WriteString(encodeVLQ(0)) // sourceColumn, unused at entry granularity
			sb.WriteString(encodeVLQ(nameIndex - prevNameIndex))

			prevSourceIndex = sourceIndex
			prevSourceLine = m.SourceLine
			prevNameIndex = nameIndex
		}
	}

	sm := sourceMapV3{
		Version:  3,
		File:     b.file,
		Sources:  sources.values,
		Names:    names.values,
		Mappings: sb.String(),
	}
	data, err := json.MarshalIndent(sm, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("stepmap: marshaling source map: %w", err)
	}
	return data, nil
}

// index assigns each distinct string a stable, first-seen-order integer.
type index struct {
	values []string
	lookup map[string]int
}

func newIndex() *index {
	return &index{lookup: make(map[string]int)}
}

func (x *index) indexOf(s string) int {
	if i, ok := x.lookup[s]; ok {
		return i
	}
	i := len(x.values)
	x.values = append(x.values, s)
	x.lookup[s] = i
	return i
}

// encodeVLQ encodes a signed integer as a base64 VLQ string per the
// Source Map v3 spec: the sign occupies the low bit, then 5-bit groups
// least-significant first, with a continuation bit on all but the last.
func encodeVLQ(n int) string {
	var sb strings.Builder
	v := n << 1
	if n < 0 {
		v = (-n << 1) | 1
	}
	for {
		digit := v & 0x1f
		v >>= 5
		if v > 0 {
			digit |= 0x20
		}
		sb.WriteByte(base64VLQ[digit])
		if v == 0 {
			break
		}
	}
	return sb.String()
}
