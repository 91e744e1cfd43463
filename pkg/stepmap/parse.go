package stepmap

import (
	"fmt"

	"github.com/go-sourcemap/sourcemap"
)

// Consumer decodes a Source Map v3 document produced by Builder.Encode and
// answers lookups from a merged output line back to its source.
type Consumer struct {
	sm *sourcemap.Consumer
}

// Parse decodes data as a Source Map v3 document.
func Parse(data []byte) (*Consumer, error) {
	sm, err := sourcemap.Parse("", data)
	if err != nil {
		return nil, fmt.Errorf("stepmap: parsing source map: %w", err)
	}
	return &Consumer{sm: sm}, nil
}

// Source looks up the source file and pre-rewrite id that produced the
// merged output's genLine. name is the rewritten id, stringified, as
// recorded by Builder.AddMapping.
func (c *Consumer) Source(genLine int) (sourceFile string, sourceLine int, name string, ok bool) {
	file, nameAtLine, line, _, found := c.sm.Source(genLine-1, 0)
	if !found {
		return "", 0, "", false
	}
	return file, line + 1, nameAtLine, true
}
