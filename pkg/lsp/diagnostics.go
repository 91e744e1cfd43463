package lsp

import (
	"fmt"
	"os"

	"go.lsp.dev/protocol"

	"github.com/segmentio/encoding/json"

	"github.com/stepworks/stepmerger/pkg/assembly"
)

// zeroRange anchors a diagnostic at the start of the document: this
// server works from the decoded tree, not token positions, so every
// diagnostic is whole-document rather than pointing at a specific line.
var zeroRange = protocol.Range{
	Start: protocol.Position{Line: 0, Character: 0},
	End:   protocol.Position{Line: 0, Character: 0},
}

// computeDiagnostics parses text as an assembly tree and reports every
// violation of the loader's invariants (spec §3): an out-of-range child
// index, a link that does not resolve to a readable file, and a node
// with a duplicate metadata key.
func computeDiagnostics(text string) []protocol.Diagnostic {
	var tree assembly.Tree
	if err := json.Unmarshal([]byte(text), &tree); err != nil {
		return []protocol.Diagnostic{diagnostic(protocol.DiagnosticSeverityError, "invalid JSON: %v", err)}
	}

	var diags []protocol.Diagnostic
	n := len(tree.Nodes)
	for _, node := range tree.Nodes {
		for _, child := range node.Children {
			if child < 0 || child >= n {
				diags = append(diags, diagnostic(protocol.DiagnosticSeverityError,
					"node %q references child index %d, but the tree has %d nodes", node.Label, child, n))
			}
		}

		if node.Link != nil {
			if _, err := os.Stat(*node.Link); err != nil {
				diags = append(diags, diagnostic(protocol.DiagnosticSeverityWarning,
					"node %q link %q does not resolve to a readable file: %v", node.Label, *node.Link, err))
			}
		}

		seen := make(map[string]bool, len(node.Metadata))
		for _, m := range node.Metadata {
			if seen[m.Key] {
				diags = append(diags, diagnostic(protocol.DiagnosticSeverityError,
					"node %q has duplicate metadata key %q", node.Label, m.Key))
			}
			seen[m.Key] = true
		}
	}

	return diags
}

func diagnostic(severity protocol.DiagnosticSeverity, format string, args ...interface{}) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    zeroRange,
		Severity: severity,
		Source:   "stepmerger",
		Message:  fmt.Sprintf(format, args...),
	}
}
