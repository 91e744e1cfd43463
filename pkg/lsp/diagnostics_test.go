package lsp

import (
	"testing"

	"go.lsp.dev/protocol"
)

func TestComputeDiagnostics_ValidTreeHasNone(t *testing.T) {
	src := `{"nodes":[{"label":"A","children":[1]},{"label":"B"}]}`
	if got := computeDiagnostics(src); len(got) != 0 {
		t.Fatalf("computeDiagnostics() = %+v, want none", got)
	}
}

func TestComputeDiagnostics_InvalidJSON(t *testing.T) {
	diags := computeDiagnostics(`{not json`)
	if len(diags) != 1 || diags[0].Severity != protocol.DiagnosticSeverityError {
		t.Fatalf("computeDiagnostics() = %+v, want one error diagnostic", diags)
	}
}

func TestComputeDiagnostics_OutOfRangeChildIndex(t *testing.T) {
	src := `{"nodes":[{"label":"A","children":[5]}]}`
	diags := computeDiagnostics(src)
	if len(diags) != 1 || diags[0].Severity != protocol.DiagnosticSeverityError {
		t.Fatalf("computeDiagnostics() = %+v, want one error diagnostic", diags)
	}
}

func TestComputeDiagnostics_UnresolvableLinkIsWarning(t *testing.T) {
	src := `{"nodes":[{"label":"A","link":"/nonexistent/part.step"}]}`
	diags := computeDiagnostics(src)
	if len(diags) != 1 || diags[0].Severity != protocol.DiagnosticSeverityWarning {
		t.Fatalf("computeDiagnostics() = %+v, want one warning diagnostic", diags)
	}
}

func TestComputeDiagnostics_DuplicateMetadataKey(t *testing.T) {
	src := `{"nodes":[{"label":"A","metadata":[{"key":"mass","value":"1"},{"key":"mass","value":"2"}]}]}`
	diags := computeDiagnostics(src)
	if len(diags) != 1 || diags[0].Severity != protocol.DiagnosticSeverityError {
		t.Fatalf("computeDiagnostics() = %+v, want one error diagnostic", diags)
	}
}

func TestComputeDiagnostics_MultipleIssuesAllReported(t *testing.T) {
	src := `{"nodes":[{"label":"A","children":[9],"metadata":[{"key":"x","value":"1"},{"key":"x","value":"2"}]}]}`
	diags := computeDiagnostics(src)
	if len(diags) != 2 {
		t.Fatalf("computeDiagnostics() = %+v, want 2 diagnostics", diags)
	}
}
