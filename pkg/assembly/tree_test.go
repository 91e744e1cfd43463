package assembly

import (
	"strings"
	"testing"

	"github.com/stepworks/stepmerger/pkg/stepio"
)

func TestLoad_ValidTree(t *testing.T) {
	src := `{"nodes":[{"label":"A","children":[1]},{"label":"B"}]}`
	tree, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(tree.Nodes) != 2 {
		t.Fatalf("len(Nodes) = %d, want 2", len(tree.Nodes))
	}
	if tree.Nodes[0].Label != "A" || tree.Nodes[1].Label != "B" {
		t.Errorf("unexpected labels: %+v", tree.Nodes)
	}
}

func TestLoad_InvalidChildIndex(t *testing.T) {
	src := `{"nodes":[{"label":"A","children":[5]}]}`
	_, err := Load(strings.NewReader(src))
	if err == nil {
		t.Fatal("expected an error for an out-of-range child index")
	}
	serr, ok := err.(*stepio.Error)
	if !ok || serr.Kind != stepio.KindInvalidAssembly {
		t.Fatalf("err = %v, want KindInvalidAssembly", err)
	}
}

func TestNode_TransformOrIdentity(t *testing.T) {
	var n Node
	if n.TransformOrIdentity() != Identity {
		t.Error("zero-value Node should default to Identity transform")
	}

	custom := [16]float64{2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 2, 0, 5, 6, 7, 1}
	n.Transform = &custom
	if n.TransformOrIdentity() != custom {
		t.Error("TransformOrIdentity() should return the explicit transform")
	}
}
