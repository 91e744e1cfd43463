// Package assembly is the externally described assembly hierarchy that
// drives a merge: a flat, read-only node list built once by an external
// loader. Per spec §1, the JSON representation of this input is an
// external collaborator — this package loads it into the pre-parsed
// Tree the core merge driver consumes, but never performs merging
// itself.
package assembly

import (
	"io"

	"github.com/segmentio/encoding/json"

	"github.com/stepworks/stepmerger/pkg/stepio"
)

// Identity is the default 4x4 identity transform, column-major.
var Identity = [16]float64{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// MetaPair is one key/value metadata entry attached to a Node.
type MetaPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Node is one element of an assembly Tree: a label, an optional link to
// an external STEP part file, a column-major 4x4 transform, metadata,
// and an ordered list of child indices into the same Tree.
type Node struct {
	Label     string     `json:"label"`
	Link      *string    `json:"link,omitempty"`
	Transform *[16]float64 `json:"transform,omitempty"`
	Metadata  []MetaPair `json:"metadata,omitempty"`
	Children  []int      `json:"children,omitempty"`
}

// TransformOrIdentity returns the node's transform, defaulting to the
// identity matrix when the node carries none.
func (n Node) TransformOrIdentity() [16]float64 {
	if n.Transform == nil {
		return Identity
	}
	return *n.Transform
}

// Tree is a read-only, contiguous list of assembly Nodes. Every child
// index in every node is guaranteed to be a valid index into Nodes.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Load decodes a Tree from r and validates the child-index invariant:
// every child index must be a valid index into the node list. It
// returns a *stepio.Error of KindInvalidAssembly naming the offending
// node and child index if validation fails, or KindLoadAssembly if the
// JSON itself cannot be decoded.
func Load(r io.Reader) (*Tree, error) {
	var tree Tree
	dec := json.NewDecoder(r)
	if err := dec.Decode(&tree); err != nil {
		return nil, stepio.Wrap(stepio.KindLoadAssembly, err, "decoding assembly tree")
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return &tree, nil
}

// Validate checks the child-index invariant across every node.
func (t *Tree) Validate() error {
	n := len(t.Nodes)
	for _, node := range t.Nodes {
		for _, child := range node.Children {
			if child < 0 || child >= n {
				return stepio.New(stepio.KindInvalidAssembly,
					"node %q references child index %d, but the tree has %d nodes", node.Label, child, n)
			}
		}
	}
	return nil
}
