package merge

import (
	"github.com/stepworks/stepmerger/pkg/logging"
	"github.com/stepworks/stepmerger/pkg/step"
)

// NodeStepIds is a pair of STEP entry ids identifying, respectively, the
// PRODUCT_DEFINITION and SHAPE_REPRESENTATION entries of one assembly
// node (or one root found inside an imported file).
type NodeStepIds struct {
	ProductDefinitionID   uint64
	ShapeRepresentationID uint64
}

type sdrRecord struct {
	productDefinitionShape uint64
	shapeRepresentation    uint64
}

// RootFinder is an incremental accumulator over an entry stream that
// identifies unreferenced top-level product definitions: the roots of
// an imported file's assembly graph. It only inspects three entity
// kinds; every other keyword is ignored. Malformed reference arity on
// the three tracked keywords is logged and the offending entry is
// skipped rather than treated as fatal.
type RootFinder struct {
	logger logging.Logger

	sdrByEntryID map[uint64]sdrRecord // SHAPE_DEFINITION_REPRESENTATION id -> its two references
	sdrByPDS     map[uint64]uint64    // product_definition_shape id -> shape_representation id
	pdsOwner     map[uint64]uint64    // product_definition id -> product_definition_shape id
	pdOrder      []uint64             // product_definition ids in first-encountered order
	hasParent    map[uint64]bool      // product_definition id -> referenced by a NEXT_ASSEMBLY_USAGE_OCCURRENCE
}

// NewRootFinder creates an empty RootFinder. A nil logger is replaced
// with a no-op logger.
func NewRootFinder(logger logging.Logger) *RootFinder {
	if logger == nil {
		logger = logging.NewNoOp()
	}
	return &RootFinder{
		logger:       logger,
		sdrByEntryID: make(map[uint64]sdrRecord),
		sdrByPDS:     make(map[uint64]uint64),
		pdsOwner:     make(map[uint64]uint64),
		hasParent:    make(map[uint64]bool),
	}
}

// AddEntry inspects e's keyword and updates internal tables for the
// three tracked entity kinds; every other keyword is ignored.
func (rf *RootFinder) AddEntry(e step.Entry) {
	switch e.Keyword() {
	case "SHAPE_DEFINITION_REPRESENTATION":
		refs := e.GetReferences()
		if len(refs) != 2 {
			rf.logger.Warn("root finder: SHAPE_DEFINITION_REPRESENTATION #%d has %d references, want 2; skipping", e.Id, len(refs))
			return
		}
		rf.sdrByEntryID[e.Id] = sdrRecord{productDefinitionShape: refs[0], shapeRepresentation: refs[1]}
		rf.sdrByPDS[refs[0]] = refs[1]

	case "PRODUCT_DEFINITION_SHAPE":
		refs := e.GetReferences()
		if len(refs) < 1 {
			rf.logger.Warn("root finder: PRODUCT_DEFINITION_SHAPE #%d has no references; skipping", e.Id)
			return
		}
		owner := refs[len(refs)-1]
		if _, exists := rf.pdsOwner[owner]; !exists {
			rf.pdOrder = append(rf.pdOrder, owner)
		}
		rf.pdsOwner[owner] = e.Id

	case "NEXT_ASSEMBLY_USAGE_OCCURRENCE":
		refs := e.GetReferences()
		if len(refs) != 2 {
			rf.logger.Warn("root finder: NEXT_ASSEMBLY_USAGE_OCCURRENCE #%d has %d references, want 2; skipping", e.Id, len(refs))
			return
		}
		rf.hasParent[refs[1]] = true
	}
}

// GetRootNodes returns, for every recorded product definition with no
// "has parent" marker, the NodeStepIds reached by following
// product_definition -> product_definition_shape ->
// shape_definition_representation -> shape_representation. Dangling
// chains are logged and skipped. Results are in the order their owning
// PRODUCT_DEFINITION_SHAPE entries were first encountered.
func (rf *RootFinder) GetRootNodes() []NodeStepIds {
	roots := make([]NodeStepIds, 0, len(rf.pdOrder))
	for _, pd := range rf.pdOrder {
		if rf.hasParent[pd] {
			continue
		}
		pdsID, ok := rf.pdsOwner[pd]
		if !ok {
			continue
		}
		srID, ok := rf.sdrByPDS[pdsID]
		if !ok {
			rf.logger.Warn("root finder: product definition #%d has a dangling shape chain; skipping", pd)
			continue
		}
		roots = append(roots, NodeStepIds{ProductDefinitionID: pd, ShapeRepresentationID: srID})
	}
	return roots
}
