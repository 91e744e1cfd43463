// Package merge implements the streaming assembly merger: C6 (root
// finder), C7 (buffered replayable iterator) and C8 (the merge driver
// itself), which compose an externally described assembly tree with
// zero or more referenced STEP part files into one AP203 STEP file.
package merge

import (
	"fmt"
	"io"
	"strings"

	"github.com/stepworks/stepmerger/pkg/assembly"
	"github.com/stepworks/stepmerger/pkg/logging"
	"github.com/stepworks/stepmerger/pkg/step"
	"github.com/stepworks/stepmerger/pkg/stepio"
	"github.com/stepworks/stepmerger/pkg/stepmap"
)

// Resolver turns an assembly node's link string into a readable STEP
// exchange file. The driver closes the returned ReadCloser once the
// file has been fully imported, including on an error path.
type Resolver func(link string) (io.ReadCloser, error)

// Options configures one Merge run.
type Options struct {
	// LoadReferences, when true, resolves every node's Link and stitches
	// the referenced file's root entries into the node's assembly.
	LoadReferences bool
	// ImplementationLevel is the FILE_DESCRIPTION implementation level,
	// e.g. "2;1". Defaults to "2;1" if empty.
	ImplementationLevel string
	// Filename is the output FILE_NAME. Defaults to "" (an STEP reader
	// does not require a non-empty filename).
	Filename string
	// Schemas is the FILE_SCHEMA list. Defaults to
	// []string{"CONFIG_CONTROL_DESIGN"} if empty.
	Schemas []string
	// MapBuilder, if non-nil, is fed one mapping per imported entry
	// (its output line, its source file, its pre-rewrite id, and its
	// rewritten id), building the optional `--map` source map artifact.
	// Entries synthesized by the driver itself (not imported from a
	// referenced file) have no pre-rewrite id and are not mapped.
	MapBuilder *stepmap.Builder
}

// Merge drives tree and, if opts.LoadReferences, every file the tree's
// nodes link to, into a single AP203 STEP file written to sink. It
// returns the first fatal error encountered; resolver failures and
// malformed reference arity inside an imported file are logged and
// treated as recoverable (spec §6/§7).
func Merge(tree *assembly.Tree, resolve Resolver, sink io.Writer, opts Options, logger logging.Logger) (err error) {
	if logger == nil {
		logger = logging.NewNoOp()
	}
	if opts.ImplementationLevel == "" {
		opts.ImplementationLevel = "2;1"
	}
	if len(opts.Schemas) == 0 {
		opts.Schemas = []string{"CONFIG_CONTROL_DESIGN"}
	}

	w, werr := step.NewWriter(sink, step.WriterOptions{
		ImplementationLevel: opts.ImplementationLevel,
		Filename:            opts.Filename,
		Schemas:             opts.Schemas,
	})
	if werr != nil {
		return werr
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	d := &driver{
		tree:      tree,
		resolve:   resolve,
		w:         w,
		opts:      opts,
		logger:    logger,
		idc:       &idCounter{},
		refRoots:  make(map[string][]NodeStepIds),
		attempted: make(map[string]bool),
	}
	return d.run()
}

// idCounter hands out the strictly increasing ids every synthesized
// entry is written under. A per-file import fast-forwards it past the
// highest id that file's rewritten entries consumed.
type idCounter struct {
	cur uint64
}

func (c *idCounter) next() uint64 {
	c.cur++
	return c.cur
}

func (c *idCounter) bumpTo(v uint64) {
	if v > c.cur {
		c.cur = v
	}
}

// nodeRecord is the driver's working memory for one assembly node: the
// ids later steps need to wire a parent-child relation to it.
type nodeRecord struct {
	NodeStepIds
	placementID uint64
}

type driver struct {
	tree    *assembly.Tree
	resolve Resolver
	w       *step.Writer
	opts    Options
	logger  logging.Logger
	idc     *idCounter

	// refRoots maps an already-loaded link to the roots found inside it.
	// attempted marks every link a resolver call was attempted for
	// (successful or not), so a link shared by multiple nodes is only
	// ever loaded once (spec §4.8 step 6, §9 "at-most-once file load").
	refRoots  map[string][]NodeStepIds
	attempted map[string]bool

	nodes               []nodeRecord
	mechanicalDesignIDs []uint64
	pendingWriteErr     error
	lineNo              int

	// defaultCoordSystem is the AXIS2_PLACEMENT_3D id run() writes as the
	// very first placement; every parent-child relation's
	// ITEM_DEFINED_TRANSFORMATION references it (spec §4.8 step 3).
	defaultCoordSystem uint64
}

func firstErr(a, b error) error {
	if a != nil {
		return a
	}
	return b
}

func (d *driver) write(def string) uint64 {
	id := d.idc.next()
	d.lineNo++
	// Writer errors surface through step.Writer.WriteEntry's return, but
	// the driver has no sink-level recovery strategy beyond propagating
	// the first one it sees; run() checks every write.
	d.pendingWriteErr = firstErr(d.pendingWriteErr, d.w.WriteEntry(step.Entry{Id: id, Definition: def}))
	return id
}

// run executes the nine steps of spec §4.8 in order.
func (d *driver) run() error {
	appContextID := d.write(applicationContext())
	d.write(applicationProtocolDefinition(appContextID))

	pointID := d.write(cartesianPoint(0, 0, 0))
	zAxisID := d.write(direction(0, 0, 1))
	xAxisID := d.write(direction(1, 0, 0))
	d.defaultCoordSystem = d.write(axis2Placement3D(pointID, zAxisID, xAxisID))

	d.emitNodes(appContextID)
	d.emitChildRelations()
	if d.opts.LoadReferences {
		if err := d.loadReferencedFiles(); err != nil {
			return err
		}
	}
	d.emitLinkRelations()
	d.emitAggregator()

	return d.pendingWriteErr
}

// emitNodes performs spec §4.8 step 4: for each assembly node, in tree
// order, emit its fixed boilerplate block plus one metadata block per
// metadata pair, recording the node's product_definition_id and
// shape_representation_id.
func (d *driver) emitNodes(appContextID uint64) {
	d.nodes = make([]nodeRecord, len(d.tree.Nodes))
	for i, node := range d.tree.Nodes {
		d.nodes[i] = d.emitNodeBlock(node, appContextID)
	}
}

func (d *driver) emitNodeBlock(node assembly.Node, appContextID uint64) nodeRecord {
	pointID := d.write(cartesianPoint(0, 0, 0))
	zAxisID := d.write(direction(0, 0, 1))
	xAxisID := d.write(direction(1, 0, 0))
	placementID := d.write(axis2Placement3D(pointID, zAxisID, xAxisID))

	lengthUnitID := d.write(lengthUnit())
	angleUnitID := d.write(planeAngleUnit())
	solidAngleUnitID := d.write(solidAngleUnit())

	productContextID := d.write(productContext(appContextID))
	productID := d.write(product(node.Label, productContextID))
	pdContextID := d.write(productDefinitionContext(appContextID))
	formationID := d.write(productDefinitionFormation(productID))
	productDefinitionID := d.write(productDefinition(formationID, pdContextID))
	pdsID := d.write(productDefinitionShape(productDefinitionID))
	d.write(productRelatedProductCategory(productID))
	uncertaintyID := d.write(uncertaintyMeasureWithUnit(lengthUnitID))
	geometricContextID := d.write(geometricRepresentationContext(uncertaintyID, lengthUnitID, angleUnitID, solidAngleUnitID))
	shapeRepresentationID := d.write(shapeRepresentation(node.Label, placementID, geometricContextID))
	d.write(shapeDefinitionRepresentation(pdsID, shapeRepresentationID))

	for _, m := range node.Metadata {
		d.emitMetadataBlock(m, productDefinitionID, geometricContextID)
	}

	return nodeRecord{
		NodeStepIds: NodeStepIds{
			ProductDefinitionID:   productDefinitionID,
			ShapeRepresentationID: shapeRepresentationID,
		},
		placementID: placementID,
	}
}

// emitMetadataBlock performs the 4-entry metadata block named in spec
// §4.8 step 4: a descriptive representation item carrying the key and
// value, wrapped in a representation, attached to the node's product
// definition via a property definition and its representation.
func (d *driver) emitMetadataBlock(m assembly.MetaPair, productDefinitionID, geometricContextID uint64) {
	itemID := d.write(descriptiveRepresentationItem(m.Key, m.Value))
	repID := d.write(representation(itemID, geometricContextID))
	propDefID := d.write(propertyDefinition(m.Key, productDefinitionID))
	d.write(propertyDefinitionRepresentation(propDefID, repID))
}

// emitChildRelations performs spec §4.8 step 5: for each node, for each
// child in order, emit a 9-entry parent-child relation using the
// child's transform.
func (d *driver) emitChildRelations() {
	for i, node := range d.tree.Nodes {
		parent := d.nodes[i]
		for _, childIdx := range node.Children {
			child := d.nodes[childIdx]
			childNode := d.tree.Nodes[childIdx]
			transform := childNode.TransformOrIdentity()
			d.emitRelation(node.Label, childNode.Label, parent, child, transform)
		}
	}
}

// emitRelation emits the 9-entry parent-child relation block of spec
// §4.8 steps 5 and 7: a placement derived from transform (translation
// scaled meters->millimeters, x-axis from transform[0:3], z-axis from
// transform[8:11] per the column-major convention preserved in spec
// §9 Open Question (iii)), an ITEM_DEFINED_TRANSFORMATION referencing
// that placement and the driver's default coordinate system, a
// NEXT_ASSEMBLY_USAGE_OCCURRENCE relating parent to child, a
// PRODUCT_DEFINITION_SHAPE owned by that occurrence, and the
// representation-relationship/context-dependent-shape-representation
// pair wiring the two shape representations through that transformation.
func (d *driver) emitRelation(parentLabel, childLabel string, parent, child nodeRecord, transform [16]float64) {
	tx, ty, tz := transform[12]*1000, transform[13]*1000, transform[14]*1000
	xAxis := [3]float64{transform[0], transform[1], transform[2]}
	zAxis := [3]float64{transform[8], transform[9], transform[10]}

	pointID := d.write(cartesianPoint(tx, ty, tz))
	zAxisID := d.write(direction(zAxis[0], zAxis[1], zAxis[2]))
	xAxisID := d.write(direction(xAxis[0], xAxis[1], xAxis[2]))
	placementID := d.write(axis2Placement3D(pointID, zAxisID, xAxisID))
	transformID := d.write(itemDefinedTransformation(d.defaultCoordSystem, placementID))

	repRelID := d.write(representationRelationship(childLabel, parentLabel, child.ShapeRepresentationID, parent.ShapeRepresentationID, transformID))
	nauoID := d.write(nextAssemblyUsageOccurrence(childLabel, parent.ProductDefinitionID, child.ProductDefinitionID))
	nauoShapeID := d.write(nauoProductDefinitionShape(childLabel, nauoID))
	d.write(contextDependentShapeRepresentation(repRelID, nauoShapeID))
}

// loadReferencedFiles performs spec §4.8 step 6: resolve every node's
// Link at most once, import the referenced file's entries, and record
// its root nodes for emitLinkRelations.
func (d *driver) loadReferencedFiles() error {
	for _, node := range d.tree.Nodes {
		if node.Link == nil {
			continue
		}
		link := *node.Link
		if d.attempted[link] {
			continue
		}
		d.attempted[link] = true

		rc, err := d.resolve(link)
		if err != nil {
			d.logger.Warn("merge: resolving link %q failed, skipping: %v", link, err)
			continue
		}
		roots, err := d.importFile(link, rc)
		closeErr := rc.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return stepio.Wrap(stepio.KindIoRead, closeErr, "closing referenced file %q", link)
		}
		d.refRoots[link] = roots
	}
	return nil
}

// importFile performs the "Per-file import" algorithm of spec §4.8:
// it scans r in buffering mode for the file's APPLICATION_CONTEXT
// entry, derives the id-shift function, then replays the whole stream
// once more, routing each entry to the writer, the root finder, or the
// mechanical-design id collector.
func (d *driver) importFile(filename string, r io.Reader) ([]NodeStepIds, error) {
	reader := step.NewReader(r)
	buffered := newBufferedIterator(reader.Next)

	buffered.SetBufferingMode()
	var appContextID uint64
	found := false
	for {
		e, err := buffered.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(e.Definition, "APPLICATION_CONTEXT") {
			appContextID = e.Id
			found = true
			break
		}
	}
	if !found {
		return nil, stepio.New(stepio.KindAppContextMissing, "no APPLICATION_CONTEXT entry in %q", filename)
	}
	buffered.Reset()

	offset := d.idc.cur
	shift := func(id uint64) uint64 {
		if id == appContextID {
			return 1
		}
		return id + offset
	}

	rf := NewRootFinder(d.logger)
	var maxID uint64

	for {
		e, err := buffered.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		keyword := e.Keyword()
		originalID := e.Id
		rewritten := e.UpdateReferences(shift)
		if rewritten.Id > maxID {
			maxID = rewritten.Id
		}

		switch keyword {
		case "APPLICATION_CONTEXT", "APPLICATION_PROTOCOL_DEFINITION":
			continue
		case "MECHANICAL_DESIGN_GEOMETRIC_PRESENTATION_REPRESENTATION":
			refs := rewritten.GetReferences()
			if len(refs) > 0 {
				d.mechanicalDesignIDs = append(d.mechanicalDesignIDs, refs[:len(refs)-1]...)
			}
		default:
			d.lineNo++
			d.pendingWriteErr = firstErr(d.pendingWriteErr, d.w.WriteEntry(rewritten))
			rf.AddEntry(rewritten)
			if d.opts.MapBuilder != nil {
				d.opts.MapBuilder.AddMapping(d.lineNo, filename, int(originalID), fmt.Sprintf("%d", rewritten.Id))
			}
		}
	}

	d.idc.bumpTo(maxID)
	return rf.GetRootNodes(), nil
}

// emitLinkRelations performs spec §4.8 step 7: for each node with a
// link, for each of its recorded roots, emit an identity-transform
// parent-child relation.
func (d *driver) emitLinkRelations() {
	for i, node := range d.tree.Nodes {
		if node.Link == nil {
			continue
		}
		roots := d.refRoots[*node.Link]
		parent := d.nodes[i]
		for _, root := range roots {
			d.emitRelation(node.Label, node.Label, parent, nodeRecord{NodeStepIds: root}, assembly.Identity)
		}
	}
}

// emitAggregator performs spec §4.8 step 8: six unit/measure entries,
// one combined GEOMETRIC_REPRESENTATION_CONTEXT, and the terminal
// MECHANICAL_DESIGN_GEOMETRIC_PRESENTATION_REPRESENTATION referencing
// every collected mechanical-design id in discovery order. Per spec §9
// Open Question (ii), this whole block is an opaque template: nothing
// here hard-codes an id outside of what the running counter produces.
func (d *driver) emitAggregator() {
	lengthUnitID := d.write(lengthUnit())
	angleUnitID := d.write(planeAngleUnit())
	solidAngleUnitID := d.write(solidAngleUnit())
	dimExpID := d.write(dimensionalExponents())
	d.write(conversionBasedPlaneAngleUnit(dimExpID))
	uncertaintyID := d.write(uncertaintyMeasureWithUnit(lengthUnitID))

	geometricContextID := d.write(geometricRepresentationContext(uncertaintyID, lengthUnitID, angleUnitID, solidAngleUnitID))
	d.write(mechanicalDesignGeometricPresentationRepresentation(d.mechanicalDesignIDs, geometricContextID))
}
