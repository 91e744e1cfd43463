package merge

import (
	"fmt"
	"strconv"
	"strings"
)

// This file holds the fixed AP203 entry templates synthesized by the
// merge driver (spec §4.8). Per spec §9's Open Question (ii), the
// templates are treated as a single opaque block whose cross-references
// are computed from ids the driver hands in — nothing here hard-codes
// an id outside of what its caller supplies.

func floats(vals ...float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func quote(s string) string {
	// STEP strings are opaque byte spans; this driver never emits a
	// label containing a single quote, so no escaping is attempted here.
	return "'" + s + "'"
}

func cartesianPoint(x, y, z float64) string {
	return fmt.Sprintf("CARTESIAN_POINT('',(%s))", floats(x, y, z))
}

func direction(x, y, z float64) string {
	return fmt.Sprintf("DIRECTION('',(%s))", floats(x, y, z))
}

func axis2Placement3D(pointID, zAxisID, xAxisID uint64) string {
	return fmt.Sprintf("AXIS2_PLACEMENT_3D('',#%d,#%d,#%d)", pointID, zAxisID, xAxisID)
}

func applicationContext() string {
	return "APPLICATION_CONTEXT('configuration controlled 3d designs of mechanical parts and assemblies')"
}

func applicationProtocolDefinition(appContextID uint64) string {
	return fmt.Sprintf("APPLICATION_PROTOCOL_DEFINITION('international standard','config_control_design',2010,#%d)", appContextID)
}

func lengthUnit() string {
	return "(LENGTH_UNIT()NAMED_UNIT(*)SI_UNIT(.MILLI.,.METRE.))"
}

func planeAngleUnit() string {
	return "(NAMED_UNIT(*)PLANE_ANGLE_UNIT()SI_UNIT($,.RADIAN.))"
}

func solidAngleUnit() string {
	return "(NAMED_UNIT(*)SOLID_ANGLE_UNIT()SI_UNIT($,.STERADIAN.))"
}

func dimensionalExponents() string {
	return "DIMENSIONAL_EXPONENTS(0.,0.,0.,0.,0.,0.,0.)"
}

func conversionBasedPlaneAngleUnit(dimExpID uint64) string {
	return fmt.Sprintf("(CONVERSION_BASED_UNIT('DEGREE',#%d)NAMED_UNIT(#%d)PLANE_ANGLE_UNIT())", dimExpID, dimExpID)
}

func productContext(appContextID uint64) string {
	return fmt.Sprintf("PRODUCT_CONTEXT('',#%d,'mechanical')", appContextID)
}

func product(label string, productContextID uint64) string {
	return fmt.Sprintf("PRODUCT(%s,%s,'',(#%d))", quote(label), quote(label), productContextID)
}

func productDefinitionContext(appContextID uint64) string {
	return fmt.Sprintf("PRODUCT_DEFINITION_CONTEXT('design',#%d,'design')", appContextID)
}

func productDefinitionFormation(productID uint64) string {
	return fmt.Sprintf("PRODUCT_DEFINITION_FORMATION('','',#%d)", productID)
}

func productDefinition(formationID, contextID uint64) string {
	return fmt.Sprintf("PRODUCT_DEFINITION('','',#%d,#%d)", formationID, contextID)
}

func productDefinitionShape(ownerID uint64) string {
	return fmt.Sprintf("PRODUCT_DEFINITION_SHAPE('','',#%d)", ownerID)
}

func productRelatedProductCategory(productID uint64) string {
	return fmt.Sprintf("PRODUCT_RELATED_PRODUCT_CATEGORY('part','',(#%d))", productID)
}

func uncertaintyMeasureWithUnit(lengthUnitID uint64) string {
	return fmt.Sprintf("UNCERTAINTY_MEASURE_WITH_UNIT(LENGTH_MEASURE(1.0E-5),#%d,'distance_accuracy_value','')", lengthUnitID)
}

func geometricRepresentationContext(uncertaintyID, lengthUnitID, angleUnitID, solidAngleUnitID uint64) string {
	return fmt.Sprintf(
		"(GEOMETRIC_REPRESENTATION_CONTEXT(3)GLOBAL_UNCERTAINTY_ASSIGNED_CONTEXT((#%d))GLOBAL_UNIT_ASSIGNED_CONTEXT((#%d,#%d,#%d))REPRESENTATION_CONTEXT('','3D'))",
		uncertaintyID, lengthUnitID, angleUnitID, solidAngleUnitID)
}

func shapeRepresentation(label string, placementID, geometricContextID uint64) string {
	return fmt.Sprintf("SHAPE_REPRESENTATION(%s,(#%d),#%d)", quote(label), placementID, geometricContextID)
}

func shapeDefinitionRepresentation(productDefinitionShapeID, shapeRepresentationID uint64) string {
	return fmt.Sprintf("SHAPE_DEFINITION_REPRESENTATION(#%d,#%d)", productDefinitionShapeID, shapeRepresentationID)
}

func descriptiveRepresentationItem(key, value string) string {
	return fmt.Sprintf("DESCRIPTIVE_REPRESENTATION_ITEM(%s,%s)", quote(key), quote(value))
}

func representation(itemID, contextID uint64) string {
	return fmt.Sprintf("REPRESENTATION('',(#%d),#%d)", itemID, contextID)
}

func propertyDefinition(key string, definitionID uint64) string {
	return fmt.Sprintf("PROPERTY_DEFINITION(%s,'',#%d)", quote(key), definitionID)
}

func propertyDefinitionRepresentation(propertyDefinitionID, representationID uint64) string {
	return fmt.Sprintf("PROPERTY_DEFINITION_REPRESENTATION(#%d,#%d)", propertyDefinitionID, representationID)
}

func nextAssemblyUsageOccurrence(childLabel string, parentPD, childPD uint64) string {
	return fmt.Sprintf("NEXT_ASSEMBLY_USAGE_OCCURRENCE(%s,'',%s,#%d,#%d,%s)",
		quote(childLabel), quote(childLabel), parentPD, childPD, quote(childLabel))
}

// itemDefinedTransformation is its own AP203 entity instance, referenced
// by id from representationRelationship's complex entry below, not
// embedded inline as a parameter value (Part 21 syntax does not permit
// instantiating an entity inside another entity's argument list).
func itemDefinedTransformation(defaultCoordSystemID, placementID uint64) string {
	return fmt.Sprintf("ITEM_DEFINED_TRANSFORMATION('','',#%d,#%d)", defaultCoordSystemID, placementID)
}

func representationRelationship(childLabel, parentLabel string, childSR, parentSR, transformID uint64) string {
	return fmt.Sprintf(
		"(REPRESENTATION_RELATIONSHIP('Child > Parent',%s,#%d,#%d)REPRESENTATION_RELATIONSHIP_WITH_TRANSFORMATION(#%d)SHAPE_REPRESENTATION_RELATIONSHIP())",
		quote(childLabel+" > "+parentLabel), childSR, parentSR, transformID)
}

// nauoProductDefinitionShape is the relation-owned PRODUCT_DEFINITION_SHAPE
// referenced by a CONTEXT_DEPENDENT_SHAPE_REPRESENTATION; unlike a node's
// own productDefinitionShape, it carries the child label as its name.
func nauoProductDefinitionShape(childLabel string, ownerID uint64) string {
	return fmt.Sprintf("PRODUCT_DEFINITION_SHAPE(%s,$,#%d)", quote(childLabel), ownerID)
}

func contextDependentShapeRepresentation(repRelID, nauoShapeID uint64) string {
	return fmt.Sprintf("CONTEXT_DEPENDENT_SHAPE_REPRESENTATION(#%d,#%d)", repRelID, nauoShapeID)
}

func mechanicalDesignGeometricPresentationRepresentation(itemIDs []uint64, contextID uint64) string {
	parts := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("MECHANICAL_DESIGN_GEOMETRIC_PRESENTATION_REPRESENTATION('',(%s),#%d)", strings.Join(parts, ","), contextID)
}
