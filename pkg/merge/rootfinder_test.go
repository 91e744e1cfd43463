package merge

import (
	"reflect"
	"testing"

	"github.com/stepworks/stepmerger/pkg/step"
)

func TestRootFinder_SingleRoot(t *testing.T) {
	rf := NewRootFinder(nil)
	rf.AddEntry(step.Entry{Id: 10, Definition: "PRODUCT_DEFINITION_SHAPE('','',#14)"})
	rf.AddEntry(step.Entry{Id: 19, Definition: "SHAPE_DEFINITION_REPRESENTATION(#10,#20)"})

	got := rf.GetRootNodes()
	want := []NodeStepIds{{ProductDefinitionID: 14, ShapeRepresentationID: 20}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetRootNodes() = %+v, want %+v", got, want)
	}
}

func TestRootFinder_ParentedNodeIsNotARoot(t *testing.T) {
	rf := NewRootFinder(nil)
	rf.AddEntry(step.Entry{Id: 10, Definition: "PRODUCT_DEFINITION_SHAPE('','',#14)"})
	rf.AddEntry(step.Entry{Id: 19, Definition: "SHAPE_DEFINITION_REPRESENTATION(#10,#20)"})
	rf.AddEntry(step.Entry{Id: 30, Definition: "NEXT_ASSEMBLY_USAGE_OCCURRENCE('','','',#99,#14,$)"})

	got := rf.GetRootNodes()
	if len(got) != 0 {
		t.Fatalf("GetRootNodes() = %+v, want none (node #14 has a parent)", got)
	}
}

func TestRootFinder_DiscoveryOrderPreserved(t *testing.T) {
	rf := NewRootFinder(nil)
	rf.AddEntry(step.Entry{Id: 10, Definition: "PRODUCT_DEFINITION_SHAPE('','',#14)"})
	rf.AddEntry(step.Entry{Id: 19, Definition: "SHAPE_DEFINITION_REPRESENTATION(#10,#20)"})
	rf.AddEntry(step.Entry{Id: 2010, Definition: "PRODUCT_DEFINITION_SHAPE('','',#2014)"})
	rf.AddEntry(step.Entry{Id: 2019, Definition: "SHAPE_DEFINITION_REPRESENTATION(#2010,#2020)"})

	got := rf.GetRootNodes()
	want := []NodeStepIds{
		{ProductDefinitionID: 14, ShapeRepresentationID: 20},
		{ProductDefinitionID: 2014, ShapeRepresentationID: 2020},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetRootNodes() = %+v, want %+v", got, want)
	}
}

func TestRootFinder_MalformedArityIsSkippedNotFatal(t *testing.T) {
	rf := NewRootFinder(nil)
	rf.AddEntry(step.Entry{Id: 5, Definition: "SHAPE_DEFINITION_REPRESENTATION(#1)"}) // wrong arity
	rf.AddEntry(step.Entry{Id: 10, Definition: "PRODUCT_DEFINITION_SHAPE('','',#14)"})
	rf.AddEntry(step.Entry{Id: 19, Definition: "SHAPE_DEFINITION_REPRESENTATION(#10,#20)"})

	got := rf.GetRootNodes()
	want := []NodeStepIds{{ProductDefinitionID: 14, ShapeRepresentationID: 20}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetRootNodes() = %+v, want %+v", got, want)
	}
}

func TestRootFinder_DanglingShapeChainLoggedAndSkipped(t *testing.T) {
	rf := NewRootFinder(nil)
	rf.AddEntry(step.Entry{Id: 10, Definition: "PRODUCT_DEFINITION_SHAPE('','',#14)"})
	// No matching SHAPE_DEFINITION_REPRESENTATION for #10.

	got := rf.GetRootNodes()
	if len(got) != 0 {
		t.Fatalf("GetRootNodes() = %+v, want none (dangling chain)", got)
	}
}

func TestRootFinder_IgnoresUnrelatedKeywords(t *testing.T) {
	rf := NewRootFinder(nil)
	rf.AddEntry(step.Entry{Id: 1, Definition: "CARTESIAN_POINT('',(0.,0.,0.))"})
	rf.AddEntry(step.Entry{Id: 10, Definition: "PRODUCT_DEFINITION_SHAPE('','',#14)"})
	rf.AddEntry(step.Entry{Id: 19, Definition: "SHAPE_DEFINITION_REPRESENTATION(#10,#20)"})

	got := rf.GetRootNodes()
	if len(got) != 1 {
		t.Fatalf("GetRootNodes() = %+v, want exactly 1 root", got)
	}
}
