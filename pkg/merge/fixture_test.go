package merge

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/stepworks/stepmerger/pkg/assembly"
)

// Packed multi-file fixtures: one archive holds the assembly tree JSON
// plus every linked STEP part file, keeping a multi-file merge scenario
// self-contained in a single literal.
const twoPartFixture = `
-- assembly.json --
{"nodes":[
  {"label":"Chassis","link":"chassis.step"},
  {"label":"Wheel","link":"wheel.step"}
]}
-- chassis.step --
ISO-10303-21;
HEADER;
ENDSEC;
DATA;
#1=APPLICATION_CONTEXT('chassis');
#2=APPLICATION_PROTOCOL_DEFINITION('','',2010,#1);
#10=PRODUCT_DEFINITION_SHAPE('','',#14);
#14=PRODUCT_DEFINITION('','',#12,#13);
#19=SHAPE_DEFINITION_REPRESENTATION(#10,#20);
#20=SHAPE_REPRESENTATION('chassis',(#3),#4);
ENDSEC;
END-ISO-10303-21;
-- wheel.step --
ISO-10303-21;
HEADER;
ENDSEC;
DATA;
#1=APPLICATION_CONTEXT('wheel');
#2=APPLICATION_PROTOCOL_DEFINITION('','',2010,#1);
#10=PRODUCT_DEFINITION_SHAPE('','',#14);
#14=PRODUCT_DEFINITION('','',#12,#13);
#19=SHAPE_DEFINITION_REPRESENTATION(#10,#20);
#20=SHAPE_REPRESENTATION('wheel',(#3),#4);
ENDSEC;
END-ISO-10303-21;
`

// archiveResolver resolves a link by looking it up among an in-memory
// txtar archive's files, used to keep fixture-driven merge tests free
// of any real filesystem dependency.
func archiveResolver(t *testing.T, arc *txtar.Archive) Resolver {
	t.Helper()
	files := make(map[string][]byte, len(arc.Files))
	for _, f := range arc.Files {
		files[f.Name] = f.Data
	}
	return func(link string) (io.ReadCloser, error) {
		data, ok := files[link]
		require.True(t, ok, "fixture has no file named %q", link)
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

func TestMerge_TwoIndependentPartFiles(t *testing.T) {
	arc := txtar.Parse([]byte(twoPartFixture))
	resolver := archiveResolver(t, arc)

	var assemblyData []byte
	for _, f := range arc.Files {
		if f.Name == "assembly.json" {
			assemblyData = f.Data
		}
	}
	require.NotNil(t, assemblyData, "fixture must contain assembly.json")

	tree, err := assembly.Load(bytes.NewReader(assemblyData))
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 2)

	var out bytes.Buffer
	err = Merge(tree, resolver, &out, Options{LoadReferences: true}, nil)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "SHAPE_REPRESENTATION('chassis'")
	assert.Contains(t, output, "SHAPE_REPRESENTATION('wheel'")

	nauoCount := strings.Count(output, "NEXT_ASSEMBLY_USAGE_OCCURRENCE")
	assert.Equal(t, 2, nauoCount, "one relation per linked part")

	appContextCount := strings.Count(output, "=APPLICATION_CONTEXT(")
	assert.Equal(t, 1, appContextCount, "only the merge's own APPLICATION_CONTEXT survives")
}
