package diagram

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/odogen/internal/schedule"
)

func TestDOTWithLookup(t *testing.T) {
	p, err := schedule.Compute(60, 7)
	require.NoError(t, err)

	dot := DOT(p, "odo_")
	assert.True(t, strings.HasPrefix(dot, "digraph pipeline {\n"))
	assert.Contains(t, dot, "throughput 7, 9 units, 7 periods, extra delay 0, latency 121")
	assert.Contains(t, dot, `unit0 [label="round0\nrounds 0,9,18,27,36,45,54"];`)
	assert.Contains(t, dot, "unit8 -> unit0 [label=\"period+1\"")
	assert.Contains(t, dot, "unit5 -> out")
	assert.NotContains(t, dot, "delay0")
}

func TestDOTExtraDelay(t *testing.T) {
	p, err := schedule.Compute(60, 60)
	require.NoError(t, err)

	dot := DOT(p, "")
	assert.Contains(t, dot, "unit0 -> delay0;")
	assert.Contains(t, dot, "delay3 -> delay4;")
	assert.Contains(t, dot, "delay4 -> unit0 [label=\"period+1\"")
	assert.Contains(t, dot, `rounds 0,1,2,3,4,5,6,7,...`)
}

func TestDOTSinglePeriodHasNoLoop(t *testing.T) {
	p, err := schedule.Compute(4, 1)
	require.NoError(t, err)

	dot := DOT(p, "")
	assert.NotContains(t, dot, "period+1")
	assert.Contains(t, dot, "unit2 -> unit3;")
	assert.Contains(t, dot, "unit3 -> out")
}

func TestRenderDOTPassthrough(t *testing.T) {
	p, err := schedule.Compute(10, 3)
	require.NoError(t, err)
	dot := DOT(p, "")

	var buf bytes.Buffer
	require.NoError(t, Render(context.Background(), dot, "dot", &buf))
	assert.Equal(t, dot, buf.String())
}

func TestRenderSVG(t *testing.T) {
	p, err := schedule.Compute(10, 3)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(context.Background(), DOT(p, ""), "svg", &buf))
	assert.Contains(t, buf.String(), "<svg")
}

func TestRenderUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(context.Background(), "digraph {}", "gif", &buf))
	assert.Zero(t, buf.Len())
}
