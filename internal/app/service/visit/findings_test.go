package visit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/types"
)

func TestNormalizeFindings(t *testing.T) {
	out, err := NormalizeFindings([]types.SystemFinding{
		{System: "Brakes", Status: types.FindingStatusUrgentAttention, Note: "  replace front pads "},
		{System: "engine", Status: types.FindingStatusPass},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.SystemFinding{
		{System: "engine", Status: types.FindingStatusPass},
		{System: "brakes", Status: types.FindingStatusUrgentAttention, Note: "replace front pads"},
	}, out)

	cases := []struct {
		name string
		in   []types.SystemFinding
		want error
	}{
		{"unknown system", []types.SystemFinding{{System: "flux capacitor", Status: types.FindingStatusPass}}, apperr.UnknownSystem},
		{"bad status", []types.SystemFinding{{System: "tires", Status: "meh"}}, apperr.InvalidFindingStatus},
		{"duplicate", []types.SystemFinding{{System: "tires", Status: types.FindingStatusPass}, {System: "TIRES", Status: types.FindingStatusPass}}, apperr.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeFindings(tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCheckNotes(t *testing.T) {
	assert.NoError(t, CheckNotes([]types.SystemFinding{{System: "engine", Status: types.FindingStatusPass}}))
	assert.ErrorIs(t, CheckNotes([]types.SystemFinding{{System: "battery", Status: types.FindingStatusNeedsAttention}}), apperr.FindingNoteRequired)
}

func TestRenderFindings(t *testing.T) {
	text := RenderFindings([]types.SystemFinding{
		{System: "engine", Status: types.FindingStatusPass},
		{System: "brakes", Status: types.FindingStatusUrgentAttention, Note: "replace front pads"},
	}, "Noisy idle when cold.")
	assert.Equal(t, "Engine: PASS\nBrakes: URGENT ATTENTION - replace front pads\n\nNoisy idle when cold.", text)

	assert.Equal(t, "only narrative", RenderFindings(nil, " only narrative "))
	assert.Equal(t, "", RenderFindings(nil, ""))
}
