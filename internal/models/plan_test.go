package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionSingle(t *testing.T) {
	for n := 1; n <= 9; n++ {
		parts := Plan{Kind: PlanSingle}.Partition(n)
		require.Len(t, parts, n)
		for i, p := range parts {
			assert.Equal(t, PageRange{Start: i, End: i + 1}, p)
		}
	}
}

func TestPartitionDouble(t *testing.T) {
	for n := 1; n <= 9; n++ {
		parts := Plan{Kind: PlanDouble}.Partition(n)
		require.Len(t, parts, (n+1)/2, "n=%d", n)
		last := parts[len(parts)-1]
		if n%2 == 1 {
			assert.Equal(t, 1, last.Len(), "n=%d", n)
		} else {
			assert.Equal(t, 2, last.Len(), "n=%d", n)
		}
	}
}

func TestPartitionCustom(t *testing.T) {
	plan := Plan{Kind: PlanCustom, Segments: []int{3, 3, 4}}

	assert.Equal(t, []PageRange{{0, 3}, {3, 6}, {6, 10}}, plan.Partition(10))
	assert.Equal(t, []PageRange{{0, 3}, {3, 6}, {6, 7}}, plan.Partition(7))
	assert.Equal(t, []PageRange{{0, 3}, {3, 5}}, plan.Partition(5))
	assert.Equal(t, []PageRange{{0, 3}, {3, 6}, {6, 10}}, plan.Partition(20))
}

func TestPartitionCustomSkipsEmptySegments(t *testing.T) {
	plan := Plan{Kind: PlanCustom, Segments: []int{0, 2, 0, 1}}
	assert.Equal(t, []PageRange{{0, 2}, {2, 3}}, plan.Partition(4))

	assert.Empty(t, Plan{Kind: PlanCustom, Segments: []int{0, 0}}.Partition(4))
}

func TestPartitionCustomHugeSegment(t *testing.T) {
	plan := Plan{Kind: PlanCustom, Segments: []int{3, math.MaxInt, 2}}
	parts := plan.Partition(10)
	assert.Equal(t, []PageRange{{0, 3}, {3, 10}}, parts)
	assert.Len(t, parts[1].Indices(), 7)

	assert.Equal(t, []PageRange{{0, 10}}, Plan{Kind: PlanCustom, Segments: []int{math.MaxInt, math.MaxInt}}.Partition(10))
}

func TestPartitionEdgeCases(t *testing.T) {
	assert.Empty(t, Plan{Kind: PlanSingle}.Partition(0))
	assert.Empty(t, Plan{}.Partition(5))
	assert.Equal(t, []int{3, 4, 5}, PageRange{Start: 3, End: 6}.Indices())
	assert.Empty(t, PageRange{Start: 6, End: 3}.Indices())
}

func TestAttachmentNames(t *testing.T) {
	a := Attachment{FileName: "report.final.pdf", MimeType: MimePDF}
	assert.Equal(t, "report.final", a.BaseName())
	assert.Equal(t, "pdf", a.Ext())
	assert.True(t, a.IsPDF())

	assert.True(t, Attachment{FileName: "scan.PDF"}.IsPDF())
	assert.False(t, Attachment{FileName: "scan.pdf", MimeType: "image/png"}.IsPDF())
	assert.Equal(t, "pdf", Attachment{FileName: "noext"}.Ext())
}

func TestSessionResetAndTarget(t *testing.T) {
	s := NewSession(7)
	s.State = StateAwaitingUniqueFiles
	s.CommonFile = &Attachment{FileID: "c"}
	s.Files = []Attachment{{FileID: "u"}}
	s.AwaitingFileFor = TargetAssemblyUnique

	assert.Equal(t, TargetAssemblyUnique, s.TakeTarget())
	assert.Equal(t, TargetNone, s.AwaitingFileFor)

	s.Reset()
	assert.Equal(t, int64(7), s.ChatID)
	assert.Equal(t, StateIdle, s.State)
	assert.Nil(t, s.CommonFile)
	assert.Empty(t, s.Files)
}
