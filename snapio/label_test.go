package snapio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelSeq_Wrap(t *testing.T) {
	var seq labelSeq

	for i := 1; i <= 63; i++ {
		require.Equal(t, uint8(i), seq.next())
	}
	assert.Equal(t, uint8(0), seq.next())
	assert.Equal(t, uint8(1), seq.next())

	seq.reset()
	assert.Equal(t, uint8(1), seq.next())
}

func TestLabelSeq_SixtyFourSteps(t *testing.T) {
	var seq labelSeq

	seen := make(map[uint8]bool)
	for range 64 {
		seen[seq.next()] = true
	}
	assert.Len(t, seen, 64)
	assert.True(t, labelsMatch(5, 5))
	assert.False(t, labelsMatch(5, 6))
}
