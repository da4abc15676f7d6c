package ack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInOrderTrackerAdvancesOnlyInOrder(t *testing.T) {
	tr := NewInOrderTracker()

	b1 := tr.Issue(10)
	b2 := tr.Issue(20)
	b3 := tr.Issue(30)

	_, ok := tr.Confirmed()
	require.False(t, ok)

	tr.Ack(b2)
	_, ok = tr.Confirmed()
	assert.False(t, ok, "acking out of order must not advance confirmed")

	tr.Ack(b1)
	pos, ok := tr.Confirmed()
	require.True(t, ok)
	assert.Equal(t, uint64(20), pos, "b1 and b2 both acked, confirmed should jump to b2's position")

	tr.Ack(b3)
	pos, ok = tr.Confirmed()
	require.True(t, ok)
	assert.Equal(t, uint64(30), pos)
}

func TestInOrderTrackerIgnoresUnknownBookmark(t *testing.T) {
	tr := NewInOrderTracker()
	tr.Issue(5)
	tr.Ack(Bookmark{})
	_, ok := tr.Confirmed()
	assert.False(t, ok)
}
